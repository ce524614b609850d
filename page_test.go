// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause
package xtract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageTree_Flatten(t *testing.T) {
	// Nested Pages nodes; attributes inherited and shadowed.
	objs := []pdfObj{
		{1, "<< /Type /Catalog /Pages 2 0 R >>"},
		{2, "<< /Type /Pages /Kids [3 0 R 4 0 R] /Count 3 /MediaBox [0 0 612 792] /Resources << /Font << /F1 8 0 R >> >> >>"},
		{3, "<< /Type /Page /Parent 2 0 R >>"},
		{4, "<< /Type /Pages /Parent 2 0 R /Kids [5 0 R 6 0 R] /Count 2 /MediaBox [0 0 400 400] /Rotate 90 >>"},
		{5, "<< /Type /Page /Parent 4 0 R >>"},
		{6, "<< /Type /Page /Parent 4 0 R /MediaBox [0 0 100 100] >>"},
		{8, helveticaFontObj()},
	}
	r := readerFor(t, buildPDF(objs, 1, ""))

	require.Equal(t, 3, r.NumPage())

	p1 := r.Page(1)
	assert.InDelta(t, 612.0, p1.MediaBox().Index(2).Float64(), 0.01)
	assert.Equal(t, 0, p1.Rotate())
	assert.Contains(t, p1.Fonts(), "F1", "resources inherited from the root node")

	p2 := r.Page(2)
	assert.InDelta(t, 400.0, p2.MediaBox().Index(2).Float64(), 0.01)
	assert.Equal(t, 90, p2.Rotate())

	p3 := r.Page(3)
	assert.InDelta(t, 100.0, p3.MediaBox().Index(2).Float64(), 0.01, "leaf shadows ancestor MediaBox")

	assert.True(t, r.Page(0).V.IsNull())
	assert.True(t, r.Page(4).V.IsNull())
}

func TestPageTree_CountAdvisory(t *testing.T) {
	// /Count lies; the dense list holds the /Page leaves encountered.
	objs := []pdfObj{
		{1, "<< /Type /Catalog /Pages 2 0 R >>"},
		{2, "<< /Type /Pages /Kids [3 0 R] /Count 99 >>"},
		{3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>"},
	}
	r := readerFor(t, buildPDF(objs, 1, ""))
	assert.Equal(t, 1, r.NumPage())
}

func TestPageTree_CycleSafe(t *testing.T) {
	objs := []pdfObj{
		{1, "<< /Type /Catalog /Pages 2 0 R >>"},
		{2, "<< /Type /Pages /Kids [3 0 R 2 0 R] /Count 1 >>"}, // cycle back to itself
		{3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>"},
	}
	r := readerFor(t, buildPDF(objs, 1, ""))
	assert.Equal(t, 1, r.NumPage())
}

func TestPageFixture(t *testing.T) {
	r, err := Open(td("pdf_test.pdf"))
	require.NoError(t, err)
	defer r.Close()

	p := r.Page(1)
	require.False(t, p.V.IsNull())
	assert.NotEmpty(t, p.Fonts())

	text, err := p.GetPlainText(nil)
	require.NoError(t, err)
	assert.Contains(t, text, "Fixture Title")
}

func TestGetStyledTexts(t *testing.T) {
	r := readerFor(t, simplePagePDF("BT /F1 24 Tf 10 700 Td (Head) Tj /F1 12 Tf 10 650 Td (Body) Tj ET"))
	sentences, err := r.GetStyledTexts()
	require.NoError(t, err)
	require.Len(t, sentences, 2)
	assert.Equal(t, "Head", sentences[0].S)
	assert.InDelta(t, 24.0, sentences[0].FontSize, 0.01)
	assert.Equal(t, "Body", sentences[1].S)
	assert.InDelta(t, 12.0, sentences[1].FontSize, 0.01)
}

func TestGetTextByRowAndColumn(t *testing.T) {
	// Td is relative to the line matrix, so absolute moves use Tm.
	content := "BT /F1 12 Tf 1 0 0 1 10 700 Tm (r1c1) Tj 1 0 0 1 300 700 Tm (r1c2) Tj 1 0 0 1 10 600 Tm (r2c1) Tj ET"
	r := readerFor(t, simplePagePDF(content))
	p := r.Page(1)

	rows, err := p.GetTextByRow()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(700), rows[0].Position)
	require.Len(t, rows[0].Content, 2)
	assert.Equal(t, "r1c1", rows[0].Content[0].S)
	assert.Equal(t, "r1c2", rows[0].Content[1].S)
	assert.Equal(t, "r2c1", rows[1].Content[0].S)

	cols, err := p.GetTextByColumn()
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, int64(10), cols[0].Position)
	require.Len(t, cols[0].Content, 2)
	assert.Equal(t, "r1c1", cols[0].Content[0].S)
	assert.Equal(t, "r2c1", cols[0].Content[1].S)
	assert.Equal(t, "r1c2", cols[1].Content[0].S)
}

func TestOutline(t *testing.T) {
	objs := []pdfObj{
		{1, "<< /Type /Catalog /Pages 2 0 R /Outlines 4 0 R >>"},
		{2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>"},
		{3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>"},
		{4, "<< /Type /Outlines /First 5 0 R /Last 6 0 R >>"},
		{5, "<< /Title (Chapter One) /Parent 4 0 R /Next 6 0 R >>"},
		{6, "<< /Title (Chapter Two) /Parent 4 0 R /Prev 5 0 R >>"},
	}
	r := readerFor(t, buildPDF(objs, 1, ""))
	outline := r.Outline()
	require.Len(t, outline.Child, 2)
	assert.Equal(t, "Chapter One", outline.Child[0].Title)
	assert.Equal(t, "Chapter Two", outline.Child[1].Title)
}

func TestTextSortInterfaces(t *testing.T) {
	texts := TextVertical{
		{X: 20, Y: 100, S: "b"},
		{X: 10, Y: 100, S: "a"},
		{X: 0, Y: 200, S: "top"},
	}
	assert.True(t, texts.Less(2, 0), "higher Y sorts first")
	assert.True(t, texts.Less(1, 0), "same Y: lower X first")

	h := TextHorizontal{
		{X: 10, Y: 100, S: "a"},
		{X: 20, Y: 100, S: "b"},
	}
	assert.True(t, h.Less(0, 1))
}
