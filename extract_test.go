// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package xtract

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_PlainText(t *testing.T) {
	content := "BT /F1 12 Tf 1 0 0 1 10 700 Tm (first line) Tj 1 0 0 1 10 686 Tm (second line) Tj ET"
	r := readerFor(t, simplePagePDF(content))

	var out bytes.Buffer
	require.NoError(t, r.Extract(context.Background(), 0, &out, ExtractOptions{}))
	text := out.String()
	assert.Contains(t, text, "first line")
	assert.Contains(t, text, "second line")
	assert.Less(t, strings.Index(text, "first line"), strings.Index(text, "second line"))
}

func TestExtract_BadPageIndex(t *testing.T) {
	r := readerFor(t, simplePagePDF("BT /F1 12 Tf (x) Tj ET"))
	var out bytes.Buffer
	assert.ErrorIs(t, r.Extract(context.Background(), 5, &out, ExtractOptions{}), ErrInvalidPage)
	assert.ErrorIs(t, r.Extract(context.Background(), -1, &out, ExtractOptions{}), ErrInvalidPage)
}

func TestExtract_Markdown_HeadingFromSize(t *testing.T) {
	content := "BT /F1 24 Tf 1 0 0 1 10 700 Tm (Section Title) Tj " +
		"/F1 12 Tf 1 0 0 1 10 650 Tm (Plain body copy that dominates the character count of this page.) Tj ET"
	r := readerFor(t, simplePagePDF(content))

	var out bytes.Buffer
	require.NoError(t, r.Extract(context.Background(), 0, &out, ExtractOptions{Markdown: true}))
	md := out.String()
	assert.Contains(t, md, "# Section Title")
	assert.NotContains(t, md, "# Plain body")
}

func TestExtract_SpaceGapOption(t *testing.T) {
	// Two runs 3pt apart at 12pt: a space appears at the default
	// threshold but not at 0.5.
	content := "BT /F1 12 Tf 1 0 0 1 10 700 Tm (foo) Tj 1 0 0 1 31 700 Tm (bar) Tj ET"
	r := readerFor(t, simplePagePDF(content))

	var def, wide bytes.Buffer
	require.NoError(t, r.Extract(context.Background(), 0, &def, ExtractOptions{}))
	require.NoError(t, r.Extract(context.Background(), 0, &wide, ExtractOptions{SpaceGap: 0.5}))

	assert.Contains(t, def.String(), "foo bar")
	assert.Contains(t, wide.String(), "foobar")
}

func TestExtract_EmptyPage(t *testing.T) {
	objs := []pdfObj{
		{1, "<< /Type /Catalog /Pages 2 0 R >>"},
		{2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>"},
		{3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>"},
	}
	r := readerFor(t, buildPDF(objs, 1, ""))
	var out bytes.Buffer
	require.NoError(t, r.Extract(context.Background(), 0, &out, ExtractOptions{}))
	assert.Empty(t, out.String())
}

func TestExtract_PerPageFailureDoesNotAbortOthers(t *testing.T) {
	// Page 2's content stream is damaged; page 1 still extracts.
	good := "BT /F1 12 Tf 10 700 Td (good page) Tj ET"
	bad := "BT /F1 12 Tf 10 700 Td (broken"
	r := readerFor(t, simplePagesPDF([]string{good, bad}))

	var out1 bytes.Buffer
	require.NoError(t, r.Extract(context.Background(), 0, &out1, ExtractOptions{}))
	assert.Contains(t, out1.String(), "good page")

	var out2 bytes.Buffer
	err := r.Extract(context.Background(), 1, &out2, ExtractOptions{})
	assert.NoError(t, err, "permissive mode keeps going on a damaged page")
}

func TestExtract_Fixture_AllPages(t *testing.T) {
	r, err := Open(td("pdf_test.pdf"))
	require.NoError(t, err)
	defer r.Close()

	var all strings.Builder
	for i := 0; i < r.NumPage(); i++ {
		require.NoError(t, r.Extract(context.Background(), i, &all, ExtractOptions{}))
	}
	text := all.String()
	assert.Contains(t, text, "Fixture Title")
	assert.Contains(t, text, "SP2")
	assert.Contains(t, text, "SP3")
}
