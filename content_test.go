// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package xtract

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pageFor(t *testing.T, content string) Page {
	t.Helper()
	r := readerFor(t, simplePagePDF(content))
	require.Equal(t, 1, r.NumPage())
	return r.Page(1)
}

func allText(c Content) string {
	var sb strings.Builder
	for _, s := range c.Text {
		sb.WriteString(s.S)
	}
	return sb.String()
}

func TestContent_TjPositioning(t *testing.T) {
	p := pageFor(t, "BT /F1 12 Tf 100 700 Td (Hi) Tj ET")
	c := p.Content()

	require.Len(t, c.Text, 1)
	span := c.Text[0]
	assert.Equal(t, "Hi", span.S)
	assert.Equal(t, "Helvetica", span.Font)
	assert.InDelta(t, 12.0, span.FontSize, 0.01)
	assert.InDelta(t, 100.0, span.X, 0.01)
	assert.InDelta(t, 700.0, span.Y, 0.01)
	// Two glyphs of 500/1000 em at 12 pt.
	assert.InDelta(t, 12.0, span.W, 0.01)
	assert.Equal(t, -1, span.MCID)
}

func TestContent_CharAndWordSpacing(t *testing.T) {
	p := pageFor(t, "BT /F1 10 Tf 2 Tc 4 Tw 0 700 Td (a b) Tj ET")
	c := p.Content()

	require.NotEmpty(t, c.Text)
	// Advance: 3 glyphs * 5pt + 3 * Tc + 1 * Tw = 15 + 6 + 4 = 25.
	last := c.Text[len(c.Text)-1]
	total := last.X + last.W - c.Text[0].X
	assert.InDelta(t, 25.0, total, 0.01)
}

func TestContent_TJKerningStaysOneSpan(t *testing.T) {
	// Small kerning adjustments must not split the span.
	p := pageFor(t, "BT /F1 12 Tf 50 700 Td [(Ke) -20 (rn)] TJ ET")
	c := p.Content()
	require.Len(t, c.Text, 1)
	assert.Equal(t, "Kern", c.Text[0].S)
}

func TestContent_TJLargeOffsetSplitsSpan(t *testing.T) {
	// An offset worth several ems is a positioning jump, not kerning.
	p := pageFor(t, "BT /F1 12 Tf 50 700 Td [(left) -5000 (right)] TJ ET")
	c := p.Content()
	require.Len(t, c.Text, 2)
	assert.Equal(t, "left", c.Text[0].S)
	assert.Equal(t, "right", c.Text[1].S)
	assert.Greater(t, c.Text[1].X, c.Text[0].X+c.Text[0].W)
}

func TestContent_QRestoresState(t *testing.T) {
	// After q ... Q the CTM is restored: both (A) and (B) land at the
	// same device position.
	content := "q 2 0 0 2 0 0 cm BT /F1 12 Tf 10 100 Td (A) Tj ET Q " +
		"BT /F1 12 Tf 20 200 Td (B) Tj ET"
	p := pageFor(t, content)
	c := p.Content()
	require.Len(t, c.Text, 2)

	a, b := c.Text[0], c.Text[1]
	// Under the doubled CTM, (A) lands at device 20, 200.
	assert.InDelta(t, 20.0, a.X, 0.01)
	assert.InDelta(t, 200.0, a.Y, 0.01)
	assert.InDelta(t, 24.0, a.FontSize, 0.01)
	// After Q the scale is gone.
	assert.InDelta(t, 20.0, b.X, 0.01)
	assert.InDelta(t, 200.0, b.Y, 0.01)
	assert.InDelta(t, 12.0, b.FontSize, 0.01)
}

func TestContent_TmAndTStar(t *testing.T) {
	content := "BT /F1 10 Tf 14 TL 1 0 0 1 72 720 Tm (one) Tj T* (two) Tj ET"
	p := pageFor(t, content)
	c := p.Content()
	require.Len(t, c.Text, 2)
	assert.InDelta(t, 72.0, c.Text[0].X, 0.01)
	assert.InDelta(t, 720.0, c.Text[0].Y, 0.01)
	assert.InDelta(t, 72.0, c.Text[1].X, 0.01)
	assert.InDelta(t, 706.0, c.Text[1].Y, 0.01)
}

func TestContent_TDSetsLeading(t *testing.T) {
	// TD is Td plus TL = -ty; the following T* moves down by 16.
	content := "BT /F1 10 Tf 10 700 TD (a) Tj 0 -16 TD (b) Tj T* (c) Tj ET"
	p := pageFor(t, content)
	c := p.Content()
	require.Len(t, c.Text, 3)
	assert.InDelta(t, 700.0, c.Text[0].Y, 0.01)
	assert.InDelta(t, 684.0, c.Text[1].Y, 0.01)
	assert.InDelta(t, 668.0, c.Text[2].Y, 0.01)
}

func TestContent_QuoteOperators(t *testing.T) {
	content := "BT /F1 10 Tf 12 TL 10 700 Td (l1) Tj (l2) ' 3 1 (l3) \" ET"
	p := pageFor(t, content)
	c := p.Content()
	require.Len(t, c.Text, 3)
	assert.Equal(t, "l1", c.Text[0].S)
	assert.Equal(t, "l2", c.Text[1].S)
	assert.Equal(t, "l3", c.Text[2].S)
	assert.InDelta(t, c.Text[0].Y-12, c.Text[1].Y, 0.01)
	assert.InDelta(t, c.Text[1].Y-12, c.Text[2].Y, 0.01)
}

func TestContent_ConcatenationOrder(t *testing.T) {
	// Extraction over split content streams equals the ordered
	// concatenation: state set in the first stream persists into the
	// second.
	first := "BT /F1 12 Tf 10 700 Td (one) Tj"
	second := "(two) Tj ET"

	var objs []pdfObj
	objs = append(objs,
		pdfObj{1, "<< /Type /Catalog /Pages 2 0 R >>"},
		pdfObj{2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>"},
		pdfObj{3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 6 0 R >> >> /Contents [4 0 R 5 0 R] >>"},
		pdfObj{4, streamObj("", first)},
		pdfObj{5, streamObj("", second)},
		pdfObj{6, helveticaFontObj()},
	)
	split := buildPDF(objs, 1, "")

	combined := simplePagePDF(first + "\n" + second)

	rs := readerFor(t, split)
	rc := readerFor(t, combined)
	assert.Equal(t, allText(rc.Page(1).Content()), allText(rs.Page(1).Content()))
	assert.Equal(t, "onetwo", allText(rs.Page(1).Content()))
}

func TestContent_MarkedContentMCID(t *testing.T) {
	content := "/P << /MCID 0 >> BDC BT /F1 12 Tf 10 700 Td (tagged) Tj ET EMC " +
		"BT /F1 12 Tf 10 650 Td (plain) Tj ET"
	p := pageFor(t, content)
	c := p.Content()
	require.Len(t, c.Text, 2)
	assert.Equal(t, 0, c.Text[0].MCID)
	assert.Equal(t, "tagged", c.Text[0].S)
	assert.Equal(t, -1, c.Text[1].MCID)
}

func TestContent_MCIDChangeSplitsSpan(t *testing.T) {
	content := "BT /F1 12 Tf 10 700 Td " +
		"/P << /MCID 0 >> BDC (aa) Tj EMC " +
		"/P << /MCID 1 >> BDC (bb) Tj EMC ET"
	p := pageFor(t, content)
	c := p.Content()
	require.Len(t, c.Text, 2)
	assert.Equal(t, 0, c.Text[0].MCID)
	assert.Equal(t, 1, c.Text[1].MCID)
}

func TestContent_FontSizeChangeSplitsSpan(t *testing.T) {
	content := "BT /F1 12 Tf 10 700 Td (small) Tj /F1 24 Tf (big) Tj ET"
	p := pageFor(t, content)
	c := p.Content()
	require.Len(t, c.Text, 2)
	assert.InDelta(t, 12.0, c.Text[0].FontSize, 0.01)
	assert.InDelta(t, 24.0, c.Text[1].FontSize, 0.01)
}

func TestContent_Rectangles(t *testing.T) {
	p := pageFor(t, "10 20 100 50 re f")
	c := p.Content()
	require.Len(t, c.Rect, 1)
	assert.Equal(t, Point{10, 20}, c.Rect[0].Min)
	assert.Equal(t, Point{110, 70}, c.Rect[0].Max)
}

func TestContent_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := pageFor(t, "BT /F1 12 Tf 10 700 Td (never) Tj ET")
	_, err := p.contentWithContext(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestContent_UnbalancedQ(t *testing.T) {
	// Permissive mode ignores a stray Q; strict mode reports it.
	content := "Q BT /F1 12 Tf 10 700 Td (x) Tj ET"

	p := pageFor(t, content)
	c, err := p.contentWithContext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "x", allText(c))

	pdf := simplePagePDF(content)
	rs, err := NewReaderMode(bytesReaderAt(pdf), int64(len(pdf)), Strict)
	require.NoError(t, err)
	_, err = rs.Page(1).contentWithContext(context.Background())
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestContent_TypeZeroFont(t *testing.T) {
	cm := `begincmap
1 begincodespacerange
<0000> <FFFF>
endcodespacerange
2 beginbfchar
<0041> <0061>
<0042> <0062>
endbfchar
endcmap`
	objs := []pdfObj{
		{1, "<< /Type /Catalog /Pages 2 0 R >>"},
		{2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>"},
		{3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>"},
		{4, streamObj("", "BT /F1 12 Tf 10 700 Td <00410042> Tj ET")},
		{5, `<< /Type /Font /Subtype /Type0 /BaseFont /CIDTest /Encoding /Identity-H /DescendantFonts [6 0 R] /ToUnicode 7 0 R >>`},
		{6, "<< /Type /Font /Subtype /CIDFontType2 /BaseFont /CIDTest /DW 500 >>"},
		{7, streamObj("", cm)},
	}
	r := readerFor(t, buildPDF(objs, 1, ""))
	text, err := r.Page(1).GetPlainText(nil)
	require.NoError(t, err)
	assert.Contains(t, text, "ab")
}

// bytesReaderAt adapts a byte slice to io.ReaderAt for reader construction.
func bytesReaderAt(b []byte) *strings.Reader {
	return strings.NewReader(string(b))
}
