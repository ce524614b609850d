// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

// Layout reconstruction: grouping spans into lines, inserting inter-word
// spaces, detecting columns, and splitting paragraphs.

package xtract

import (
	"sort"
	"strings"
)

// defaultSpaceGap is the fraction of the preceding glyph's em size beyond
// which a space is inserted between adjacent spans. It is a heuristic and
// deliberately not derived from the font's space width.
const defaultSpaceGap = 0.15

// A line is a horizontal run of spans sharing a baseline.
type line struct {
	y     float64
	x0    float64
	size  float64 // dominant font size on the line
	font  string  // font of the first span
	spans []Text
}

// A block is a paragraph: consecutive lines separated by less than the
// paragraph gap.
type block struct {
	lines []line
}

func (b *block) x0() float64 {
	x := b.lines[0].x0
	for _, l := range b.lines[1:] {
		if l.x0 < x {
			x = l.x0
		}
	}
	return x
}

// dominantSize returns the character-weighted dominant font size in the block.
func (b *block) dominantSize() float64 {
	weights := map[float64]int{}
	for _, l := range b.lines {
		for _, s := range l.spans {
			weights[binSize(s.FontSize)] += len([]rune(s.S))
		}
	}
	best, bestw := 0.0, -1
	for sz, w := range weights {
		if w > bestw || (w == bestw && sz > best) {
			best, bestw = sz, w
		}
	}
	return best
}

// text joins the block's lines, inserting spaces per the gap heuristic.
func (b *block) text(spaceGap float64) string {
	var sb strings.Builder
	for i, l := range b.lines {
		if i > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(lineText(l, spaceGap))
	}
	return sb.String()
}

// lineText concatenates a line's spans, inserting a space when the x-gap
// between neighbors exceeds spaceGap of the preceding em.
func lineText(l line, spaceGap float64) string {
	var sb strings.Builder
	for i, s := range l.spans {
		if i > 0 {
			prev := l.spans[i-1]
			gap := s.X - (prev.X + prev.W)
			if gap > spaceGap*prev.FontSize && !strings.HasSuffix(prev.S, " ") && !strings.HasPrefix(s.S, " ") {
				sb.WriteString(" ")
			}
		}
		sb.WriteString(s.S)
	}
	return sb.String()
}

// medianFontSize returns the median span font size, or 12 for empty input.
func medianFontSize(spans []Text) float64 {
	if len(spans) == 0 {
		return 12
	}
	sizes := make([]float64, len(spans))
	for i, s := range spans {
		sizes[i] = s.FontSize
	}
	sort.Float64s(sizes)
	return sizes[len(sizes)/2]
}

// groupLines buckets spans by baseline y, with a tolerance proportional to
// the median font size, and sorts each bucket left to right.
func groupLines(spans []Text) []line {
	if len(spans) == 0 {
		return nil
	}
	tol := 0.25 * medianFontSize(spans)
	if tol < 1 {
		tol = 1
	}
	if tol > 3 {
		tol = 3
	}

	sorted := make([]Text, len(spans))
	copy(sorted, spans)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Y > sorted[j].Y })

	var lines []line
	for _, s := range sorted {
		if n := len(lines); n > 0 && lines[n-1].y-s.Y <= tol {
			lines[n-1].spans = append(lines[n-1].spans, s)
			continue
		}
		lines = append(lines, line{y: s.Y, spans: []Text{s}})
	}
	for i := range lines {
		l := &lines[i]
		sort.SliceStable(l.spans, func(a, b int) bool { return l.spans[a].X < l.spans[b].X })
		l.x0 = l.spans[0].X
		l.font = l.spans[0].Font
		weights := map[float64]int{}
		for _, s := range l.spans {
			weights[binSize(s.FontSize)] += len([]rune(s.S))
		}
		bestw := -1
		for sz, w := range weights {
			if w > bestw {
				l.size, bestw = sz, w
			}
		}
	}
	return lines
}

// detectColumnCuts finds vertical gutters: contiguous x ranges empty of
// spans separating significant shares of the page's content. The returned
// cut positions split the page into columns, left to right.
func detectColumnCuts(spans []Text, pageWidth float64) []float64 {
	if len(spans) < 8 || pageWidth <= 0 {
		return nil
	}
	minGutter := pageWidth * 0.04
	if minGutter < 9 {
		minGutter = 9
	}

	// Union of the x intervals covered by spans.
	type interval struct{ lo, hi float64 }
	ivs := make([]interval, 0, len(spans))
	for _, s := range spans {
		ivs = append(ivs, interval{s.X, s.X + s.W})
	}
	sort.Slice(ivs, func(i, j int) bool { return ivs[i].lo < ivs[j].lo })
	var merged []interval
	for _, iv := range ivs {
		if n := len(merged); n > 0 && iv.lo <= merged[n-1].hi+minGutter/3 {
			if iv.hi > merged[n-1].hi {
				merged[n-1].hi = iv.hi
			}
			continue
		}
		merged = append(merged, iv)
	}
	if len(merged) < 2 {
		return nil
	}

	// Interior gaps wide enough become column boundaries, provided both
	// sides carry a significant share of the spans.
	var cuts []float64
	for i := 1; i < len(merged); i++ {
		gap := merged[i].lo - merged[i-1].hi
		if gap < minGutter {
			continue
		}
		cut := (merged[i].lo + merged[i-1].hi) / 2
		left, right := 0, 0
		for _, s := range spans {
			if s.X < cut {
				left++
			} else {
				right++
			}
		}
		if left >= len(spans)/4 && right >= len(spans)/4 {
			cuts = append(cuts, cut)
		}
	}
	return cuts
}

// splitColumns partitions spans by the cut positions, left to right.
func splitColumns(spans []Text, cuts []float64) [][]Text {
	if len(cuts) == 0 {
		return [][]Text{spans}
	}
	columns := make([][]Text, len(cuts)+1)
	for _, s := range spans {
		col := 0
		for col < len(cuts) && s.X >= cuts[col] {
			col++
		}
		columns[col] = append(columns[col], s)
	}
	var out [][]Text
	for _, c := range columns {
		if len(c) > 0 {
			out = append(out, c)
		}
	}
	return out
}

// splitParagraphs ends a paragraph when the vertical gap between
// consecutive lines exceeds 1.2 times the body font size.
func splitParagraphs(lines []line, bodySize float64) []block {
	if len(lines) == 0 {
		return nil
	}
	gapLimit := 1.2 * bodySize
	if gapLimit <= 0 {
		gapLimit = 14.4
	}
	var blocks []block
	cur := block{lines: []line{lines[0]}}
	for _, l := range lines[1:] {
		prev := cur.lines[len(cur.lines)-1]
		if prev.y-l.y > gapLimit || sizeChanged(prev.size, l.size) {
			blocks = append(blocks, cur)
			cur = block{}
		}
		cur.lines = append(cur.lines, l)
	}
	blocks = append(blocks, cur)
	return blocks
}

// sizeChanged reports a font-size switch large enough to force a block
// boundary, keeping headings out of adjacent body paragraphs.
func sizeChanged(a, b float64) bool {
	if a == 0 || b == 0 {
		return false
	}
	ratio := a / b
	return ratio > 1.2 || ratio < 1/1.2
}

// layoutPage runs the full layout pass: column detection partitions the
// spans, lines are grouped inside each column, and paragraphs split on
// vertical gaps. Blocks come back in reading order, columns left to right.
func layoutPage(spans []Text, pageWidth float64, bodySize float64) []block {
	cuts := detectColumnCuts(spans, pageWidth)
	var blocks []block
	for _, col := range splitColumns(spans, cuts) {
		blocks = append(blocks, splitParagraphs(groupLines(col), bodySize)...)
	}
	return blocks
}

// pageWidth returns the width of the page's media box, or 612 (US Letter)
// when no box is present.
func (p Page) pageWidth() float64 {
	mb := p.MediaBox()
	if mb.Kind() == Array && mb.Len() >= 4 {
		if w := mb.Index(2).Float64() - mb.Index(0).Float64(); w > 0 {
			return w
		}
	}
	return 612
}
