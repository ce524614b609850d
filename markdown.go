// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

// Markdown inference: a semantic classifier over ordered spans that renders
// headings, lists, indentation, and emphasis from layout cues.

package xtract

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// binSize bins a font size to 0.1 pt.
func binSize(size float64) float64 {
	return math.Round(size*10) / 10
}

// bodyFontSize returns the size whose total character-weighted occurrence
// is maximal, binned to 0.1 pt.
func bodyFontSize(spans []Text) float64 {
	weights := map[float64]int{}
	for _, s := range spans {
		weights[binSize(s.FontSize)] += len([]rune(s.S))
	}
	best, bestw := 12.0, -1
	for sz, w := range weights {
		if w > bestw || (w == bestw && sz < best) {
			best, bestw = sz, w
		}
	}
	return best
}

// headingLevel classifies a block size against the body size:
// ratios of at least 1.8, 1.5, and 1.3 map to H1, H2, and H3.
func headingLevel(size, body float64) int {
	if body <= 0 {
		return 0
	}
	switch ratio := size / body; {
	case ratio >= 1.8:
		return 1
	case ratio >= 1.5:
		return 2
	case ratio >= 1.3:
		return 3
	}
	return 0
}

// bulletRunes are the tokens recognized as bullet markers.
const bulletRunes = "•●○■□▪▫–—-*"

var numberedRE = regexp.MustCompile(`^\(?([0-9]+|[A-Za-z])[.)\:]\s+`)

// isBullet reports whether text opens with a bullet marker followed by a
// space, returning the remainder.
func isBullet(text string) (string, bool) {
	for _, r := range bulletRunes {
		marker := string(r)
		if strings.HasPrefix(text, marker) {
			rest := text[len(marker):]
			if strings.HasPrefix(rest, " ") {
				return strings.TrimLeft(rest, " "), true
			}
		}
	}
	return "", false
}

// isNumbered reports whether text opens with a numbered-list marker such as
// "1.", "(2)", "a)", or "12:" (digits or a single letter), returning the
// marker and remainder.
func isNumbered(text string) (marker, rest string, ok bool) {
	loc := numberedRE.FindStringIndex(text)
	if loc == nil {
		return "", "", false
	}
	return strings.TrimSpace(text[:loc[1]]), text[loc[1]:], true
}

// indentLevel maps a left edge to an indentation level: one level per
// 36 pt, capped at 6.
func indentLevel(x0 float64) int {
	level := int(x0 / 36)
	if level < 0 {
		level = 0
	}
	if level > 6 {
		level = 6
	}
	return level
}

// Font-name lexica for emphasis and code classification. These work only
// when font metadata is exposed; blocks without names are left plain.
var (
	boldLexicon   = []string{"Bold", "Black", "Heavy", "Semibold", "Demi"}
	italicLexicon = []string{"Italic", "Oblique"}
	monoLexicon   = []string{"Mono", "Courier", "Consolas", "Menlo", "Typewriter"}
)

func fontNameMatches(fontName string, lexicon []string) bool {
	for _, w := range lexicon {
		if strings.Contains(fontName, w) {
			return true
		}
	}
	return false
}

// renderMarkdownBlock renders one layout block as Markdown.
func renderMarkdownBlock(b block, body float64, spaceGap float64, sb *strings.Builder) {
	text := strings.TrimSpace(b.text(spaceGap))
	if text == "" {
		return
	}
	size := b.dominantSize()
	font := b.lines[0].font

	if lvl := headingLevel(size, body); lvl > 0 {
		sb.WriteString(strings.Repeat("#", lvl))
		sb.WriteString(" ")
		sb.WriteString(text)
		sb.WriteString("\n\n")
		return
	}

	indent := indentLevel(b.x0())
	prefix := ""
	if indent > 1 {
		prefix = strings.Repeat("  ", indent-1)
	}

	if rest, ok := isBullet(text); ok {
		sb.WriteString(prefix)
		sb.WriteString("- ")
		sb.WriteString(rest)
		sb.WriteString("\n")
		return
	}
	if marker, rest, ok := isNumbered(text); ok {
		sb.WriteString(prefix)
		sb.WriteString(marker)
		sb.WriteString(" ")
		sb.WriteString(rest)
		sb.WriteString("\n")
		return
	}

	switch {
	case fontNameMatches(font, monoLexicon):
		sb.WriteString("```\n")
		for _, l := range b.lines {
			sb.WriteString(lineText(l, spaceGap))
			sb.WriteString("\n")
		}
		sb.WriteString("```\n\n")
	case fontNameMatches(font, boldLexicon):
		fmt.Fprintf(sb, "**%s**\n\n", text)
	case fontNameMatches(font, italicLexicon):
		fmt.Fprintf(sb, "*%s*\n\n", text)
	default:
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}
}

// renderMarkdown renders the page's blocks as Markdown.
func renderMarkdown(blocks []block, body float64, spaceGap float64) string {
	var sb strings.Builder
	for _, b := range blocks {
		renderMarkdownBlock(b, body, spaceGap, &sb)
	}
	return sb.String()
}
