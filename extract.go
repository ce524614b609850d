// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

// Page extraction: decoded UTF-8 text written to a caller-provided writer,
// in content-stream or tagged order, optionally rendered as Markdown.

package xtract

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sassoftware/pdf-text-xtract/logger"
)

// ExtractOptions selects how a page's text is produced.
type ExtractOptions struct {
	// Tagged emits spans in structure-tree traversal order instead of
	// content-stream order. Without a structure tree it falls back to
	// stream order.
	Tagged bool

	// Markdown renders the output as Markdown with heading and list
	// inference instead of plain text.
	Markdown bool

	// SpaceGap is the fraction of the preceding glyph's em size beyond
	// which an inter-word space is inserted. Zero selects the default
	// of 0.15.
	SpaceGap float64
}

func (o ExtractOptions) spaceGap() float64 {
	if o.SpaceGap > 0 {
		return o.SpaceGap
	}
	return defaultSpaceGap
}

// Extract writes the decoded UTF-8 text of the page with the given
// 0-based index to w. Cancellation is checked between content-stream
// operators.
func (r *Reader) Extract(ctx context.Context, pageIndex int, w io.Writer, opts ExtractOptions) error {
	if pageIndex < 0 || pageIndex >= r.NumPage() {
		return wrapError("extract", fmt.Errorf("%w: page index %d of %d", ErrInvalidPage, pageIndex, r.NumPage()))
	}
	return r.Page(pageIndex + 1).ExtractText(ctx, w, opts)
}

// ExtractText writes the page's decoded UTF-8 text to w according to opts.
func (p Page) ExtractText(ctx context.Context, w io.Writer, opts ExtractOptions) error {
	content, err := p.contentWithContext(ctx)
	if err != nil {
		return wrapError("extract text", err)
	}
	spans := content.Text
	if len(spans) == 0 {
		return nil
	}

	if opts.Tagged {
		if root := p.V.r.StructTree(); root != nil {
			order := taggedOrder(root, p.V.ptr.id)
			ordered, elems := reorderTagged(spans, order)
			return writeTagged(w, ordered, elems, opts)
		}
		logger.Debug("tagged extraction requested but document has no structure tree")
	}

	body := bodyFontSize(spans)
	blocks := layoutPage(spans, p.pageWidth(), body)

	if opts.Markdown {
		_, err = io.WriteString(w, renderMarkdown(blocks, body, opts.spaceGap()))
		return err
	}

	var sb strings.Builder
	for i, b := range blocks {
		if i > 0 {
			sb.WriteString("\n")
		}
		for _, l := range b.lines {
			sb.WriteString(lineText(l, opts.spaceGap()))
			sb.WriteString("\n")
		}
	}
	_, err = io.WriteString(w, sb.String())
	return err
}

// writeTagged renders spans already arranged in structure-tree order. Spans
// are grouped by owning element; each group becomes one logical block.
func writeTagged(w io.Writer, spans []Text, elems []*StructElem, opts ExtractOptions) error {
	var sb strings.Builder
	gap := opts.spaceGap()

	i := 0
	for i < len(spans) {
		j := i + 1
		for j < len(spans) && elems[j] == elems[i] {
			j++
		}
		group := spans[i:j]
		elem := elems[i]

		// Rebuild lines inside the group so intra-element reading order
		// and word spacing still hold.
		var text strings.Builder
		for k, l := range groupLines(group) {
			if k > 0 {
				text.WriteString(" ")
			}
			text.WriteString(lineText(l, gap))
		}
		chunk := strings.TrimSpace(text.String())
		if chunk == "" {
			i = j
			continue
		}

		if opts.Markdown && elem != nil {
			switch {
			case elem.HeadingLevel() > 0:
				sb.WriteString(strings.Repeat("#", elem.HeadingLevel()))
				sb.WriteString(" ")
				sb.WriteString(chunk)
				sb.WriteString("\n\n")
			case elem.Type == "LI" || elem.Type == "LBody":
				if rest, ok := isBullet(chunk); ok {
					chunk = rest
				}
				sb.WriteString("- ")
				sb.WriteString(chunk)
				sb.WriteString("\n")
			case elem.Type == "Code":
				sb.WriteString("```\n")
				sb.WriteString(chunk)
				sb.WriteString("\n```\n\n")
			default:
				sb.WriteString(chunk)
				sb.WriteString("\n\n")
			}
		} else {
			sb.WriteString(chunk)
			sb.WriteString("\n")
			if j >= len(spans) || elems[j] != elem {
				sb.WriteString("\n")
			}
		}
		i = j
	}

	_, err := io.WriteString(w, strings.TrimRight(sb.String(), "\n")+"\n")
	return err
}

// Info returns the document's metadata report: title, author, subject,
// producer, page count, PDF version, and related fields.
func (r *Reader) Info() (MetadataFull, error) {
	return r.MetadataFull()
}
