// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

// Font wrappers: decoding of show-string bytes into Unicode and glyph
// widths, for both simple (single-byte) and Type0 (CID-keyed) fonts.

package xtract

import (
	"fmt"
	"strings"

	"github.com/sassoftware/pdf-text-xtract/logger"
)

// A Font represents a font in a PDF file.
// The methods interpret a Font dictionary stored in V.
type Font struct {
	V Value

	loaded    bool
	composite bool
	enc       TextEncoding
	runs      runDecoder

	// Simple-font width data.
	firstChar int
	widths    []float64

	// Type0 width data, keyed by CID.
	cidWidths map[int]float64
	dw        float64
}

// A TextEncoding represents a mapping between
// font code points and UTF-8 text.
type TextEncoding interface {
	// Decode returns the UTF-8 text corresponding to
	// the sequence of code points in raw.
	Decode(raw string) (text string)
}

// A decodedRun is one character code taken from a show string: the bytes it
// occupied, its Unicode expansion, and the code value for width lookup.
type decodedRun struct {
	code    int    // code value (byte value or CID code)
	size    int    // bytes consumed from the show string
	text    string // Unicode expansion; U+FFFD when unmapped
	isSpace bool   // single-byte code 32, subject to word spacing
}

// runDecoder decomposes a show string into per-code runs.
type runDecoder interface {
	DecodeRuns(raw string) []decodedRun
}

// BaseFont returns the font's name (BaseFont property).
func (f *Font) BaseFont() string {
	return f.V.Key("BaseFont").Name()
}

// FirstChar returns the code point of the first character in the font.
func (f *Font) FirstChar() int {
	return int(f.V.Key("FirstChar").Int64())
}

// LastChar returns the code point of the last character in the font.
func (f *Font) LastChar() int {
	return int(f.V.Key("LastChar").Int64())
}

// Widths returns the widths of the glyphs in the font.
// In a well-formed PDF, len(f.Widths()) == f.LastChar()+1 - f.FirstChar().
func (f *Font) Widths() []float64 {
	x := f.V.Key("Widths")
	var out []float64
	for i := 0; i < x.Len(); i++ {
		out = append(out, x.Index(i).Float64())
	}
	return out
}

// IsType0 reports whether the font is a composite (CID-keyed) font.
func (f *Font) IsType0() bool {
	return f.V.Key("Subtype").Name() == "Type0"
}

// load parses the font's encoding and width data once.
func (f *Font) load() {
	if f.loaded {
		return
	}
	f.loaded = true
	f.composite = f.IsType0()
	if f.composite {
		f.loadType0()
	} else {
		f.loadSimple()
	}
}

// Encoder returns the encoding between font code point sequences and UTF-8.
func (f *Font) Encoder() TextEncoding {
	f.load()
	return f.enc
}

// decodeRuns decomposes raw into per-code runs for the interpreter.
func (f *Font) decodeRuns(raw string) []decodedRun {
	f.load()
	return f.runs.DecodeRuns(raw)
}

// Width returns the width of the given code, in glyph units (thousandths of
// an em). For simple fonts, codes outside /FirstChar and /Widths yield 0;
// for composite fonts, CIDs absent from /W take /DW (1000 when unset).
func (f *Font) Width(code int) float64 {
	f.load()
	if f.composite {
		if w, ok := f.cidWidths[code]; ok {
			return w
		}
		return f.dw
	}
	if code < f.firstChar || code-f.firstChar >= len(f.widths) {
		return 0
	}
	return f.widths[code-f.firstChar]
}

// loadSimple builds the byte-to-Unicode table for a single-byte font:
// base encoding, then /Differences, then /ToUnicode overrides.
func (f *Font) loadSimple() {
	f.firstChar = f.FirstChar()
	f.widths = f.Widths()

	var table [256]string
	base := &standardEncoding
	enc := f.V.Key("Encoding")
	switch enc.Kind() {
	case Name:
		if t := baseEncodingTable(enc.Name()); t != nil {
			base = t
		} else {
			logger.Debug(fmt.Sprintf("unknown encoding %q", enc.Name()))
		}
	case Dict:
		if t := baseEncodingTable(enc.Key("BaseEncoding").Name()); t != nil {
			base = t
		}
	}
	for i := range table {
		if r := base[i]; r != 0 {
			table[i] = string(r)
		}
	}

	// /Differences: an integer k followed by names assigns those names to
	// codes k, k+1, ...
	if enc.Kind() == Dict {
		diff := enc.Key("Differences")
		code := -1
		for i := 0; i < diff.Len(); i++ {
			x := diff.Index(i)
			switch x.Kind() {
			case Integer:
				code = int(x.Int64())
			case Name:
				if code >= 0 && code < 256 {
					table[code] = nameToUnicode(x.Name())
					code++
				}
			}
		}
	}

	// /ToUnicode overrides every code it maps.
	var toUni *cmap
	if tu := f.V.Key("ToUnicode"); tu.Kind() == Stream {
		toUni = readCmap(tu)
	}
	if toUni != nil {
		for i := 0; i < 256; i++ {
			if s, ok := toUni.lookupText(string([]byte{byte(i)})); ok {
				table[i] = s
			}
		}
	}

	se := &simpleEncoder{table: table}
	f.enc = se
	f.runs = se
}

// loadType0 builds the decoder for a composite font: the /Encoding CMap
// defines the code space and CID mapping, and /ToUnicode recovers text.
func (f *Font) loadType0() {
	desc := f.V.Key("DescendantFonts").Index(0)

	f.dw = 1000
	if dw := desc.Key("DW"); !dw.IsNull() {
		f.dw = dw.Float64()
	}
	f.cidWidths = parseCIDWidths(desc.Key("W"))

	var encCMap *cmap
	enc := f.V.Key("Encoding")
	switch enc.Kind() {
	case Name:
		if n := enc.Name(); n == "Identity-H" || n == "Identity-V" {
			encCMap = identityCMap(strings.HasSuffix(n, "-V"))
		} else {
			logger.Debug(fmt.Sprintf("unsupported predefined CMap %q, assuming identity", n))
			encCMap = identityCMap(false)
		}
	case Stream:
		encCMap = readCmap(enc)
	}
	if encCMap == nil {
		encCMap = identityCMap(false)
	}

	var toUni *cmap
	if tu := f.V.Key("ToUnicode"); tu.Kind() == Stream {
		toUni = readCmap(tu)
	}

	ce := &compositeEncoder{enc: encCMap, toUni: toUni}
	f.enc = ce
	f.runs = ce
}

// parseCIDWidths parses a CIDFont /W array: entries are either
// "c [w1 w2 ...]" assigning consecutive widths from CID c, or
// "cFirst cLast w" assigning one width to a CID range.
func parseCIDWidths(w Value) map[int]float64 {
	out := make(map[int]float64)
	i := 0
	for i < w.Len() {
		first := w.Index(i)
		next := w.Index(i + 1)
		switch next.Kind() {
		case Array:
			c := int(first.Int64())
			for j := 0; j < next.Len(); j++ {
				out[c+j] = next.Index(j).Float64()
			}
			i += 2
		case Integer, Real:
			last := int(next.Int64())
			width := w.Index(i + 2).Float64()
			c := int(first.Int64())
			if last-c > 65535 {
				// Clamp corrupt ranges rather than exploding the map.
				last = c + 65535
			}
			for cid := c; cid <= last; cid++ {
				out[cid] = width
			}
			i += 3
		default:
			return out
		}
	}
	return out
}

type nopEncoder struct {
}

func (e *nopEncoder) Decode(raw string) (text string) {
	return raw
}

func (e *nopEncoder) DecodeRuns(raw string) []decodedRun {
	runs := make([]decodedRun, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		runs = append(runs, decodedRun{
			code:    int(raw[i]),
			size:    1,
			text:    string(rune(raw[i])),
			isSpace: raw[i] == ' ',
		})
	}
	return runs
}

// simpleEncoder decodes single-byte codes through a fully built
// byte-to-string table. Unmapped codes decode to U+FFFD.
type simpleEncoder struct {
	table [256]string
}

func (e *simpleEncoder) Decode(raw string) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		s := e.table[raw[i]]
		if s == "" {
			sb.WriteRune(noRune)
			continue
		}
		sb.WriteString(s)
	}
	return sb.String()
}

func (e *simpleEncoder) DecodeRuns(raw string) []decodedRun {
	runs := make([]decodedRun, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		text := e.table[raw[i]]
		if text == "" {
			text = string(noRune)
		}
		runs = append(runs, decodedRun{
			code:    int(raw[i]),
			size:    1,
			text:    text,
			isSpace: raw[i] == ' ',
		})
	}
	return runs
}

// compositeEncoder decodes variable-width codes through the font's
// /Encoding CMap, then maps them to text via /ToUnicode.
type compositeEncoder struct {
	enc   *cmap
	toUni *cmap
}

func (e *compositeEncoder) Decode(raw string) string {
	var sb strings.Builder
	for _, run := range e.DecodeRuns(raw) {
		sb.WriteString(run.text)
	}
	return sb.String()
}

func (e *compositeEncoder) DecodeRuns(raw string) []decodedRun {
	var runs []decodedRun
	for len(raw) > 0 {
		code, width := e.enc.nextCode(raw)
		if width == 0 {
			// No code space matches: consume one byte and mark it unmapped.
			runs = append(runs, decodedRun{code: int(raw[0]), size: 1, text: string(noRune)})
			raw = raw[1:]
			continue
		}
		cid, ok := e.enc.lookupCID(code)
		if !ok {
			cid = bytesToInt(code)
		}
		text := ""
		if e.toUni != nil {
			if s, ok := e.toUni.lookupText(code); ok {
				text = s
			}
		}
		if text == "" {
			text = string(noRune)
		}
		runs = append(runs, decodedRun{
			code:    cid,
			size:    width,
			text:    text,
			isSpace: width == 1 && code[0] == ' ',
		})
		raw = raw[width:]
	}
	return runs
}

func bytesToInt(s string) int {
	x := 0
	for i := 0; i < len(s); i++ {
		x = x<<8 | int(s[i])
	}
	return x
}
