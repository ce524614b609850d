// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

// The content-stream interpreter: a stack machine over the text operators,
// maintaining the full graphics and text state and emitting positioned
// spans of decoded Unicode text.

package xtract

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/sassoftware/pdf-text-xtract/logger"
)

type matrix [3][3]float64

var ident = matrix{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

func (x matrix) mul(y matrix) matrix {
	var z matrix
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				z[i][j] += x[i][k] * y[k][j]
			}
		}
	}
	return z
}

// apply maps the point (x, y) through the affine matrix.
func (m matrix) apply(x, y float64) (float64, float64) {
	return m[0][0]*x + m[1][0]*y + m[2][0], m[0][1]*x + m[1][1]*y + m[2][1]
}

func translate(tx, ty float64) matrix {
	return matrix{{1, 0, 0}, {0, 1, 0}, {tx, ty, 1}}
}

// A Text represents a span of text drawn on a page: a run of characters
// that shared one font and was emitted between text-state changes.
// X, Y is the device-space baseline origin; X1, Y1 is the opposite corner
// of the span box at the advance width and the font size above the
// baseline (text rise included).
type Text struct {
	Font     string  // the font used
	FontSize float64 // the font size in device units
	X        float64 // baseline left, in points, increasing left to right
	Y        float64 // baseline, in points, increasing bottom to top
	W        float64 // the advance width of the text, in points
	X1       float64 // device x of the span box corner opposite (X, Y)
	Y1       float64 // device y of the span box corner opposite (X, Y)
	MCID     int     // marked-content identifier, -1 when absent
	S        string  // the actual UTF-8 text
}

// A Rect represents a rectangle.
type Rect struct {
	Min, Max Point
}

// A Point represents an X, Y pair.
type Point struct {
	X float64
	Y float64
}

// Content describes the basic content on a page: the text and any drawn rectangles.
type Content struct {
	Text []Text
	Rect []Rect
}

// gstate is the graphics and text state operated on by the interpreter.
// States are value types: q pushes a copy, Q pops it back.
type gstate struct {
	Tc    float64 // character spacing
	Tw    float64 // word spacing
	Th    float64 // horizontal scaling (Tz / 100)
	Tl    float64 // leading
	Tf    *Font   // current font
	Tfs   float64 // font size
	Tmode int     // text rendering mode
	Trise float64 // text rise
	Tm    matrix  // text matrix
	Tlm   matrix  // text line matrix
	CTM   matrix
}

// spanBuilder accumulates glyphs into spans, starting a new span when the
// font, size, or marked-content identifier changes or when the pen position
// jumps.
type spanBuilder struct {
	texts []Text

	active   bool
	fontName string
	fontSize float64
	mcid     int
	x, y     float64 // span origin (device)
	endX     float64 // current pen position (device)
	endY     float64
	topX     float64 // corner at (advance, size+rise)
	topY     float64
	sb       strings.Builder
}

func (s *spanBuilder) flush() {
	if !s.active {
		return
	}
	s.active = false
	text := s.sb.String()
	s.sb.Reset()
	if text == "" {
		return
	}
	s.texts = append(s.texts, Text{
		Font:     s.fontName,
		FontSize: s.fontSize,
		X:        s.x,
		Y:        s.y,
		W:        s.endX - s.x,
		X1:       s.topX,
		Y1:       s.topY,
		MCID:     s.mcid,
		S:        text,
	})
}

// add appends one glyph to the current span, or begins a new one.
// x0, y0 is the glyph's baseline origin; x1, y1 the pen position after its
// advance; tx1, ty1 the device corner at (advance, size+rise).
func (s *spanBuilder) add(fontName string, size float64, mcid int, text string, x0, y0, x1, y1, tx1, ty1 float64) {
	if s.active {
		// A pen jump beyond a tenth of an em is a reposition, not the
		// glyph-to-glyph continuation of a run. Kerning adjustments stay
		// below it; word and line positioning moves exceed it.
		gap := math.Hypot(x0-s.endX, y0-s.endY)
		tolerance := 0.1 * size
		if tolerance <= 0 {
			tolerance = 0.5
		}
		if fontName != s.fontName || size != s.fontSize || mcid != s.mcid || gap > tolerance {
			s.flush()
		}
	}
	if !s.active {
		s.active = true
		s.fontName = fontName
		s.fontSize = size
		s.mcid = mcid
		s.x = x0
		s.y = y0
	}
	s.sb.WriteString(text)
	s.endX = x1
	s.endY = y1
	s.topX = tx1
	s.topY = ty1
}

// Content returns the page's content: the positioned text spans and drawn
// rectangles, in content-stream order.
func (p Page) Content() Content {
	c, err := p.contentWithContext(context.Background())
	if err != nil {
		logger.Error(err.Error())
	}
	return c
}

// contentWithContext interprets the page's content streams, checking ctx
// between operators for cooperative cancellation. On cancellation the spans
// produced so far are returned along with the context error.
func (p Page) contentWithContext(ctx context.Context) (content Content, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
			} else {
				err = errors.New(fmt.Sprint(r))
			}
			logger.Error(fmt.Sprint(r))
		}
	}()

	if p.V.IsNull() || p.V.Key("Contents").Kind() == Null {
		return Content{}, nil
	}

	strict := p.V.r != nil && p.V.r.mode == Strict

	fonts := make(map[string]*Font)
	for _, fn := range p.Fonts() {
		f := p.Font(fn)
		fonts[fn] = &f
	}

	g := gstate{
		Th:  1,
		Tm:  ident,
		Tlm: ident,
		CTM: ident,
	}
	var gstack []gstate
	inText := false

	// Marked-content nesting: each BMC/BDC pushes the MCID in effect
	// (inherited when the new block carries none).
	mcidStack := []int{-1}
	currentMCID := func() int { return mcidStack[len(mcidStack)-1] }

	spans := &spanBuilder{}
	var rect []Rect
	canceled := false

	showText := func(s string) {
		if g.Tf == nil {
			logger.Debug("show string with no font selected")
			return
		}
		for _, run := range g.Tf.decodeRuns(s) {
			w0 := g.Tf.Width(run.code)

			trm := matrix{
				{g.Tfs * g.Th, 0, 0},
				{0, g.Tfs, 0},
				{0, g.Trise, 1},
			}.mul(g.Tm).mul(g.CTM)

			// Glyph displacement along the baseline, in text space.
			tx := w0/1000*g.Tfs + g.Tc
			if run.isSpace {
				tx += g.Tw
			}
			tx *= g.Th

			// tx is a text-space displacement, so the pen position and
			// the span corner go through Tm·CTM, not the glyph matrix.
			tm := g.Tm.mul(g.CTM)
			x0, y0 := trm.apply(0, 0)
			x1, y1 := tm.apply(tx, g.Trise)
			cx, cy := tm.apply(tx, g.Tfs+g.Trise)

			fontName := g.Tf.BaseFont()
			if i := strings.Index(fontName, "+"); i >= 0 {
				fontName = fontName[i+1:]
			}
			size := math.Hypot(trm[1][0], trm[1][1]) // device font size
			text := run.text
			if text == string(noRune) && run.code == 0 {
				text = ""
			}
			spans.add(fontName, size, currentMCID(), text, x0, y0, x1, y1, cx, cy)

			g.Tm = translate(tx, 0).mul(g.Tm)
		}
	}

	InterpretReader(p.contentReader(), func(stk *Stack, op string) {
		if canceled {
			return
		}
		if err := ctx.Err(); err != nil {
			canceled = true
			return
		}
		n := stk.Len()
		args := make([]Value, n)
		for i := n - 1; i >= 0; i-- {
			args[i] = stk.Pop()
		}
		switch op {
		default:
			return

		case "cm": // concatenate matrix to CTM
			if len(args) != 6 {
				opError(strict, "bad cm")
				return
			}
			var m matrix
			for i := 0; i < 6; i++ {
				m[i/2][i%2] = args[i].Float64()
			}
			m[2][2] = 1
			g.CTM = m.mul(g.CTM)

		case "q": // save graphics state
			gstack = append(gstack, g)

		case "Q": // restore graphics state
			n := len(gstack) - 1
			if n < 0 {
				opError(strict, "Q with empty graphics state stack")
				return
			}
			g = gstack[n]
			gstack = gstack[:n]

		case "BT": // begin text object
			if inText {
				opError(strict, "nested BT")
			}
			inText = true
			g.Tm = ident
			g.Tlm = ident

		case "ET": // end text object
			inText = false
			spans.flush()

		case "re": // append rectangle to path
			if len(args) != 4 {
				opError(strict, "bad re")
				return
			}
			x, y, w, h := args[0].Float64(), args[1].Float64(), args[2].Float64(), args[3].Float64()
			rect = append(rect, Rect{Point{x, y}, Point{x + w, y + h}})

		case "BMC": // begin marked content
			mcidStack = append(mcidStack, currentMCID())

		case "BDC": // begin marked content with property list
			mcid := currentMCID()
			if len(args) == 2 {
				if v := args[1].Key("MCID"); v.Kind() == Integer {
					mcid = int(v.Int64())
				}
			}
			mcidStack = append(mcidStack, mcid)

		case "EMC": // end marked content
			if len(mcidStack) > 1 {
				mcidStack = mcidStack[:len(mcidStack)-1]
			} else {
				opError(strict, "EMC with empty marked-content stack")
			}

		case "Tc": // set character spacing
			if len(args) != 1 {
				opError(strict, "bad Tc")
				return
			}
			g.Tc = args[0].Float64()

		case "Tw": // set word spacing
			if len(args) != 1 {
				opError(strict, "bad Tw")
				return
			}
			g.Tw = args[0].Float64()

		case "Tz": // set horizontal text scaling
			if len(args) != 1 {
				opError(strict, "bad Tz")
				return
			}
			g.Th = args[0].Float64() / 100

		case "TL": // set text leading
			if len(args) != 1 {
				opError(strict, "bad TL")
				return
			}
			g.Tl = args[0].Float64()

		case "Tf": // set text font and size
			if len(args) != 2 {
				opError(strict, "bad Tf")
				return
			}
			f := args[0].Name()
			if font, ok := fonts[f]; ok {
				g.Tf = font
			} else {
				logger.Debug(fmt.Sprintf("unknown font resource %q", f))
				g.Tf = nil
			}
			g.Tfs = args[1].Float64()

		case "Tr": // set text rendering mode
			if len(args) != 1 {
				opError(strict, "bad Tr")
				return
			}
			g.Tmode = int(args[0].Int64())

		case "Ts": // set text rise
			if len(args) != 1 {
				opError(strict, "bad Ts")
				return
			}
			g.Trise = args[0].Float64()

		case "TD": // move text position and set leading
			if len(args) != 2 {
				opError(strict, "bad TD")
				return
			}
			g.Tl = -args[1].Float64()
			fallthrough
		case "Td": // move text position
			if len(args) != 2 {
				opError(strict, "bad Td")
				return
			}
			g.Tlm = translate(args[0].Float64(), args[1].Float64()).mul(g.Tlm)
			g.Tm = g.Tlm

		case "Tm": // set text matrix and line matrix
			if len(args) != 6 {
				opError(strict, "bad Tm")
				return
			}
			var m matrix
			for i := 0; i < 6; i++ {
				m[i/2][i%2] = args[i].Float64()
			}
			m[2][2] = 1
			g.Tm = m
			g.Tlm = m

		case "T*": // move to start of next line
			g.Tlm = translate(0, -g.Tl).mul(g.Tlm)
			g.Tm = g.Tlm

		case "\"": // set spacing, move to next line, and show text
			if len(args) != 3 {
				opError(strict, "bad \" operator")
				return
			}
			g.Tw = args[0].Float64()
			g.Tc = args[1].Float64()
			args = args[2:]
			fallthrough
		case "'": // move to next line and show text
			if len(args) != 1 {
				opError(strict, "bad ' operator")
				return
			}
			g.Tlm = translate(0, -g.Tl).mul(g.Tlm)
			g.Tm = g.Tlm
			fallthrough
		case "Tj": // show text
			if len(args) != 1 {
				opError(strict, "bad Tj operator")
				return
			}
			showText(args[0].RawString())

		case "TJ": // show text, allowing individual glyph positioning
			if len(args) != 1 {
				opError(strict, "bad TJ operator")
				return
			}
			v := args[0]
			for i := 0; i < v.Len(); i++ {
				x := v.Index(i)
				if x.Kind() == String {
					showText(x.RawString())
				} else {
					// Numeric offsets are thousandths of an em,
					// subtracted from the displacement.
					tx := -x.Float64() / 1000 * g.Tfs * g.Th
					g.Tm = translate(tx, 0).mul(g.Tm)
				}
			}
		}
	})
	spans.flush()

	if canceled {
		return Content{spans.texts, rect}, ctx.Err()
	}
	return Content{spans.texts, rect}, nil
}

// opError reports a malformed operator: a panic in strict mode (recovered
// into an error at the extraction boundary), a log line otherwise.
func opError(strict bool, msg string) {
	if strict {
		logger.Error(msg)
		panic(fmt.Errorf("%w: %s", ErrMalformed, msg))
	}
	logger.Debug(msg)
}

// IsSameSentence reports whether two consecutive spans belong to the same
// visual run: same font and size, same baseline, and horizontally adjacent.
func IsSameSentence(a, b Text) bool {
	if a.Font != b.Font || a.FontSize != b.FontSize {
		return false
	}
	if math.Abs(a.Y-b.Y) > 0.1*a.FontSize {
		return false
	}
	gap := b.X - (a.X + a.W)
	return gap >= -0.1*a.FontSize && gap <= 0.3*a.FontSize
}
