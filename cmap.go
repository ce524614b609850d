// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

// CMap parsing: code-space ranges, bfchar/bfrange text mappings, and
// cidchar/cidrange CID mappings, read from embedded CMap programs.

package xtract

import (
	"strings"

	"github.com/sassoftware/pdf-text-xtract/logger"
)

type byteRange struct {
	low  string
	high string
}

type bfchar struct {
	orig string
	repl string
}

type bfrange struct {
	lo  string
	hi  string
	dst Value
}

type cidchar struct {
	code string
	cid  int
}

type cidrange struct {
	lo  string
	hi  string
	cid int
}

type cmap struct {
	space    [4][]byteRange // codespace ranges, indexed by code length - 1
	bfrange  []bfrange
	bfchar   []bfchar
	cidchar  []cidchar
	cidrange []cidrange
	usecmap  *cmap
	identity bool // identity CID mapping over 2-byte codes
	vertical bool
}

// identityCMap returns the built-in Identity-H / Identity-V mapping:
// 2-byte codes, CID equal to the code value.
func identityCMap(vertical bool) *cmap {
	return &cmap{
		space:    [4][]byteRange{1: {{low: "\x00\x00", high: "\xff\xff"}}},
		identity: true,
		vertical: vertical,
	}
}

// nextCode matches the longest applicable code-space range at the start of
// raw and returns the matched code with its byte length. A zero length
// means no range matched.
func (m *cmap) nextCode(raw string) (string, int) {
	for n := 4; n >= 1; n-- {
		if n > len(raw) {
			continue
		}
		for _, space := range m.space[n-1] {
			if space.low <= raw[:n] && raw[:n] <= space.high {
				return raw[:n], n
			}
		}
	}
	if m.usecmap != nil {
		return m.usecmap.nextCode(raw)
	}
	if m.noSpaces() && len(raw) > 0 {
		// A CMap with no code space declarations accepts single bytes.
		return raw[:1], 1
	}
	return "", 0
}

func (m *cmap) noSpaces() bool {
	for _, s := range m.space {
		if len(s) > 0 {
			return false
		}
	}
	return true
}

// lookupCID maps a matched code to its CID.
func (m *cmap) lookupCID(code string) (int, bool) {
	if m.identity {
		return bytesToInt(code), true
	}
	for _, ch := range m.cidchar {
		if ch.code == code {
			return ch.cid, true
		}
	}
	for _, cr := range m.cidrange {
		if len(cr.lo) == len(code) && cr.lo <= code && code <= cr.hi {
			return cr.cid + codeOffset(code, cr.lo), true
		}
	}
	if m.usecmap != nil {
		return m.usecmap.lookupCID(code)
	}
	return 0, false
}

// lookupText maps a matched code to its Unicode expansion via the bfchar
// and bfrange tables.
func (m *cmap) lookupText(code string) (string, bool) {
	for _, bc := range m.bfchar {
		if bc.orig == code {
			return decodeUTF16BE(bc.repl), true
		}
	}
	for _, br := range m.bfrange {
		if len(br.lo) == len(code) && br.lo <= code && code <= br.hi {
			switch br.dst.Kind() {
			case String:
				s := br.dst.RawString()
				if br.lo != code {
					s = incrementHex(s, codeOffset(code, br.lo))
				}
				return decodeUTF16BE(s), true
			case Array:
				v := br.dst.Index(codeOffset(code, br.lo))
				if v.Kind() == String {
					return decodeUTF16BE(v.RawString()), true
				}
				return "", false
			}
		}
	}
	if m.usecmap != nil {
		return m.usecmap.lookupText(code)
	}
	return "", false
}

// codeOffset returns the numeric distance from lo to code, treating both as
// big-endian byte strings of equal length.
func codeOffset(code, lo string) int {
	return bytesToInt(code) - bytesToInt(lo)
}

// incrementHex adds delta to the big-endian byte string s, carrying into
// higher bytes as needed.
func incrementHex(s string, delta int) string {
	b := []byte(s)
	for i := len(b) - 1; i >= 0 && delta > 0; i-- {
		v := int(b[i]) + delta
		b[i] = byte(v & 0xFF)
		delta = v >> 8
	}
	return string(b)
}

// decodeUTF16BE interprets a bfchar/bfrange target as big-endian UTF-16
// when it has even length, and as raw bytes otherwise.
func decodeUTF16BE(s string) string {
	if len(s)%2 == 0 {
		return utf16Decode(s)
	}
	return s
}

// readCmap parses an embedded CMap program from the stream value. It
// recognizes codespacerange, bfchar, bfrange, cidchar, cidrange, and
// usecmap sections. A malformed program yields nil.
func readCmap(toUnicode Value) *cmap {
	logger.Debug("reading CMap")

	n := -1
	var m cmap
	ok := true
	Interpret(toUnicode, func(stk *Stack, op string) {
		if !ok {
			return
		}
		switch op {
		case "findresource":
			stk.Pop() // category
			stk.Pop() // key
			stk.Push(newDict())
		case "begincmap":
			stk.Push(newDict())
		case "endcmap":
			stk.Pop()
		case "usecmap":
			// Stack: name of the CMap to include. Only the identity
			// parents are built in; anything else is ignored.
			parent := stk.Pop().Name()
			if strings.HasPrefix(parent, "Identity-") {
				m.usecmap = identityCMap(strings.HasSuffix(parent, "-V"))
			} else if parent != "" {
				logger.Debug("usecmap of unavailable CMap " + parent)
			}
		case "begincodespacerange":
			n = int(stk.Pop().Int64())
		case "endcodespacerange":
			if n < 0 {
				logger.Debug("missing begincodespacerange")
				ok = false
				return
			}
			for i := 0; i < n; i++ {
				hi, lo := stk.Pop().RawString(), stk.Pop().RawString()
				if len(lo) == 0 || len(lo) > 4 || len(lo) != len(hi) {
					logger.Debug("bad codespace range")
					ok = false
					return
				}
				m.space[len(lo)-1] = append(m.space[len(lo)-1], byteRange{lo, hi})
			}
			n = -1
		case "beginbfchar":
			n = int(stk.Pop().Int64())
		case "endbfchar":
			if n < 0 {
				logger.Debug("missing beginbfchar")
				ok = false
				return
			}
			for i := 0; i < n; i++ {
				repl, orig := stk.Pop().RawString(), stk.Pop().RawString()
				m.bfchar = append(m.bfchar, bfchar{orig, repl})
			}
			n = -1
		case "beginbfrange":
			n = int(stk.Pop().Int64())
		case "endbfrange":
			if n < 0 {
				logger.Debug("missing beginbfrange")
				ok = false
				return
			}
			for i := 0; i < n; i++ {
				dst, srcHi, srcLo := stk.Pop(), stk.Pop().RawString(), stk.Pop().RawString()
				m.bfrange = append(m.bfrange, bfrange{srcLo, srcHi, dst})
			}
			n = -1
		case "begincidchar":
			n = int(stk.Pop().Int64())
		case "endcidchar":
			if n < 0 {
				logger.Debug("missing begincidchar")
				ok = false
				return
			}
			for i := 0; i < n; i++ {
				cid, code := stk.Pop().Int64(), stk.Pop().RawString()
				m.cidchar = append(m.cidchar, cidchar{code, int(cid)})
			}
			n = -1
		case "begincidrange":
			n = int(stk.Pop().Int64())
		case "endcidrange":
			if n < 0 {
				logger.Debug("missing begincidrange")
				ok = false
				return
			}
			for i := 0; i < n; i++ {
				cid, hi, lo := stk.Pop().Int64(), stk.Pop().RawString(), stk.Pop().RawString()
				m.cidrange = append(m.cidrange, cidrange{lo, hi, int(cid)})
			}
			n = -1
		case "defineresource":
			stk.Pop().Name() // category
			value := stk.Pop()
			stk.Pop().Name() // key
			stk.Push(value)
		default:
			if DebugOn {
				logger.Debug("cmap interp: " + op)
			}
		}
	})
	if !ok {
		return nil
	}
	return &m
}
