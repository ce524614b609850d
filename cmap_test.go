// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package xtract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// streamValue builds a one-object document around data and returns it as a
// resolved stream Value.
func streamValue(t *testing.T, data string) Value {
	t.Helper()
	pdf := buildPDF([]pdfObj{
		{1, "<< /Type /Catalog >>"},
		{2, streamObj("", data)},
	}, 1, "")
	r := readerFor(t, pdf)
	v := r.resolve(objptr{}, objptr{2, 0})
	require.Equal(t, Stream, v.Kind())
	return v
}

const toUnicodeSample = `/CIDInit /ProcSet findresource begin
12 dict begin
begincmap
/CIDSystemInfo << /Registry (Adobe) /Ordering (UCS) /Supplement 0 >> def
/CMapName /Adobe-Identity-UCS def
/CMapType 2 def
1 begincodespacerange
<0000> <FFFF>
endcodespacerange
2 beginbfchar
<0041> <0061>
<0042> <0062>
endbfchar
1 beginbfrange
<0050> <0052> <0070>
endbfrange
endcmap
CMapName currentdict /CMap defineresource pop
end
end`

func TestReadCmap_BFChar(t *testing.T) {
	m := readCmap(streamValue(t, toUnicodeSample))
	require.NotNil(t, m)

	s, ok := m.lookupText("\x00\x41")
	require.True(t, ok)
	assert.Equal(t, "a", s)

	s, ok = m.lookupText("\x00\x42")
	require.True(t, ok)
	assert.Equal(t, "b", s)

	_, ok = m.lookupText("\x00\x43")
	assert.False(t, ok)
}

func TestReadCmap_BFRangeAutoIncrement(t *testing.T) {
	m := readCmap(streamValue(t, toUnicodeSample))
	require.NotNil(t, m)

	s, ok := m.lookupText("\x00\x51")
	require.True(t, ok)
	assert.Equal(t, "q", s)
}

func TestReadCmap_CodespaceGreedyLongestMatch(t *testing.T) {
	src := `begincmap
2 begincodespacerange
<20> <7E>
<8140> <9FFC>
endcodespacerange
endcmap`
	m := readCmap(streamValue(t, src))
	require.NotNil(t, m)

	code, w := m.nextCode("\x41rest")
	assert.Equal(t, 1, w)
	assert.Equal(t, "\x41", code)

	code, w = m.nextCode("\x81\x40rest")
	assert.Equal(t, 2, w)
	assert.Equal(t, "\x81\x40", code)
}

func TestReadCmap_CIDRange(t *testing.T) {
	src := `begincmap
1 begincodespacerange
<0000> <FFFF>
endcodespacerange
1 begincidrange
<0000> <00FF> 100
endcidrange
1 begincidchar
<1234> 7
endcidchar
endcmap`
	m := readCmap(streamValue(t, src))
	require.NotNil(t, m)

	cid, ok := m.lookupCID("\x00\x41")
	require.True(t, ok)
	assert.Equal(t, 100+0x41, cid)

	cid, ok = m.lookupCID("\x12\x34")
	require.True(t, ok)
	assert.Equal(t, 7, cid)
}

func TestIncrementHex_Carry(t *testing.T) {
	// The final byte increments and carries into higher bytes.
	assert.Equal(t, "\x01\x00", incrementHex("\x00\xff", 1))
	assert.Equal(t, "\x00\x42", incrementHex("\x00\x40", 2))
	assert.Equal(t, "\x02\x01\x00", incrementHex("\x01\xff\xfe", 0x102))
}

func TestBFRange_CarryAcrossBytes(t *testing.T) {
	src := `begincmap
1 begincodespacerange
<0000> <FFFF>
endcodespacerange
1 beginbfrange
<00F0> <0110> <00F0>
endbfrange
endcmap`
	m := readCmap(streamValue(t, src))
	require.NotNil(t, m)

	// 0x0100 is 0x10 past the range start; target increments with carry.
	s, ok := m.lookupText("\x01\x00")
	require.True(t, ok)
	assert.Equal(t, "Ā", s) // U+0100
}

func TestIdentityCMap(t *testing.T) {
	m := identityCMap(false)
	code, w := m.nextCode("\x00\x41")
	assert.Equal(t, 2, w)
	cid, ok := m.lookupCID(code)
	require.True(t, ok)
	assert.Equal(t, 0x41, cid)
}
