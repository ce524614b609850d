// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package xtract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStack(t *testing.T) {
	var stk Stack
	v1 := Value{data: int64(1)}
	v2 := Value{data: int64(2)}

	stk.Push(v1)
	stk.Push(v2)
	assert.Equal(t, 2, stk.Len(), "expected Len()=2 after pushing two elements")

	popped := stk.Pop()
	assert.Equal(t, v2, popped, "expected last pushed value to be popped first")

	popped = stk.Pop()
	assert.Equal(t, v1, popped, "expected second pop to return the first pushed value")

	empty := stk.Pop()
	assert.Equal(t, Value{}, empty, "popping empty stack should return zero Value")
}

func TestInterpretReader_OperandsAndOperators(t *testing.T) {
	var got []struct {
		op   string
		args []Value
	}
	InterpretReader(strings.NewReader("1 2 add (str) /nm emit"), func(stk *Stack, op string) {
		n := stk.Len()
		args := make([]Value, n)
		for i := n - 1; i >= 0; i-- {
			args[i] = stk.Pop()
		}
		got = append(got, struct {
			op   string
			args []Value
		}{op, args})
	})

	require.Len(t, got, 2)
	assert.Equal(t, "add", got[0].op)
	require.Len(t, got[0].args, 2)
	assert.Equal(t, int64(1), got[0].args[0].Int64())
	assert.Equal(t, int64(2), got[0].args[1].Int64())

	assert.Equal(t, "emit", got[1].op)
	require.Len(t, got[1].args, 2)
	assert.Equal(t, "str", got[1].args[0].RawString())
	assert.Equal(t, "nm", got[1].args[1].Name())
}

func TestInterpretReader_DictHandling(t *testing.T) {
	// begin/end/def bookkeeping must not leak onto the operand stack.
	src := "2 dict begin /Key 5 def end done"
	var sawDone bool
	var depth int
	InterpretReader(strings.NewReader(src), func(stk *Stack, op string) {
		if op == "done" {
			sawDone = true
			depth = stk.Len()
		}
	})
	assert.True(t, sawDone)
	assert.Equal(t, 0, depth)
}
