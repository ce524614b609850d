// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

// Logical structure: walking /StructTreeRoot and mapping marked-content
// identifiers to structure elements for tagged extraction.

package xtract

import (
	"fmt"

	"github.com/sassoftware/pdf-text-xtract/logger"
)

// A StructElem is one element of the document's logical structure tree.
type StructElem struct {
	Type     string // structure type from /S: P, H1, LI, ...
	Page     uint32 // object id of the page the element's content lives on
	MCIDs    []int  // marked-content ids owned directly by this element
	Children []*StructElem
}

// HeadingLevel returns 1..6 for H1..H6 (and 1 for a bare H or Title), 0
// otherwise.
func (e *StructElem) HeadingLevel() int {
	s := e.Type
	if len(s) == 2 && s[0] == 'H' && s[1] >= '1' && s[1] <= '6' {
		return int(s[1] - '0')
	}
	if s == "H" || s == "Title" {
		return 1
	}
	return 0
}

// StructTree returns the root of the document's logical structure tree, or
// nil when the catalog carries no /StructTreeRoot.
func (r *Reader) StructTree() *StructElem {
	root := r.Trailer().Key("Root").Key("StructTreeRoot")
	if root.IsNull() {
		return nil
	}
	visited := map[objptr]bool{}
	elem := buildStructElem(root, 0, visited)
	if elem == nil {
		return &StructElem{}
	}
	return elem
}

// buildStructElem walks an element and its /K children. K may be a single
// item or an array; items are integer MCIDs (against the inherited /Pg),
// /MCR dictionaries carrying (page, MCID), or further structure elements.
// A visited set keeps reference cycles from recursing forever.
func buildStructElem(v Value, pg uint32, visited map[objptr]bool) *StructElem {
	if v.Kind() != Dict {
		return nil
	}
	if v.ptr != (objptr{}) {
		if visited[v.ptr] {
			logger.Error(fmt.Sprintf("structure tree cycle at %d %d R", v.ptr.id, v.ptr.gen))
			return nil
		}
		visited[v.ptr] = true
	}
	elem := &StructElem{Type: v.Key("S").Name(), Page: pg}
	if p := v.Key("Pg"); !p.IsNull() {
		elem.Page = p.ptr.id
	}

	addKid := func(kid Value) {
		switch kid.Kind() {
		case Integer:
			elem.MCIDs = append(elem.MCIDs, int(kid.Int64()))
		case Dict:
			if kid.Key("Type").Name() == "MCR" {
				page := elem.Page
				if p := kid.Key("Pg"); !p.IsNull() {
					page = p.ptr.id
				}
				child := &StructElem{Type: elem.Type, Page: page, MCIDs: []int{int(kid.Key("MCID").Int64())}}
				elem.Children = append(elem.Children, child)
				return
			}
			if kid.Key("Type").Name() == "OBJR" {
				// Object references carry no text.
				return
			}
			if child := buildStructElem(kid, elem.Page, visited); child != nil {
				elem.Children = append(elem.Children, child)
			}
		}
	}

	k := v.Key("K")
	switch k.Kind() {
	case Array:
		for i := 0; i < k.Len(); i++ {
			addKid(k.Index(i))
		}
	default:
		addKid(k)
	}
	return elem
}

// taggedOrderEntry pairs an MCID with the structure element that owns it,
// in tree-traversal order.
type taggedOrderEntry struct {
	MCID int
	Elem *StructElem
}

// taggedOrder returns, for the page with the given object id, the MCIDs in
// structure-tree traversal order. Each MCID appears exactly once even when
// the tree references it from several places.
func taggedOrder(root *StructElem, pageID uint32) []taggedOrderEntry {
	if root == nil {
		return nil
	}
	var out []taggedOrderEntry
	seen := map[int]bool{}
	var walk func(e *StructElem)
	walk = func(e *StructElem) {
		if e == nil {
			return
		}
		if e.Page == pageID || e.Page == 0 {
			for _, id := range e.MCIDs {
				if e.Page == pageID && !seen[id] {
					seen[id] = true
					out = append(out, taggedOrderEntry{MCID: id, Elem: e})
				}
			}
		}
		for _, c := range e.Children {
			walk(c)
		}
	}
	walk(root)
	return out
}

// reorderTagged arranges spans in structure-tree order: spans are grouped
// by MCID, groups are emitted in traversal order, and spans without an MCID
// (or with an MCID the tree never references) follow in stream order.
// The returned annotations carry the owning structure element per span,
// aligned with the span slice.
func reorderTagged(spans []Text, order []taggedOrderEntry) ([]Text, []*StructElem) {
	byMCID := make(map[int][]int)
	for i, s := range spans {
		if s.MCID >= 0 {
			byMCID[s.MCID] = append(byMCID[s.MCID], i)
		}
	}

	used := make([]bool, len(spans))
	out := make([]Text, 0, len(spans))
	elems := make([]*StructElem, 0, len(spans))
	for _, ent := range order {
		for _, i := range byMCID[ent.MCID] {
			if used[i] {
				continue
			}
			used[i] = true
			out = append(out, spans[i])
			elems = append(elems, ent.Elem)
		}
	}
	for i, s := range spans {
		if !used[i] {
			out = append(out, s)
			elems = append(elems, nil)
		}
	}
	return out, elems
}
