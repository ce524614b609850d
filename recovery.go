// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

// Scan-repair for files whose cross-reference data is missing or unusable.

package xtract

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"

	"github.com/sassoftware/pdf-text-xtract/logger"
)

var objDefRE = regexp.MustCompile(`(?m)(\d+)\s+(\d+)\s+obj\b`)

// scanRepair rebuilds the xref table by walking the whole file and recording
// every "N G obj" header as an in-use entry. The last occurrence of an
// object number wins, matching incremental-update semantics where appended
// revisions shadow earlier ones. The trailer is recovered from the last
// trailer dictionary in the file, or synthesized by locating a /Catalog.
func (r *Reader) scanRepair() error {
	logger.Debug("scan-repair: walking file for object headers", true)
	const chunk = 1 << 20
	const overlap = 64

	var table []xref
	base := int64(0)
	for base < r.end {
		n := int64(chunk)
		if base+n > r.end {
			n = r.end - base
		}
		window := make([]byte, n+overlap)
		m, err := r.f.ReadAt(window, base)
		if m == 0 && err != nil && err != io.EOF {
			return err
		}
		window = window[:m]
		for _, loc := range objDefRE.FindAllSubmatchIndex(window, -1) {
			if int64(loc[0]) >= n {
				// Matches in the overlap belong to the next window.
				continue
			}
			id, err1 := strconv.ParseInt(string(window[loc[2]:loc[3]]), 10, 64)
			gen, err2 := strconv.ParseInt(string(window[loc[4]:loc[5]]), 10, 64)
			if err1 != nil || err2 != nil || id <= 0 || int64(uint32(id)) != id || int64(uint16(gen)) != gen {
				continue
			}
			idx := int(id)
			table = ensureLen(table, idx+1)
			// Later definitions shadow earlier ones.
			table[idx] = xref{ptr: objptr{uint32(id), uint16(gen)}, offset: base + int64(loc[0])}
		}
		base += n
	}

	live := 0
	for _, e := range table {
		if e.ptr != (objptr{}) {
			live++
		}
	}
	if live == 0 {
		logger.Error("scan-repair: no object headers found")
		return fmt.Errorf("%w: no recoverable objects", ErrCorrupted)
	}
	logger.Debug(fmt.Sprintf("scan-repair: recovered %d objects", live), true)

	r.xref = table
	r.trailer = r.recoverTrailer()
	if r.trailer == nil {
		return fmt.Errorf("%w: no usable trailer after scan-repair", ErrCorrupted)
	}
	return nil
}

// recoverTrailer finds the newest trailer dictionary carrying a /Root, or
// falls back to searching the recovered objects for the document catalog.
func (r *Reader) recoverTrailer() dict {
	// Object streams may hold additional objects; expand them first so the
	// catalog search below can see compressed objects too.
	r.expandRecoveredObjStreams()

	for _, off := range r.trailerOffsets() {
		b := newBuffer(io.NewSectionReader(r.f, off, r.end-off), off)
		if b.readToken() != keyword("trailer") {
			continue
		}
		b.allowObjptr = true
		if d, ok := b.readObject().(dict); ok {
			if _, ok := d["Root"]; ok {
				logger.Debug("scan-repair: recovered trailer dictionary", true)
				return d
			}
		}
	}

	// No trailer: synthesize one from the catalog object.
	for i := len(r.xref) - 1; i > 0; i-- {
		ent := r.xref[i]
		if ent.ptr == (objptr{}) {
			continue
		}
		v := r.resolve(objptr{}, ent.ptr)
		if v.Key("Type").Name() == "Catalog" {
			logger.Debug("scan-repair: synthesized trailer from catalog", true)
			return dict{
				"Size": int64(len(r.xref)),
				"Root": ent.ptr,
			}
		}
	}
	return nil
}

// trailerOffsets returns the offsets of "trailer" keywords, newest first.
func (r *Reader) trailerOffsets() []int64 {
	var offsets []int64
	const chunk = 1 << 20
	word := []byte("trailer")
	base := int64(0)
	for base < r.end {
		n := int64(chunk)
		if base+n > r.end {
			n = r.end - base
		}
		window := make([]byte, n+16)
		m, err := r.f.ReadAt(window, base)
		if m == 0 && err != nil && err != io.EOF {
			break
		}
		window = window[:m]
		for i := 0; ; {
			j := bytes.Index(window[i:], word)
			if j < 0 {
				break
			}
			offsets = append(offsets, base+int64(i+j))
			i += j + 1
		}
		base += n
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] > offsets[j] })
	return offsets
}

// expandRecoveredObjStreams registers compressed entries for every object
// stream found by the scan, so objects living only inside /ObjStm
// containers stay reachable after repair.
func (r *Reader) expandRecoveredObjStreams() {
	for i := 1; i < len(r.xref); i++ {
		ent := r.xref[i]
		if ent.ptr == (objptr{}) || ent.inStream {
			continue
		}
		v := r.resolve(objptr{}, ent.ptr)
		if v.Kind() != Stream || v.Key("Type").Name() != "ObjStm" {
			continue
		}
		n := int(v.Key("N").Int64())
		rc := v.Reader()
		b := newBuffer(rc, 0)
		b.allowEOF = true
		for j := 0; j < n; j++ {
			id, ok1 := b.readToken().(int64)
			_, ok2 := b.readToken().(int64)
			if !ok1 || !ok2 || id <= 0 || int64(uint32(id)) != id {
				break
			}
			idx := int(id)
			r.xref = ensureLen(r.xref, idx+1)
			if r.xref[idx].ptr == (objptr{}) {
				r.xref[idx] = xref{
					ptr:      objptr{uint32(id), 0},
					inStream: true,
					stream:   ent.ptr,
					offset:   int64(j),
				}
			}
		}
		rc.Close()
	}
}
