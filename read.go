// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

// Package xtract implements reading of PDF files and extraction of the text
// drawn on their pages.
//
// # Overview
//
// PDF is Adobe's Portable Document Format, ubiquitous on the internet.
// A PDF document is a complex data format built on a fairly simple structure.
// This package exposes the simple structure along with wrappers to extract
// page text in content-stream order, in tagged (structure-tree) order, or as
// Markdown with heading and list inference.
//
// Specifically, a PDF is a data structure built from Values, each of which has
// one of the following Kinds:
//
//	Null, for the null object.
//	Integer, for an integer.
//	Real, for a floating-point number.
//	Bool, for a boolean value.
//	Name, for a name constant (as in /Helvetica).
//	String, for a string constant.
//	Dict, for a dictionary of name-value pairs.
//	Array, for an array of values.
//	Stream, for an opaque data stream and associated header dictionary.
//
// The accessors on Value—Int64, Float64, Bool, Name, and so on—return
// a view of the data as the given type. When there is no appropriate view,
// the accessor returns a zero result. Returning zero values this way,
// especially from the Dict and Array accessors, which themselves return
// Values, makes it possible to traverse a PDF quickly without writing any
// error checking.
//
// Most richer data structures in a PDF file are dictionaries with specific
// interpretations of the name-value pairs. The Font and Page wrappers make
// the interpretation of a specific Value as the corresponding type easier.
package xtract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/sassoftware/pdf-text-xtract/logger"
)

// DebugOn is responsible for logging messages into stdout. If problems arise during reading, set it true.
var DebugOn = false

// A Reader is a single PDF file open for reading. Once NewReader returns,
// the Reader is read-only and safe for concurrent use by page workers.
type Reader struct {
	f          io.ReaderAt
	end        int64
	xref       []xref
	trailer    dict
	trailerptr objptr
	mode       ParsingMode
	closer     io.Closer
	cache      sync.Map // objptr -> object, resolved indirect objects
	pages      []Page   // dense 0-indexed page list, built at open
}

type xref struct {
	ptr      objptr
	inStream bool
	stream   objptr
	offset   int64
}

// Open opens the PDF file at path for reading. The file is memory-mapped
// where the platform supports it and stays mapped until Close. Parsing runs
// in best-effort mode; use OpenMode for strict parsing.
func Open(path string) (*Reader, error) {
	return OpenMode(path, BestEffort)
}

// OpenMode opens the PDF file at path with the given parsing mode.
func OpenMode(path string, mode ParsingMode) (*Reader, error) {
	logger.Debug(fmt.Sprintf("document: file:%s -- opening", path), true)
	m, err := openMapped(path)
	if err != nil {
		return nil, err
	}
	logger.Debug(fmt.Sprintf("document: file:%s -- mapped (size=%d)", path, m.Size()), true)
	r, err := NewReaderMode(m, m.Size(), mode)
	if err != nil {
		m.Close()
		return nil, err
	}
	r.closer = m
	return r, nil
}

// Close releases the file mapping. The Reader and every Value obtained from
// it must not be used after Close.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	c := r.closer
	r.closer = nil
	return c.Close()
}

// NewReader opens a file for reading, using the data in f with the given
// total size, in best-effort mode.
func NewReader(f io.ReaderAt, size int64) (*Reader, error) {
	return NewReaderMode(f, size, BestEffort)
}

// NewReaderMode opens a file for reading with the given parsing mode.
func NewReaderMode(f io.ReaderAt, size int64, mode ParsingMode) (*Reader, error) {
	logger.Debug("Checking Header", true)
	if err := CheckHeader(f); err != nil {
		return nil, err
	}

	r := &Reader{f: f, end: size, mode: mode}

	logger.Debug("Checking End of file Marker", true)
	eofErr := ValidateEOFMarker(f, size)

	logger.Debug("Checking Startxref", true)
	startxref, sxErr := FindStartXref(f, size)

	if eofErr != nil || sxErr != nil {
		if mode == Strict {
			if eofErr != nil {
				return nil, eofErr
			}
			return nil, sxErr
		}
		// Permissive: fall back to scanning the file for object headers.
		logger.Debug("startxref unusable -- entering scan-repair mode", true)
		if err := r.scanRepair(); err != nil {
			return nil, err
		}
		return r.finishOpen()
	}

	logger.Debug("Checking xref table + trailer", true)
	b := newBuffer(io.NewSectionReader(r.f, startxref, r.end-startxref), startxref)
	b.strict = mode == Strict
	xt, trailerptr, trailer, err := readXref(r, b, map[int64]bool{startxref: true})
	if err != nil {
		if mode == Strict {
			return nil, err
		}
		logger.Debug(fmt.Sprintf("xref parse failed (%v) -- entering scan-repair mode", err), true)
		if err := r.scanRepair(); err != nil {
			return nil, err
		}
		return r.finishOpen()
	}
	r.xref = xt
	r.trailer = trailer
	r.trailerptr = trailerptr

	return r.finishOpen()
}

// finishOpen validates document-level properties and builds the dense page
// list. The page list is immutable afterwards, satisfying the shared-read
// contract for parallel extraction. Strict-mode resolve panics raised while
// walking the page tree surface here as errors.
func (r *Reader) finishOpen() (_ *Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if e, ok := rec.(error); ok {
				err = e
				return
			}
			err = fmt.Errorf("%w: %v", ErrMalformed, rec)
		}
	}()
	if enc := r.trailer["Encrypt"]; enc != nil {
		logger.Error("document is encrypted")
		return nil, ErrEncrypted
	}
	if r.mode == BestEffort {
		repaired, invalid := r.validateAndRepairXrefEntries(r.xref)
		if repaired > 0 || invalid > 0 {
			logger.Debug(fmt.Sprintf("xref validation: repaired=%d invalid=%d", repaired, invalid), true)
		}
	}
	r.pages = r.flattenPages()
	return r, nil
}

// CheckHeader validates the PDF header at the beginning of the file.
// It ensures the file starts with "%PDF-x.y" and the version is within 1.0–1.7 or 2.0.
func CheckHeader(f io.ReaderAt) error {
	buf := make([]byte, 16)
	n, err := f.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		logger.Error("Failed to read initial bytes for header check: %v", err)
		return err
	}
	if n == 0 {
		logger.Error("not a PDF file: empty")
		return errors.New("not a PDF file: empty")
	}
	buf = buf[:n]
	// Find "%PDF-" possibly not at offset 0 (BOM or garbage before)
	p := bytes.Index(buf, []byte("%PDF-"))
	if p < 0 {
		logger.Error("missing %PDF- header")
		return fmt.Errorf("%w: missing %%PDF- header", ErrMalformed)
	}

	lineBuf := buf[p:]
	lineEnd := bytes.IndexAny(lineBuf, "\r\n")
	if lineEnd < 0 {
		lineEnd = len(lineBuf)
	}
	line := bytes.TrimRight(lineBuf[:lineEnd], " \t\x00")

	var major, minor int
	if _, err := fmt.Sscanf(string(line), "%%PDF-%d.%d", &major, &minor); err != nil {
		logger.Error("not a PDF file: malformed version")
		return fmt.Errorf("%w: malformed version %q", ErrMalformed, line)
	}

	// Allow 1.0–1.7 and 2.0
	if !((major == 1 && minor >= 0 && minor <= 7) || (major == 2 && minor == 0)) {
		logger.Error(fmt.Sprintf("unsupported PDF version %d.%d", major, minor))
		return fmt.Errorf("%w: %d.%d", ErrUnsupportedVersion, major, minor)
	}
	logger.Debug(fmt.Sprintf("header: PDF-%d.%d", major, minor), true)
	return nil
}

// ValidateEOFMarker checks the last chunk of the file for the "%%EOF" marker.
// Ensures the PDF file is properly terminated as per the specification.
func ValidateEOFMarker(f io.ReaderAt, size int64) error {
	logger.Debug("checking for EOF")
	const endChunk = 1024
	n := int64(endChunk)
	if n > size {
		n = size
	}
	buf := make([]byte, n)
	if _, err := f.ReadAt(buf, size-n); err != nil && err != io.EOF {
		return err
	}
	buf = bytes.TrimRight(buf, "\r\n\t\x00 ")
	if !bytes.HasSuffix(buf, []byte("%%EOF")) {
		logger.Error("not a PDF file: missing %%%%EOF")
		return fmt.Errorf("%w: missing %%%%EOF", ErrCorrupted)
	}
	return nil
}

// FindStartXref locates and parses the "startxref" pointer near the end of
// the file. Returns the byte offset where the cross-reference table or
// stream begins.
func FindStartXref(f io.ReaderAt, size int64) (int64, error) {
	const endChunk = 1024
	n := int64(endChunk)
	if n > size {
		n = size
	}
	buf := make([]byte, n)
	if _, err := f.ReadAt(buf, size-n); err != nil && err != io.EOF {
		return 0, err
	}
	i := findLastLine(buf, "startxref")
	if i < 0 {
		logger.Error("malformed PDF file: missing final startxref")
		return 0, fmt.Errorf("%w: missing final startxref", ErrCorrupted)
	}
	pos := size - n + int64(i)
	b := newBuffer(io.NewSectionReader(f, pos, size-pos), pos)

	tok := b.readToken()
	if tok != keyword("startxref") {
		logger.Error(fmt.Sprintf("malformed PDF file: missing startxref : %v", tok))
		return 0, fmt.Errorf("%w: missing startxref keyword", ErrCorrupted)
	}
	startxref, ok := b.readToken().(int64)
	if !ok || startxref < 0 || startxref >= size {
		logger.Error("malformed PDF file: startxref not followed by valid integer")
		return 0, fmt.Errorf("%w: startxref offset out of range", ErrCorrupted)
	}
	logger.Debug(fmt.Sprintf("xref: FindStartXref -- startxref=%d", startxref), true)
	return startxref, nil
}

// Trailer returns the file's Trailer value.
func (r *Reader) Trailer() Value {
	return Value{r, r.trailerptr, r.trailer}
}

// readXref dispatches to the classic-table or xref-stream parser based on
// the first token at the current offset. seen carries the offsets already
// visited along the Prev chain so cycles are reported, not followed.
func readXref(r *Reader, b *buffer, seen map[int64]bool) ([]xref, objptr, dict, error) {
	tok := b.readToken()
	if tok == keyword("xref") {
		logger.Debug("Found Xref Table", true)
		return readXrefTable(r, b, seen)
	}
	if _, ok := tok.(int64); ok {
		b.unreadToken(tok)
		logger.Debug("Found Xref Stream", true)
		return readXrefStream(r, b, seen)
	}
	logger.Error(fmt.Sprintf("malformed PDF: cross-reference table nor stream found: %v", tok))
	return nil, objptr{}, nil, fmt.Errorf("%w: neither xref table nor xref stream", ErrCorrupted)
}

func readXrefStream(r *Reader, b *buffer, seen map[int64]bool) ([]xref, objptr, dict, error) {
	logger.Debug("processing Xref Stream")
	strmptr, strm, err := parseXrefStreamObject(b)
	if err != nil {
		return nil, objptr{}, nil, err
	}
	size, err := xrefSize(strm)
	if err != nil {
		return nil, objptr{}, nil, err
	}
	table := make([]xref, size)
	table, err = readXrefStreamData(r, strm, table, size)
	if err != nil {
		return nil, objptr{}, nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	table, err = mergePrevXrefStreams(r, strm, table, size, seen)
	if err != nil {
		return nil, objptr{}, nil, err
	}

	return table, strmptr, strm.hdr, nil
}

// parseXrefStreamObject reads one object from buffer and returns its objptr
// and stream, ensuring it's an /XRef stream.
func parseXrefStreamObject(b *buffer) (objptr, stream, error) {
	logger.Debug("reading xref stream at offset %v", b.pos)
	b.allowObjptr = true
	b.allowStream = true
	obj1 := b.readObject()
	od, ok := obj1.(objdef)
	if !ok {
		logger.Error(fmt.Sprintf("malformed PDF: objdef not found: %v", objfmt(obj1)))
		return objptr{}, stream{}, fmt.Errorf("%w: no object at xref stream offset", ErrCorrupted)
	}
	strm, ok := od.obj.(stream)
	if !ok {
		logger.Error(fmt.Sprintf("malformed PDF: cross-reference stream not found: %v", objfmt(od)))
		return objptr{}, stream{}, fmt.Errorf("%w: object at xref offset is not a stream", ErrCorrupted)
	}
	if strm.hdr["Type"] != name("XRef") {
		logger.Error("malformed PDF: xref stream does not have type XRef")
		return objptr{}, stream{}, fmt.Errorf("%w: xref stream missing /Type /XRef", ErrCorrupted)
	}

	return od.ptr, strm, nil
}

// xrefSize returns the /Size from an xref stream header.
func xrefSize(strm stream) (int64, error) {
	if size, ok := strm.hdr["Size"].(int64); ok {
		logger.Debug("xref stream size: %d", size)
		return size, nil
	}
	logger.Error("malformed PDF: xref stream missing Size")
	return 0, fmt.Errorf("%w: xref stream missing /Size", ErrCorrupted)
}

// mergePrevXrefStreams follows the /Prev chain, validating and merging each
// older stream. Later (newer) sections already in table win.
func mergePrevXrefStreams(r *Reader, cur stream, table []xref, maxSize int64, seen map[int64]bool) ([]xref, error) {
	for prevoff := cur.hdr["Prev"]; prevoff != nil; {
		off, ok := prevoff.(int64)
		if !ok {
			logger.Error(fmt.Sprintf("malformed PDF: xref Prev is not integer: %v", prevoff))
			return nil, fmt.Errorf("%w: xref /Prev is not an integer", ErrCorrupted)
		}
		logger.Debug(fmt.Sprintf("found Prev stream with offset %d", off), true)
		if seen[off] {
			logger.Error("malformed PDF: cycle in xref Prev chain")
			return nil, fmt.Errorf("%w: cycle in /Prev chain at offset %d", ErrCorrupted, off)
		}
		seen[off] = true
		b := newBuffer(io.NewSectionReader(r.f, off, r.end-off), off)
		_, prevStrm, err := parseXrefStreamObject(b)
		if err != nil {
			return nil, err
		}
		prevoff = prevStrm.hdr["Prev"]
		psize, ok := prevStrm.hdr["Size"].(int64)
		if !ok {
			logger.Error("malformed PDF: xref prev stream missing Size")
			return nil, fmt.Errorf("%w: xref prev stream missing /Size", ErrCorrupted)
		}
		if psize > maxSize {
			// The effective size is the maximum seen across sections.
			table = ensureLen(table, int(psize))
		}
		table, err = readXrefStreamData(r, prevStrm, table, psize)
		if err != nil {
			logger.Error(fmt.Sprintf("malformed PDF: reading xref prev stream: %v", err))
			return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
		}
	}
	logger.Debug("merged Prev stream data")
	return table, nil
}

func readXrefStreamData(r *Reader, strm stream, table []xref, size int64) ([]xref, error) {
	index, _ := strm.hdr["Index"].(array)
	if index == nil {
		index = array{int64(0), size}
	}
	if len(index)%2 != 0 {
		err := fmt.Errorf("invalid Index array %v", objfmt(index))
		logger.Error(err.Error())
		return nil, err
	}

	ww, ok := strm.hdr["W"].(array)
	if !ok {
		err := fmt.Errorf("xref stream missing W array")
		logger.Error(err.Error())
		return nil, err
	}

	var w []int
	for _, x := range ww {
		i, ok := x.(int64)
		if !ok || int64(int(i)) != i || i < 0 {
			err := fmt.Errorf("invalid W array %v", objfmt(ww))
			logger.Error(err.Error())
			return nil, err
		}
		w = append(w, int(i))
	}
	if len(w) < 3 {
		err := fmt.Errorf("invalid W array %v", objfmt(ww))
		logger.Error(err.Error())
		return nil, err
	}

	v := Value{r, objptr{}, strm}
	wtotal := 0
	for _, wid := range w {
		wtotal += wid
	}
	buf := make([]byte, wtotal)
	data := v.Reader()
	defer data.Close()
	for len(index) > 0 {
		start, ok1 := index[0].(int64)
		n, ok2 := index[1].(int64)
		if !ok1 || !ok2 {
			err := fmt.Errorf("malformed Index pair %v %v", objfmt(index[0]), objfmt(index[1]))
			logger.Error(err.Error())
			return nil, err
		}
		index = index[2:]
		for i := 0; i < int(n); i++ {
			if _, err := io.ReadFull(data, buf); err != nil {
				err = fmt.Errorf("error reading xref stream: %v", err)
				logger.Error(err.Error())
				return nil, err
			}
			v1 := decodeInt(buf[0:w[0]])
			if w[0] == 0 {
				// A zero-width kind field defaults to in-use.
				v1 = 1
			}
			v2 := decodeInt(buf[w[0] : w[0]+w[1]])
			v3 := decodeInt(buf[w[0]+w[1] : w[0]+w[1]+w[2]])
			x := int(start) + i
			for cap(table) <= x {
				table = append(table[:cap(table)], xref{})
			}
			if len(table) <= x {
				table = table[:x+1]
			}
			if table[x].ptr != (objptr{}) {
				continue
			}
			switch v1 {
			case 0:
				table[x] = xref{ptr: objptr{0, 65535}}
			case 1:
				table[x] = xref{ptr: objptr{uint32(x), uint16(v3)}, offset: int64(v2)}
			case 2:
				table[x] = xref{ptr: objptr{uint32(x), 0}, inStream: true, stream: objptr{uint32(v2), 0}, offset: int64(v3)}
			default:
				if DebugOn {
					logger.Error(fmt.Sprintf("invalid xref stream type %d: %x", v1, buf))
				}
			}
		}
	}
	logger.Debug(fmt.Sprintf("parseXrefEntries (entries parsed=%d)", size), true)

	return table, nil
}

func decodeInt(b []byte) int {
	x := 0
	for _, c := range b {
		x = x<<8 | int(c)
	}
	return x
}

func readXrefTable(r *Reader, b *buffer, seen map[int64]bool) ([]xref, objptr, dict, error) {
	logger.Debug("processing xref table")
	table, trailer, err := parseXrefTableAndTrailer(b, nil)
	if err != nil {
		return nil, objptr{}, nil, err
	}

	// Hybrid-reference files carry an /XRefStm alongside the table.
	table, trailer, err = r.handleTrailerXRefStm(table, trailer, seen)
	if err != nil {
		logger.Error("readXrefTable: XRefStm handling error: %v. Falling back to Prev chain.", err)
		// proceed with Prev chain to salvage what we can from ASCII tables.
	}

	table, trailer, err = resolvePrevXrefTables(r, trailer, table, seen)
	if err != nil {
		return nil, objptr{}, nil, err
	}

	if err := validateTrailerSize(&table, trailer); err != nil {
		return nil, objptr{}, nil, err
	}

	return table, objptr{}, trailer, nil
}

// parseXrefTableAndTrailer parses a single xref table section
// and the trailer dictionary that follows it.
func parseXrefTableAndTrailer(b *buffer, table []xref) ([]xref, dict, error) {
	var err error
	table, err = readXrefTableData(b, table)
	if err != nil {
		logger.Error(fmt.Sprintf("malformed PDF: %v", err))
		return nil, nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	logger.Debug("Parsed xref table section with %d entries so far\n", len(table))
	b.allowObjptr = true
	trailer, ok := b.readObject().(dict)
	if !ok {
		logger.Error("malformed PDF: xref table not followed by trailer dictionary")
		return nil, nil, fmt.Errorf("%w: xref table not followed by trailer dictionary", ErrCorrupted)
	}
	return table, trailer, nil
}

func resolvePrevXrefTables(r *Reader, trailer dict, table []xref, seen map[int64]bool) ([]xref, dict, error) {
	first := trailer
	for prevoff := trailer[name("Prev")]; prevoff != nil; {
		off, ok := prevoff.(int64)
		if !ok {
			logger.Error(fmt.Sprintf("malformed PDF: xref Prev is not integer: %v", prevoff))
			return nil, nil, fmt.Errorf("%w: xref /Prev is not an integer", ErrCorrupted)
		}
		logger.Debug("found Prev xref table", true)
		if seen[off] {
			logger.Error("malformed PDF: cycle in xref Prev chain")
			return nil, nil, fmt.Errorf("%w: cycle in /Prev chain at offset %d", ErrCorrupted, off)
		}
		seen[off] = true
		b := newBuffer(io.NewSectionReader(r.f, off, r.end-off), off)
		tok := b.readToken()
		if tok != keyword("xref") {
			// An older section may be an xref stream (hybrid chains).
			b.unreadToken(tok)
			prevTable, _, prevTrailer, err := readXrefStream(r, b, seen)
			if err != nil {
				logger.Error("malformed PDF: xref Prev does not point to xref")
				return nil, nil, fmt.Errorf("%w: /Prev points at neither table nor stream", ErrCorrupted)
			}
			table = mergeXrefTables(table, prevTable)
			prevoff = prevTrailer[name("Prev")]
			continue
		}
		var err error
		table, trailer, err = parseXrefTableAndTrailer(b, table)
		if err != nil {
			return nil, nil, err
		}
		table, trailer, err = r.handleTrailerXRefStm(table, trailer, seen)
		if err != nil {
			logger.Debug("warning: XRefStm handling error in Prev chain: %v; continuing\n", err)
		}
		prevoff = trailer[name("Prev")]
	}
	return table, first, nil
}

// validateTrailerSize trims the xref table to the declared /Size in trailer.
// The effective size across incremental sections is the maximum seen, so the
// table is trimmed only when no live entries would be dropped.
func validateTrailerSize(table *[]xref, trailer dict) error {
	size, ok := trailer[name("Size")].(int64)
	if !ok {
		logger.Error("malformed PDF: trailer missing /Size entry")
		return fmt.Errorf("%w: trailer missing /Size", ErrCorrupted)
	}

	if size < int64(len(*table)) {
		live := int64(0)
		for i := size; i < int64(len(*table)); i++ {
			if (*table)[i].ptr != (objptr{}) {
				live++
			}
		}
		if live == 0 {
			*table = (*table)[:size]
		}
	}
	logger.Debug("trailer size validated: %d", size)
	return nil
}

// ensureLen makes sure s has length at least n (growing capacity if needed)
// and returns the possibly-reallocated slice.
func ensureLen[T any](s []T, n int) []T {
	if n <= len(s) {
		return s
	}
	if cap(s) < n {
		ns := make([]T, n)
		copy(ns, s)
		return ns
	}
	return s[:n]
}

// setIfEmpty sets table[x] to val only if the slot is currently empty.
func setIfEmpty(table *[]xref, x int, val xref) {
	if x < 0 {
		return
	}
	*table = ensureLen(*table, x+1)
	if (*table)[x].ptr == (objptr{}) {
		(*table)[x] = val
	}
}

func readXrefTableData(b *buffer, table []xref) ([]xref, error) {
	logger.Debug("reading xref table data")
	for {
		tok := b.readToken()
		if tok == keyword("trailer") {
			break
		}
		start, ok1 := tok.(int64)
		count, ok2 := b.readToken().(int64)
		if !ok1 || !ok2 || start < 0 || count < 0 {
			logger.Error("malformed xref table subsection header")
			return nil, errors.New("malformed xref table subsection header")
		}
		for i := 0; i < int(count); i++ {
			offTok := b.readToken()
			genTok := b.readToken()
			allocTok := b.readToken()

			off, okOff := offTok.(int64)
			gen, okGen := genTok.(int64)
			alloc, okAlloc := allocTok.(keyword)
			if !okOff || !okGen || !okAlloc {
				logger.Error(fmt.Sprintf("malformed xref entry at subsection starting %d", start))
				return nil, fmt.Errorf("malformed xref entry at subsection starting %d", start)
			}

			idx := int(start) + i
			switch alloc {
			case keyword("n"): // in-use — record if empty
				setIfEmpty(&table, idx, xref{ptr: objptr{uint32(idx), uint16(gen)}, offset: off})
			case keyword("f"): // free — ensure slice long enough for safe indexing
				table = ensureLen(table, idx+1)
			default:
				logger.Error(fmt.Sprintf("malformed xref table: unexpected alloc token %v", alloc))
				return nil, fmt.Errorf("unexpected alloc token %v", alloc)
			}
		}
	}
	return table, nil
}

// mergeXrefTables merges src into dest: entries already present in dest
// (newer sections) win; src only fills gaps.
func mergeXrefTables(dest []xref, src []xref) []xref {
	if len(src) > len(dest) {
		nd := make([]xref, len(src))
		copy(nd, dest)
		dest = nd
	}
	for i := 0; i < len(src); i++ {
		s := src[i]
		if s.ptr == (objptr{}) {
			continue
		}
		if dest[i].ptr == (objptr{}) {
			dest[i] = s
		}
	}
	return dest
}

var objHeaderRE = regexp.MustCompile(`^\d+\s+\d+\s+obj\b`)

// isLikelyObjectAt performs a lightweight check whether an object header or dict begins at off.
func (r *Reader) isLikelyObjectAt(off int64) bool {
	if off < 0 || off >= r.end {
		return false
	}
	buf := make([]byte, 64)
	n, err := r.f.ReadAt(buf, off)
	if err != nil && err != io.EOF {
		return false
	}
	if n == 0 {
		return false
	}
	sTrim := strings.TrimLeft(string(buf[:n]), " \t\r\n")
	if objHeaderRE.MatchString(sTrim) {
		return true
	}
	if strings.HasPrefix(sTrim, "<<") {
		return true
	}
	if strings.HasPrefix(sTrim, "%PDF-") {
		return true
	}
	return false
}

// scanForObjectAt searches a +-window around approx for "<id> <gen> obj" and returns found offset or -1.
func (r *Reader) scanForObjectAt(id uint32, gen uint16, approx int64, window int64) int64 {
	if approx < 0 {
		approx = 0
	}
	start := approx - window
	if start < 0 {
		start = 0
	}
	end := approx + window
	if end > r.end {
		end = r.end
	}
	size := end - start
	if size <= 0 {
		return -1
	}
	buf := make([]byte, size)
	n, err := r.f.ReadAt(buf, start)
	if err != nil && err != io.EOF {
		return -1
	}
	buf = buf[:n]
	pattern := fmt.Sprintf(`\b%d\s+%d\s+obj\b`, id, gen)
	re := regexp.MustCompile(pattern)
	loc := re.FindIndex(buf)
	if loc == nil {
		return -1
	}
	return start + int64(loc[0])
}

// validateAndRepairXrefEntries checks offsets in table and tries to repair with a small-window scan.
// Returns counts: repaired entries and invalid (unrepairable) entries.
func (r *Reader) validateAndRepairXrefEntries(table []xref) (repaired int, invalid int) {
	for i := 0; i < len(table); i++ {
		ent := table[i]
		if ent.ptr == (objptr{}) || ent.inStream {
			continue
		}
		if ent.offset == 0 {
			// no external file offset to validate (free)
			continue
		}
		if r.isLikelyObjectAt(ent.offset) {
			continue
		}
		found := r.scanForObjectAt(ent.ptr.id, ent.ptr.gen, ent.offset, 1024)
		if found >= 0 {
			table[i].offset = found
			repaired++
			continue
		}
		invalid++
	}
	return
}

// handleTrailerXRefStm: if trailer contains /XRefStm, parse that stream and
// merge its table into the provided table. If the stream appears too
// invalid, returns error so caller can fall back to the Prev chain alone.
func (r *Reader) handleTrailerXRefStm(table []xref, trailer dict, seen map[int64]bool) ([]xref, dict, error) {
	xrefstm := trailer[name("XRefStm")]
	if xrefstm == nil {
		return table, trailer, nil
	}
	logger.Debug("found XRefStm in trailer", true)
	off, ok := xrefstm.(int64)
	if !ok {
		logger.Error(fmt.Sprintf("malformed PDF: XRefStm not integer: %v", xrefstm))
		return table, trailer, fmt.Errorf("%w: /XRefStm is not an integer", ErrCorrupted)
	}
	if seen[off] {
		return table, trailer, fmt.Errorf("%w: cycle through /XRefStm at offset %d", ErrCorrupted, off)
	}
	seen[off] = true
	b := newBuffer(io.NewSectionReader(r.f, off, r.end-off), off)
	srcTable, _, hdr, err := readXrefStream(r, b, seen)
	if err != nil {
		logger.Error(fmt.Sprintf("failed to parse XRefStm at %d: %v", off, err))
		return table, trailer, err
	}
	_, invalid := r.validateAndRepairXrefEntries(srcTable)

	total := 0
	for _, e := range srcTable {
		if e.ptr != (objptr{}) {
			total++
		}
	}
	// Accept or reject the stream table based on an invalid threshold
	if total > 0 && float64(invalid)/float64(total) > 0.30 {
		logger.Error(fmt.Sprintf("xref stream at %d appears invalid: %d/%d invalid entries", off, invalid, total))
		return table, trailer, fmt.Errorf("%w: XRefStm at %d mostly invalid", ErrCorrupted, off)
	}

	// The stream entries complement the table of the same revision.
	table = mergeXrefTables(table, srcTable)

	if _, ok := hdr["Size"]; !ok {
		logger.Debug(fmt.Sprintf("xref stream at %d missing /Size", off))
		return table, trailer, fmt.Errorf("%w: XRefStm missing /Size", ErrCorrupted)
	}
	return table, trailer, nil
}

// findLastLine searches backwards in buf for the last occurrence of the
// keyword s (e.g. "startxref") that is correctly terminated. Producers often
// insert trailing spaces, tabs, or nulls after the keyword before the
// required end-of-line, so any run of PDF whitespace whose last byte is a
// CR or LF is accepted as the terminator.
func findLastLine(buf []byte, s string) int {
	bs := []byte(s)
	var indices []int

	for i := 0; ; {
		j := bytes.Index(buf[i:], bs)
		if j < 0 {
			break
		}
		indices = append(indices, i+j)
		i += j + 1
	}

	for k := len(indices) - 1; k >= 0; k-- {
		i := indices[k]
		j := SkipWhitespace(buf, i+len(bs))
		if EndsWithEOL(buf, i+len(bs), j) {
			return i
		}
	}
	return -1
}

var wsBits [4]uint64 // 256 bits = 4 * 64

func init() {
	for _, b := range []byte{0x00, 0x09, 0x0A, 0x0C, 0x0D, 0x20} {
		wsBits[b>>6] |= 1 << (b & 63)
	}
}

// isWhitespace reports whether b is one of the six whitespace characters
// defined by ISO 32000-1 §7.2.2 for PDF syntax: 00, 09, 0A, 0C, 0D, 20.
func isWhitespace(b byte) bool {
	return (wsBits[b>>6] & (1 << (b & 63))) != 0
}

// SkipWhitespace advances j past all whitespace.
func SkipWhitespace(buf []byte, j int) int {
	for j < len(buf) && isWhitespace(buf[j]) {
		j++
	}
	return j
}

// EndsWithEOL checks if the last skipped char is CR or LF.
func EndsWithEOL(buf []byte, start, end int) bool {
	if end > start {
		last := buf[end-1]
		return last == '\n' || last == '\r'
	}
	return false
}

// A Value is a single PDF value, such as an integer, dictionary, or array.
// The zero Value is a PDF null (Kind() == Null, IsNull() = true).
type Value struct {
	r    *Reader
	ptr  objptr
	data interface{}
}

// IsNull reports whether the value is a null. It is equivalent to Kind() == Null.
func (v Value) IsNull() bool {
	return v.data == nil
}

// A ValueKind specifies the kind of data underlying a Value.
type ValueKind int

// The PDF value kinds.
const (
	Null ValueKind = iota
	Bool
	Integer
	Real
	String
	Name
	Dict
	Array
	Stream
)

// Kind reports the kind of value underlying v.
func (v Value) Kind() ValueKind {
	switch v.data.(type) {
	default:
		return Null
	case bool:
		return Bool
	case int64:
		return Integer
	case float64:
		return Real
	case string:
		return String
	case name:
		return Name
	case dict:
		return Dict
	case array:
		return Array
	case stream:
		return Stream
	}
}

// String returns a textual representation of the value v.
// Note that String is not the accessor for values with Kind() == String.
// To access such values, see RawString, Text, and TextFromUTF16.
func (v Value) String() string {
	return objfmt(v.data)
}

func objfmt(x interface{}) string {
	switch x := x.(type) {
	default:
		return fmt.Sprint(x)
	case string:
		if isPDFDocEncoded(x) {
			return strconv.Quote(pdfDocDecode(x))
		}
		if isUTF16(x) {
			return strconv.Quote(utf16Decode(x[2:]))
		}
		return strconv.Quote(x)
	case name:
		return "/" + string(x)
	case dict:
		var keys []string
		for k := range x {
			keys = append(keys, string(k))
		}
		sort.Strings(keys)
		var buf bytes.Buffer
		buf.WriteString("<<")
		for i, k := range keys {
			elem := x[name(k)]
			if i > 0 {
				buf.WriteString(" ")
			}
			buf.WriteString("/")
			buf.WriteString(k)
			buf.WriteString(" ")
			buf.WriteString(objfmt(elem))
		}
		buf.WriteString(">>")
		return buf.String()

	case array:
		var buf bytes.Buffer
		buf.WriteString("[")
		for i, elem := range x {
			if i > 0 {
				buf.WriteString(" ")
			}
			buf.WriteString(objfmt(elem))
		}
		buf.WriteString("]")
		return buf.String()

	case stream:
		return fmt.Sprintf("%v@%d", objfmt(x.hdr), x.offset)

	case objptr:
		return fmt.Sprintf("%d %d R", x.id, x.gen)

	case objdef:
		return fmt.Sprintf("{%d %d obj}%v", x.ptr.id, x.ptr.gen, objfmt(x.obj))
	}
}

// Bool returns v's boolean value.
// If v.Kind() != Bool, Bool returns false.
func (v Value) Bool() bool {
	x, ok := v.data.(bool)
	if !ok {
		return false
	}
	return x
}

// Int64 returns v's int64 value.
// If v.Kind() != Integer, Int64 returns 0.
func (v Value) Int64() int64 {
	x, ok := v.data.(int64)
	if !ok {
		return 0
	}
	return x
}

// Float64 returns v's float64 value, converting from integer if necessary.
// If v.Kind() != Real and v.Kind() != Integer, Float64 returns 0.
func (v Value) Float64() float64 {
	x, ok := v.data.(float64)
	if !ok {
		x, ok := v.data.(int64)
		if ok {
			return float64(x)
		}
		return 0
	}
	return x
}

// RawString returns v's string value.
// If v.Kind() != String, RawString returns the empty string.
func (v Value) RawString() string {
	x, ok := v.data.(string)
	if !ok {
		return ""
	}
	return x
}

// Text returns v's string value interpreted as a “text string” (defined in
// the PDF spec) and converted to UTF-8.
// If v.Kind() != String, Text returns the empty string.
func (v Value) Text() string {
	x, ok := v.data.(string)
	if !ok {
		return ""
	}
	if isPDFDocEncoded(x) {
		return pdfDocDecode(x)
	}
	if isUTF16(x) {
		return utf16Decode(x[2:])
	}
	return x
}

// TextFromUTF16 returns v's string value interpreted as big-endian UTF-16
// and then converted to UTF-8.
// If v.Kind() != String or if the data is not valid UTF-16, TextFromUTF16
// returns the empty string.
func (v Value) TextFromUTF16() string {
	x, ok := v.data.(string)
	if !ok {
		return ""
	}
	if len(x)%2 == 1 {
		return ""
	}
	if x == "" {
		return ""
	}
	return utf16Decode(x)
}

// Name returns v's name value.
// If v.Kind() != Name, Name returns the empty string.
// The returned name does not include the leading slash:
// if v corresponds to the name written using the syntax /Helvetica,
// Name() == "Helvetica".
func (v Value) Name() string {
	x, ok := v.data.(name)
	if !ok {
		return ""
	}
	return string(x)
}

// Key returns the value associated with the given name key in the dictionary v.
// Like the result of the Name method, the key should not include a leading slash.
// If v is a stream, Key applies to the stream's header dictionary.
// If v.Kind() != Dict and v.Kind() != Stream, Key returns a null Value.
func (v Value) Key(key string) Value {
	x, ok := v.data.(dict)
	if !ok {
		strm, ok := v.data.(stream)
		if !ok {
			return Value{}
		}
		x = strm.hdr
	}
	return v.resolveChild(x[name(key)])
}

// Keys returns a sorted list of the keys in the dictionary v.
// If v is a stream, Keys applies to the stream's header dictionary.
// If v.Kind() != Dict and v.Kind() != Stream, Keys returns nil.
func (v Value) Keys() []string {
	x, ok := v.data.(dict)
	if !ok {
		strm, ok := v.data.(stream)
		if !ok {
			return nil
		}
		x = strm.hdr
	}
	keys := []string{} // not nil
	for k := range x {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	return keys
}

// Index returns the i'th element in the array v.
// If v.Kind() != Array or if i is outside the array bounds,
// Index returns a null Value.
func (v Value) Index(i int) Value {
	x, ok := v.data.(array)
	if !ok || i < 0 || i >= len(x) {
		return Value{}
	}
	return v.resolveChild(x[i])
}

// Len returns the length of the array v.
// If v.Kind() != Array, Len returns 0.
func (v Value) Len() int {
	x, ok := v.data.(array)
	if !ok {
		return 0
	}
	return len(x)
}

func (v Value) resolveChild(x interface{}) Value {
	if v.r == nil {
		// Values synthesized by the interpreter carry no Reader; they can
		// never contain indirect references.
		if _, ok := x.(objptr); ok {
			return Value{}
		}
		return Value{nil, v.ptr, x}
	}
	return v.r.resolve(v.ptr, x)
}

func (r *Reader) resolve(parent objptr, x interface{}) Value {
	if ptr, ok := x.(objptr); ok {
		if ptr.id >= uint32(len(r.xref)) {
			return Value{}
		}
		ent := r.xref[ptr.id]
		if ent.ptr != ptr || !ent.inStream && ent.offset == 0 {
			// Unknown, free, or generation-mismatched entry.
			if r.mode == Strict {
				panic(fmt.Errorf("%w: %d %d R", ErrResolve, ptr.id, ptr.gen))
			}
			return Value{}
		}
		if cached, ok := r.cache.Load(ptr); ok {
			return Value{r, ptr, cached}
		}
		var x2 interface{}
		if ent.inStream {
			x2 = r.resolveInStream(ptr, ent)
		} else {
			b := newBuffer(io.NewSectionReader(r.f, ent.offset, r.end-ent.offset), ent.offset)
			b.strict = r.mode == Strict
			b.allowObjptr = true
			b.allowStream = true
			obj := b.readObject()
			def, ok := obj.(objdef)
			if !ok {
				logger.Error(fmt.Sprintf("loading %v: found %T instead of objdef", ptr, obj))
				if r.mode == Strict {
					panic(fmt.Errorf("%w: loading %d %d R: not an object definition", ErrMalformed, ptr.id, ptr.gen))
				}
				return Value{}
			}
			if def.ptr != ptr {
				logger.Error(fmt.Sprintf("loading %v: found %v", ptr, def.ptr))
				if r.mode == Strict {
					panic(fmt.Errorf("%w: loading %d %d R: found %d %d obj", ErrMalformed, ptr.id, ptr.gen, def.ptr.id, def.ptr.gen))
				}
				return Value{}
			}
			x2 = def.obj
		}
		r.cache.Store(ptr, x2)
		x = x2
		parent = ptr
	}

	switch x := x.(type) {
	case nil, bool, int64, float64, name, dict, array, stream, string:
		return Value{r, parent, x}
	default:
		logger.Error(fmt.Sprintf("unexpected value type %T in resolve", x))
		return Value{}
	}
}

// resolveInStream extracts an object stored inside an object stream,
// following /Extends chains as needed.
func (r *Reader) resolveInStream(ptr objptr, ent xref) interface{} {
	strm := r.resolve(objptr{}, ent.stream)
	seen := map[uint32]bool{}
	for {
		x, ok := strm.data.(stream)
		if !ok || strm.Key("Type").Name() != "ObjStm" {
			logger.Error("compressed object container is not an object stream")
			if r.mode == Strict {
				panic(fmt.Errorf("%w: %d %d R: container is not /ObjStm", ErrResolve, ptr.id, ptr.gen))
			}
			return nil
		}
		if seen[x.ptr.id] {
			logger.Error("cycle in object stream Extends chain")
			return nil
		}
		seen[x.ptr.id] = true
		n := int(strm.Key("N").Int64())
		first := strm.Key("First").Int64()
		if n <= 0 || first <= 0 {
			logger.Error("object stream missing N or First")
			if r.mode == Strict {
				panic(fmt.Errorf("%w: object stream missing /N or /First", ErrMalformed))
			}
			return nil
		}
		rc := strm.Reader()
		b := newBuffer(rc, 0)
		b.strict = r.mode == Strict
		b.allowEOF = true
		found := int64(-1)
		for i := 0; i < n; i++ {
			id, _ := b.readToken().(int64)
			off, _ := b.readToken().(int64)
			if uint32(id) == ptr.id {
				found = off
				break
			}
		}
		if found >= 0 {
			b.seekForward(first + found)
			obj := b.readObject()
			rc.Close()
			return obj
		}
		rc.Close()
		ext := strm.Key("Extends")
		if ext.Kind() != Stream {
			logger.Error("cannot find object in stream")
			if r.mode == Strict {
				panic(fmt.Errorf("%w: %d %d R not present in object stream", ErrResolve, ptr.id, ptr.gen))
			}
			return nil
		}
		strm = ext
	}
}

type errorReadCloser struct {
	err error
}

func (e *errorReadCloser) Read([]byte) (int, error) {
	return 0, e.err
}

func (e *errorReadCloser) Close() error {
	return e.err
}

// Reader returns the decoded data contained in the stream v, applying the
// declared filter chain in order.
// If v.Kind() != Stream, Reader returns a ReadCloser that
// responds to all reads with a “stream not present” error.
func (v Value) Reader() io.ReadCloser {
	x, ok := v.data.(stream)
	if !ok || v.r == nil {
		logger.Error("stream not present")
		return &errorReadCloser{fmt.Errorf("stream not present")}
	}
	strict := v.r.mode == Strict
	length := v.Key("Length").Int64()
	if length <= 0 && v.r != nil {
		// Broken or missing /Length: scan forward for endstream.
		length = v.r.scanStreamLength(x.offset)
		if length < 0 {
			return &errorReadCloser{fmt.Errorf("%w: stream missing /Length", ErrMalformed)}
		}
	}
	if strict {
		if err := v.r.checkEndstream(x.offset + length); err != nil {
			return &errorReadCloser{err}
		}
	}
	var rd io.Reader
	rd = io.NewSectionReader(v.r.f, x.offset, length)
	filter := v.Key("Filter")
	param := v.Key("DecodeParms")
	if param.IsNull() {
		param = v.Key("DP")
	}
	switch filter.Kind() {
	default:
		logger.Error(fmt.Sprintf("unsupported filter %v", filter))
		return &errorReadCloser{fmt.Errorf("%w: unsupported filter %v", ErrFilter, filter)}
	case Null:
		// ok
	case Name:
		rd = applyFilter(rd, filter.Name(), param, strict)
	case Array:
		for i := 0; i < filter.Len(); i++ {
			p := param
			if param.Kind() == Array {
				p = param.Index(i)
			}
			rd = applyFilter(rd, filter.Index(i).Name(), p, strict)
		}
	}

	return io.NopCloser(rd)
}

// checkEndstream verifies that the endstream keyword follows the declared
// stream data after at most one line terminator.
func (r *Reader) checkEndstream(off int64) error {
	buf := make([]byte, 12)
	n, err := r.f.ReadAt(buf, off)
	if n == 0 && err != nil {
		return fmt.Errorf("%w: stream runs past end of file", ErrMalformed)
	}
	b := buf[:n]
	if len(b) > 0 && b[0] == '\r' {
		b = b[1:]
	}
	if len(b) > 0 && b[0] == '\n' {
		b = b[1:]
	}
	if !bytes.HasPrefix(b, []byte("endstream")) {
		return fmt.Errorf("%w: endstream does not follow stream data", ErrMalformed)
	}
	return nil
}

// scanStreamLength searches forward from offset for the endstream keyword
// and returns the raw data length, or -1 when no endstream is found.
func (r *Reader) scanStreamLength(offset int64) int64 {
	if r.mode == Strict {
		return -1
	}
	const chunk = 64 * 1024
	var scanned []byte
	for off := offset; off < r.end; off += chunk {
		n := int64(chunk)
		if off+n > r.end {
			n = r.end - off
		}
		buf := make([]byte, n)
		m, err := r.f.ReadAt(buf, off)
		if m == 0 && err != nil {
			break
		}
		scanned = append(scanned, buf[:m]...)
		if i := bytes.Index(scanned, []byte("endstream")); i >= 0 {
			end := int64(i)
			// Back up over the line terminator preceding endstream.
			for end > 0 && (scanned[end-1] == '\n' || scanned[end-1] == '\r') {
				end--
			}
			return end
		}
	}
	return -1
}
