// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

//go:build unix

package xtract

import (
	"errors"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// mappedFile is a read-only memory mapping of a PDF file. It satisfies
// io.ReaderAt without copying and stays valid until Close.
type mappedFile struct {
	data []byte
}

// openMapped maps the file at path read-only. Empty files cannot be mapped
// and fall back to a plain file handle so header validation can report the
// usual error.
func openMapped(path string) (byteSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	size := fi.Size()
	if size == 0 {
		return &plainFile{f: f, size: 0}, nil
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	// The mapping keeps its own reference to the pages.
	f.Close()
	if err != nil {
		// Mapping can fail on exotic filesystems; fall back to file reads.
		g, err2 := os.Open(path)
		if err2 != nil {
			return nil, err
		}
		return &plainFile{f: g, size: size}, nil
	}
	return &mappedFile{data: data}, nil
}

func (m *mappedFile) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *mappedFile) Size() int64 {
	return int64(len(m.data))
}

func (m *mappedFile) Close() error {
	if m.data == nil {
		return errors.New("already closed")
	}
	data := m.data
	m.data = nil
	return unix.Munmap(data)
}
