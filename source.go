// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package xtract

import (
	"io"
	"os"
)

// A byteSource is a random-access view over the bytes of a PDF file.
// It lives as long as any Value referencing it.
type byteSource interface {
	io.ReaderAt
	io.Closer
	Size() int64
}

// plainFile is the fallback byte source backed by ordinary file reads.
type plainFile struct {
	f    *os.File
	size int64
}

func (p *plainFile) ReadAt(b []byte, off int64) (int, error) {
	return p.f.ReadAt(b, off)
}

func (p *plainFile) Size() int64 {
	return p.size
}

func (p *plainFile) Close() error {
	return p.f.Close()
}
