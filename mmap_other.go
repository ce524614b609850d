// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

//go:build !unix

package xtract

import (
	"os"
)

// openMapped opens the file with plain reads on platforms without a
// usable mmap.
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
	return &plainFile{f: f, size: fi.Size()}, nil
}
