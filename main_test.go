// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package xtract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/phpdave11/gofpdf"
)

func td(name string) string {
	return filepath.Join("testdata", name)
}

// TestMain generates the testdata fixtures. pdf_test.pdf is produced with
// gofpdf so the reader is exercised against output of a real producer
// (compressed streams, classic xref, core fonts).
func TestMain(m *testing.M) {
	if err := os.MkdirAll("testdata", 0o755); err != nil {
		panic(err)
	}
	if err := generateFixture(td("pdf_test.pdf")); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func generateFixture(path string) error {
	pdf := gofpdf.New("P", "pt", "Letter", "")
	pdf.SetTitle("Extraction Fixture", false)
	pdf.SetAuthor("pdf-text-xtract tests", false)
	pdf.SetSubject("fixture", false)

	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 24)
	pdf.CellFormat(0, 28, "Fixture Title", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 12)
	pdf.MultiCell(0, 14, "Hello fixture world. This page carries plain body text used by the reader tests.", "", "L", false)

	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(0, 14, "Second page marker SP2.", "", 1, "L", false, 0, "")

	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(0, 14, "Third page marker SP3.", "", 1, "L", false, 0, "")

	return pdf.OutputFileAndClose(path)
}
