// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package xtract

import (
	"bytes"
	"fmt"
	"strings"
)

// pdfObj is one indirect object for the test-file builder: num and the body
// text between "num 0 obj" and "endobj".
type pdfObj struct {
	num  int
	body string
}

// buildPDF assembles a classic-xref PDF from the given objects, computing
// the cross-reference offsets. trailerExtra is spliced into the trailer
// dictionary after /Size and /Root.
func buildPDF(objs []pdfObj, rootNum int, trailerExtra string) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	maxNum := 0
	offsets := map[int]int{}
	for _, o := range objs {
		offsets[o.num] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", o.num, o.body)
		if o.num > maxNum {
			maxNum = o.num
		}
	}

	start := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", maxNum+1)
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= maxNum; i++ {
		if off, ok := offsets[i]; ok {
			fmt.Fprintf(&buf, "%010d 00000 n \n", off)
		} else {
			buf.WriteString("0000000000 65535 f \n")
		}
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %d 0 R %s>>\nstartxref\n%d\n%%%%EOF\n",
		maxNum+1, rootNum, trailerExtra, start)
	return buf.Bytes()
}

// appendRevision appends an incremental update to base: new object bodies,
// a new xref section whose trailer points back at the previous one.
func appendRevision(base []byte, objs []pdfObj, rootNum int, prevStart int) []byte {
	var buf bytes.Buffer
	buf.Write(base)

	maxNum := 0
	offsets := map[int]int{}
	for _, o := range objs {
		offsets[o.num] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", o.num, o.body)
		if o.num > maxNum {
			maxNum = o.num
		}
	}

	start := buf.Len()
	buf.WriteString("xref\n")
	for _, o := range objs {
		fmt.Fprintf(&buf, "%d 1\n%010d 00000 n \n", o.num, offsets[o.num])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %d 0 R /Prev %d >>\nstartxref\n%d\n%%%%EOF\n",
		maxNum+1, rootNum, prevStart, start)
	return buf.Bytes()
}

// startxrefOffset digs the startxref value out of a built file, for use as
// the /Prev of an appended revision.
func startxrefOffset(pdf []byte) int {
	i := bytes.LastIndex(pdf, []byte("startxref"))
	var off int
	fmt.Sscanf(string(pdf[i:]), "startxref\n%d", &off)
	return off
}

// streamObj renders a stream object body with the given header entries and
// raw data. /Length is filled in automatically.
func streamObj(hdr string, data string) string {
	if hdr != "" && !strings.HasSuffix(hdr, " ") {
		hdr += " "
	}
	return fmt.Sprintf("<< %s/Length %d >>\nstream\n%s\nendstream", hdr, len(data), data)
}

// simplePagePDF builds a one-page document with a Helvetica/WinAnsi font
// under the resource name /F1 and the given content stream.
func simplePagePDF(content string) []byte {
	return simplePagesPDF([]string{content})
}

// simplePagesPDF builds a document with one page per content stream.
func simplePagesPDF(contents []string) []byte {
	var objs []pdfObj
	n := len(contents)
	kids := make([]string, n)
	for i := range contents {
		kids[i] = fmt.Sprintf("%d 0 R", 3+2*i)
	}
	objs = append(objs,
		pdfObj{1, "<< /Type /Catalog /Pages 2 0 R >>"},
		pdfObj{2, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), n)},
	)
	fontNum := 3 + 2*n
	for i, c := range contents {
		pageNum := 3 + 2*i
		objs = append(objs,
			pdfObj{pageNum, fmt.Sprintf(
				"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R >>",
				fontNum, pageNum+1)},
			pdfObj{pageNum + 1, streamObj("", c)},
		)
	}
	objs = append(objs, pdfObj{fontNum, helveticaFontObj()})
	return buildPDF(objs, 1, "")
}

// helveticaFontObj returns a Helvetica font dictionary with WinAnsi
// encoding and uniform 500-unit widths over the printable ASCII range.
func helveticaFontObj() string {
	widths := strings.TrimSpace(strings.Repeat("500 ", 95))
	return fmt.Sprintf(
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding /FirstChar 32 /LastChar 126 /Widths [%s] >>",
		widths)
}
