// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package xtract

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const xmpSample = `<?xpacket begin="" id="W5M0MpCehiHzreSzNTczkc9d"?>
<x:xmpmeta xmlns:x="adobe:ns:meta/">
 <rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">
  <rdf:Description rdf:about=""
    xmlns:dc="http://purl.org/dc/elements/1.1/"
    xmlns:pdf="http://ns.adobe.com/pdf/1.3/"
    xmlns:xmp="http://ns.adobe.com/xap/1.0/">
   <dc:title><rdf:Alt><rdf:li xml:lang="x-default">Minimal PDF with Metadata</rdf:li></rdf:Alt></dc:title>
   <dc:creator><rdf:Seq><rdf:li>Unit Author</rdf:li></rdf:Seq></dc:creator>
   <pdf:Producer>UnitTest PDF Generator</pdf:Producer>
   <xmp:CreateDate>2021-04-05T10:00:00Z</xmp:CreateDate>
   <xmp:ModifyDate>2021-04-06T10:00:00Z</xmp:ModifyDate>
  </rdf:Description>
 </rdf:RDF>
</x:xmpmeta>
<?xpacket end="w"?>`

// metadataPDF builds a document carrying both an /Info dictionary and an
// XMP metadata stream.
func metadataPDF() []byte {
	objs := []pdfObj{
		{1, "<< /Type /Catalog /Metadata 2 0 R >>"},
		{2, streamObj("/Type /Metadata /Subtype /XML ", xmpSample)},
		{3, "<< /Title (Info Title) /Author (Info Author) /Subject (Info Subject) /Producer (Info Producer) >>"},
	}
	return buildPDF(objs, 1, "/Info 3 0 R ")
}

func TestStripXMLTags(t *testing.T) {
	in := `<p>Hello <b>World</b> &amp; <i>Gophers</i></p>`
	out := stripXMLTags(in)
	assert.Equal(t, "Hello World &amp; Gophers", out)
}

func TestParseXMPWithXML(t *testing.T) {
	r := readerFor(t, metadataPDF())

	xmpXML, err := r.readXMP()
	require.NoError(t, err, "readXMP should not error")
	require.NotEmpty(t, xmpXML, "PDF should contain an XMP metadata stream")

	got, ok := parseXMPWithXML(xmpXML)
	require.True(t, ok, "parseXMPWithXML should successfully parse XMP from PDF")

	assert.Equal(t, "Minimal PDF with Metadata", got.Title)
	assert.Equal(t, "UnitTest PDF Generator", got.Producer)
	assert.NotEmpty(t, got.CreateDate)
	assert.NotEmpty(t, got.ModifyDate)
}

func TestParseXMPWithXML_Invalid(t *testing.T) {
	// malformed XML should return ok==false
	xmp := `<xmpmeta><not-closed>`
	_, ok := parseXMPWithXML(xmp)
	assert.False(t, ok)
}

func TestParseXMPFallback(t *testing.T) {
	xmp := `
  <dc:title><rdf:li>Fallback Title</rdf:li></dc:title>
  <dc:creator><rdf:li>Fallback Creator</rdf:li></dc:creator>
  <dc:description><rdf:li>Fallback Subject</rdf:li></dc:description>
  <pdf:Keywords>k1,k2</pdf:Keywords>
  <xmp:CreatorTool>FallbackTool</xmp:CreatorTool>
  <pdf:Producer>FallbackProducer</pdf:Producer>
  <xmp:CreateDate>2021-04-05</xmp:CreateDate>
  <xmp:ModifyDate>2021-04-06</xmp:ModifyDate>
`
	got := parseXMPFallback(xmp)
	assert.Equal(t, "Fallback Title", got.Title)
	assert.Equal(t, "Fallback Creator", got.Creator)
	assert.Equal(t, "Fallback Subject", got.Subject)
	assert.Equal(t, "k1,k2", got.Keywords)
	assert.Equal(t, "FallbackTool", got.CreatorTool)
	assert.Equal(t, "FallbackProducer", got.Producer)
	assert.Equal(t, "2021-04-05", got.CreateDate)
	assert.Equal(t, "2021-04-06", got.ModifyDate)
}

func TestMetadata_XMPOverridesInfo(t *testing.T) {
	r := readerFor(t, metadataPDF())
	md, err := r.Metadata()
	require.NoError(t, err)

	// XMP takes precedence where present; /Info fills the rest.
	assert.Equal(t, "Minimal PDF with Metadata", md.Title)
	assert.Equal(t, "UnitTest PDF Generator", md.Producer)
	assert.Equal(t, "Info Subject", md.Subject)
}

func TestMetadataFull_AndInfo(t *testing.T) {
	r, err := Open(td("pdf_test.pdf"))
	require.NoError(t, err)
	defer r.Close()

	info, err := r.Info()
	require.NoError(t, err)
	assert.Equal(t, "Extraction Fixture", info.Title)
	assert.Equal(t, 3, info.NPages)
	assert.False(t, info.Encrypted)
	assert.True(t, strings.HasPrefix(info.PDFVersion, "1."))
}

func TestHeaderVersion(t *testing.T) {
	blob := []byte("junk\n%PDF-1.7\r\n%xxx\nrest of file")
	r := &Reader{
		f: bytes.NewReader(blob),
	}
	assert.Equal(t, "1.7", r.headerVersion())

	r2 := &Reader{f: bytes.NewReader([]byte("no pdf header here"))}
	assert.Equal(t, "", r2.headerVersion())
}
