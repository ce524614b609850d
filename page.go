// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package xtract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/sassoftware/pdf-text-xtract/logger"
)

// A Page represents a single page in a PDF file.
// The methods interpret a Page dictionary stored in V.
type Page struct {
	V Value

	// Attributes inherited from ancestor Pages nodes at flatten time.
	mediaBox  Value
	cropBox   Value
	resources Value
	rotate    int
}

// inheritedAttrs carries the inheritable page attributes during the
// depth-first walk of the page tree.
type inheritedAttrs struct {
	mediaBox  Value
	cropBox   Value
	resources Value
	rotate    Value
}

// flattenPages walks the /Pages tree depth-first and returns the dense
// 0-indexed page list with inherited attributes resolved. /Count is
// advisory only; the result holds exactly the /Page leaves encountered.
// A visited set guards against reference cycles in the tree.
func (r *Reader) flattenPages() []Page {
	root := r.Trailer().Key("Root").Key("Pages")
	if root.IsNull() {
		return nil
	}
	var pages []Page
	visited := map[objptr]bool{}
	var walk func(node Value, inh inheritedAttrs)
	walk = func(node Value, inh inheritedAttrs) {
		if node.IsNull() {
			return
		}
		if node.ptr != (objptr{}) {
			if visited[node.ptr] {
				logger.Error(fmt.Sprintf("page tree cycle at %d %d R", node.ptr.id, node.ptr.gen))
				return
			}
			visited[node.ptr] = true
		}
		if v := node.Key("MediaBox"); !v.IsNull() {
			inh.mediaBox = v
		}
		if v := node.Key("CropBox"); !v.IsNull() {
			inh.cropBox = v
		}
		if v := node.Key("Resources"); !v.IsNull() {
			inh.resources = v
		}
		if v := node.Key("Rotate"); !v.IsNull() {
			inh.rotate = v
		}
		switch node.Key("Type").Name() {
		case "Pages":
			kids := node.Key("Kids")
			for i := 0; i < kids.Len(); i++ {
				walk(kids.Index(i), inh)
			}
		case "Page":
			pages = append(pages, Page{
				V:         node,
				mediaBox:  inh.mediaBox,
				cropBox:   inh.cropBox,
				resources: inh.resources,
				rotate:    int(inh.rotate.Int64()),
			})
		}
	}
	walk(root, inheritedAttrs{})
	logger.Debug(fmt.Sprintf("page tree flattened: %d pages", len(pages)), true)
	return pages
}

// NumPage returns the number of pages in the PDF file.
func (r *Reader) NumPage() int {
	return len(r.pages)
}

// Page returns the page for the given page number.
// Page numbers are indexed starting at 1, not 0.
// If the page is not found, Page returns a Page with p.V.IsNull().
func (r *Reader) Page(num int) Page {
	logger.Debug(fmt.Sprintf("Reading Page %d", num), true)
	if num < 1 || num > len(r.pages) {
		return Page{}
	}
	return r.pages[num-1]
}

// MediaBox returns the page's media box, inherited from ancestors when the
// page dictionary itself carries none.
func (p Page) MediaBox() Value {
	return p.mediaBox
}

// CropBox returns the page's crop box, inherited from ancestors.
func (p Page) CropBox() Value {
	return p.cropBox
}

// Rotate returns the page's rotation in degrees, inherited from ancestors.
func (p Page) Rotate() int {
	return p.rotate
}

// Resources returns the resources dictionary associated with the page.
func (p Page) Resources() Value {
	if !p.resources.IsNull() {
		return p.resources
	}
	return p.findInherited("Resources")
}

func (p Page) findInherited(key string) Value {
	seen := map[objptr]bool{}
	for v := p.V; !v.IsNull(); v = v.Key("Parent") {
		if v.ptr != (objptr{}) {
			if seen[v.ptr] {
				return Value{}
			}
			seen[v.ptr] = true
		}
		if r := v.Key(key); !r.IsNull() {
			return r
		}
	}
	return Value{}
}

// Fonts returns a list of the fonts associated with the page.
func (p Page) Fonts() []string {
	return p.Resources().Key("Font").Keys()
}

// Font returns the font with the given name associated with the page.
func (p Page) Font(name string) Font {
	return Font{V: p.Resources().Key("Font").Key(name)}
}

// contents returns the page's content streams in concatenation order.
func (p Page) contents() []Value {
	c := p.V.Key("Contents")
	switch c.Kind() {
	case Stream:
		return []Value{c}
	case Array:
		var out []Value
		for i := 0; i < c.Len(); i++ {
			if s := c.Index(i); s.Kind() == Stream {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// contentReader returns a reader over the concatenation of the page's
// content streams, joined with a single whitespace byte. The PDF
// specification requires the streams to behave as one; concatenation is
// authoritative here even for producers that assume per-stream state resets.
func (p Page) contentReader() io.Reader {
	streams := p.contents()
	if len(streams) == 0 {
		return bytes.NewReader(nil)
	}
	readers := make([]io.Reader, 0, 2*len(streams)-1)
	for i, s := range streams {
		if i > 0 {
			readers = append(readers, bytes.NewReader([]byte{'\n'}))
		}
		readers = append(readers, s.Reader())
	}
	return io.MultiReader(readers...)
}

// GetPlainText returns all the text in the PDF file.
func (r *Reader) GetPlainText() (reader io.Reader, err error) {
	pages := r.NumPage()
	logger.Debug(fmt.Sprintf("total pages = %d", pages), true)
	var buf bytes.Buffer
	fonts := make(map[string]*Font)
	for i := 1; i <= pages; i++ {
		p := r.Page(i)
		for _, name := range p.Fonts() { // cache fonts so we don't continually parse charmap
			if _, ok := fonts[name]; !ok {
				f := p.Font(name)
				fonts[name] = &f
			}
		}
		text, err := p.GetPlainText(fonts)
		if err != nil {
			return &bytes.Buffer{}, err
		}
		buf.WriteString(text)
	}
	logger.Debug("Successfully completed parsing", true)

	return &buf, nil
}

// GetPlainText returns the page's text in content-stream order, without
// positioning. fonts can be passed in (to improve parsing performance) or
// left nil.
func (p Page) GetPlainText(fonts map[string]*Font) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = ""
			logger.Error(fmt.Sprint(r))
			err = errors.New(fmt.Sprint(r))
		}
	}()

	if p.V.IsNull() || p.V.Key("Contents").Kind() == Null {
		return "", nil
	}

	if fonts == nil {
		fonts = make(map[string]*Font)
		for _, font := range p.Fonts() {
			f := p.Font(font)
			fonts[font] = &f
		}
	}

	var textBuilder bytes.Buffer
	var enc TextEncoding = &nopEncoder{}

	showEncodedText := func(s string) {
		textBuilder.WriteString(enc.Decode(s))
	}

	InterpretReader(p.contentReader(), func(stk *Stack, op string) {
		n := stk.Len()
		args := make([]Value, n)
		for i := n - 1; i >= 0; i-- {
			args[i] = stk.Pop()
		}

		switch op {
		default:
			return
		case "BT": // add a break between text objects
			textBuilder.WriteString("\n")
		case "T*": // move to start of next line
			textBuilder.WriteString("\n")
		case "Tf": // set text font and size
			if len(args) != 2 {
				logger.Error("bad Tf")
				panic("bad Tf")
			}
			if font, ok := fonts[args[0].Name()]; ok {
				enc = font.Encoder()
			} else {
				enc = &nopEncoder{}
			}
		case "\"": // set spacing, move to next line, and show text
			if len(args) != 3 {
				logger.Error("bad \" operator")
				panic("bad \" operator")
			}
			args = args[2:]
			fallthrough
		case "'": // move to next line and show text
			if len(args) != 1 {
				logger.Error("bad ' operator")
				panic("bad ' operator")
			}
			textBuilder.WriteString("\n")
			fallthrough
		case "Tj": // show text
			if len(args) != 1 {
				logger.Error("bad Tj operator")
				panic("bad Tj operator")
			}
			showEncodedText(args[0].RawString())
		case "TJ": // show text, allowing individual glyph positioning
			v := args[0]
			for i := 0; i < v.Len(); i++ {
				x := v.Index(i)
				if x.Kind() == String {
					showEncodedText(x.RawString())
				}
			}
		}
	})

	return textBuilder.String(), nil
}

// GetStyledTexts returns all sentences in an array with style information.
func (r *Reader) GetStyledTexts() (sentences []Text, err error) {
	totalPage := r.NumPage()
	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		p := r.Page(pageIndex)

		if p.V.IsNull() || p.V.Key("Contents").Kind() == Null {
			continue
		}
		var lastTextStyle Text
		texts := p.Content().Text
		for _, text := range texts {
			if lastTextStyle == (Text{}) {
				lastTextStyle = text
				continue
			}

			if IsSameSentence(lastTextStyle, text) {
				lastTextStyle.S = lastTextStyle.S + text.S
			} else {
				sentences = append(sentences, lastTextStyle)
				lastTextStyle = text
			}
		}
		if len(lastTextStyle.S) > 0 {
			sentences = append(sentences, lastTextStyle)
		}
	}

	return sentences, err
}

// Column represents the contents of a column
type Column struct {
	Position int64
	Content  TextVertical
}

// Columns is a list of column
type Columns []*Column

// GetTextByColumn returns the page's all text grouped by column
func (p Page) GetTextByColumn() (Columns, error) {
	logger.Debug("retrieving all text grouped by column")

	result := Columns{}
	var err error

	defer func() {
		if r := recover(); r != nil {
			result = Columns{}
			err = errors.New(fmt.Sprint(r))
		}
	}()

	for _, text := range p.Content().Text {
		var currentColumn *Column
		for _, column := range result {
			if int64(text.X) == column.Position {
				currentColumn = column
				break
			}
		}
		if currentColumn == nil {
			currentColumn = &Column{
				Position: int64(text.X),
				Content:  TextVertical{},
			}
			result = append(result, currentColumn)
		}
		currentColumn.Content = append(currentColumn.Content, text)
	}

	for _, column := range result {
		sort.Sort(column.Content)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Position < result[j].Position
	})

	return result, err
}

// Row represents the contents of a row
type Row struct {
	Position int64
	Content  TextHorizontal
}

// Rows is a list of rows
type Rows []*Row

// GetTextByRow returns the page's all text grouped by rows
func (p Page) GetTextByRow() (Rows, error) {
	logger.Debug("retrieving all text grouped by rows")

	result := Rows{}
	var err error

	defer func() {
		if r := recover(); r != nil {
			result = Rows{}
			err = errors.New(fmt.Sprint(r))
		}
	}()

	for _, text := range p.Content().Text {
		var currentRow *Row
		for _, row := range result {
			if int64(text.Y) == row.Position {
				currentRow = row
				break
			}
		}
		if currentRow == nil {
			currentRow = &Row{
				Position: int64(text.Y),
				Content:  TextHorizontal{},
			}
			result = append(result, currentRow)
		}
		currentRow.Content = append(currentRow.Content, text)
	}

	for _, row := range result {
		sort.Sort(row.Content)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Position > result[j].Position
	})

	return result, err
}

// TextVertical implements sort.Interface for sorting
// a slice of Text values in vertical order, top to bottom,
// and then left to right within a line.
type TextVertical []Text

func (x TextVertical) Len() int      { return len(x) }
func (x TextVertical) Swap(i, j int) { x[i], x[j] = x[j], x[i] }
func (x TextVertical) Less(i, j int) bool {
	if x[i].Y != x[j].Y {
		return x[i].Y > x[j].Y
	}
	return x[i].X < x[j].X
}

// TextHorizontal implements sort.Interface for sorting
// a slice of Text values in horizontal order, left to right,
// and then top to bottom within a column.
type TextHorizontal []Text

func (x TextHorizontal) Len() int      { return len(x) }
func (x TextHorizontal) Swap(i, j int) { x[i], x[j] = x[j], x[i] }
func (x TextHorizontal) Less(i, j int) bool {
	if x[i].X != x[j].X {
		return x[i].X < x[j].X
	}
	return x[i].Y > x[j].Y
}

// An Outline is a tree describing the outline (also known as the table of contents)
// of a document.
type Outline struct {
	Title string    // title for this element
	Child []Outline // child elements
}

// Outline returns the document outline.
// The Outline returned is the root of the outline tree and typically has no Title itself.
// That is, the children of the returned root are the top-level entries in the outline.
func (r *Reader) Outline() Outline {
	return buildOutline(r.Trailer().Key("Root").Key("Outlines"), map[objptr]bool{})
}

func buildOutline(entry Value, seen map[objptr]bool) Outline {
	var x Outline
	x.Title = entry.Key("Title").Text()
	for child := entry.Key("First"); child.Kind() == Dict; child = child.Key("Next") {
		if child.ptr != (objptr{}) {
			if seen[child.ptr] {
				break
			}
			seen[child.ptr] = true
		}
		x.Child = append(x.Child, buildOutline(child, seen))
	}
	return x
}
