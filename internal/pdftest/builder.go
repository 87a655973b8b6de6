// Package pdftest assembles small PDF files for tests. Fixtures are built
// byte-by-byte rather than through the production writer so reader tests are
// not self-referential: they exercise layouts (nested trees, inherited
// attributes, xref streams, object streams) exactly as a foreign producer
// would emit them.
package pdftest

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"sort"
	"strings"
)

// Page describes one fixture page.
type Page struct {
	// MediaBox in PDF array syntax, e.g. "[0 0 300 400]". Empty inherits.
	MediaBox string
	// Rotate in degrees; emitted only when nonzero.
	Rotate int
	// Content is the page's content stream text; empty omits /Contents.
	Content string
}

// Options controls fixture layout.
type Options struct {
	Pages []Page
	// RootMediaBox is set on the page tree root for descendants to inherit.
	RootMediaBox string
	// Nested wraps all pages in one intermediate /Pages node.
	Nested bool
	// Cycle makes the intermediate node's /Kids point back at the root,
	// producing a cyclic page tree. Implies Nested.
	Cycle bool
	// Encrypted adds an /Encrypt entry to the trailer.
	Encrypted bool
	// Outline adds an outline item whose /Dest targets the last page.
	Outline bool
	// Version overrides the header version, e.g. "3.1". Default "1.7".
	Version string
}

// fixture accumulates numbered object bodies and assembles the file.
type fixture struct {
	objs map[int]string
	next int
}

func newFixture() *fixture {
	return &fixture{objs: make(map[int]string), next: 1}
}

func (f *fixture) alloc() int {
	n := f.next
	f.next++
	return n
}

func (f *fixture) put(num int, body string) {
	f.objs[num] = body
}

// assemble emits header, bodies in number order, a classic xref, and the
// trailer.
func (f *fixture) assemble(version string, trailerExtra string) []byte {
	if version == "" {
		version = "1.7"
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%%PDF-%s\n%%\xE2\xE3\xCF\xD3\n", version)

	nums := make([]int, 0, len(f.objs))
	for n := range f.objs {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	offsets := make(map[int]int)
	for _, n := range nums {
		offsets[n] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", n, f.objs[n])
	}

	maxNum := nums[len(nums)-1]
	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", maxNum+1)
	buf.WriteString("0000000000 65535 f \n")
	for n := 1; n <= maxNum; n++ {
		if off, ok := offsets[n]; ok {
			fmt.Fprintf(&buf, "%010d 00000 n \n", off)
		} else {
			buf.WriteString("0000000000 65535 f \n")
		}
	}
	fmt.Fprintf(&buf, "trailer\n<</Size %d /Root 1 0 R%s>>\nstartxref\n%d\n%%%%EOF\n", maxNum+1, trailerExtra, xrefOffset)
	return buf.Bytes()
}

// Build assembles a classic-xref PDF per opts.
func Build(opts Options) []byte {
	f := newFixture()
	catalogNum := f.alloc() // 1
	rootNum := f.alloc()    // 2

	parentNum := rootNum
	var midNum int
	if opts.Nested || opts.Cycle {
		midNum = f.alloc()
		parentNum = midNum
	}

	var pageNums []int
	var pageBodies []string
	for _, p := range opts.Pages {
		num := f.alloc()
		pageNums = append(pageNums, num)

		var sb strings.Builder
		sb.WriteString("<</Type /Page /Parent ")
		fmt.Fprintf(&sb, "%d 0 R", parentNum)
		if p.MediaBox != "" {
			sb.WriteString(" /MediaBox " + p.MediaBox)
		}
		if p.Rotate != 0 {
			fmt.Fprintf(&sb, " /Rotate %d", p.Rotate)
		}
		if p.Content != "" {
			contentNum := f.alloc()
			f.put(contentNum, fmt.Sprintf("<</Length %d>>\nstream\n%s\nendstream", len(p.Content), p.Content))
			fmt.Fprintf(&sb, " /Contents %d 0 R", contentNum)
		}
		sb.WriteString(">>")
		pageBodies = append(pageBodies, sb.String())
	}
	for i, num := range pageNums {
		f.put(num, pageBodies[i])
	}

	kids := make([]string, len(pageNums))
	for i, num := range pageNums {
		kids[i] = fmt.Sprintf("%d 0 R", num)
	}

	rootAttrs := ""
	if opts.RootMediaBox != "" {
		rootAttrs = " /MediaBox " + opts.RootMediaBox
	}

	if midNum != 0 {
		midKids := strings.Join(kids, " ")
		if opts.Cycle {
			midKids = fmt.Sprintf("%s %d 0 R", midKids, rootNum)
		}
		f.put(midNum, fmt.Sprintf("<</Type /Pages /Parent %d 0 R /Kids [%s] /Count %d>>", rootNum, midKids, len(pageNums)))
		f.put(rootNum, fmt.Sprintf("<</Type /Pages /Kids [%d 0 R] /Count %d%s>>", midNum, len(pageNums), rootAttrs))
	} else {
		f.put(rootNum, fmt.Sprintf("<</Type /Pages /Kids [%s] /Count %d%s>>", strings.Join(kids, " "), len(pageNums), rootAttrs))
	}

	catalogBody := fmt.Sprintf("<</Type /Catalog /Pages %d 0 R", rootNum)
	trailerExtra := ""

	if opts.Outline && len(pageNums) > 0 {
		outlinesNum := f.alloc()
		itemNum := f.alloc()
		lastPage := pageNums[len(pageNums)-1]
		f.put(outlinesNum, fmt.Sprintf("<</Type /Outlines /First %d 0 R /Last %d 0 R /Count 1>>", itemNum, itemNum))
		f.put(itemNum, fmt.Sprintf("<</Title (Last page) /Parent %d 0 R /Dest [%d 0 R /Fit]>>", outlinesNum, lastPage))
		catalogBody += fmt.Sprintf(" /Outlines %d 0 R", outlinesNum)
	}
	catalogBody += ">>"
	f.put(catalogNum, catalogBody)

	if opts.Encrypted {
		encNum := f.alloc()
		f.put(encNum, "<</Filter /Standard /V 2 /R 3 /Length 128 /P -44 /O (0000000000000000) /U (0000000000000000)>>")
		trailerExtra = fmt.Sprintf(" /Encrypt %d 0 R", encNum)
	}

	return f.assemble(opts.Version, trailerExtra)
}

// Simple returns an n-page document with a flat tree, a root-level media box
// of US Letter, and a one-line content stream per page.
func Simple(n int) []byte {
	pages := make([]Page, n)
	for i := range pages {
		pages[i] = Page{Content: fmt.Sprintf("BT /F1 12 Tf 72 720 Td (page %d) Tj ET", i)}
	}
	return Build(Options{Pages: pages, RootMediaBox: "[0 0 612 792]"})
}

// BuildXrefStream assembles an n-page document indexed by a cross-reference
// stream (FlateDecode, W [1 4 2]) instead of a classic table.
func BuildXrefStream(n int) []byte {
	type obj struct {
		num  int
		body string
	}
	var objs []obj
	kids := make([]string, n)
	for i := 0; i < n; i++ {
		num := 3 + i
		kids[i] = fmt.Sprintf("%d 0 R", num)
		objs = append(objs, obj{num, "<</Type /Page /Parent 2 0 R /MediaBox [0 0 612 792]>>"})
	}
	objs = append(objs,
		obj{1, "<</Type /Catalog /Pages 2 0 R>>"},
		obj{2, fmt.Sprintf("<</Type /Pages /Kids [%s] /Count %d>>", strings.Join(kids, " "), n)},
	)
	sort.Slice(objs, func(i, j int) bool { return objs[i].num < objs[j].num })

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n%\xE2\xE3\xCF\xD3\n")
	offsets := make(map[int]int)
	for _, o := range objs {
		offsets[o.num] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", o.num, o.body)
	}

	xrefNum := 3 + n
	size := xrefNum + 1
	xrefOffset := buf.Len()

	// Entries for objects 0..xrefNum, W = [1 4 2].
	var data bytes.Buffer
	writeEntry := func(t byte, f2 int, f3 int) {
		data.WriteByte(t)
		data.Write([]byte{byte(f2 >> 24), byte(f2 >> 16), byte(f2 >> 8), byte(f2)})
		data.Write([]byte{byte(f3 >> 8), byte(f3)})
	}
	writeEntry(0, 0, 65535)
	for num := 1; num < xrefNum; num++ {
		writeEntry(1, offsets[num], 0)
	}
	writeEntry(1, xrefOffset, 0) // the xref stream itself

	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	zw.Write(data.Bytes())
	zw.Close()

	fmt.Fprintf(&buf, "%d 0 obj\n<</Type /XRef /Size %d /W [1 4 2] /Root 1 0 R /Filter /FlateDecode /Length %d>>\nstream\n",
		xrefNum, size, compressed.Len())
	buf.Write(compressed.Bytes())
	buf.WriteString("\nendstream\nendobj\n")
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", xrefOffset)
	return buf.Bytes()
}

// BuildObjectStream assembles an n-page document whose catalog, page tree
// root, and page dictionaries live inside a compressed object stream,
// indexed by a cross-reference stream with type-2 entries.
func BuildObjectStream(n int) []byte {
	// Objects 1..n+2 live in the object stream (catalog, pages root, pages);
	// object n+3 is the ObjStm; n+4 is the xref stream.
	kids := make([]string, n)
	for i := 0; i < n; i++ {
		kids[i] = fmt.Sprintf("%d 0 R", 3+i)
	}
	bodies := []string{
		"<</Type /Catalog /Pages 2 0 R>>",
		fmt.Sprintf("<</Type /Pages /Kids [%s] /Count %d /MediaBox [0 0 612 792]>>", strings.Join(kids, " "), n),
	}
	for i := 0; i < n; i++ {
		bodies = append(bodies, "<</Type /Page /Parent 2 0 R>>")
	}

	var header, payload bytes.Buffer
	for i, body := range bodies {
		fmt.Fprintf(&header, "%d %d ", i+1, payload.Len())
		payload.WriteString(body)
		payload.WriteByte(' ')
	}
	first := header.Len()
	header.Write(payload.Bytes())

	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	zw.Write(header.Bytes())
	zw.Close()

	objStmNum := n + 3
	xrefNum := n + 4

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n%\xE2\xE3\xCF\xD3\n")
	objStmOffset := buf.Len()
	fmt.Fprintf(&buf, "%d 0 obj\n<</Type /ObjStm /N %d /First %d /Filter /FlateDecode /Length %d>>\nstream\n",
		objStmNum, len(bodies), first, compressed.Len())
	buf.Write(compressed.Bytes())
	buf.WriteString("\nendstream\nendobj\n")

	xrefOffset := buf.Len()
	var data bytes.Buffer
	writeEntry := func(t byte, f2 int, f3 int) {
		data.WriteByte(t)
		data.Write([]byte{byte(f2 >> 24), byte(f2 >> 16), byte(f2 >> 8), byte(f2)})
		data.Write([]byte{byte(f3 >> 8), byte(f3)})
	}
	writeEntry(0, 0, 65535)
	for i := range bodies {
		writeEntry(2, objStmNum, i)
	}
	writeEntry(1, objStmOffset, 0)
	writeEntry(1, xrefOffset, 0)

	var xrefCompressed bytes.Buffer
	zw = zlib.NewWriter(&xrefCompressed)
	zw.Write(data.Bytes())
	zw.Close()

	fmt.Fprintf(&buf, "%d 0 obj\n<</Type /XRef /Size %d /W [1 4 2] /Root 1 0 R /Filter /FlateDecode /Length %d>>\nstream\n",
		xrefNum, xrefNum+1, xrefCompressed.Len())
	buf.Write(xrefCompressed.Bytes())
	buf.WriteString("\nendstream\nendobj\n")
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", xrefOffset)
	return buf.Bytes()
}
