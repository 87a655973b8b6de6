package pdf

import (
	"bytes"
	"fmt"
	"strconv"
)

// headerWindow bounds how far into the file the %PDF- header may sit; some
// producers put a BOM or junk bytes before it.
const headerWindow = 1024

// Open parses data as a complete PDF document and loads its full object
// graph into memory. It handles classic cross-reference tables,
// cross-reference streams, /Prev chains from incremental updates, and
// objects packed into object streams.
//
// Encrypted documents are rejected with a ParseError of kind Encrypted.
func Open(data []byte) (*Document, error) {
	if err := checkHeader(data); err != nil {
		return nil, err
	}

	start, err := findStartXref(data)
	if err != nil {
		return nil, err
	}

	entries, trailer, err := readXrefChain(data, start)
	if err != nil {
		return nil, err
	}

	if trailer.Has("Encrypt") {
		return nil, parseErrf(KindEncrypted, "document has an /Encrypt dictionary; encrypted input is not supported")
	}

	ld := &loader{data: data, entries: entries, objects: make(map[Ref]Object), loading: make(map[int]bool)}
	for num := range entries {
		if _, err := ld.load(num); err != nil {
			return nil, err
		}
	}

	doc := &Document{objects: ld.objects, trailer: trailer, nextNum: 1}
	for ref := range doc.objects {
		if ref.Num >= doc.nextNum {
			doc.nextNum = ref.Num + 1
		}
	}
	if size, ok := Int(trailer.Get("Size")); ok && int(size) > doc.nextNum {
		doc.nextNum = int(size)
	}

	if _, err := doc.Catalog(); err != nil {
		return nil, err
	}
	return doc, nil
}

func checkHeader(data []byte) error {
	window := data
	if len(window) > headerWindow {
		window = window[:headerWindow]
	}
	p := bytes.Index(window, []byte("%PDF-"))
	if p < 0 {
		return parseErrf(KindMalformed, "missing %%PDF- header")
	}
	var major, minor int
	if _, err := fmt.Sscanf(string(window[p:min(p+16, len(window))]), "%%PDF-%d.%d", &major, &minor); err != nil {
		return parseErrf(KindMalformed, "malformed version in header")
	}
	if !((major == 1 && minor >= 0 && minor <= 7) || (major == 2 && minor == 0)) {
		return parseErrf(KindUnsupportedVersion, "PDF version %d.%d is not supported", major, minor)
	}
	return nil
}

func findStartXref(data []byte) (int64, error) {
	idx := bytes.LastIndex(data, []byte("startxref"))
	if idx < 0 {
		return 0, parseErrf(KindMalformed, "startxref keyword not found")
	}
	lx := newLexer(data, idx+len("startxref"))
	lx.skipSpace()
	start := lx.pos
	for lx.pos < len(data) && data[lx.pos] >= '0' && data[lx.pos] <= '9' {
		lx.pos++
	}
	offset, err := strconv.ParseInt(string(data[start:lx.pos]), 10, 64)
	if err != nil {
		return 0, parseErrf(KindMalformed, "unparseable startxref offset")
	}
	if offset <= 0 || offset >= int64(len(data)) {
		return 0, parseErrf(KindMalformed, "startxref offset %d out of range", offset)
	}
	return offset, nil
}

// xrefEntry locates one object: either a byte offset in the file or a slot
// inside an object stream.
type xrefEntry struct {
	inStream  bool
	offset    int64
	gen       int
	streamNum int
	streamIdx int
}

// readXrefChain walks the xref sections from the newest backwards through
// /Prev links, merging entries newest-wins and assembling the trailer the
// same way. Offsets already visited terminate the walk so a malicious /Prev
// loop cannot spin forever.
func readXrefChain(data []byte, start int64) (map[int]xrefEntry, *Dict, error) {
	entries := make(map[int]xrefEntry)
	trailer := NewDict()
	visited := make(map[int64]bool)

	queue := []int64{start}
	for len(queue) > 0 {
		offset := queue[0]
		queue = queue[1:]
		if visited[offset] {
			continue
		}
		visited[offset] = true
		if offset <= 0 || offset >= int64(len(data)) {
			return nil, nil, parseErrf(KindMalformed, "xref offset %d out of range", offset)
		}

		lx := newLexer(data, int(offset))
		var section *Dict
		var err error
		if lx.match("xref") {
			section, err = readClassicXref(lx, entries)
		} else {
			section, err = readXrefStream(data, int(offset), entries)
		}
		if err != nil {
			return nil, nil, err
		}

		for _, key := range section.Keys() {
			if !trailer.Has(key) {
				trailer.Set(key, section.Get(key))
			}
		}
		// Hybrid-reference files point at a parallel xref stream.
		if stm, ok := Int(section.Get("XRefStm")); ok {
			queue = append(queue, stm)
		}
		if prev, ok := Int(section.Get("Prev")); ok {
			queue = append(queue, prev)
		}
	}
	return entries, trailer, nil
}

func readClassicXref(lx *lexer, entries map[int]xrefEntry) (*Dict, error) {
	for {
		if lx.match("trailer") {
			obj, err := lx.parseObject()
			if err != nil {
				return nil, err
			}
			dict, ok := obj.(*Dict)
			if !ok {
				return nil, parseErrf(KindMalformed, "trailer is not a dictionary")
			}
			return dict, nil
		}

		startObj, ok := lx.readInt()
		if !ok {
			return nil, parseErrf(KindMalformed, "bad xref subsection header at offset %d", lx.pos)
		}
		count, ok := lx.readInt()
		if !ok {
			return nil, parseErrf(KindMalformed, "bad xref subsection count at offset %d", lx.pos)
		}
		for i := 0; i < int(count); i++ {
			off, ok := lx.readInt()
			if !ok {
				return nil, parseErrf(KindMalformed, "bad xref entry offset at %d", lx.pos)
			}
			gen, ok := lx.readInt()
			if !ok {
				return nil, parseErrf(KindMalformed, "bad xref entry generation at %d", lx.pos)
			}
			lx.skipSpace()
			if lx.pos >= len(lx.data) {
				return nil, parseErrf(KindMalformed, "truncated xref entry")
			}
			kind := lx.data[lx.pos]
			lx.pos++
			if kind != 'n' && kind != 'f' {
				return nil, parseErrf(KindMalformed, "bad xref entry type %q", kind)
			}
			num := int(startObj) + i
			if kind == 'f' || num == 0 {
				continue
			}
			if _, seen := entries[num]; !seen {
				entries[num] = xrefEntry{offset: off, gen: int(gen)}
			}
		}
	}
}

// readInt reads an unsigned decimal integer token.
func (l *lexer) readInt() (int64, bool) {
	l.skipSpace()
	start := l.pos
	for l.pos < len(l.data) && l.data[l.pos] >= '0' && l.data[l.pos] <= '9' {
		l.pos++
	}
	if l.pos == start {
		return 0, false
	}
	v, err := strconv.ParseInt(string(l.data[start:l.pos]), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// readXrefStream parses a cross-reference stream: an indirect stream object
// with /Type /XRef whose decoded data packs entries as fixed-width fields
// described by /W over the subsections described by /Index.
func readXrefStream(data []byte, offset int, entries map[int]xrefEntry) (*Dict, error) {
	lx := newLexer(data, offset)
	if _, _, err := readObjHeader(lx); err != nil {
		return nil, err
	}
	obj, err := lx.parseObject()
	if err != nil {
		return nil, err
	}
	stream, ok := obj.(*Stream)
	if !ok {
		return nil, parseErrf(KindMalformed, "object at xref offset %d is not a stream", offset)
	}
	if t, _ := stream.Dict.Get("Type").(Name); t != "XRef" {
		return nil, parseErrf(KindMalformed, "stream at xref offset %d has /Type /%s, want /XRef", offset, t)
	}

	// Xref streams must use direct filter entries, so an empty document is
	// enough to drive the decode.
	decoded, err := NewDocument().decodeStream(stream)
	if err != nil {
		return nil, err
	}

	wArr, ok := stream.Dict.Get("W").(Array)
	if !ok || len(wArr) < 3 {
		return nil, parseErrf(KindMalformed, "xref stream /W is missing or too short")
	}
	var w [3]int
	for i := 0; i < 3; i++ {
		v, ok := Int(wArr[i])
		if !ok || v < 0 || v > 8 {
			return nil, parseErrf(KindMalformed, "bad xref stream /W field")
		}
		w[i] = int(v)
	}
	rowLen := w[0] + w[1] + w[2]
	if rowLen == 0 {
		return nil, parseErrf(KindMalformed, "xref stream /W is all zeros")
	}

	size, ok := Int(stream.Dict.Get("Size"))
	if !ok {
		return nil, parseErrf(KindMalformed, "xref stream missing /Size")
	}
	var index []int64
	if idxArr, ok := stream.Dict.Get("Index").(Array); ok {
		for _, el := range idxArr {
			v, ok := Int(el)
			if !ok {
				return nil, parseErrf(KindMalformed, "bad xref stream /Index entry")
			}
			index = append(index, v)
		}
	} else {
		index = []int64{0, size}
	}
	if len(index)%2 != 0 {
		return nil, parseErrf(KindMalformed, "xref stream /Index has odd length")
	}

	pos := 0
	for i := 0; i < len(index); i += 2 {
		first, count := int(index[i]), int(index[i+1])
		for j := 0; j < count; j++ {
			if pos+rowLen > len(decoded) {
				return nil, parseErrf(KindMalformed, "xref stream data truncated")
			}
			f0 := readField(decoded[pos:pos+w[0]], 1) // type defaults to 1 when w[0]==0
			f1 := readField(decoded[pos+w[0]:pos+w[0]+w[1]], 0)
			f2 := readField(decoded[pos+w[0]+w[1]:pos+rowLen], 0)
			pos += rowLen

			num := first + j
			if num == 0 {
				continue
			}
			if _, seen := entries[num]; seen {
				continue
			}
			switch f0 {
			case 0: // free
			case 1:
				entries[num] = xrefEntry{offset: f1, gen: int(f2)}
			case 2:
				entries[num] = xrefEntry{inStream: true, streamNum: int(f1), streamIdx: int(f2)}
			default:
				return nil, parseErrf(KindMalformed, "bad xref stream entry type %d", f0)
			}
		}
	}
	return stream.Dict, nil
}

func readField(b []byte, def int64) int64 {
	if len(b) == 0 {
		return def
	}
	var v int64
	for _, x := range b {
		v = v<<8 | int64(x)
	}
	return v
}

// readObjHeader consumes "<num> <gen> obj" and returns the pair.
func readObjHeader(lx *lexer) (int, int, error) {
	num, ok := lx.readInt()
	if !ok {
		return 0, 0, parseErrf(KindMalformed, "expected object number at offset %d", lx.pos)
	}
	gen, ok := lx.readInt()
	if !ok {
		return 0, 0, parseErrf(KindMalformed, "expected generation number at offset %d", lx.pos)
	}
	if !lx.match("obj") {
		return 0, 0, parseErrf(KindMalformed, "expected obj keyword at offset %d", lx.pos)
	}
	return int(num), int(gen), nil
}

// loader resolves xref entries into parsed objects, memoizing as it goes.
// The loading set breaks reference cycles that route through a stream's
// /Length lookup.
type loader struct {
	data    []byte
	entries map[int]xrefEntry
	objects map[Ref]Object
	loading map[int]bool
}

func (ld *loader) load(num int) (Object, error) {
	entry, ok := ld.entries[num]
	if !ok {
		return Null{}, nil
	}
	ref := Ref{Num: num, Gen: entry.gen}
	if obj, done := ld.objects[ref]; done {
		return obj, nil
	}
	if ld.loading[num] {
		return Null{}, nil
	}
	ld.loading[num] = true
	defer delete(ld.loading, num)

	var obj Object
	var err error
	if entry.inStream {
		obj, err = ld.loadFromObjectStream(entry)
	} else {
		obj, err = ld.loadAtOffset(num, entry)
	}
	if err != nil {
		return nil, err
	}
	ld.objects[ref] = obj
	return obj, nil
}

func (ld *loader) loadAtOffset(num int, entry xrefEntry) (Object, error) {
	if entry.offset <= 0 || entry.offset >= int64(len(ld.data)) {
		return nil, parseErrf(KindMalformed, "object %d offset %d out of range", num, entry.offset)
	}
	lx := newLexer(ld.data, int(entry.offset))
	gotNum, _, err := readObjHeader(lx)
	if err != nil {
		return nil, err
	}
	if gotNum != num {
		return nil, parseErrf(KindMalformed, "object at offset %d has number %d, xref says %d", entry.offset, gotNum, num)
	}
	lx.resolve = func(r Ref) Object {
		obj, err := ld.load(r.Num)
		if err != nil {
			return Null{}
		}
		return obj
	}
	return lx.parseObject()
}

func (ld *loader) loadFromObjectStream(entry xrefEntry) (Object, error) {
	container, err := ld.load(entry.streamNum)
	if err != nil {
		return nil, err
	}
	stream, ok := container.(*Stream)
	if !ok {
		return nil, parseErrf(KindMalformed, "object stream %d is not a stream", entry.streamNum)
	}
	decoded, err := NewDocument().decodeStream(stream)
	if err != nil {
		return nil, err
	}

	n, ok := Int(stream.Dict.Get("N"))
	if !ok {
		return nil, parseErrf(KindMalformed, "object stream %d missing /N", entry.streamNum)
	}
	first, ok := Int(stream.Dict.Get("First"))
	if !ok {
		return nil, parseErrf(KindMalformed, "object stream %d missing /First", entry.streamNum)
	}
	if entry.streamIdx < 0 || entry.streamIdx >= int(n) {
		return nil, parseErrf(KindMalformed, "object stream index %d out of range (N=%d)", entry.streamIdx, n)
	}

	hdr := newLexer(decoded, 0)
	var objOffset int64 = -1
	for i := 0; i < int(n); i++ {
		_, ok1 := hdr.readInt()
		off, ok2 := hdr.readInt()
		if !ok1 || !ok2 {
			return nil, parseErrf(KindMalformed, "object stream %d has a bad header", entry.streamNum)
		}
		if i == entry.streamIdx {
			objOffset = off
		}
	}
	if objOffset < 0 || first+objOffset >= int64(len(decoded)) {
		return nil, parseErrf(KindMalformed, "object stream %d slot %d offset out of range", entry.streamNum, entry.streamIdx)
	}
	lx := newLexer(decoded, int(first+objOffset))
	return lx.parseObject()
}
