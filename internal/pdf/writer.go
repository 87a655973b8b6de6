package pdf

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
)

// Write serializes the document as a complete, non-incremental PDF: header,
// every object reachable from the trailer, a freshly built classic xref
// table, and a trailer. Incremental-update chains from the input are never
// carried forward; the output is always a single self-contained revision.
//
// Objects are renumbered densely 1..n in ascending original order before
// emission, so the xref has no free gaps and object numbers never leak
// history from the input document.
func (d *Document) Write() ([]byte, error) {
	if !d.trailer.Has("Root") {
		return nil, writeErrf("trailer has no /Root")
	}

	reachable := d.reachableFromTrailer()
	if len(reachable) == 0 {
		return nil, writeErrf("no objects reachable from trailer")
	}

	// Dense renumbering, stable in original number order.
	ordered := make([]Ref, 0, len(reachable))
	for ref := range reachable {
		ordered = append(ordered, ref)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Num != ordered[j].Num {
			return ordered[i].Num < ordered[j].Num
		}
		return ordered[i].Gen < ordered[j].Gen
	})
	renumber := make(map[Ref]Ref, len(ordered))
	for i, ref := range ordered {
		renumber[ref] = Ref{Num: i + 1}
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n%\xE2\xE3\xCF\xD3\n")

	offsets := make([]int64, len(ordered)+1)
	for _, ref := range ordered {
		newRef := renumber[ref]
		offsets[newRef.Num] = int64(buf.Len())
		fmt.Fprintf(&buf, "%d %d obj\n", newRef.Num, newRef.Gen)
		if err := serializeObject(&buf, d.objects[ref], renumber); err != nil {
			return nil, err
		}
		buf.WriteString("\nendobj\n")
	}

	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(ordered)+1)
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= len(ordered); i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[i])
	}

	trailer := NewDict()
	trailer.Set("Size", Integer(len(ordered)+1))
	trailer.Set("Root", mustRemap(d.trailer.Get("Root"), renumber))
	if info, ok := d.trailer.Get("Info").(Ref); ok {
		if mapped, found := renumber[info]; found {
			trailer.Set("Info", mapped)
		}
	}
	if id, ok := d.trailer.Get("ID").(Array); ok {
		trailer.Set("ID", id)
	}

	buf.WriteString("trailer\n")
	if err := serializeObject(&buf, trailer, nil); err != nil {
		return nil, err
	}
	fmt.Fprintf(&buf, "\nstartxref\n%d\n%%%%EOF\n", xrefOffset)
	return buf.Bytes(), nil
}

func mustRemap(obj Object, renumber map[Ref]Ref) Object {
	ref, ok := obj.(Ref)
	if !ok {
		return obj
	}
	if mapped, found := renumber[ref]; found {
		return mapped
	}
	return obj
}

// reachableFromTrailer walks the graph from the trailer's indirect entries
// (Root, Info) and returns every reachable reference. The visited set guards
// against cycles; the PDF object graph is general, not a tree.
func (d *Document) reachableFromTrailer() map[Ref]bool {
	visited := make(map[Ref]bool)
	var stack []Ref
	push := func(obj Object) {
		if ref, ok := obj.(Ref); ok {
			if _, present := d.objects[ref]; present && !visited[ref] {
				visited[ref] = true
				stack = append(stack, ref)
			}
		}
	}
	push(d.trailer.Get("Root"))
	push(d.trailer.Get("Info"))

	for len(stack) > 0 {
		ref := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		walkRefs(d.objects[ref], push)
	}
	return visited
}

// walkRefs calls visit for every object embedded in obj, depth-first.
func walkRefs(obj Object, visit func(Object)) {
	switch o := obj.(type) {
	case Ref:
		visit(o)
	case Array:
		for _, el := range o {
			walkRefs(el, visit)
		}
	case *Dict:
		for _, key := range o.Keys() {
			walkRefs(o.Get(key), visit)
		}
	case *Stream:
		walkRefs(o.Dict, visit)
	}
}

// serializeObject writes obj in PDF syntax. Indirect references are remapped
// through renumber when one is supplied. Dictionary keys are emitted sorted
// so output is deterministic.
func serializeObject(buf *bytes.Buffer, obj Object, renumber map[Ref]Ref) error {
	switch o := obj.(type) {
	case nil, Null:
		buf.WriteString("null")
	case Bool:
		if o {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case Integer:
		fmt.Fprintf(buf, "%d", int64(o))
	case Real:
		buf.WriteString(strconv.FormatFloat(float64(o), 'f', -1, 64))
	case Name:
		writeName(buf, o)
	case String:
		writeString(buf, o)
	case Ref:
		target := o
		if renumber != nil {
			mapped, found := renumber[o]
			if !found {
				return writeErrf("dangling reference %s survived the rebuild", o)
			}
			target = mapped
		}
		fmt.Fprintf(buf, "%d %d R", target.Num, target.Gen)
	case Array:
		buf.WriteByte('[')
		for i, el := range o {
			if i > 0 {
				buf.WriteByte(' ')
			}
			if err := serializeObject(buf, el, renumber); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case *Dict:
		if err := serializeDict(buf, o, nil, renumber); err != nil {
			return err
		}
	case *Stream:
		// /Length always reflects the actual payload; a stale value from
		// the input must not survive.
		if err := serializeDict(buf, o.Dict, map[Name]Object{"Length": Integer(len(o.Data))}, renumber); err != nil {
			return err
		}
		buf.WriteString("\nstream\n")
		buf.Write(o.Data)
		buf.WriteString("\nendstream")
	default:
		return writeErrf("cannot serialize object of type %T", obj)
	}
	return nil
}

func serializeDict(buf *bytes.Buffer, dict *Dict, overrides map[Name]Object, renumber map[Ref]Ref) error {
	keys := dict.Keys()
	for k := range overrides {
		if !dict.Has(k) {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	buf.WriteString("<<")
	for i, key := range keys {
		if i > 0 {
			buf.WriteByte(' ')
		}
		writeName(buf, key)
		buf.WriteByte(' ')
		val := dict.Get(key)
		if ov, ok := overrides[key]; ok {
			val = ov
		}
		if err := serializeObject(buf, val, renumber); err != nil {
			return err
		}
	}
	buf.WriteString(">>")
	return nil
}

func writeName(buf *bytes.Buffer, name Name) {
	buf.WriteByte('/')
	for i := 0; i < len(name); i++ {
		b := name[i]
		if b <= 0x20 || b >= 0x7F || isDelimiter(b) || b == '#' {
			fmt.Fprintf(buf, "#%02X", b)
			continue
		}
		buf.WriteByte(b)
	}
}

func writeString(buf *bytes.Buffer, s String) {
	buf.WriteByte('(')
	for _, b := range s {
		switch b {
		case '(', ')', '\\':
			buf.WriteByte('\\')
			buf.WriteByte(b)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		default:
			if b < 0x20 || b >= 0x7F {
				fmt.Fprintf(buf, "\\%03o", b)
			} else {
				buf.WriteByte(b)
			}
		}
	}
	buf.WriteByte(')')
}
