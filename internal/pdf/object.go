// Package pdf implements the document model for PDF files: a reader for the
// cross-reference and object structure, an in-memory object graph, and a
// writer that emits a complete document with a fresh xref.
//
// A PDF is a graph of objects. Every object has one of a small set of kinds:
// null, boolean, integer, real, name, string, array, dictionary, or stream.
// Objects reference each other through indirect references, stable
// (number, generation) pairs, which is what allows sharing (a single resource
// dictionary used by many pages). This package exposes that structure as Go
// values and keeps all graph mutation behind the Document type.
//
// Content streams are carried as opaque bytes: the package never decodes or
// re-encodes page content, only the structural objects around it.
package pdf

import "fmt"

// Ref identifies an indirect object by number and generation.
type Ref struct {
	Num int
	Gen int
}

func (r Ref) String() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

// Object is a PDF object of any kind.
type Object interface {
	isObject()
}

// Null is the PDF null object.
type Null struct{}

// Bool is a PDF boolean.
type Bool bool

// Integer is a PDF integer.
type Integer int64

// Real is a PDF real number.
type Real float64

// Name is a PDF name constant, stored without the leading slash.
type Name string

// String is a PDF string; PDF strings are byte strings, not text.
type String []byte

// Array is a PDF array.
type Array []Object

// Dict is a PDF dictionary. The zero value is not usable; use NewDict.
type Dict struct {
	kv map[Name]Object
}

// Stream is a stream object: a dictionary plus raw (still encoded) data.
type Stream struct {
	Dict *Dict
	Data []byte
}

func (Null) isObject()    {}
func (Bool) isObject()    {}
func (Integer) isObject() {}
func (Real) isObject()    {}
func (Name) isObject()    {}
func (String) isObject()  {}
func (Array) isObject()   {}
func (*Dict) isObject()   {}
func (*Stream) isObject() {}
func (Ref) isObject()     {}

// NewDict returns an empty dictionary.
func NewDict() *Dict {
	return &Dict{kv: make(map[Name]Object)}
}

// Get returns the value for key, or nil if absent.
func (d *Dict) Get(key Name) Object {
	if d == nil || d.kv == nil {
		return nil
	}
	return d.kv[key]
}

// Has reports whether key is present.
func (d *Dict) Has(key Name) bool {
	if d == nil || d.kv == nil {
		return false
	}
	_, ok := d.kv[key]
	return ok
}

// Set stores value under key, replacing any previous value.
func (d *Dict) Set(key Name, value Object) {
	if d.kv == nil {
		d.kv = make(map[Name]Object)
	}
	d.kv[key] = value
}

// Delete removes key from the dictionary.
func (d *Dict) Delete(key Name) {
	delete(d.kv, key)
}

// Keys returns the dictionary keys in unspecified order.
func (d *Dict) Keys() []Name {
	if d == nil {
		return nil
	}
	keys := make([]Name, 0, len(d.kv))
	for k := range d.kv {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of entries.
func (d *Dict) Len() int {
	if d == nil {
		return 0
	}
	return len(d.kv)
}

// Clone returns a shallow copy of the dictionary.
func (d *Dict) Clone() *Dict {
	c := NewDict()
	for k, v := range d.kv {
		c.kv[k] = v
	}
	return c
}

// Int returns the value of an Integer object, or ok=false for any other kind.
func Int(obj Object) (int64, bool) {
	n, ok := obj.(Integer)
	return int64(n), ok
}

// Num returns the numeric value of an Integer or Real object.
func Num(obj Object) (float64, bool) {
	switch n := obj.(type) {
	case Integer:
		return float64(n), true
	case Real:
		return float64(n), true
	}
	return 0, false
}

// Rect is an axis-aligned rectangle in default user space, as stored in
// /MediaBox and /CropBox entries: [llx lly urx ury].
type Rect [4]float64

// LetterRect is the fallback page size (US Letter, 612x792 points) used when
// a document provides no media box to inherit.
var LetterRect = Rect{0, 0, 612, 792}

// RectFromArray interprets obj as a rectangle array, resolving numeric
// elements. Returns ok=false if obj is not a 4-element numeric array.
func RectFromArray(obj Object, resolve func(Object) Object) (Rect, bool) {
	arr, ok := obj.(Array)
	if !ok || len(arr) != 4 {
		return Rect{}, false
	}
	var r Rect
	for i, el := range arr {
		if resolve != nil {
			el = resolve(el)
		}
		v, ok := Num(el)
		if !ok {
			return Rect{}, false
		}
		r[i] = v
	}
	return r, true
}

// ToArray converts the rectangle back into a PDF array.
func (r Rect) ToArray() Array {
	arr := make(Array, 4)
	for i, v := range r {
		if v == float64(int64(v)) {
			arr[i] = Integer(int64(v))
		} else {
			arr[i] = Real(v)
		}
	}
	return arr
}

// Width returns the rectangle width.
func (r Rect) Width() float64 { return r[2] - r[0] }

// Height returns the rectangle height.
func (r Rect) Height() float64 { return r[3] - r[1] }
