package pdf

// Document owns a parsed object graph: the object table, the trailer, and a
// counter for allocating fresh object numbers. It is the only mutable view of
// a PDF in this codebase; all components above this package hold Refs and
// resolve them through the Document.
//
// A Document is not safe for concurrent use. Each request parses its own.
type Document struct {
	objects map[Ref]Object
	trailer *Dict
	nextNum int
}

// NewDocument returns an empty document with an empty trailer, used by the
// writer tests and by callers assembling a PDF from scratch.
func NewDocument() *Document {
	return &Document{
		objects: make(map[Ref]Object),
		trailer: NewDict(),
		nextNum: 1,
	}
}

// Trailer returns the trailer dictionary.
func (d *Document) Trailer() *Dict { return d.trailer }

// Get returns the object stored under ref, or nil if absent.
func (d *Document) Get(ref Ref) Object {
	return d.objects[ref]
}

// Put stores obj under ref, replacing any previous object. Object numbers at
// or above ref.Num are never reissued by AllocRef afterwards.
func (d *Document) Put(ref Ref, obj Object) {
	d.objects[ref] = obj
	if ref.Num >= d.nextNum {
		d.nextNum = ref.Num + 1
	}
}

// Delete removes the object stored under ref. The object number is not
// recycled: a stale reference elsewhere in the graph must dangle rather than
// silently alias a new object.
func (d *Document) Delete(ref Ref) {
	delete(d.objects, ref)
}

// AllocRef returns a fresh indirect reference, never reusing a number that
// has appeared in this document.
func (d *Document) AllocRef() Ref {
	ref := Ref{Num: d.nextNum}
	d.nextNum++
	return ref
}

// Len returns the number of objects in the table.
func (d *Document) Len() int { return len(d.objects) }

// Refs returns every allocated reference in unspecified order.
func (d *Document) Refs() []Ref {
	refs := make([]Ref, 0, len(d.objects))
	for ref := range d.objects {
		refs = append(refs, ref)
	}
	return refs
}

// Resolve follows obj through at most one level of indirection: a Ref is
// looked up in the object table (an unknown Ref resolves to Null), anything
// else is returned unchanged. Chained references are followed to a bounded
// depth so a reference loop cannot hang resolution.
func (d *Document) Resolve(obj Object) Object {
	for i := 0; i < 32; i++ {
		ref, ok := obj.(Ref)
		if !ok {
			return obj
		}
		next, found := d.objects[ref]
		if !found {
			return Null{}
		}
		obj = next
	}
	return Null{}
}

// Catalog returns the document catalog (the /Root dictionary).
func (d *Document) Catalog() (*Dict, error) {
	root, ok := d.Resolve(d.trailer.Get("Root")).(*Dict)
	if !ok {
		return nil, parseErrf(KindMalformed, "trailer /Root is missing or not a dictionary")
	}
	return root, nil
}

// PageTreeRoot returns the reference and dictionary of the page tree root.
func (d *Document) PageTreeRoot() (Ref, *Dict, error) {
	catalog, err := d.Catalog()
	if err != nil {
		return Ref{}, nil, err
	}
	ref, ok := catalog.Get("Pages").(Ref)
	if !ok {
		return Ref{}, nil, parseErrf(KindMalformed, "catalog /Pages is missing or not an indirect reference")
	}
	dict, ok := d.Resolve(ref).(*Dict)
	if !ok {
		return Ref{}, nil, parseErrf(KindMalformed, "page tree root %s is not a dictionary", ref)
	}
	return ref, dict, nil
}
