// Package pagetree flattens a document's page tree into an ordered page
// sequence with resolved inheritable attributes.
package pagetree

import (
	"github.com/dgallion1/pageshift/internal/pdf"
)

// Page is one logical page: its indirect reference, its own dictionary, and
// its inheritable attributes resolved against the ancestor chain with
// leaf-wins precedence. Attributes are computed at resolution time; the
// original dictionaries are not touched.
type Page struct {
	Ref  pdf.Ref
	Dict *pdf.Dict

	MediaBox  pdf.Rect
	HasCrop   bool
	CropBox   pdf.Rect
	Rotate    int
	Resources pdf.Object // nil when no ancestor or the page itself carries /Resources
}

// inherited carries the attribute values accumulated down one tree path.
type inherited struct {
	mediaBox  *pdf.Rect
	cropBox   *pdf.Rect
	rotate    *int
	resources pdf.Object
}

// Flatten walks the page tree depth-first in /Kids order and returns the
// pages as they appear in the document: the result's index i is page i for
// all downstream offset math. A cycle in the tree fails with a ParseError of
// kind CyclicPageTree instead of recursing forever.
func Flatten(doc *pdf.Document) ([]Page, error) {
	rootRef, _, err := doc.PageTreeRoot()
	if err != nil {
		return nil, err
	}
	visited := make(map[pdf.Ref]bool)
	var pages []Page
	if err := walk(doc, rootRef, inherited{}, visited, &pages); err != nil {
		return nil, err
	}
	return pages, nil
}

func walk(doc *pdf.Document, ref pdf.Ref, inh inherited, visited map[pdf.Ref]bool, out *[]Page) error {
	if visited[ref] {
		return &pdf.ParseError{Kind: pdf.KindCyclicPageTree, Msg: "page tree node " + ref.String() + " appears on its own ancestor path"}
	}
	visited[ref] = true
	defer delete(visited, ref)

	dict, ok := doc.Resolve(ref).(*pdf.Dict)
	if !ok {
		return &pdf.ParseError{Kind: pdf.KindMalformed, Msg: "page tree node " + ref.String() + " is not a dictionary"}
	}

	// Each level may override the inherited attributes for its subtree.
	if mb, ok := pdf.RectFromArray(doc.Resolve(dict.Get("MediaBox")), doc.Resolve); ok {
		inh.mediaBox = &mb
	}
	if cb, ok := pdf.RectFromArray(doc.Resolve(dict.Get("CropBox")), doc.Resolve); ok {
		inh.cropBox = &cb
	}
	if r, ok := pdf.Int(doc.Resolve(dict.Get("Rotate"))); ok {
		rot := normalizeRotation(int(r))
		inh.rotate = &rot
	}
	if res := dict.Get("Resources"); res != nil {
		inh.resources = res
	}

	if isLeafPage(dict) {
		*out = append(*out, resolvePage(ref, dict, inh))
		return nil
	}

	kids, ok := doc.Resolve(dict.Get("Kids")).(pdf.Array)
	if !ok {
		return &pdf.ParseError{Kind: pdf.KindMalformed, Msg: "page tree node " + ref.String() + " has no /Kids and is not a /Page"}
	}
	for _, kid := range kids {
		kidRef, ok := kid.(pdf.Ref)
		if !ok {
			return &pdf.ParseError{Kind: pdf.KindMalformed, Msg: "page tree /Kids entry under " + ref.String() + " is not an indirect reference"}
		}
		if err := walk(doc, kidRef, inh, visited, out); err != nil {
			return err
		}
	}
	return nil
}

// isLeafPage decides whether dict is a page. /Type /Page is authoritative;
// when /Type is absent the presence of /Kids distinguishes intermediate
// nodes, which matches how permissive real-world readers behave.
func isLeafPage(dict *pdf.Dict) bool {
	if t, ok := dict.Get("Type").(pdf.Name); ok {
		return t == "Page"
	}
	return !dict.Has("Kids")
}

func resolvePage(ref pdf.Ref, dict *pdf.Dict, inh inherited) Page {
	p := Page{Ref: ref, Dict: dict, MediaBox: pdf.LetterRect}
	if inh.mediaBox != nil {
		p.MediaBox = *inh.mediaBox
	}
	if inh.cropBox != nil {
		p.HasCrop = true
		p.CropBox = *inh.cropBox
	}
	if inh.rotate != nil {
		p.Rotate = *inh.rotate
	}
	p.Resources = inh.resources
	return p
}

func normalizeRotation(r int) int {
	r %= 360
	if r < 0 {
		r += 360
	}
	// Round nonstandard values down to a quarter turn.
	return (r / 90) * 90
}
