// Package rebuild reconstructs a document's page tree from a shift plan.
// It is the only component that mutates the object graph.
package rebuild

import (
	"fmt"

	"github.com/dgallion1/pageshift/internal/pagetree"
	"github.com/dgallion1/pageshift/internal/pdf"
	"github.com/dgallion1/pageshift/internal/shift"
)

// Error is an internal fault: a rebuild invariant was violated. It never
// reflects bad client input; by the time Rebuild runs, the plan has been
// validated against the page count.
type Error struct {
	Msg string
}

func (e *Error) Error() string { return "rebuild: " + e.Msg }

func errf(format string, args ...any) *Error {
	return &Error{Msg: fmt.Sprintf(format, args...)}
}

// Options controls rebuild policy.
type Options struct {
	// StripDanglingRefs controls what happens to references elsewhere in
	// the graph (outlines, destinations) that point at a removed page.
	// When true they are stripped: dictionary entries are deleted, array
	// elements are replaced with null. When false any such reference is an
	// error, so the caller learns the document had structure depending on
	// the removed pages.
	StripDanglingRefs bool
}

// Rebuild rewrites doc's page tree to realize plan. The new tree is a single
// flat /Pages node: every retained page gets its resolved inheritable
// attributes written into its own dictionary first, since the flat tree no
// longer provides the original ancestor chain to inherit from. Blank pages
// and the new root get freshly allocated object numbers; numbers from
// removed pages are never reused.
//
// On error the document may be partially mutated and must be discarded.
func Rebuild(doc *pdf.Document, plan shift.Plan, pages []pagetree.Page, opts Options) error {
	for _, slot := range plan {
		if slot.Kind == shift.ExistingPage && (slot.PageIndex < 0 || slot.PageIndex >= len(pages)) {
			return errf("plan references page %d of %d", slot.PageIndex, len(pages))
		}
	}

	catalog, err := doc.Catalog()
	if err != nil {
		return errf("no catalog: %v", err)
	}

	rootRef := doc.AllocRef()
	kids := make(pdf.Array, 0, len(plan))

	for _, slot := range plan {
		switch slot.Kind {
		case shift.ExistingPage:
			page := pages[slot.PageIndex]
			flattenInherited(page)
			page.Dict.Set("Parent", rootRef)
			kids = append(kids, page.Ref)
		case shift.InsertedBlank:
			ref := doc.AllocRef()
			doc.Put(ref, blankPage(slot.MediaBox, rootRef))
			kids = append(kids, ref)
		default:
			return errf("unknown slot kind %d", slot.Kind)
		}
	}

	root := pdf.NewDict()
	root.Set("Type", pdf.Name("Pages"))
	root.Set("Kids", kids)
	root.Set("Count", pdf.Integer(len(plan)))
	doc.Put(rootRef, root)
	catalog.Set("Pages", rootRef)

	removed := removedPages(plan, pages)
	if len(removed) == 0 {
		return nil
	}
	return scrubDanglingRefs(doc, removed, opts.StripDanglingRefs)
}

// flattenInherited writes the page's resolved inheritable attributes into
// its own dictionary. Leaf values already present are overwritten with the
// identical resolved value, which is harmless.
func flattenInherited(page pagetree.Page) {
	page.Dict.Set("Type", pdf.Name("Page"))
	page.Dict.Set("MediaBox", page.MediaBox.ToArray())
	if page.HasCrop {
		page.Dict.Set("CropBox", page.CropBox.ToArray())
	}
	if page.Rotate != 0 || page.Dict.Has("Rotate") {
		page.Dict.Set("Rotate", pdf.Integer(page.Rotate))
	}
	if page.Resources != nil {
		page.Dict.Set("Resources", page.Resources)
	}
}

func blankPage(mediaBox pdf.Rect, parent pdf.Ref) *pdf.Dict {
	dict := pdf.NewDict()
	dict.Set("Type", pdf.Name("Page"))
	dict.Set("Parent", parent)
	dict.Set("MediaBox", mediaBox.ToArray())
	return dict
}

func removedPages(plan shift.Plan, pages []pagetree.Page) map[pdf.Ref]bool {
	kept := plan.Kept()
	removed := make(map[pdf.Ref]bool)
	for i, page := range pages {
		if !kept[i] {
			removed[page.Ref] = true
		}
	}
	return removed
}

// scrubDanglingRefs walks the graph reachable from the trailer and handles
// references into removed. PDF viewers tolerate a missing optional feature
// (an outline entry with no destination) far better than a reference that
// resolves to nothing, so stripping is the default policy.
func scrubDanglingRefs(doc *pdf.Document, removed map[pdf.Ref]bool, strip bool) error {
	visited := make(map[pdf.Ref]bool)
	var visit func(obj pdf.Object) error
	visit = func(obj pdf.Object) error {
		switch o := obj.(type) {
		case pdf.Ref:
			if removed[o] || visited[o] {
				return nil
			}
			visited[o] = true
			return visit(doc.Get(o))
		case pdf.Array:
			for i, el := range o {
				if ref, ok := el.(pdf.Ref); ok && removed[ref] {
					if !strip {
						return errf("reference to removed page %s survives in an array", ref)
					}
					o[i] = pdf.Null{}
					continue
				}
				if err := visit(el); err != nil {
					return err
				}
			}
		case *pdf.Dict:
			for _, key := range o.Keys() {
				val := o.Get(key)
				if ref, ok := val.(pdf.Ref); ok && removed[ref] {
					if !strip {
						return errf("reference to removed page %s survives under /%s", ref, key)
					}
					o.Delete(key)
					continue
				}
				if err := visit(val); err != nil {
					return err
				}
			}
		case *pdf.Stream:
			return visit(o.Dict)
		}
		return nil
	}

	if err := visit(doc.Trailer().Get("Root")); err != nil {
		return err
	}
	return visit(doc.Trailer().Get("Info"))
}
