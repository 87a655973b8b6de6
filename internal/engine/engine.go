// Package engine runs the transformation pipeline for a single request:
// parse, flatten, plan, rebuild, serialize, validate. Each run is
// self-contained; a failed run discards its Document and nothing is retried,
// since a rebuild failure can leave the in-memory graph partially mutated.
package engine

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/dgallion1/pageshift/internal/pagetree"
	"github.com/dgallion1/pageshift/internal/pdf"
	"github.com/dgallion1/pageshift/internal/rebuild"
	"github.com/dgallion1/pageshift/internal/shift"
)

// Options configures engine policy.
type Options struct {
	// StripDanglingRefs is the rebuild policy for references to removed
	// pages; see rebuild.Options.
	StripDanglingRefs bool
	// MaxPages rejects documents above this page count before planning.
	// Zero disables the limit.
	MaxPages int
}

// Engine transforms PDF documents. It is stateless across calls and safe
// for concurrent use.
type Engine struct {
	log  *slog.Logger
	opts Options
}

// New returns an engine logging through log.
func New(log *slog.Logger, opts Options) *Engine {
	return &Engine{log: log, opts: opts}
}

// Shift applies an (offset, anchor) page shift to data and returns the
// rewritten document. A positive offset inserts blank pages before anchor;
// a negative offset removes pages starting at anchor; zero is a validated
// no-op rewrite.
func (e *Engine) Shift(ctx context.Context, data []byte, offset, anchor int) ([]byte, error) {
	return e.run(ctx, data, func(n int, blankBox pdf.Rect) (shift.Plan, error) {
		return shift.New(n, offset, anchor, blankBox)
	})
}

// Move relocates the contiguous page range [from, from+count) to start at
// output index to.
func (e *Engine) Move(ctx context.Context, data []byte, from, count, to int) ([]byte, error) {
	return e.run(ctx, data, func(n int, _ pdf.Rect) (shift.Plan, error) {
		return shift.Move(n, from, count, to)
	})
}

func (e *Engine) run(ctx context.Context, data []byte, planFor func(int, pdf.Rect) (shift.Plan, error)) ([]byte, error) {
	doc, err := pdf.Open(data)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pages, err := pagetree.Flatten(doc)
	if err != nil {
		return nil, err
	}
	e.log.Debug("document flattened", "pages", len(pages), "objects", doc.Len())

	if e.opts.MaxPages > 0 && len(pages) > e.opts.MaxPages {
		return nil, &LimitError{Pages: len(pages), Max: e.opts.MaxPages}
	}

	// Blank pages inherit the first page's resolved size; an empty document
	// falls back to US Letter.
	blankBox := pdf.LetterRect
	if len(pages) > 0 {
		blankBox = pages[0].MediaBox
	}

	plan, err := planFor(len(pages), blankBox)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := rebuild.Rebuild(doc, plan, pages, rebuild.Options{StripDanglingRefs: e.opts.StripDanglingRefs}); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := doc.Write()
	if err != nil {
		return nil, err
	}

	if err := e.validate(out, len(plan)); err != nil {
		e.log.Error("post-write validation failed", "error", err, "pages_expected", len(plan))
		return nil, err
	}
	return out, nil
}

// validate re-parses the just-emitted bytes and checks the structural
// invariants the rebuild must uphold. A failure here means an internal bug
// produced an invalid document; it is fatal for the request and is never
// papered over.
func (e *Engine) validate(out []byte, wantPages int) error {
	doc, err := pdf.Open(out)
	if err != nil {
		return &ValidationError{Msg: fmt.Sprintf("emitted document does not re-parse: %v", err)}
	}

	pages, err := pagetree.Flatten(doc)
	if err != nil {
		return &ValidationError{Msg: fmt.Sprintf("emitted page tree does not flatten: %v", err)}
	}
	if len(pages) != wantPages {
		return &ValidationError{Msg: fmt.Sprintf("emitted page count %d, plan has %d", len(pages), wantPages)}
	}

	if err := checkIntegrity(doc); err != nil {
		return err
	}

	// Second opinion from an independent reader.
	reader, err := pdflib.NewReader(bytes.NewReader(out), int64(len(out)))
	if err != nil {
		return &ValidationError{Msg: fmt.Sprintf("independent reader rejects output: %v", err)}
	}
	if got := reader.NumPage(); got != wantPages {
		return &ValidationError{Msg: fmt.Sprintf("independent reader counts %d pages, plan has %d", got, wantPages)}
	}
	return nil
}

// checkIntegrity verifies that every indirect reference in the emitted
// object set resolves, and that no object number is issued twice.
func checkIntegrity(doc *pdf.Document) error {
	seen := make(map[int]bool)
	for _, ref := range doc.Refs() {
		if seen[ref.Num] {
			return &ValidationError{Msg: fmt.Sprintf("object number %d issued twice", ref.Num)}
		}
		seen[ref.Num] = true
	}

	var dangling error
	var visit func(obj pdf.Object)
	visit = func(obj pdf.Object) {
		if dangling != nil {
			return
		}
		switch o := obj.(type) {
		case pdf.Ref:
			if doc.Get(o) == nil {
				dangling = &ValidationError{Msg: fmt.Sprintf("dangling reference %s in emitted document", o)}
			}
		case pdf.Array:
			for _, el := range o {
				visit(el)
			}
		case *pdf.Dict:
			for _, key := range o.Keys() {
				visit(o.Get(key))
			}
		case *pdf.Stream:
			visit(o.Dict)
		}
	}
	for _, ref := range doc.Refs() {
		visit(doc.Get(ref))
	}
	visit(doc.Trailer().Get("Root"))
	return dangling
}
