// Package shift computes page-shift plans. Planning is pure: it sees only
// the page count and the request parameters, and produces an ordered slot
// sequence that totally determines the output page order. It never touches
// a document.
package shift

import (
	"fmt"

	"github.com/dgallion1/pageshift/internal/pdf"
)

// SlotKind distinguishes the two things a plan slot can hold.
type SlotKind int

const (
	// ExistingPage carries an input page by original index.
	ExistingPage SlotKind = iota
	// InsertedBlank is a synthesized blank page.
	InsertedBlank
)

// Slot is one output page position.
type Slot struct {
	Kind SlotKind
	// PageIndex is the original page index for ExistingPage slots.
	PageIndex int
	// MediaBox is the page size for InsertedBlank slots.
	MediaBox pdf.Rect
}

// Plan is the ordered output page sequence.
type Plan []Slot

// ErrorKind classifies plan construction failures. All of them are client
// parameter faults.
type ErrorKind string

const (
	AnchorOutOfRange     ErrorKind = "anchor_out_of_range"
	RemovalExceedsBounds ErrorKind = "removal_exceeds_bounds"
	MoveOutOfRange       ErrorKind = "move_out_of_range"
)

// Error reports an invalid (offset, anchor) or move request. Param and
// Constraint name the offending parameter and the violated bound so the
// caller can correct the request.
type Error struct {
	Kind       ErrorKind
	Param      string
	Constraint string
}

func (e *Error) Error() string {
	return fmt.Sprintf("shift plan (%s): %s %s", e.Kind, e.Param, e.Constraint)
}

// New builds the plan for shifting pages in an n-page document.
//
// A positive offset inserts offset blank pages, sized blankBox, immediately
// before the page at anchor. A negative offset removes |offset| pages
// starting at anchor. A zero offset is the identity plan; the anchor is
// still bounds-checked. Anchor is valid on [0, n]: anchor == n addresses the
// end of the document, which only insertion can use.
//
// Out-of-range parameters fail; nothing is clamped.
func New(n, offset, anchor int, blankBox pdf.Rect) (Plan, error) {
	// A negative page count is a caller bug, not a request fault.
	if n < 0 {
		return nil, fmt.Errorf("shift: negative page count %d", n)
	}
	if anchor < 0 || anchor > n {
		return nil, &Error{
			Kind:       AnchorOutOfRange,
			Param:      "anchor",
			Constraint: fmt.Sprintf("must be in [0, %d], got %d", n, anchor),
		}
	}

	switch {
	case offset > 0:
		plan := make(Plan, 0, n+offset)
		for i := 0; i < anchor; i++ {
			plan = append(plan, Slot{Kind: ExistingPage, PageIndex: i})
		}
		for i := 0; i < offset; i++ {
			plan = append(plan, Slot{Kind: InsertedBlank, MediaBox: blankBox})
		}
		for i := anchor; i < n; i++ {
			plan = append(plan, Slot{Kind: ExistingPage, PageIndex: i})
		}
		return plan, nil

	case offset < 0:
		count := -offset
		if anchor+count > n {
			return nil, &Error{
				Kind:       RemovalExceedsBounds,
				Param:      "offset",
				Constraint: fmt.Sprintf("removing %d pages at %d runs past page %d", count, anchor, n-1),
			}
		}
		plan := make(Plan, 0, n-count)
		for i := 0; i < n; i++ {
			if i >= anchor && i < anchor+count {
				continue
			}
			plan = append(plan, Slot{Kind: ExistingPage, PageIndex: i})
		}
		return plan, nil

	default:
		return Identity(n), nil
	}
}

// Move builds a plan that relocates the contiguous range [from, from+count)
// so that it starts at index to in the output. The page count is preserved.
// to addresses a position in the output document, so its valid range is
// [0, n-count].
func Move(n, from, count, to int) (Plan, error) {
	if count <= 0 {
		return nil, &Error{Kind: MoveOutOfRange, Param: "count", Constraint: "must be >= 1"}
	}
	if from < 0 || from+count > n {
		return nil, &Error{
			Kind:       MoveOutOfRange,
			Param:      "from",
			Constraint: fmt.Sprintf("range [%d, %d) must lie within [0, %d)", from, from+count, n),
		}
	}
	if to < 0 || to > n-count {
		return nil, &Error{
			Kind:       MoveOutOfRange,
			Param:      "to",
			Constraint: fmt.Sprintf("must be in [0, %d], got %d", n-count, to),
		}
	}

	rest := make([]int, 0, n-count)
	for i := 0; i < n; i++ {
		if i >= from && i < from+count {
			continue
		}
		rest = append(rest, i)
	}

	plan := make(Plan, 0, n)
	for _, i := range rest[:to] {
		plan = append(plan, Slot{Kind: ExistingPage, PageIndex: i})
	}
	for i := from; i < from+count; i++ {
		plan = append(plan, Slot{Kind: ExistingPage, PageIndex: i})
	}
	for _, i := range rest[to:] {
		plan = append(plan, Slot{Kind: ExistingPage, PageIndex: i})
	}
	return plan, nil
}

// Identity returns the no-op plan for an n-page document.
func Identity(n int) Plan {
	plan := make(Plan, n)
	for i := range plan {
		plan[i] = Slot{Kind: ExistingPage, PageIndex: i}
	}
	return plan
}

// Kept returns the set of original page indices that survive the plan.
func (p Plan) Kept() map[int]bool {
	kept := make(map[int]bool)
	for _, slot := range p {
		if slot.Kind == ExistingPage {
			kept[slot.PageIndex] = true
		}
	}
	return kept
}

// Blanks returns the number of InsertedBlank slots.
func (p Plan) Blanks() int {
	n := 0
	for _, slot := range p {
		if slot.Kind == InsertedBlank {
			n++
		}
	}
	return n
}
