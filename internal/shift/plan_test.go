package shift

import (
	"errors"
	"testing"

	"github.com/dgallion1/pageshift/internal/pdf"
)

func pageIndices(t *testing.T, plan Plan) []int {
	t.Helper()
	out := make([]int, len(plan))
	for i, slot := range plan {
		if slot.Kind == InsertedBlank {
			out[i] = -1
			continue
		}
		out[i] = slot.PageIndex
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestNew_InsertBlanks(t *testing.T) {
	// 3 pages, +2 at anchor 1: originals land at output 0, 3, 4.
	plan, err := New(3, 2, 1, pdf.LetterRect)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []int{0, -1, -1, 1, 2}
	if got := pageIndices(t, plan); !equalInts(got, want) {
		t.Fatalf("expected slots %v, got %v", want, got)
	}
	if plan.Blanks() != 2 {
		t.Errorf("expected 2 blanks, got %d", plan.Blanks())
	}
	for _, slot := range plan {
		if slot.Kind == InsertedBlank && slot.MediaBox != pdf.LetterRect {
			t.Errorf("blank slot media box = %v, want %v", slot.MediaBox, pdf.LetterRect)
		}
	}
}

func TestNew_InsertAtEnd(t *testing.T) {
	plan, err := New(2, 1, 2, pdf.LetterRect)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []int{0, 1, -1}
	if got := pageIndices(t, plan); !equalInts(got, want) {
		t.Fatalf("expected slots %v, got %v", want, got)
	}
}

func TestNew_RemovePages(t *testing.T) {
	// 5 pages, -2 at anchor 1: keep 0, 3, 4.
	plan, err := New(5, -2, 1, pdf.LetterRect)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []int{0, 3, 4}
	if got := pageIndices(t, plan); !equalInts(got, want) {
		t.Fatalf("expected slots %v, got %v", want, got)
	}
}

func TestNew_ZeroOffsetIsIdentity(t *testing.T) {
	// Anchor position does not matter for a zero offset; it is still
	// bounds-checked.
	for _, anchor := range []int{0, 1, 3} {
		plan, err := New(3, 0, anchor, pdf.LetterRect)
		if err != nil {
			t.Fatalf("anchor %d: unexpected error: %v", anchor, err)
		}
		if got := pageIndices(t, plan); !equalInts(got, []int{0, 1, 2}) {
			t.Fatalf("anchor %d: expected identity, got %v", anchor, got)
		}
	}
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name     string
		n        int
		offset   int
		anchor   int
		wantKind ErrorKind
	}{
		{"anchor past end", 3, 1, 4, AnchorOutOfRange},
		{"anchor negative", 3, 1, -1, AnchorOutOfRange},
		{"zero offset bad anchor", 3, 0, 4, AnchorOutOfRange},
		{"removal past end", 5, -3, 3, RemovalExceedsBounds},
		{"removal of everything plus one", 2, -3, 0, RemovalExceedsBounds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.n, tt.offset, tt.anchor, pdf.LetterRect)
			var planErr *Error
			if !errors.As(err, &planErr) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if planErr.Kind != tt.wantKind {
				t.Errorf("expected kind %s, got %s", tt.wantKind, planErr.Kind)
			}
			if planErr.Param == "" || planErr.Constraint == "" {
				t.Errorf("error must name parameter and constraint, got %+v", planErr)
			}
		})
	}
}

func TestNew_NegativePageCountIsInternal(t *testing.T) {
	// A negative n comes from a caller bug; it must not surface as a
	// parameter fault the client could "correct".
	_, err := New(-1, 1, 0, pdf.LetterRect)
	if err == nil {
		t.Fatal("expected error")
	}
	var planErr *Error
	if errors.As(err, &planErr) {
		t.Fatalf("negative page count classified as a request fault: %v", err)
	}
}

func TestNew_RemoveAll(t *testing.T) {
	plan, err := New(2, -2, 0, pdf.LetterRect)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan) != 0 {
		t.Fatalf("expected empty plan, got %d slots", len(plan))
	}
}

func TestMove_Forward(t *testing.T) {
	// Move pages 0-1 of five so they start at output index 2.
	plan, err := Move(5, 0, 2, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []int{2, 3, 0, 1, 4}
	if got := pageIndices(t, plan); !equalInts(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestMove_Backward(t *testing.T) {
	plan, err := Move(5, 3, 2, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []int{3, 4, 0, 1, 2}
	if got := pageIndices(t, plan); !equalInts(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestMove_IdentityWhenTargetMatches(t *testing.T) {
	plan, err := Move(4, 1, 2, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := pageIndices(t, plan); !equalInts(got, []int{0, 1, 2, 3}) {
		t.Fatalf("expected identity, got %v", got)
	}
}

func TestMove_Errors(t *testing.T) {
	tests := []struct {
		name              string
		n, from, count, to int
	}{
		{"zero count", 5, 0, 0, 1},
		{"from negative", 5, -1, 2, 0},
		{"range past end", 5, 4, 2, 0},
		{"to past end", 5, 0, 2, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Move(tt.n, tt.from, tt.count, tt.to)
			var planErr *Error
			if !errors.As(err, &planErr) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if planErr.Kind != MoveOutOfRange {
				t.Errorf("expected kind %s, got %s", MoveOutOfRange, planErr.Kind)
			}
		})
	}
}

func TestPlanKept(t *testing.T) {
	plan, err := New(4, -1, 2, pdf.LetterRect)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	kept := plan.Kept()
	for _, i := range []int{0, 1, 3} {
		if !kept[i] {
			t.Errorf("expected page %d kept", i)
		}
	}
	if kept[2] {
		t.Error("expected page 2 removed")
	}
}
