package engine_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/pageshift/internal/engine"
	"github.com/dgallion1/pageshift/internal/pagetree"
	"github.com/dgallion1/pageshift/internal/pdf"
	"github.com/dgallion1/pageshift/internal/pdftest"
	"github.com/dgallion1/pageshift/internal/shift"
)

func newEngine(opts engine.Options) *engine.Engine {
	return engine.New(slog.New(slog.NewTextHandler(io.Discard, nil)), opts)
}

// sizedDoc builds an n-page document whose pages carry distinct media box
// widths (100, 200, ...) so page identity survives into the output.
func sizedDoc(t *testing.T, n int) []byte {
	t.Helper()
	pages := make([]pdftest.Page, n)
	for i := range pages {
		pages[i] = pdftest.Page{MediaBox: boxOfWidth((i + 1) * 100)}
	}
	return pdftest.Build(pdftest.Options{Pages: pages})
}

func boxOfWidth(w int) string {
	switch w {
	case 100:
		return "[0 0 100 100]"
	case 200:
		return "[0 0 200 200]"
	case 300:
		return "[0 0 300 300]"
	case 400:
		return "[0 0 400 400]"
	case 500:
		return "[0 0 500 500]"
	}
	return "[0 0 612 792]"
}

func outputWidths(t *testing.T, out []byte) []float64 {
	t.Helper()
	doc, err := pdf.Open(out)
	require.NoError(t, err)
	pages, err := pagetree.Flatten(doc)
	require.NoError(t, err)
	widths := make([]float64, len(pages))
	for i, p := range pages {
		widths[i] = p.MediaBox.Width()
	}
	return widths
}

func TestShiftInsertScenario(t *testing.T) {
	// 3-page input, offset +2, anchor 1: 5 pages out; originals at 0, 3, 4;
	// blanks at 1, 2 sized to match page 0.
	eng := newEngine(engine.Options{StripDanglingRefs: true})
	out, err := eng.Shift(context.Background(), sizedDoc(t, 3), 2, 1)
	require.NoError(t, err)

	assert.Equal(t, []float64{100, 100, 100, 200, 300}, outputWidths(t, out))
}

func TestShiftRemoveScenario(t *testing.T) {
	// 5-page input, offset -2, anchor 1: 3 pages out, originals 0, 3, 4.
	eng := newEngine(engine.Options{StripDanglingRefs: true})
	out, err := eng.Shift(context.Background(), sizedDoc(t, 5), -2, 1)
	require.NoError(t, err)

	assert.Equal(t, []float64{100, 400, 500}, outputWidths(t, out))
}

func TestShiftNoOpRoundTrip(t *testing.T) {
	data := pdftest.Build(pdftest.Options{
		Nested:       true,
		RootMediaBox: "[0 0 300 300]",
		Pages:        []pdftest.Page{{Rotate: 90}, {}, {MediaBox: "[0 0 200 200]"}},
	})

	eng := newEngine(engine.Options{StripDanglingRefs: true})
	out, err := eng.Shift(context.Background(), data, 0, 0)
	require.NoError(t, err)

	doc, err := pdf.Open(out)
	require.NoError(t, err)
	pages, err := pagetree.Flatten(doc)
	require.NoError(t, err)
	require.Len(t, pages, 3)
	assert.Equal(t, 90, pages[0].Rotate)
	assert.Equal(t, pdf.Rect{0, 0, 300, 300}, pages[0].MediaBox)
	assert.Equal(t, pdf.Rect{0, 0, 300, 300}, pages[1].MediaBox)
	assert.Equal(t, pdf.Rect{0, 0, 200, 200}, pages[2].MediaBox)
}

func TestShiftBoundsRejection(t *testing.T) {
	eng := newEngine(engine.Options{StripDanglingRefs: true})
	out, err := eng.Shift(context.Background(), sizedDoc(t, 3), 1, 4)
	assert.Nil(t, out, "no partial output on failure")

	var planErr *shift.Error
	require.ErrorAs(t, err, &planErr)
	assert.Equal(t, shift.AnchorOutOfRange, planErr.Kind)
}

func TestShiftCyclicTreeRejection(t *testing.T) {
	data := pdftest.Build(pdftest.Options{
		Cycle:        true,
		RootMediaBox: "[0 0 612 792]",
		Pages:        []pdftest.Page{{}},
	})
	eng := newEngine(engine.Options{StripDanglingRefs: true})
	_, err := eng.Shift(context.Background(), data, 1, 0)

	var parseErr *pdf.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, pdf.KindCyclicPageTree, parseErr.Kind)
}

func TestShiftEncryptedRejection(t *testing.T) {
	data := pdftest.Build(pdftest.Options{
		Pages:     []pdftest.Page{{MediaBox: "[0 0 612 792]"}},
		Encrypted: true,
	})
	eng := newEngine(engine.Options{StripDanglingRefs: true})
	_, err := eng.Shift(context.Background(), data, 1, 0)

	var parseErr *pdf.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, pdf.KindEncrypted, parseErr.Kind)
}

func TestShiftPageLimit(t *testing.T) {
	eng := newEngine(engine.Options{StripDanglingRefs: true, MaxPages: 2})
	_, err := eng.Shift(context.Background(), sizedDoc(t, 3), 1, 0)

	var limitErr *engine.LimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, 3, limitErr.Pages)
	assert.Equal(t, 2, limitErr.Max)
}

func TestShiftContentSurvives(t *testing.T) {
	eng := newEngine(engine.Options{StripDanglingRefs: true})
	out, err := eng.Shift(context.Background(), pdftest.Simple(2), 1, 0)
	require.NoError(t, err)

	doc, err := pdf.Open(out)
	require.NoError(t, err)
	pages, err := pagetree.Flatten(doc)
	require.NoError(t, err)
	require.Len(t, pages, 3)

	// Pages 1 and 2 are the originals; their content streams are intact.
	for i, wantText := range map[int]string{1: "page 0", 2: "page 1"} {
		stream, ok := doc.Resolve(pages[i].Dict.Get("Contents")).(*pdf.Stream)
		require.True(t, ok, "output page %d", i)
		assert.Contains(t, string(stream.Data), wantText)
	}
}

func TestShiftXrefStreamInput(t *testing.T) {
	eng := newEngine(engine.Options{StripDanglingRefs: true})
	out, err := eng.Shift(context.Background(), pdftest.BuildXrefStream(2), 1, 1)
	require.NoError(t, err)
	assert.Len(t, outputWidths(t, out), 3)
}

func TestShiftObjectStreamInput(t *testing.T) {
	eng := newEngine(engine.Options{StripDanglingRefs: true})
	out, err := eng.Shift(context.Background(), pdftest.BuildObjectStream(3), -1, 0)
	require.NoError(t, err)
	assert.Len(t, outputWidths(t, out), 2)
}

func TestMoveScenario(t *testing.T) {
	eng := newEngine(engine.Options{StripDanglingRefs: true})
	out, err := eng.Move(context.Background(), sizedDoc(t, 5), 0, 2, 2)
	require.NoError(t, err)

	assert.Equal(t, []float64{300, 400, 100, 200, 500}, outputWidths(t, out))
}

func TestMoveBoundsRejection(t *testing.T) {
	eng := newEngine(engine.Options{StripDanglingRefs: true})
	_, err := eng.Move(context.Background(), sizedDoc(t, 3), 2, 2, 0)

	var planErr *shift.Error
	require.ErrorAs(t, err, &planErr)
	assert.Equal(t, shift.MoveOutOfRange, planErr.Kind)
}

func TestShiftCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	eng := newEngine(engine.Options{StripDanglingRefs: true})
	_, err := eng.Shift(ctx, sizedDoc(t, 3), 1, 0)
	require.ErrorIs(t, err, context.Canceled)
}
