package rebuild_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/pageshift/internal/pagetree"
	"github.com/dgallion1/pageshift/internal/pdf"
	"github.com/dgallion1/pageshift/internal/pdftest"
	"github.com/dgallion1/pageshift/internal/rebuild"
	"github.com/dgallion1/pageshift/internal/shift"
)

func openAndFlatten(t *testing.T, data []byte) (*pdf.Document, []pagetree.Page) {
	t.Helper()
	doc, err := pdf.Open(data)
	require.NoError(t, err)
	pages, err := pagetree.Flatten(doc)
	require.NoError(t, err)
	return doc, pages
}

func TestRebuildInsertsBlanks(t *testing.T) {
	doc, pages := openAndFlatten(t, pdftest.Simple(3))
	originalRefs := make([]pdf.Ref, len(pages))
	for i, p := range pages {
		originalRefs[i] = p.Ref
	}

	plan, err := shift.New(len(pages), 2, 1, pages[0].MediaBox)
	require.NoError(t, err)

	err = rebuild.Rebuild(doc, plan, pages, rebuild.Options{StripDanglingRefs: true})
	require.NoError(t, err)

	rootRef, root, err := doc.PageTreeRoot()
	require.NoError(t, err)
	count, ok := pdf.Int(root.Get("Count"))
	require.True(t, ok)
	assert.Equal(t, int64(5), count)

	kids, ok := root.Get("Kids").(pdf.Array)
	require.True(t, ok)
	require.Len(t, kids, 5)

	// Original pages sit at output 0, 3, 4; blanks at 1, 2.
	assert.Equal(t, originalRefs[0], kids[0])
	assert.Equal(t, originalRefs[1], kids[3])
	assert.Equal(t, originalRefs[2], kids[4])

	for _, i := range []int{1, 2} {
		blank, ok := doc.Resolve(kids[i]).(*pdf.Dict)
		require.True(t, ok)
		assert.Equal(t, pdf.Name("Page"), blank.Get("Type"))
		assert.Equal(t, rootRef, blank.Get("Parent"))
		box, ok := pdf.RectFromArray(blank.Get("MediaBox"), doc.Resolve)
		require.True(t, ok)
		assert.Equal(t, pages[0].MediaBox, box)
		assert.False(t, blank.Has("Contents"), "blank pages carry no content stream")
	}
}

func TestRebuildFlattensInheritedAttributes(t *testing.T) {
	data := pdftest.Build(pdftest.Options{
		Nested:       true,
		RootMediaBox: "[0 0 400 500]",
		Pages:        []pdftest.Page{{Rotate: 90}, {}},
	})
	doc, pages := openAndFlatten(t, data)

	err := rebuild.Rebuild(doc, shift.Identity(len(pages)), pages, rebuild.Options{StripDanglingRefs: true})
	require.NoError(t, err)

	rootRef, root, err := doc.PageTreeRoot()
	require.NoError(t, err)
	kids := root.Get("Kids").(pdf.Array)
	require.Len(t, kids, 2)

	// The new tree is flat; each page must carry its attributes itself.
	for i, kid := range kids {
		page, ok := doc.Resolve(kid).(*pdf.Dict)
		require.True(t, ok)
		assert.Equal(t, rootRef, page.Get("Parent"), "page %d", i)
		box, ok := pdf.RectFromArray(page.Get("MediaBox"), doc.Resolve)
		require.True(t, ok)
		assert.Equal(t, pdf.Rect{0, 0, 400, 500}, box, "page %d", i)
	}
	first := doc.Resolve(kids[0]).(*pdf.Dict)
	rot, ok := pdf.Int(first.Get("Rotate"))
	require.True(t, ok)
	assert.Equal(t, int64(90), rot)
}

func TestRebuildStripsDanglingOutlineRefs(t *testing.T) {
	data := pdftest.Build(pdftest.Options{
		RootMediaBox: "[0 0 612 792]",
		Outline:      true,
		Pages:        []pdftest.Page{{}, {}, {}},
	})
	doc, pages := openAndFlatten(t, data)

	// Remove the last page, which the outline item targets.
	plan, err := shift.New(len(pages), -1, 2, pages[0].MediaBox)
	require.NoError(t, err)

	err = rebuild.Rebuild(doc, plan, pages, rebuild.Options{StripDanglingRefs: true})
	require.NoError(t, err)

	catalog, err := doc.Catalog()
	require.NoError(t, err)
	outlines, ok := doc.Resolve(catalog.Get("Outlines")).(*pdf.Dict)
	require.True(t, ok)
	item, ok := doc.Resolve(outlines.Get("First")).(*pdf.Dict)
	require.True(t, ok)

	dest, ok := item.Get("Dest").(pdf.Array)
	require.True(t, ok)
	assert.Equal(t, pdf.Null{}, dest[0], "reference to the removed page must be stripped")
}

func TestRebuildStrictModeFailsOnDanglingRefs(t *testing.T) {
	data := pdftest.Build(pdftest.Options{
		RootMediaBox: "[0 0 612 792]",
		Outline:      true,
		Pages:        []pdftest.Page{{}, {}},
	})
	doc, pages := openAndFlatten(t, data)

	plan, err := shift.New(len(pages), -1, 1, pages[0].MediaBox)
	require.NoError(t, err)

	err = rebuild.Rebuild(doc, plan, pages, rebuild.Options{StripDanglingRefs: false})
	var rebuildErr *rebuild.Error
	require.ErrorAs(t, err, &rebuildErr)
}

func TestRebuildRejectsBadPlanIndex(t *testing.T) {
	doc, pages := openAndFlatten(t, pdftest.Simple(1))
	badPlan := shift.Plan{{Kind: shift.ExistingPage, PageIndex: 7}}

	err := rebuild.Rebuild(doc, badPlan, pages, rebuild.Options{})
	var rebuildErr *rebuild.Error
	require.ErrorAs(t, err, &rebuildErr)
}

func TestRebuildFreshNumbersForNewObjects(t *testing.T) {
	doc, pages := openAndFlatten(t, pdftest.Simple(2))
	maxBefore := 0
	for _, ref := range doc.Refs() {
		if ref.Num > maxBefore {
			maxBefore = ref.Num
		}
	}

	plan, err := shift.New(len(pages), 1, 0, pages[0].MediaBox)
	require.NoError(t, err)
	require.NoError(t, rebuild.Rebuild(doc, plan, pages, rebuild.Options{StripDanglingRefs: true}))

	rootRef, root, err := doc.PageTreeRoot()
	require.NoError(t, err)
	assert.Greater(t, rootRef.Num, maxBefore, "new tree root must get a fresh number")
	blankRef, ok := root.Get("Kids").(pdf.Array)[0].(pdf.Ref)
	require.True(t, ok)
	assert.Greater(t, blankRef.Num, maxBefore, "blank page must get a fresh number")
}
