package pagetree_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/pageshift/internal/pagetree"
	"github.com/dgallion1/pageshift/internal/pdf"
	"github.com/dgallion1/pageshift/internal/pdftest"
)

func TestFlattenOrderAndCount(t *testing.T) {
	doc, err := pdf.Open(pdftest.Simple(4))
	require.NoError(t, err)

	pages, err := pagetree.Flatten(doc)
	require.NoError(t, err)
	require.Len(t, pages, 4)

	seen := make(map[pdf.Ref]bool)
	for _, p := range pages {
		assert.False(t, seen[p.Ref], "page %s listed twice", p.Ref)
		seen[p.Ref] = true
		require.NotNil(t, p.Dict)
	}
}

func TestFlattenInheritsMediaBox(t *testing.T) {
	data := pdftest.Build(pdftest.Options{
		RootMediaBox: "[0 0 612 792]",
		Pages: []pdftest.Page{
			{}, // inherits
			{MediaBox: "[0 0 300 400]"}, // leaf wins
		},
	})
	doc, err := pdf.Open(data)
	require.NoError(t, err)

	pages, err := pagetree.Flatten(doc)
	require.NoError(t, err)
	require.Len(t, pages, 2)

	assert.Equal(t, pdf.Rect{0, 0, 612, 792}, pages[0].MediaBox)
	assert.Equal(t, pdf.Rect{0, 0, 300, 400}, pages[1].MediaBox)
}

func TestFlattenNestedTree(t *testing.T) {
	data := pdftest.Build(pdftest.Options{
		Nested:       true,
		RootMediaBox: "[0 0 500 500]",
		Pages:        []pdftest.Page{{}, {}, {}},
	})
	doc, err := pdf.Open(data)
	require.NoError(t, err)

	pages, err := pagetree.Flatten(doc)
	require.NoError(t, err)
	require.Len(t, pages, 3)
	// Attributes set on the root cross the intermediate node.
	for _, p := range pages {
		assert.Equal(t, pdf.Rect{0, 0, 500, 500}, p.MediaBox)
	}
}

func TestFlattenRotation(t *testing.T) {
	data := pdftest.Build(pdftest.Options{
		RootMediaBox: "[0 0 612 792]",
		Pages: []pdftest.Page{
			{Rotate: 90},
			{Rotate: -90}, // normalized to 270
			{Rotate: 450}, // normalized to 90
			{},
		},
	})
	doc, err := pdf.Open(data)
	require.NoError(t, err)

	pages, err := pagetree.Flatten(doc)
	require.NoError(t, err)
	require.Len(t, pages, 4)
	assert.Equal(t, 90, pages[0].Rotate)
	assert.Equal(t, 270, pages[1].Rotate)
	assert.Equal(t, 90, pages[2].Rotate)
	assert.Equal(t, 0, pages[3].Rotate)
}

func TestFlattenDefaultsToLetterWithoutMediaBox(t *testing.T) {
	data := pdftest.Build(pdftest.Options{
		Pages: []pdftest.Page{{}},
	})
	doc, err := pdf.Open(data)
	require.NoError(t, err)

	pages, err := pagetree.Flatten(doc)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, pdf.LetterRect, pages[0].MediaBox)
}

func TestFlattenRejectsCycle(t *testing.T) {
	data := pdftest.Build(pdftest.Options{
		Cycle:        true,
		RootMediaBox: "[0 0 612 792]",
		Pages:        []pdftest.Page{{}, {}},
	})
	doc, err := pdf.Open(data)
	require.NoError(t, err)

	_, err = pagetree.Flatten(doc)
	var parseErr *pdf.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, pdf.KindCyclicPageTree, parseErr.Kind)
}

func TestFlattenEmptyTree(t *testing.T) {
	data := pdftest.Build(pdftest.Options{})
	doc, err := pdf.Open(data)
	require.NoError(t, err)

	pages, err := pagetree.Flatten(doc)
	require.NoError(t, err)
	assert.Empty(t, pages)
}
