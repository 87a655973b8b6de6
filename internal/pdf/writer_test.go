package pdf_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/pageshift/internal/pdf"
	"github.com/dgallion1/pageshift/internal/pdftest"
)

func TestWriteRoundTrip(t *testing.T) {
	doc, err := pdf.Open(pdftest.Simple(3))
	require.NoError(t, err)

	out, err := doc.Write()
	require.NoError(t, err)

	reopened, err := pdf.Open(out)
	require.NoError(t, err)

	_, root, err := reopened.PageTreeRoot()
	require.NoError(t, err)
	count, ok := pdf.Int(root.Get("Count"))
	require.True(t, ok)
	assert.Equal(t, int64(3), count)
}

func TestWriteRenumbersDensely(t *testing.T) {
	doc, err := pdf.Open(pdftest.Simple(2))
	require.NoError(t, err)

	out, err := doc.Write()
	require.NoError(t, err)

	reopened, err := pdf.Open(out)
	require.NoError(t, err)

	seen := make(map[int]bool)
	maxNum := 0
	for _, ref := range reopened.Refs() {
		assert.False(t, seen[ref.Num], "object number %d issued twice", ref.Num)
		seen[ref.Num] = true
		if ref.Num > maxNum {
			maxNum = ref.Num
		}
		assert.Equal(t, 0, ref.Gen)
	}
	assert.Equal(t, reopened.Len(), maxNum, "numbering must be dense 1..n")
}

func TestWriteDropsUnreachableObjects(t *testing.T) {
	doc, err := pdf.Open(pdftest.Simple(1))
	require.NoError(t, err)
	before := doc.Len()

	orphan := doc.AllocRef()
	orphanDict := pdf.NewDict()
	orphanDict.Set("Unreferenced", pdf.Bool(true))
	doc.Put(orphan, orphanDict)

	out, err := doc.Write()
	require.NoError(t, err)

	reopened, err := pdf.Open(out)
	require.NoError(t, err)
	assert.Equal(t, before, reopened.Len(), "orphan object must not be emitted")
}

func TestWriteCorrectsStreamLength(t *testing.T) {
	doc, err := pdf.Open(pdftest.Simple(1))
	require.NoError(t, err)

	// Attach a stream whose dictionary lies about its length.
	dict := pdf.NewDict()
	dict.Set("Length", pdf.Integer(3))
	ref := doc.AllocRef()
	doc.Put(ref, &pdf.Stream{Dict: dict, Data: []byte("twelve bytes")})
	catalog, err := doc.Catalog()
	require.NoError(t, err)
	catalog.Set("Metadata", ref)

	out, err := doc.Write()
	require.NoError(t, err)

	reopened, err := pdf.Open(out)
	require.NoError(t, err)
	cat, err := reopened.Catalog()
	require.NoError(t, err)
	stream, ok := reopened.Resolve(cat.Get("Metadata")).(*pdf.Stream)
	require.True(t, ok)
	assert.Equal(t, []byte("twelve bytes"), stream.Data)
	length, ok := pdf.Int(stream.Dict.Get("Length"))
	require.True(t, ok)
	assert.Equal(t, int64(12), length)
}

func TestWriteEscapesNamesAndStrings(t *testing.T) {
	doc, err := pdf.Open(pdftest.Simple(1))
	require.NoError(t, err)
	catalog, err := doc.Catalog()
	require.NoError(t, err)
	catalog.Set("Odd Name", pdf.Name("has space"))
	catalog.Set("Title", pdf.String("paren (and) backslash \\ \x01"))

	out, err := doc.Write()
	require.NoError(t, err)

	reopened, err := pdf.Open(out)
	require.NoError(t, err)
	cat, err := reopened.Catalog()
	require.NoError(t, err)
	assert.Equal(t, pdf.Name("has space"), cat.Get("Odd Name"))
	assert.Equal(t, pdf.String("paren (and) backslash \\ \x01"), cat.Get("Title"))
}

func TestWriteFailsWithoutRoot(t *testing.T) {
	doc := pdf.NewDocument()
	_, err := doc.Write()
	var writeErr *pdf.WriteError
	require.ErrorAs(t, err, &writeErr)
}
