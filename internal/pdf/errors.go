package pdf

import "fmt"

// ParseErrorKind classifies why a document could not be parsed.
type ParseErrorKind string

const (
	// KindMalformed covers structural damage: bad xref, truncated objects,
	// unparseable syntax.
	KindMalformed ParseErrorKind = "malformed"
	// KindUnsupportedVersion means the header names a PDF version this
	// package does not handle.
	KindUnsupportedVersion ParseErrorKind = "unsupported_version"
	// KindEncrypted means the trailer carries an /Encrypt dictionary.
	// Encrypted documents are rejected, never password-guessed.
	KindEncrypted ParseErrorKind = "encrypted"
	// KindCyclicPageTree means the page tree contains a cycle. Raised by the
	// page tree resolver, defined here so all input faults share one type.
	KindCyclicPageTree ParseErrorKind = "cyclic_page_tree"
)

// ParseError is an input fault: the supplied bytes are not a PDF this
// service can transform. It always reflects a problem with the client's
// document, never an internal bug.
type ParseError struct {
	Kind ParseErrorKind
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("pdf parse (%s): %s", e.Kind, e.Msg)
}

func parseErrf(kind ParseErrorKind, format string, args ...any) *ParseError {
	return &ParseError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// WriteError is an internal fault raised while serializing a document.
type WriteError struct {
	Msg string
}

func (e *WriteError) Error() string {
	return "pdf write: " + e.Msg
}

func writeErrf(format string, args ...any) *WriteError {
	return &WriteError{Msg: fmt.Sprintf(format, args...)}
}
