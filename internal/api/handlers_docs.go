package api

import (
	"bytes"
	_ "embed"
	"net/http"
	"sync"

	"github.com/yuin/goldmark"
)

//go:embed usage.md
var usageMarkdown []byte

var renderDocs = sync.OnceValues(func() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>pageshift</title></head><body>\n")
	if err := goldmark.New().Convert(usageMarkdown, &buf); err != nil {
		return nil, err
	}
	buf.WriteString("</body></html>\n")
	return buf.Bytes(), nil
})

// handleDocs serves the rendered API usage document.
func (s *Server) handleDocs(w http.ResponseWriter, r *http.Request) {
	html, err := renderDocs()
	if err != nil {
		s.log.Error("docs render failed", "error", err)
		jsonError(w, "internal error", "internal", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(html)
}
