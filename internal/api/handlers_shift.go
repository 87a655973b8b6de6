package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/dgallion1/pageshift/internal/pipeline"
)

func (s *Server) handleShift(w http.ResponseWriter, r *http.Request) {
	data, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	offset, ok := s.formInt(w, r, "offset")
	if !ok {
		return
	}
	anchor, ok := s.formInt(w, r, "anchor")
	if !ok {
		return
	}
	s.runTransform(w, r, data, pipeline.Request{Offset: offset, Anchor: anchor})
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	data, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	from, ok := s.formInt(w, r, "from")
	if !ok {
		return
	}
	count, ok := s.formInt(w, r, "count")
	if !ok {
		return
	}
	to, ok := s.formInt(w, r, "to")
	if !ok {
		return
	}
	s.runTransform(w, r, data, pipeline.Request{Move: true, From: from, Count: count, To: to})
}

// runTransform runs the pipeline on the uploaded document and writes either
// the rewritten PDF or a mapped error.
func (s *Server) runTransform(w http.ResponseWriter, r *http.Request, data []byte, req pipeline.Request) {
	out, err := s.transformer.Do(r.Context(), data, req)
	if err != nil {
		s.writeTransformError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="shifted.pdf"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(out)))
	w.Write(out)
}

// readUpload extracts the PDF bytes from the multipart "file" field. It must
// run before any form value is read: the size cap has to wrap the body
// before the first parse touches it, or an oversized request gets spooled in
// full. On failure it writes the error response and returns ok=false.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	// Limit total request size; extra 1MB covers multipart overhead.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			jsonError(w, fmt.Sprintf("request exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), "too_large", http.StatusRequestEntityTooLarge)
			return nil, false
		}
		jsonError(w, "invalid multipart form: "+err.Error(), "bad_request", http.StatusBadRequest)
		return nil, false
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), "bad_request", http.StatusBadRequest)
		return nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", "internal", http.StatusInternalServerError)
		return nil, false
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), "too_large", http.StatusRequestEntityTooLarge)
		return nil, false
	}
	return data, true
}

// formInt parses a required integer form value. Missing or non-numeric
// values get a 400 naming the parameter; nothing is defaulted silently.
func (s *Server) formInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	v := r.FormValue(name)
	if v == "" {
		jsonError(w, name+" is required", "bad_request", http.StatusBadRequest)
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		jsonError(w, name+" must be an integer, got "+strconv.Quote(v), "bad_request", http.StatusBadRequest)
		return 0, false
	}
	return n, true
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"transforms": s.transformer.Stats().Snapshot(),
	})
}

func jsonError(w http.ResponseWriter, msg, reason string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg, "reason": reason})
}
