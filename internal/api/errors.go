package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/dgallion1/pageshift/internal/engine"
	"github.com/dgallion1/pageshift/internal/pdf"
	"github.com/dgallion1/pageshift/internal/pipeline"
	"github.com/dgallion1/pageshift/internal/rebuild"
	"github.com/dgallion1/pageshift/internal/shift"
)

// writeTransformError maps engine failures onto HTTP responses. Input faults
// (unparseable document, out-of-range parameters) are reported with enough
// detail to correct the request; internal faults are logged in full and
// reported generically, leaking no structural detail.
func (s *Server) writeTransformError(w http.ResponseWriter, r *http.Request, err error) {
	var parseErr *pdf.ParseError
	var planErr *shift.Error
	var limitErr *engine.LimitError
	var rebuildErr *rebuild.Error
	var writeErr *pdf.WriteError
	var validationErr *engine.ValidationError

	switch {
	case errors.As(err, &parseErr):
		status := http.StatusBadRequest
		if parseErr.Kind == pdf.KindEncrypted {
			status = http.StatusUnprocessableEntity
		}
		jsonError(w, parseErr.Msg, "parse."+string(parseErr.Kind), status)

	case errors.As(err, &planErr):
		jsonError(w, planErr.Param+" "+planErr.Constraint, "plan."+string(planErr.Kind), http.StatusBadRequest)

	case errors.As(err, &limitErr):
		jsonError(w, limitErr.Error(), "too_many_pages", http.StatusRequestEntityTooLarge)

	case errors.Is(err, pipeline.ErrBusy):
		jsonError(w, "server is at capacity, retry later", "busy", http.StatusServiceUnavailable)

	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// A server-side deadline still has a live client waiting for an
		// answer; when the client itself is gone the write just fails.
		s.log.Debug("request abandoned", "path", r.URL.Path, "error", err)
		jsonError(w, "request cancelled or timed out", "timeout", http.StatusServiceUnavailable)

	case errors.As(err, &rebuildErr), errors.As(err, &writeErr), errors.As(err, &validationErr):
		s.log.Error("transform internal fault", "path", r.URL.Path, "error", err)
		jsonError(w, "internal error", "internal", http.StatusInternalServerError)

	default:
		s.log.Error("transform failed", "path", r.URL.Path, "error", err)
		jsonError(w, "internal error", "internal", http.StatusInternalServerError)
	}
}
