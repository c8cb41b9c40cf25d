package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/starford/patchwork/internal/apperr"
)

// maxBodyBytes bounds request bodies; patch blocks are source text, not uploads.
const maxBodyBytes = 10 << 20

type errResponse struct {
	Error string `json:"error" validate:"required"`
	Code  string `json:"code,omitempty" example:"block_not_found"`
	Path  string `json:"path,omitempty" example:"src/app.tsx"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

// decodeJSON strictly decodes a single JSON object from the request body.
// Any decoding problem is reported as an invalid patch.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %v: %w", err, apperr.ErrInvalidPatch)
	}
	if dec.More() {
		return fmt.Errorf("invalid JSON body: trailing data: %w", apperr.ErrInvalidPatch)
	}
	return nil
}

// statusFor maps a patch failure onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrInvalidPatch):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrTargetNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrBlockNotFound), errors.Is(err, apperr.ErrAmbiguousBlock):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperr.ErrChecksumMismatch):
		return http.StatusPreconditionFailed
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes a coded error body. Unexpected errors are logged and
// hidden behind a generic message; write failures keep theirs since the
// caller needs to know the target was left untouched.
func writeError(w http.ResponseWriter, path string, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("apply patch failed", slog.String("path", path), slog.String("error", msg))
		if !errors.Is(err, apperr.ErrWriteFailed) {
			msg = "internal error"
		}
	}
	writeJSON(w, status, errResponse{Error: msg, Code: apperr.Code(err), Path: path})
}
