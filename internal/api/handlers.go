package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/starford/patchwork/internal/checksum"
	"github.com/starford/patchwork/internal/descriptor"
	"github.com/starford/patchwork/internal/journal"
	"github.com/starford/patchwork/internal/patch"
	"github.com/starford/patchwork/internal/patchservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc               *patchservice.Service
	defaultOccurrence patch.Occurrence
}

// NewHandler creates a new Handler.
func NewHandler(svc *patchservice.Service, defaultOccurrence patch.Occurrence) *Handler {
	return &Handler{svc: svc, defaultOccurrence: defaultOccurrence}
}

// ApplyPatch handles POST /api/patches.
//
//	@Summary		Apply (or dry-run) one exact-match patch
//	@Tags			patches
//	@Accept			json
//	@Produce		json
//	@Param			If-Match	header	string				false	"SHA-256 checksum the target must currently have"
//	@Param			body		body	ApplyPatchRequest	true	"Patch to apply"
//	@Success		200		{object}	ApplyPatchResponse
//	@Header			200		{string}	ETag	"SHA-256 of the patched file"
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		412		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/patches [post]
func (h *Handler) ApplyPatch(w http.ResponseWriter, r *http.Request) {
	var req ApplyPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, "", err)
		return
	}

	if req.ExpectChecksum == "" {
		req.ExpectChecksum = checksum.ParseETag(r.Header.Get("If-Match"))
	}

	d := descriptor.Descriptor{
		Path:           req.Path,
		Old:            req.Old,
		New:            req.New,
		Occurrence:     req.Occurrence,
		ExpectChecksum: req.ExpectChecksum,
	}
	spec, err := d.Spec(h.defaultOccurrence)
	if err != nil {
		writeError(w, req.Path, err)
		return
	}

	out, err := h.svc.Apply(r.Context(), spec, req.DryRun)
	if err != nil {
		writeError(w, req.Path, err)
		return
	}
	if !out.DryRun {
		w.Header().Set("ETag", checksum.ETag(out.Result.ChecksumAfter))
	}
	writeJSON(w, http.StatusOK, out)
}

// History handles GET /api/patches.
//
//	@Summary		List recorded patch attempts, newest first
//	@Tags			patches
//	@Produce		json
//	@Param			path	query		string	false	"Only attempts against this path"
//	@Param			limit	query		int		false	"Max entries"
//	@Success		200		{object}	HistoryResponse
//	@Security		BearerAuth
//	@Router			/patches [get]
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	entries, err := h.svc.History(r.Context(), journal.Filter{Path: q.Get("path"), Limit: limit})
	if err != nil {
		slog.Error("history failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Entries: entries})
}

// DescriptorFormat handles GET /api/descriptor-format.
func (h *Handler) DescriptorFormat(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(descriptor.Format))
}
