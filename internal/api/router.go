package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/patchwork/internal/patch"
	"github.com/starford/patchwork/internal/patchservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// defaultOccurrence applies to requests that do not name an occurrence.
func NewRouter(svc *patchservice.Service, defaultOccurrence patch.Occurrence, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, defaultOccurrence)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Post("/patches", h.ApplyPatch)
	r.Get("/patches", h.History)
	r.Get("/descriptor-format", h.DescriptorFormat)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
