package api

import (
	"github.com/starford/patchwork/internal/journal"
	"github.com/starford/patchwork/internal/patchservice"
)

// ApplyPatchRequest is the request body for applying a patch.
type ApplyPatchRequest struct {
	Path           string `json:"path" example:"src/greet.js" validate:"required"`
	Old            string `json:"old" example:"'hi'" validate:"required"`
	New            string `json:"new" example:"'hello'"`
	Occurrence     string `json:"occurrence,omitempty" example:"unique" enums:"unique,first"`
	ExpectChecksum string `json:"expect_checksum,omitempty" example:"9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"`
	DryRun         bool   `json:"dry_run,omitempty"`
}

// ApplyPatchResponse is returned after a successful apply or dry run.
type ApplyPatchResponse = patchservice.Outcome

// HistoryResponse wraps journal entries.
type HistoryResponse struct {
	Entries []journal.Entry `json:"entries" validate:"required"`
}
