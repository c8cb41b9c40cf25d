package patch

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/starford/patchwork/internal/apperr"
	"github.com/starford/patchwork/internal/checksum"
	"github.com/starford/patchwork/internal/storage"
)

// Result describes a successful (or planned) substitution.
type Result struct {
	Path             string     `json:"path"`
	Occurrence       Occurrence `json:"occurrence"`
	OccurrencesFound int        `json:"occurrences_found"`
	Offset           int        `json:"offset"`
	BytesBefore      int        `json:"bytes_before"`
	BytesAfter       int        `json:"bytes_after"`
	ChecksumBefore   string     `json:"checksum_before"`
	ChecksumAfter    string     `json:"checksum_after"`
}

// Plan is the outcome of an apply that has not been persisted.
type Plan struct {
	Result Result
	Before []byte
	After  []byte
}

// Engine applies Specs to files held by a storage.Provider.
//
// Engine does not serialise calls: two concurrent applies on the same path
// race, and the last rename wins. Callers that need more hold a lock per path.
type Engine struct {
	store storage.Provider
}

// NewEngine creates an Engine backed by store.
func NewEngine(store storage.Provider) *Engine {
	return &Engine{store: store}
}

// LockKey returns a key identifying the file path refers to, so that
// different spellings of one file map to one key. Paths that cannot be
// resolved fall back to their cleaned form; the apply itself reports why.
func (e *Engine) LockKey(path string) string {
	if resolved, err := e.store.Resolve(path); err == nil {
		return resolved
	}
	return filepath.Clean(path)
}

// Plan reads the target and computes the patched content without writing.
func (e *Engine) Plan(spec Spec) (*Plan, error) {
	if err := spec.Validate(); err != nil {
		return nil, wrap(spec.Path, err)
	}

	before, err := e.store.Read(spec.Path)
	if err != nil {
		return nil, wrap(spec.Path, err)
	}
	sumBefore := checksum.Sum(before)
	if spec.ExpectChecksum != "" && !checksum.Matches(before, spec.ExpectChecksum) {
		return nil, wrap(spec.Path, fmt.Errorf("%w: have %s, want %s", apperr.ErrChecksumMismatch, sumBefore, spec.ExpectChecksum))
	}

	after, found, offset, err := Substitute(before, []byte(spec.Old), []byte(spec.New), spec.Occurrence)
	if err != nil {
		return nil, wrap(spec.Path, err)
	}

	return &Plan{
		Result: Result{
			Path:             spec.Path,
			Occurrence:       spec.Occurrence,
			OccurrencesFound: found,
			Offset:           offset,
			BytesBefore:      len(before),
			BytesAfter:       len(after),
			ChecksumBefore:   sumBefore,
			ChecksumAfter:    checksum.Sum(after),
		},
		Before: before,
		After:  after,
	}, nil
}

// Apply plans the substitution and persists it with a single atomic write.
// On any error the target is left exactly as it was.
func (e *Engine) Apply(spec Spec) (*Result, error) {
	plan, err := e.Plan(spec)
	if err != nil {
		return nil, err
	}
	if err := e.store.Write(spec.Path, plan.After); err != nil {
		return nil, wrap(spec.Path, fmt.Errorf("%w: %w", apperr.ErrWriteFailed, err))
	}
	return &plan.Result, nil
}

// Substitute replaces one occurrence of oldBlock in content with newBlock.
// Matches are exact and non-overlapping. It returns the new content, the
// number of matches found and the byte offset of the replaced match.
func Substitute(content, oldBlock, newBlock []byte, occ Occurrence) ([]byte, int, int, error) {
	if len(oldBlock) == 0 {
		return nil, 0, 0, apperr.ErrEmptyBlock
	}

	found := bytes.Count(content, oldBlock)
	switch {
	case found == 0:
		return nil, 0, 0, apperr.ErrBlockNotFound
	case occ == OccurrenceUnique && found > 1:
		return nil, found, 0, fmt.Errorf("%w: %d occurrences, exactly one required", apperr.ErrAmbiguousBlock, found)
	case int(occ) > found:
		return nil, found, 0, fmt.Errorf("%w: occurrence %d requested, %d found", apperr.ErrBlockNotFound, occ, found)
	}

	nth := max(int(occ), 1)
	offset := -len(oldBlock)
	for range nth {
		start := offset + len(oldBlock)
		offset = start + bytes.Index(content[start:], oldBlock)
	}

	out := make([]byte, 0, len(content)-len(oldBlock)+len(newBlock))
	out = append(out, content[:offset]...)
	out = append(out, newBlock...)
	out = append(out, content[offset+len(oldBlock):]...)
	return out, found, offset, nil
}
