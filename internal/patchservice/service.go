// Package patchservice coordinates the patch engine with locking, preview
// rendering, the audit journal and event notification. Every long-running
// surface (HTTP, MCP, spool) applies patches through it.
package patchservice

import (
	"context"
	"log/slog"

	"github.com/starford/patchwork/internal/apperr"
	"github.com/starford/patchwork/internal/journal"
	"github.com/starford/patchwork/internal/patch"
	"github.com/starford/patchwork/internal/preview"
)

// Event kinds passed to an EventCallback.
const (
	EventApplied = "applied"
	EventFailed  = "failed"
	EventPlanned = "planned"
)

// EventCallback is called after every attempt. code is empty on success.
type EventCallback func(kind, path, code string)

// Outcome is the result of a successful Apply call.
type Outcome struct {
	Result patch.Result `json:"result"`
	Diff   string       `json:"diff,omitempty"`
	DryRun bool         `json:"dry_run"`
}

// Service applies patches on behalf of concurrent callers.
type Service struct {
	engine  *patch.Engine
	journal journal.Journal
	logger  *slog.Logger
	onEvent EventCallback
	locks   *pathLocks
}

// Option configures a Service.
type Option func(*Service)

// WithJournal records every attempt in j.
func WithJournal(j journal.Journal) Option {
	return func(s *Service) { s.journal = j }
}

// WithLogger sets the logger; slog.Default() is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithEventCallback registers cb to be told about every attempt.
func WithEventCallback(cb EventCallback) Option {
	return func(s *Service) { s.onEvent = cb }
}

// NewService creates a new patch service around engine.
func NewService(engine *patch.Engine, opts ...Option) *Service {
	s := &Service{
		engine: engine,
		logger: slog.Default(),
		locks:  newPathLocks(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Apply applies spec, or only plans it when dryRun is set. Applies to the
// same path are serialised; different paths proceed concurrently.
func (s *Service) Apply(ctx context.Context, spec patch.Spec, dryRun bool) (*Outcome, error) {
	unlock := s.locks.lock(s.engine.LockKey(spec.Path))
	defer unlock()

	var (
		plan *patch.Plan
		res  *patch.Result
		err  error
	)
	if dryRun {
		plan, err = s.engine.Plan(spec)
		if plan != nil {
			res = &plan.Result
		}
	} else {
		res, err = s.engine.Apply(spec)
	}

	if err != nil {
		s.logger.WarnContext(ctx, "patch failed",
			slog.String("path", spec.Path),
			slog.String("code", apperr.Code(err)),
			slog.String("error", err.Error()))
		s.record(journal.StatusFailed, spec, nil, err)
		s.emit(EventFailed, spec.Path, apperr.Code(err))
		return nil, err
	}

	out := &Outcome{Result: *res, DryRun: dryRun}
	kind, status := EventApplied, journal.StatusApplied
	if dryRun {
		out.Diff = preview.Render(spec.Path, plan.Before, plan.After, preview.DefaultContext)
		kind, status = EventPlanned, journal.StatusPlanned
	}

	s.logger.InfoContext(ctx, "patch "+kind,
		slog.String("path", spec.Path),
		slog.String("occurrence", spec.Occurrence.String()),
		slog.Int("occurrences_found", res.OccurrencesFound),
		slog.Int("bytes_before", res.BytesBefore),
		slog.Int("bytes_after", res.BytesAfter))
	s.record(status, spec, res, nil)
	s.emit(kind, spec.Path, "")
	return out, nil
}

// History returns journal entries, newest first. It returns an empty slice
// when no journal is configured.
func (s *Service) History(_ context.Context, f journal.Filter) ([]journal.Entry, error) {
	if s.journal == nil {
		return []journal.Entry{}, nil
	}
	entries, err := s.journal.List(f)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(entries), nil
}

// record writes the attempt to the journal. Journal failures are logged and
// never change the outcome of the apply.
func (s *Service) record(status string, spec patch.Spec, res *patch.Result, applyErr error) {
	if s.journal == nil {
		return
	}
	e := journal.Entry{
		Path:       spec.Path,
		Occurrence: spec.Occurrence.String(),
		Status:     status,
	}
	if applyErr != nil {
		e.ErrorCode = apperr.Code(applyErr)
		e.ErrorMessage = applyErr.Error()
	}
	if res != nil {
		e.OccurrencesFound = res.OccurrencesFound
		e.BytesBefore = res.BytesBefore
		e.BytesAfter = res.BytesAfter
		e.ChecksumBefore = res.ChecksumBefore
		e.ChecksumAfter = res.ChecksumAfter
	}
	if _, err := s.journal.Record(e); err != nil {
		s.logger.Warn("journal record failed",
			slog.String("path", spec.Path),
			slog.String("error", err.Error()))
	}
}

func (s *Service) emit(kind, path, code string) {
	if s.onEvent != nil {
		s.onEvent(kind, path, code)
	}
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
