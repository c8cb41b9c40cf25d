// Package spool turns a directory into a patch inbox: every descriptor file
// dropped into it is applied on its own, then filed under applied/ or failed/.
package spool

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"time"

	"github.com/starford/patchwork/internal/descriptor"
	"github.com/starford/patchwork/internal/patch"
	"github.com/starford/patchwork/internal/patchservice"
	"github.com/starford/patchwork/internal/storage"
)

// Subdirectories descriptors are filed into after processing.
const (
	AppliedDir = "applied"
	FailedDir  = "failed"
)

// Extensions lists the descriptor file extensions the spool picks up.
var Extensions = []string{".yaml", ".yml", ".json"}

// Applier is the subset of patchservice.Service the spool needs.
type Applier interface {
	Apply(ctx context.Context, spec patch.Spec, dryRun bool) (*patchservice.Outcome, error)
}

// Processed reports what happened to one descriptor file.
type Processed struct {
	Name  string
	Dest  string
	Error error
}

// Spool processes descriptor files found in a directory.
type Spool struct {
	applier           Applier
	store             storage.Provider
	defaultOccurrence patch.Occurrence
	logger            *slog.Logger
	now               func() time.Time
}

// New creates a Spool reading descriptors from store's root.
func New(applier Applier, store storage.Provider, defaultOccurrence patch.Occurrence, logger *slog.Logger) *Spool {
	return &Spool{
		applier:           applier,
		store:             store,
		defaultOccurrence: defaultOccurrence,
		logger:            logger,
		now:               time.Now,
	}
}

// Drain processes every descriptor currently in the spool root, oldest first,
// one at a time.
func (s *Spool) Drain(ctx context.Context) ([]Processed, error) {
	files, err := s.store.List("", Extensions...)
	if err != nil {
		return nil, fmt.Errorf("spool: list: %w", err)
	}
	slices.SortStableFunc(files, func(a, b storage.FileInfo) int {
		return a.ModTime.Compare(b.ModTime)
	})

	out := make([]Processed, 0, len(files))
	for _, f := range files {
		out = append(out, s.process(ctx, f.Path))
	}
	return out, nil
}

func (s *Spool) process(ctx context.Context, name string) Processed {
	applyErr := s.apply(ctx, name)

	dir := AppliedDir
	if applyErr != nil {
		dir = FailedDir
	}
	dest := path.Join(dir, s.now().UTC().Format("20060102T150405")+"-"+name)
	p := Processed{Name: name, Dest: dest, Error: applyErr}

	if err := s.store.Move(name, dest); err != nil {
		s.logger.Error("spool: move failed",
			slog.String("file", name),
			slog.String("dest", dest),
			slog.String("error", err.Error()))
		return p
	}
	if applyErr != nil {
		if err := s.store.Write(dest+".error", []byte(applyErr.Error()+"\n")); err != nil {
			s.logger.Warn("spool: write error sidecar failed",
				slog.String("file", name),
				slog.String("error", err.Error()))
		}
		s.logger.Warn("spool: descriptor failed",
			slog.String("file", name),
			slog.String("error", applyErr.Error()))
		return p
	}
	s.logger.Info("spool: descriptor applied", slog.String("file", name))
	return p
}

func (s *Spool) apply(ctx context.Context, name string) error {
	data, err := s.store.Read(name)
	if err != nil {
		return err
	}
	d, err := descriptor.Parse(data)
	if err != nil {
		return err
	}
	spec, err := d.Spec(s.defaultOccurrence)
	if err != nil {
		return err
	}
	_, err = s.applier.Apply(ctx, spec, false)
	return err
}
