package spool

import (
	"context"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits after the last event before
// draining, so half-written descriptors are not picked up.
const DefaultDebounce = 200 * time.Millisecond

// Watch drains the spool once, then watches dir and drains again after each
// burst of descriptor events, until ctx is cancelled. Descriptors are
// processed strictly one at a time on the calling goroutine.
func (s *Spool) Watch(ctx context.Context, dir string, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Only the spool root is watched; applied/ and failed/ are outputs.
	if err := w.Add(dir); err != nil {
		return err
	}

	s.logger.Info("spool: watching", slog.String("dir", dir))
	s.drain(ctx)

	var drainTimer *time.Timer
	var drainCh <-chan time.Time

	scheduleDrain := func() {
		if drainTimer == nil {
			drainTimer = time.NewTimer(debounce)
			drainCh = drainTimer.C
		} else {
			drainTimer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if drainTimer != nil {
				drainTimer.Stop()
			}
			s.logger.Info("spool: stopped")
			return nil

		case <-drainCh:
			s.drain(ctx)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !isDescriptor(ev.Name) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				scheduleDrain()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("spool: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

func (s *Spool) drain(ctx context.Context) {
	if _, err := s.Drain(ctx); err != nil {
		s.logger.Warn("spool: drain failed", slog.String("error", err.Error()))
	}
}

func isDescriptor(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return slices.Contains(Extensions, strings.ToLower(filepath.Ext(base)))
}
