package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/patchwork/internal/journal"
	"github.com/starford/patchwork/internal/patch"
	"github.com/starford/patchwork/internal/patchservice"
	"github.com/starford/patchwork/internal/storage"
)

// NewLogger returns the JSON logger every command uses. It writes to stderr
// so stdout stays free for command output and the MCP stdio transport.
func NewLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// Stack is a patch service together with the resources it owns.
type Stack struct {
	Store   *storage.FS
	Service *patchservice.Service
	journal *journal.DB
}

// NewStack opens the workspace and, when enabled, the journal, and builds
// the patch service over them. Callers must Close the stack.
func NewStack(cfg *Config, logger *slog.Logger, opts ...patchservice.Option) (*Stack, error) {
	store, err := storage.NewFS(cfg.Workspace.Root)
	if err != nil {
		return nil, fmt.Errorf("init workspace: %w", err)
	}

	st := &Stack{Store: store}
	svcOpts := []patchservice.Option{patchservice.WithLogger(logger)}

	if cfg.Journal.Enabled {
		db, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return nil, fmt.Errorf("init journal: %w", err)
		}
		st.journal = db
		svcOpts = append(svcOpts, patchservice.WithJournal(db))
	}

	st.Service = patchservice.NewService(patch.NewEngine(store), append(svcOpts, opts...)...)
	return st, nil
}

// Close releases the journal, if one was opened.
func (s *Stack) Close() error {
	if s.journal == nil {
		return nil
	}
	return s.journal.Close()
}

// Ready reports whether the workspace root and the journal are usable.
func (s *Stack) Ready(ctx context.Context) error {
	info, err := os.Stat(s.Store.Root())
	if err != nil {
		return fmt.Errorf("workspace: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("workspace: %s is not a directory", s.Store.Root())
	}
	if s.journal != nil {
		if err := s.journal.Ping(ctx); err != nil {
			return fmt.Errorf("journal: %w", err)
		}
	}
	return nil
}
