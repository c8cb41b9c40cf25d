package spool

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/patchwork/internal/apperr"
	"github.com/starford/patchwork/internal/patch"
	"github.com/starford/patchwork/internal/patchservice"
	"github.com/starford/patchwork/internal/storage"
	"github.com/starford/patchwork/internal/testutil"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// spoolTestEnv sets up a workspace with greet.js, a separate spool dir and
// a Spool wired to a real patch service.
func spoolTestEnv(t *testing.T) (workspace, spoolDir string, s *Spool) {
	t.Helper()
	workspace, ws := testutil.TestWorkspace(t, map[string]string{
		"greet.js": "function greet() {\n  return 'hi';\n}\n",
	})
	spoolDir = t.TempDir()
	store, err := storage.NewFS(spoolDir)
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	svc := patchservice.NewService(patch.NewEngine(ws), patchservice.WithLogger(logger))
	s = New(svc, store, patch.OccurrenceUnique, logger)
	s.now = func() time.Time { return fixedNow }
	return workspace, spoolDir, s
}

func writeDescriptor(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

const greetDescriptor = "path: greet.js\nold: \"return 'hi';\"\nnew: \"return 'hello';\"\n"

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestDrain_AppliesAndFiles(t *testing.T) {
	workspace, spoolDir, s := spoolTestEnv(t)
	writeDescriptor(t, spoolDir, "greet.yaml", greetDescriptor)

	got, err := s.Drain(context.Background())
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("processed %d descriptors, want 1", len(got))
	}
	if got[0].Error != nil {
		t.Fatalf("unexpected error: %v", got[0].Error)
	}
	wantDest := "applied/20260301T120000-greet.yaml"
	if got[0].Dest != wantDest {
		t.Errorf("dest = %q, want %q", got[0].Dest, wantDest)
	}
	if _, err := os.Stat(filepath.Join(spoolDir, wantDest)); err != nil {
		t.Errorf("descriptor not filed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(spoolDir, "greet.yaml")); !os.IsNotExist(err) {
		t.Error("descriptor still in spool root")
	}
	if content := testutil.ReadFile(t, workspace, "greet.js"); !strings.Contains(content, "return 'hello';") {
		t.Errorf("target not patched: %q", content)
	}
}

func TestDrain_FailureGetsSidecar(t *testing.T) {
	workspace, spoolDir, s := spoolTestEnv(t)
	writeDescriptor(t, spoolDir, "miss.yaml", "path: greet.js\nold: absent\nnew: present\n")

	got, err := s.Drain(context.Background())
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(got) != 1 || !errors.Is(got[0].Error, apperr.ErrBlockNotFound) {
		t.Fatalf("got %+v, want one block_not_found failure", got)
	}
	dest := "failed/20260301T120000-miss.yaml"
	if got[0].Dest != dest {
		t.Errorf("dest = %q, want %q", got[0].Dest, dest)
	}
	sidecar, err := os.ReadFile(filepath.Join(spoolDir, dest+".error"))
	if err != nil {
		t.Fatalf("sidecar missing: %v", err)
	}
	if !strings.Contains(string(sidecar), "greet.js") {
		t.Errorf("sidecar = %q, want the target path", sidecar)
	}
	if content := testutil.ReadFile(t, workspace, "greet.js"); !strings.Contains(content, "return 'hi';") {
		t.Errorf("target changed on failure: %q", content)
	}
}

func TestDrain_InvalidDescriptorFails(t *testing.T) {
	_, spoolDir, s := spoolTestEnv(t)
	writeDescriptor(t, spoolDir, "bad.json", `{"path":"greet.js","old":"","new":"x"}`)

	got, err := s.Drain(context.Background())
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(got) != 1 || !errors.Is(got[0].Error, apperr.ErrInvalidPatch) {
		t.Fatalf("got %+v, want one invalid_patch failure", got)
	}
}

func TestDrain_IgnoresOtherFiles(t *testing.T) {
	_, spoolDir, s := spoolTestEnv(t)
	writeDescriptor(t, spoolDir, "notes.txt", "not a descriptor")

	got, err := s.Drain(context.Background())
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("processed %d files, want 0", len(got))
	}
	if _, err := os.Stat(filepath.Join(spoolDir, "notes.txt")); err != nil {
		t.Error("unrelated file was moved")
	}
}

func TestDrain_OldestFirst(t *testing.T) {
	workspace, spoolDir, s := spoolTestEnv(t)
	// second.yaml only matches once first.yaml has run.
	writeDescriptor(t, spoolDir, "second.yaml", "path: greet.js\nold: \"'hello'\"\nnew: \"'hey'\"\n")
	writeDescriptor(t, spoolDir, "first.yaml", greetDescriptor)
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(filepath.Join(spoolDir, "first.yaml"), old, old); err != nil {
		t.Fatal(err)
	}

	got, err := s.Drain(context.Background())
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(got) != 2 || got[0].Name != "first.yaml" {
		t.Fatalf("got %+v, want first.yaml processed first", got)
	}
	for _, p := range got {
		if p.Error != nil {
			t.Errorf("%s: %v", p.Name, p.Error)
		}
	}
	if content := testutil.ReadFile(t, workspace, "greet.js"); !strings.Contains(content, "return 'hey';") {
		t.Errorf("content = %q", content)
	}
}

func TestWatch_PicksUpNewDescriptor(t *testing.T) {
	workspace, spoolDir, s := spoolTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx, spoolDir, 20*time.Millisecond) }()

	time.Sleep(100 * time.Millisecond)
	writeDescriptor(t, spoolDir, "greet.yaml", greetDescriptor)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		data, err := os.ReadFile(filepath.Join(workspace, "greet.js"))
		return err == nil && strings.Contains(string(data), "'hello'")
	}, "descriptor not applied by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		_, err := os.Stat(filepath.Join(spoolDir, AppliedDir, "20260301T120000-greet.yaml"))
		return err == nil
	}, "descriptor not filed under applied/")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("Watch did not stop after cancel")
	}
}

func TestWatch_DrainsBacklogOnStart(t *testing.T) {
	workspace, spoolDir, s := spoolTestEnv(t)
	writeDescriptor(t, spoolDir, "greet.yaml", greetDescriptor)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Watch(ctx, spoolDir, 0)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		data, err := os.ReadFile(filepath.Join(workspace, "greet.js"))
		return err == nil && strings.Contains(string(data), "'hello'")
	}, "backlog not drained on start")
}

func TestIsDescriptor(t *testing.T) {
	cases := map[string]bool{
		"a.yaml":               true,
		"dir/b.YML":            true,
		"c.json":               true,
		"d.txt":                false,
		".patchwork-tmp-123":   false,
		".hidden.yaml":         false,
		"applied/x.yaml.error": false,
	}
	for name, want := range cases {
		if got := isDescriptor(name); got != want {
			t.Errorf("isDescriptor(%q) = %v, want %v", name, got, want)
		}
	}
}
