package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/patchwork/internal/apperr"
)

func tempWorkspace(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempWorkspace(t)
	content := []byte("package main\n\nfunc main() {}\n")
	if err := s.Write("main.go", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("main.go")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestReadMissingIsTargetNotFound(t *testing.T) {
	s := tempWorkspace(t)
	_, err := s.Read("nope.txt")
	if !errors.Is(err, apperr.ErrTargetNotFound) {
		t.Errorf("err = %v, want ErrTargetNotFound", err)
	}
}

func TestReadDirectoryIsTargetNotFound(t *testing.T) {
	s := tempWorkspace(t)
	if err := os.Mkdir(filepath.Join(s.root, "src"), 0o755); err != nil {
		t.Fatal(err)
	}
	_, err := s.Read("src")
	if !errors.Is(err, apperr.ErrTargetNotFound) {
		t.Errorf("err = %v, want ErrTargetNotFound", err)
	}
}

func TestAbsolutePathInsideRoot(t *testing.T) {
	s := tempWorkspace(t)
	_ = s.Write("a.txt", []byte("a"))
	got, err := s.Read(filepath.Join(s.root, "a.txt"))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "a" {
		t.Errorf("content = %q", got)
	}
}

func TestWritePreservesMode(t *testing.T) {
	s := tempWorkspace(t)
	abs := filepath.Join(s.root, "run.sh")
	if err := os.WriteFile(abs, []byte("#!/bin/sh\necho hi\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := s.Write("run.sh", []byte("#!/bin/sh\necho hello\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o755 {
		t.Errorf("mode = %v, want 0755", info.Mode().Perm())
	}
}

func TestMove(t *testing.T) {
	s := tempWorkspace(t)
	_ = s.Write("old.yaml", []byte("data"))
	if err := s.Move("old.yaml", "applied/old.yaml"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	got, err := s.Read("applied/old.yaml")
	if err != nil {
		t.Fatalf("Read after move: %v", err)
	}
	if string(got) != "data" {
		t.Errorf("content = %q", got)
	}
	if _, err := s.Read("old.yaml"); err == nil {
		t.Error("old path should not exist")
	}
}

func TestList(t *testing.T) {
	s := tempWorkspace(t)
	_ = s.Write("a.yaml", []byte("a"))
	_ = s.Write("b.JSON", []byte("b"))
	_ = s.Write("sub/c.yaml", []byte("c"))
	_ = s.Write("readme.txt", []byte("not a descriptor"))

	items, err := s.List("", ".yaml", ".json")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("len = %d, want 2: %v", len(items), items)
	}

	all, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("len = %d, want 3", len(all))
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempWorkspace(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.txt",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); !errors.Is(err, apperr.ErrInvalidPatch) {
			t.Errorf("read %q: err = %v, want ErrInvalidPatch", p, err)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteNoLeftovers(t *testing.T) {
	s := tempWorkspace(t)
	_ = s.Write("atomic.txt", []byte("original content"))

	updated := []byte("updated content")
	if err := s.Write("atomic.txt", updated); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.txt")
	if string(got) != string(updated) {
		t.Errorf("expected updated content, got %q", got)
	}

	matches, _ := filepath.Glob(filepath.Join(s.root, ".patchwork-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestInterruptedRenameKeepsOriginal(t *testing.T) {
	s := tempWorkspace(t)
	original := []byte("original content")
	if err := s.Write("atomic.txt", original); err != nil {
		t.Fatal(err)
	}

	renameFile = func(string, string) error { return errors.New("power loss") }
	t.Cleanup(func() { renameFile = os.Rename })

	if err := s.Write("atomic.txt", []byte("half written")); err == nil {
		t.Fatal("expected write error")
	}
	got, err := s.Read("atomic.txt")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(original) {
		t.Errorf("content = %q, want original", got)
	}
	matches, _ := filepath.Glob(filepath.Join(s.root, ".patchwork-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "patchwork-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}

func TestWriteThroughSymlinkKeepsLink(t *testing.T) {
	s := tempWorkspace(t)
	target := filepath.Join(s.root, "real.txt")
	link := filepath.Join(s.root, "link.txt")
	if err := os.WriteFile(target, []byte("a hi b"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("real.txt", link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	got, err := s.Read("link.txt")
	if err != nil || string(got) != "a hi b" {
		t.Fatalf("Read via link = %q, %v", got, err)
	}
	if err := s.Write("link.txt", []byte("a hello b")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, _ := os.ReadFile(target)
	if string(data) != "a hello b" {
		t.Errorf("target target = %q, want it patched", data)
	}
	info, err := os.Lstat(link)
	if err != nil || info.Mode()&os.ModeSymlink == 0 {
		t.Errorf("link.txt is no longer a symlink (err=%v)", err)
	}
	if info, _ := os.Stat(target); info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestSymlinkOutsideRootRejected(t *testing.T) {
	s := tempWorkspace(t)
	outside := filepath.Join(t.TempDir(), "secret.txt")
	if err := os.WriteFile(outside, []byte("keep"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(outside, filepath.Join(s.root, "escape.txt")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	if _, err := s.Read("escape.txt"); !errors.Is(err, apperr.ErrInvalidPatch) {
		t.Errorf("read err = %v, want ErrInvalidPatch", err)
	}
	if err := s.Write("escape.txt", []byte("x")); !errors.Is(err, apperr.ErrInvalidPatch) {
		t.Errorf("write err = %v, want ErrInvalidPatch", err)
	}
	if data, _ := os.ReadFile(outside); string(data) != "keep" {
		t.Errorf("outside file changed: %q", data)
	}
}

func TestResolveSameFile(t *testing.T) {
	s := tempWorkspace(t)
	if err := os.WriteFile(filepath.Join(s.root, "a.txt"), []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("a.txt", filepath.Join(s.root, "alias.txt")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	want, err := s.Resolve("a.txt")
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{"./a.txt", filepath.Join(s.root, "a.txt"), "alias.txt", "sub/../a.txt"} {
		if got, err := s.Resolve(p); err != nil || got != want {
			t.Errorf("Resolve(%q) = %q, %v; want %q", p, got, err, want)
		}
	}
	if got, err := s.Resolve("new/dir/file.txt"); err != nil || got != filepath.Join(s.root, "new", "dir", "file.txt") {
		t.Errorf("Resolve(missing) = %q, %v", got, err)
	}
}
