package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/starford/patchwork/internal/apperr"
)

// renameFile is swapped out in tests to simulate an interrupted replace.
var renameFile = os.Rename

const tempPattern = ".patchwork-tmp-*"

// FS implements Provider backed by the local file system.
type FS struct {
	root  string // absolute workspace root, symlinks resolved
	alias string // absolute workspace root as configured
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: resolved, alias: abs}, nil
}

// Root returns the absolute workspace root.
func (f *FS) Root() string {
	return f.root
}

func within(root, p string) bool {
	return p == root || strings.HasPrefix(p, root+string(os.PathSeparator))
}

func outsideRoot(p string) error {
	return fmt.Errorf("storage: path outside workspace root: %s: %w", p, apperr.ErrInvalidPatch)
}

// safePath lexically resolves p against the workspace root and rejects any
// result that escapes it. Symlinks are not followed; see Resolve.
func (f *FS) safePath(p string) (string, error) {
	if p == "" {
		return f.root, nil
	}
	var abs string
	if filepath.IsAbs(p) {
		abs = filepath.Clean(p)
		if f.alias != f.root && within(f.alias, abs) {
			rel, _ := filepath.Rel(f.alias, abs)
			abs = filepath.Join(f.root, rel)
		}
	} else {
		abs = filepath.Join(f.root, filepath.Clean(p))
	}
	if !within(f.root, abs) {
		return "", outsideRoot(p)
	}
	return abs, nil
}

// Resolve returns the real absolute path p refers to, following symlinks.
// The result must still lie inside the workspace root. A path that does not
// exist yet resolves through its parent directory.
func (f *FS) Resolve(p string) (string, error) {
	abs, err := f.safePath(p)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if errors.Is(err, fs.ErrNotExist) {
		dir, dirErr := filepath.EvalSymlinks(filepath.Dir(abs))
		switch {
		case errors.Is(dirErr, fs.ErrNotExist):
			return abs, nil
		case dirErr != nil:
			return "", fmt.Errorf("storage: resolve %s: %w", p, dirErr)
		}
		resolved, err = filepath.Join(dir, filepath.Base(abs)), nil
	}
	if err != nil {
		return "", fmt.Errorf("storage: resolve %s: %w", p, err)
	}
	if !within(f.root, resolved) {
		return "", outsideRoot(p)
	}
	return resolved, nil
}

// Read returns the raw bytes of a workspace file, following symlinks.
// Missing, unreadable and non-regular files all report
// apperr.ErrTargetNotFound.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.Resolve(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, readErr(path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("storage: read %s: not a regular file: %w", path, apperr.ErrTargetNotFound)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, readErr(path, err)
	}
	return data, nil
}

func readErr(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("storage: read %s: %w: %w", path, apperr.ErrTargetNotFound, err)
	}
	return fmt.Errorf("storage: read %s: %w", path, err)
}

// Write atomically writes content: tmp file, fsync, chmod, rename.
// A symlinked target is written through: the temp file is created next to
// the link's real target and renamed onto it, so the link survives.
func (f *FS) Write(path string, content []byte) error {
	abs, err := f.Resolve(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	mode := fs.FileMode(0o644)
	if info, err := os.Stat(abs); err == nil {
		if !info.Mode().IsRegular() {
			return fmt.Errorf("storage: write %s: not a regular file", path)
		}
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		return fmt.Errorf("storage: chmod temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := renameFile(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// List returns regular files directly under dir, filtered by extension.
// Temp files left by Write are never listed.
func (f *FS) List(dir string, exts ...string) ([]FileInfo, error) {
	base, err := f.safePath(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(base)
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	var out []FileInfo
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".patchwork-tmp-") {
			continue
		}
		if len(exts) > 0 && !slices.Contains(exts, strings.ToLower(filepath.Ext(e.Name()))) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("storage: list: %w", err)
		}
		rel, _ := filepath.Rel(f.root, filepath.Join(base, e.Name()))
		out = append(out, FileInfo{
			Path:    rel,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return out, nil
}

// Move renames a file within the workspace.
func (f *FS) Move(oldPath, newPath string) error {
	absOld, err := f.safePath(oldPath)
	if err != nil {
		return err
	}
	absNew, err := f.safePath(newPath)
	if err != nil {
		return err
	}
	dir := filepath.Dir(absNew)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir for move: %w", err)
	}
	if err := os.Rename(absOld, absNew); err != nil {
		return fmt.Errorf("storage: move: %w", err)
	}
	return nil
}
