// Package storage defines the workspace file-system abstraction patches are
// read from and persisted to.
package storage

import "time"

// FileInfo describes a file returned by List.
type FileInfo struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Provider is the interface for workspace file operations.
// All paths are relative to the workspace root; absolute paths are accepted
// only when they resolve inside it. Paths outside the root, directly or via a
// symlink, report apperr.ErrInvalidPatch.
type Provider interface {
	// Read returns the raw bytes of the regular file at path.
	Read(path string) ([]byte, error)
	// Write atomically replaces path with content, keeping the file mode of an
	// existing target.
	Write(path string, content []byte) error
	// List returns the regular files directly under dir whose extension is in
	// exts (all files when exts is empty).
	List(dir string, exts ...string) ([]FileInfo, error)
	// Move renames oldPath to newPath.
	Move(oldPath, newPath string) error
	// Resolve returns the real absolute path, following symlinks. Two paths
	// naming the same file resolve to the same string.
	Resolve(path string) (string, error)
}
