// Package apperr holds the sentinel errors shared by every patchwork surface.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidPatch     = errors.New("invalid patch")
	ErrTargetNotFound   = errors.New("target not found")
	ErrBlockNotFound    = errors.New("block not found")
	ErrAmbiguousBlock   = errors.New("ambiguous block")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrWriteFailed      = errors.New("write failed")
)

// ErrEmptyBlock is the ErrInvalidPatch reported for an empty old block.
var ErrEmptyBlock = fmt.Errorf("%w: old block is empty", ErrInvalidPatch)

// Stable machine-readable codes, used in API bodies, journal rows and events.
const (
	CodeInvalidPatch     = "invalid_patch"
	CodeTargetNotFound   = "target_not_found"
	CodeBlockNotFound    = "block_not_found"
	CodeAmbiguousBlock   = "ambiguous_block"
	CodeChecksumMismatch = "checksum_mismatch"
	CodeWriteFailed      = "write_failed"
	CodeInternal         = "internal"
)

// Code maps err onto one of the Code* constants. A nil error yields "".
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidPatch):
		return CodeInvalidPatch
	case errors.Is(err, ErrTargetNotFound):
		return CodeTargetNotFound
	case errors.Is(err, ErrBlockNotFound):
		return CodeBlockNotFound
	case errors.Is(err, ErrAmbiguousBlock):
		return CodeAmbiguousBlock
	case errors.Is(err, ErrChecksumMismatch):
		return CodeChecksumMismatch
	case errors.Is(err, ErrWriteFailed):
		return CodeWriteFailed
	default:
		return CodeInternal
	}
}
