// Package patch implements the exact-match patch engine: verify that a
// literal block is present, substitute it once, and persist the result
// atomically.
package patch

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/patchwork/internal/apperr"
)

// Occurrence selects which match of the old block is replaced.
//
// The zero value requires the block to occur exactly once. Positive values
// pick the n-th match, counting from 1.
type Occurrence int

const (
	OccurrenceUnique Occurrence = 0
	OccurrenceFirst  Occurrence = 1
)

func (o Occurrence) String() string {
	switch o {
	case OccurrenceUnique:
		return "unique"
	case OccurrenceFirst:
		return "first"
	default:
		return strconv.Itoa(int(o))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o Occurrence) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Occurrence) UnmarshalText(text []byte) error {
	v, err := ParseOccurrence(string(text))
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// ParseOccurrence parses "unique", "first" or a positive integer.
// The empty string parses as OccurrenceUnique.
func ParseOccurrence(s string) (Occurrence, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unique":
		return OccurrenceUnique, nil
	case "first":
		return OccurrenceFirst, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("occurrence %q: want unique, first or a positive integer: %w", s, apperr.ErrInvalidPatch)
	}
	return Occurrence(n), nil
}

var sha256Hex = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

// Spec is a single exact substitution against one file. Build it with
// NewSpec; the zero value is not valid.
type Spec struct {
	Path       string
	Old        string
	New        string
	Occurrence Occurrence
	// ExpectChecksum, when set, pins the patch to the SHA-256 of the content
	// it was written against.
	ExpectChecksum string
}

// NewSpec validates and returns a Spec. No file I/O happens here.
func NewSpec(path, oldBlock, newBlock string, occ Occurrence) (Spec, error) {
	s := Spec{Path: path, Old: oldBlock, New: newBlock, Occurrence: occ}
	if err := s.Validate(); err != nil {
		return Spec{}, err
	}
	return s, nil
}

// WithExpectChecksum returns a copy of s pinned to checksum.
func (s Spec) WithExpectChecksum(checksum string) Spec {
	s.ExpectChecksum = strings.TrimSpace(checksum)
	return s
}

// Validate checks the invariants every apply relies on.
func (s Spec) Validate() error {
	if s.Old == "" {
		return apperr.ErrEmptyBlock
	}
	err := validation.ValidateStruct(&s,
		validation.Field(&s.Path, validation.Required),
		validation.Field(&s.Occurrence, validation.Min(OccurrenceUnique)),
		validation.Field(&s.ExpectChecksum, validation.Match(sha256Hex).Error("must be a hex SHA-256 digest")),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrInvalidPatch, err)
	}
	if s.Old == s.New {
		return fmt.Errorf("%w: old and new blocks are identical", apperr.ErrInvalidPatch)
	}
	return nil
}

// Error reports a failed apply together with the target path.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("patch %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrap(path string, err error) error {
	var pe *Error
	if errors.As(err, &pe) {
		return err
	}
	return &Error{Path: path, Err: err}
}
