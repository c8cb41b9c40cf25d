// Package descriptor decodes patch descriptor files: one YAML or JSON
// document naming a target path and the literal old/new blocks.
package descriptor

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/starford/patchwork/internal/apperr"
	"github.com/starford/patchwork/internal/patch"
)

// Format is the human-readable contract for descriptor files. It is served
// to MCP clients and printed by the CLI.
const Format = `# Patch descriptor format

A descriptor is a single YAML (or JSON) document:

` + "```" + `yaml
path: src/greet.js          # REQUIRED - target file, relative to the workspace root
old: |-                     # REQUIRED - literal block that must be present verbatim
  return 'hi';
new: |-                     # REQUIRED (may be empty) - replacement block
  return 'hello';
occurrence: unique          # OPTIONAL - unique (default) | first | <n>
expect_checksum: ""         # OPTIONAL - hex SHA-256 of the file the patch was written against
` + "```" + `

Rules:

1. Matching is byte-for-byte. Line endings, indentation and trailing
   whitespace all count. Use YAML block scalars with the "-" chomping
   indicator (|-) unless the block really ends with a newline.
2. occurrence "unique" fails when the old block appears more than once;
   "first" or a number selects which match is replaced.
3. Applying the same descriptor twice fails with block_not_found.
4. One descriptor patches one file. Unknown keys are rejected.
`

// Descriptor is the on-disk shape of a single patch.
type Descriptor struct {
	Path           string `yaml:"path" json:"path"`
	Old            string `yaml:"old" json:"old"`
	New            string `yaml:"new" json:"new"`
	Occurrence     string `yaml:"occurrence,omitempty" json:"occurrence,omitempty"`
	ExpectChecksum string `yaml:"expect_checksum,omitempty" json:"expect_checksum,omitempty"`
}

// Decode reads exactly one descriptor document from r.
func Decode(r io.Reader) (*Descriptor, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var d Descriptor
	if err := dec.Decode(&d); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("descriptor: empty document: %w", apperr.ErrInvalidPatch)
		}
		return nil, fmt.Errorf("descriptor: decode: %w: %w", apperr.ErrInvalidPatch, err)
	}

	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("descriptor: one patch per descriptor: %w", apperr.ErrInvalidPatch)
	}
	return &d, nil
}

// Parse decodes a descriptor held in memory.
func Parse(data []byte) (*Descriptor, error) {
	return Decode(bytes.NewReader(data))
}

// ReadFile decodes the descriptor stored at path.
func ReadFile(path string) (*Descriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("descriptor: open: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Spec converts d into a validated patch.Spec. def is the occurrence policy
// used when the descriptor does not name one.
func (d *Descriptor) Spec(def patch.Occurrence) (patch.Spec, error) {
	occ := def
	if d.Occurrence != "" {
		var err error
		if occ, err = patch.ParseOccurrence(d.Occurrence); err != nil {
			return patch.Spec{}, err
		}
	}
	spec, err := patch.NewSpec(d.Path, d.Old, d.New, occ)
	if err != nil {
		return patch.Spec{}, err
	}
	spec = spec.WithExpectChecksum(d.ExpectChecksum)
	if err := spec.Validate(); err != nil {
		return patch.Spec{}, err
	}
	return spec, nil
}
