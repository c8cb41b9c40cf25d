package descriptor

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/patchwork/internal/apperr"
	"github.com/starford/patchwork/internal/patch"
)

func TestParseYAML(t *testing.T) {
	data := []byte(`path: src/greet.js
old: |-
  return 'hi';
new: |-
  return 'hello';
occurrence: first
`)
	d, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := &Descriptor{
		Path:       "src/greet.js",
		Old:        "return 'hi';",
		New:        "return 'hello';",
		Occurrence: "first",
	}
	if diff := cmp.Diff(want, d); diff != "" {
		t.Errorf("descriptor mismatch (-want +got):\n%s", diff)
	}
}

func TestParseJSON(t *testing.T) {
	d, err := Parse([]byte(`{"path": "a.txt", "old": "a\r\nb", "new": "c"}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if d.Old != "a\r\nb" {
		t.Errorf("old = %q, escapes must survive verbatim", d.Old)
	}
}

func TestParseRejects(t *testing.T) {
	cases := map[string]string{
		"empty":         "",
		"unknown key":   "path: a\nold: x\nnew: y\nfuzzy: true\n",
		"two documents": "path: a\nold: x\nnew: y\n---\npath: b\nold: x\nnew: y\n",
		"not a mapping": "- a\n- b\n",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(in)); !errors.Is(err, apperr.ErrInvalidPatch) {
				t.Errorf("err = %v, want ErrInvalidPatch", err)
			}
		})
	}
}

func TestSpec(t *testing.T) {
	d := &Descriptor{Path: "a.txt", Old: "x", New: "y"}

	spec, err := d.Spec(patch.OccurrenceFirst)
	if err != nil {
		t.Fatalf("Spec: %v", err)
	}
	if spec.Occurrence != patch.OccurrenceFirst {
		t.Errorf("default occurrence not applied: %v", spec.Occurrence)
	}

	d.Occurrence = "2"
	spec, err = d.Spec(patch.OccurrenceUnique)
	if err != nil {
		t.Fatalf("Spec: %v", err)
	}
	if spec.Occurrence != 2 {
		t.Errorf("occurrence = %v, want 2", spec.Occurrence)
	}
}

func TestSpecEmptyOld(t *testing.T) {
	d := &Descriptor{Path: "a.txt", Old: "", New: "y"}
	if _, err := d.Spec(patch.OccurrenceUnique); !errors.Is(err, apperr.ErrEmptyBlock) {
		t.Errorf("err = %v, want ErrEmptyBlock", err)
	}
}

func TestSpecBadChecksum(t *testing.T) {
	d := &Descriptor{Path: "a.txt", Old: "x", New: "y", ExpectChecksum: "not-hex"}
	if _, err := d.Spec(patch.OccurrenceUnique); !errors.Is(err, apperr.ErrInvalidPatch) {
		t.Errorf("err = %v, want ErrInvalidPatch", err)
	}
}

func TestReadFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "fix.yaml")
	if err := os.WriteFile(p, []byte("path: a\nold: x\nnew: y\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	d, err := ReadFile(p)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if d.Path != "a" {
		t.Errorf("path = %q", d.Path)
	}
}
