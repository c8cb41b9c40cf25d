package patch

import (
	"errors"
	"strings"
	"testing"

	"github.com/starford/patchwork/internal/apperr"
)

func TestNewSpec_EmptyOldRejected(t *testing.T) {
	_, err := NewSpec("a.txt", "", "x", OccurrenceUnique)
	if !errors.Is(err, apperr.ErrEmptyBlock) {
		t.Errorf("err = %v, want ErrEmptyBlock", err)
	}
}

func TestNewSpec_Invalid(t *testing.T) {
	cases := []struct {
		name string
		spec Spec
	}{
		{"no path", Spec{Old: "a", New: "b"}},
		{"identical blocks", Spec{Path: "a.txt", Old: "a", New: "a"}},
		{"negative occurrence", Spec{Path: "a.txt", Old: "a", New: "b", Occurrence: -1}},
		{"bad checksum", Spec{Path: "a.txt", Old: "a", New: "b", ExpectChecksum: "abc"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if err := c.spec.Validate(); !errors.Is(err, apperr.ErrInvalidPatch) {
				t.Errorf("err = %v, want ErrInvalidPatch", err)
			}
		})
	}
}

func TestNewSpec_EmptyNewAllowed(t *testing.T) {
	if _, err := NewSpec("a.txt", "delete me", "", OccurrenceUnique); err != nil {
		t.Errorf("deletion patch should be valid: %v", err)
	}
}

func TestParseOccurrence(t *testing.T) {
	cases := map[string]Occurrence{
		"":       OccurrenceUnique,
		"unique": OccurrenceUnique,
		"FIRST":  OccurrenceFirst,
		"1":      OccurrenceFirst,
		" 4 ":    Occurrence(4),
	}
	for in, want := range cases {
		got, err := ParseOccurrence(in)
		if err != nil {
			t.Errorf("ParseOccurrence(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseOccurrence(%q) = %v, want %v", in, got, want)
		}
	}

	for _, bad := range []string{"0", "-2", "last", "1.5"} {
		if _, err := ParseOccurrence(bad); !errors.Is(err, apperr.ErrInvalidPatch) {
			t.Errorf("ParseOccurrence(%q) err = %v, want ErrInvalidPatch", bad, err)
		}
	}
}

func TestOccurrenceText(t *testing.T) {
	var o Occurrence
	if err := o.UnmarshalText([]byte("3")); err != nil {
		t.Fatal(err)
	}
	b, _ := o.MarshalText()
	if string(b) != "3" {
		t.Errorf("MarshalText = %q", b)
	}
	if OccurrenceFirst.String() != "first" || OccurrenceUnique.String() != "unique" {
		t.Error("unexpected String() for named occurrences")
	}
}

func TestErrorMessageNamesPath(t *testing.T) {
	err := wrap("src/app.tsx", apperr.ErrBlockNotFound)
	if !strings.HasPrefix(err.Error(), "patch src/app.tsx:") {
		t.Errorf("message = %q", err.Error())
	}
	if wrap("other", err) != err {
		t.Error("wrap should not double-wrap")
	}
}
