// Package preview renders a line-oriented diff of a planned patch so an
// operator can review it before anything is written.
package preview

import (
	"fmt"
	"strings"

	diffpatch "github.com/sergi/go-diff/diffmatchpatch"
)

// DefaultContext is the number of unchanged lines shown around a change.
const DefaultContext = 3

type line struct {
	op   diffpatch.Operation
	text string
}

// Render returns a unified-style diff between before and after. It is empty
// when the two are identical.
func Render(path string, before, after []byte, context int) string {
	if context < 0 {
		context = 0
	}
	lines := diffLines(string(before), string(after))

	keep := make([]bool, len(lines))
	changed := false
	for i, l := range lines {
		if l.op == diffpatch.DiffEqual {
			continue
		}
		changed = true
		for j := max(0, i-context); j <= min(len(lines)-1, i+context); j++ {
			keep[j] = true
		}
	}
	if !changed {
		return ""
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "--- a/%s\n+++ b/%s\n", path, path)
	skipped := true
	for i, l := range lines {
		if !keep[i] {
			skipped = true
			continue
		}
		if skipped {
			fmt.Fprintf(&sb, "@@ line %d @@\n", oldLineNo(lines, i))
			skipped = false
		}
		sb.WriteString(prefix(l.op))
		sb.WriteString(strings.TrimSuffix(l.text, "\n"))
		sb.WriteByte('\n')
		if !strings.HasSuffix(l.text, "\n") {
			sb.WriteString("\\ No newline at end of file\n")
		}
	}
	return sb.String()
}

// diffLines runs diffmatchpatch in line mode and flattens the result into
// one entry per line.
func diffLines(before, after string) []line {
	dmp := diffpatch.New()
	a, b, table := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), table)

	var out []line
	for _, d := range diffs {
		for _, t := range strings.SplitAfter(d.Text, "\n") {
			if t == "" {
				continue
			}
			out = append(out, line{op: d.Type, text: t})
		}
	}
	return out
}

// oldLineNo is the 1-based line number in the original content at which
// lines[i] sits.
func oldLineNo(lines []line, i int) int {
	n := 1
	for _, l := range lines[:i] {
		if l.op != diffpatch.DiffInsert {
			n++
		}
	}
	return n
}

func prefix(op diffpatch.Operation) string {
	switch op {
	case diffpatch.DiffInsert:
		return "+"
	case diffpatch.DiffDelete:
		return "-"
	default:
		return " "
	}
}
