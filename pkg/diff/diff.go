package diff

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// LineType classifies a single line of a diff.
type LineType string

const (
	Added     LineType = "added"
	Removed   LineType = "removed"
	Unchanged LineType = "unchanged"
)

// Line is one physical line of the aligned diff. LineNumberOld is nil
// for added lines; LineNumberNew is nil for removed lines.
type Line struct {
	Type          LineType `json:"type"`
	Content       string   `json:"content"`
	LineNumberOld *int     `json:"lineNumberOld"`
	LineNumberNew *int     `json:"lineNumberNew"`
}

// Stats aggregates line counts per type.
type Stats struct {
	Added     int `json:"added"`
	Removed   int `json:"removed"`
	Unchanged int `json:"unchanged"`
}

// Result is a full line-level diff between two text snapshots.
type Result struct {
	Lines []Line `json:"lines"`
	Stats Stats  `json:"stats"`
}

// Compute produces a line-level diff between oldText and newText.
// It is pure and deterministic: the same inputs always yield the same
// output, so version-to-version re-diffing is stable.
func Compute(oldText, newText string) Result {
	oldLines := splitLines(oldText)
	newLines := splitLines(newText)

	matcher := difflib.NewMatcher(oldLines, newLines)

	result := Result{Lines: []Line{}}
	oldNum := 1
	newNum := 1

	for _, op := range matcher.GetOpCodes() {
		switch op.Tag {
		case 'e':
			for i := op.I1; i < op.I2; i++ {
				result.Lines = append(result.Lines, unchangedLine(oldLines[i], &oldNum, &newNum))
				result.Stats.Unchanged++
			}
		case 'd':
			for i := op.I1; i < op.I2; i++ {
				result.Lines = append(result.Lines, removedLine(oldLines[i], &oldNum))
				result.Stats.Removed++
			}
		case 'i':
			for j := op.J1; j < op.J2; j++ {
				result.Lines = append(result.Lines, addedLine(newLines[j], &newNum))
				result.Stats.Added++
			}
		case 'r':
			// A replacement is emitted as the removed block followed by
			// the added block, in document order.
			for i := op.I1; i < op.I2; i++ {
				result.Lines = append(result.Lines, removedLine(oldLines[i], &oldNum))
				result.Stats.Removed++
			}
			for j := op.J1; j < op.J2; j++ {
				result.Lines = append(result.Lines, addedLine(newLines[j], &newNum))
				result.Stats.Added++
			}
		}
	}

	return result
}

// splitLines splits text on newlines. A trailing empty element produced
// by a terminal newline is dropped so it never counts as a change chunk.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func unchangedLine(content string, oldNum, newNum *int) Line {
	o, n := *oldNum, *newNum
	*oldNum++
	*newNum++
	return Line{Type: Unchanged, Content: content, LineNumberOld: &o, LineNumberNew: &n}
}

func removedLine(content string, oldNum *int) Line {
	o := *oldNum
	*oldNum++
	return Line{Type: Removed, Content: content, LineNumberOld: &o}
}

func addedLine(content string, newNum *int) Line {
	n := *newNum
	*newNum++
	return Line{Type: Added, Content: content, LineNumberNew: &n}
}
