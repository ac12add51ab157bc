package diff_test

import (
	"strings"
	"testing"

	"draftpad/pkg/diff"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeIdenticalTexts(t *testing.T) {
	text := "line1\nline2\nline3"
	result := diff.Compute(text, text)

	assert.Equal(t, 0, result.Stats.Added)
	assert.Equal(t, 0, result.Stats.Removed)
	assert.Equal(t, 3, result.Stats.Unchanged)
	for _, line := range result.Lines {
		assert.Equal(t, diff.Unchanged, line.Type)
		require.NotNil(t, line.LineNumberOld)
		require.NotNil(t, line.LineNumberNew)
	}
}

func TestComputeEmptyOldText(t *testing.T) {
	result := diff.Compute("", "a\nb\nc")

	assert.Equal(t, 3, result.Stats.Added)
	assert.Equal(t, 0, result.Stats.Removed)
	assert.Equal(t, 0, result.Stats.Unchanged)
	for i, line := range result.Lines {
		assert.Equal(t, diff.Added, line.Type)
		assert.Nil(t, line.LineNumberOld)
		require.NotNil(t, line.LineNumberNew)
		assert.Equal(t, i+1, *line.LineNumberNew)
	}
}

func TestComputeRemovalOnly(t *testing.T) {
	result := diff.Compute("a\nb\nc", "a\nc")

	assert.Equal(t, 0, result.Stats.Added)
	assert.Equal(t, 1, result.Stats.Removed)
	assert.Equal(t, 2, result.Stats.Unchanged)

	require.Len(t, result.Lines, 3)
	assert.Equal(t, diff.Removed, result.Lines[1].Type)
	assert.Equal(t, "b", result.Lines[1].Content)
	assert.Nil(t, result.Lines[1].LineNumberNew)
}

func TestComputeReplacement(t *testing.T) {
	result := diff.Compute("hello\nworld", "hello\nthere")

	assert.Equal(t, 1, result.Stats.Added)
	assert.Equal(t, 1, result.Stats.Removed)
	assert.Equal(t, 1, result.Stats.Unchanged)

	// Removed block precedes the added block within a replacement.
	require.Len(t, result.Lines, 3)
	assert.Equal(t, diff.Unchanged, result.Lines[0].Type)
	assert.Equal(t, diff.Removed, result.Lines[1].Type)
	assert.Equal(t, "world", result.Lines[1].Content)
	assert.Equal(t, diff.Added, result.Lines[2].Type)
	assert.Equal(t, "there", result.Lines[2].Content)
}

func TestComputeTrailingNewlineNotCounted(t *testing.T) {
	result := diff.Compute("a\nb\n", "a\nb")
	assert.Equal(t, 0, result.Stats.Added)
	assert.Equal(t, 0, result.Stats.Removed)
	assert.Equal(t, 2, result.Stats.Unchanged)
}

// Reconstructing the new text from added+unchanged lines must yield the
// new input exactly; removed+unchanged must yield the old input.
func TestComputeCompleteness(t *testing.T) {
	cases := []struct {
		name     string
		oldText  string
		newText  string
	}{
		{"disjoint", "a\nb\nc", "x\ny"},
		{"insertion middle", "one\nthree", "one\ntwo\nthree"},
		{"deletion at start", "head\nbody\ntail", "body\ntail"},
		{"rewrite", "alpha\nbeta\ngamma\ndelta", "alpha\nBETA\ngamma\nepsilon"},
		{"empty new", "something", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := diff.Compute(tc.oldText, tc.newText)

			var oldSide, newSide []string
			for _, line := range result.Lines {
				if line.Type == diff.Removed || line.Type == diff.Unchanged {
					oldSide = append(oldSide, line.Content)
				}
				if line.Type == diff.Added || line.Type == diff.Unchanged {
					newSide = append(newSide, line.Content)
				}
			}

			assert.Equal(t, tc.oldText, strings.Join(oldSide, "\n"))
			assert.Equal(t, tc.newText, strings.Join(newSide, "\n"))
		})
	}
}

func TestComputeDeterministic(t *testing.T) {
	oldText := "a\nb\nc\nd\ne"
	newText := "a\nx\nc\ny\ne\nf"

	first := diff.Compute(oldText, newText)
	second := diff.Compute(oldText, newText)
	assert.Equal(t, first, second)
}

func TestComputeLineNumbersMonotonic(t *testing.T) {
	result := diff.Compute("a\nb\nc\nd", "a\nc\nd\ne")

	prevOld, prevNew := 0, 0
	for _, line := range result.Lines {
		if line.LineNumberOld != nil {
			assert.Equal(t, prevOld+1, *line.LineNumberOld)
			prevOld = *line.LineNumberOld
		}
		if line.LineNumberNew != nil {
			assert.Equal(t, prevNew+1, *line.LineNumberNew)
			prevNew = *line.LineNumberNew
		}
	}
}
