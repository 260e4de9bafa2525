package analysis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeEmptyInput(t *testing.T) {
	a := New()

	result := a.Analyze("")
	require.Zero(t, result.Count)
	require.Zero(t, result.TotalWords)
	require.Zero(t, result.Density)
	require.Empty(t, result.Matches)
	require.Empty(t, result.Occurrences)
	require.Empty(t, result.Highlighted)
}

func TestAnalyzeNoFillers(t *testing.T) {
	a := New()

	text := "the quick brown fox jumps over a lazy dog"
	result := a.Analyze(text)
	require.Zero(t, result.Count)
	require.Zero(t, result.Density)
	require.Equal(t, text, result.Highlighted)
}

func TestAnalyzeAllFillersIsFullDensity(t *testing.T) {
	a := New()

	result := a.Analyze("um uh like basically yeah")
	require.Equal(t, 5, result.Count)
	require.Equal(t, 5, result.TotalWords)
	require.Equal(t, float64(100), result.Density)

	sum := 0
	for _, n := range result.Occurrences {
		sum += n
	}
	require.Equal(t, result.Count, sum)
}

func TestAnalyzeMixedText(t *testing.T) {
	a := New()

	result := a.Analyze("um I think, like, this works")
	require.Equal(t, 2, result.Count)
	assert.Equal(t, 1, result.Occurrences["um"])
	assert.Equal(t, 1, result.Occurrences["like"])
}

func TestAnalyzeCaseInsensitive(t *testing.T) {
	a := New()

	result := a.Analyze("Um yes LIKE no Basically")
	require.Equal(t, 3, result.Count)
	assert.Equal(t, 1, result.Occurrences["um"])
	assert.Equal(t, 1, result.Occurrences["like"])
	assert.Equal(t, 1, result.Occurrences["basically"])
}

func TestAnalyzeMultiWordPhrases(t *testing.T) {
	a := New()

	result := a.Analyze("you know it was kind of hard")
	require.Equal(t, 2, result.Count)
	assert.Equal(t, 1, result.Occurrences["you know"])
	assert.Equal(t, 1, result.Occurrences["kind of"])
}

func TestAnalyzeWordBoundaries(t *testing.T) {
	a := New()

	// "summer" contains "um" and "alike" contains "like"; neither should match.
	result := a.Analyze("summer feels alike")
	require.Zero(t, result.Count)
}

func TestHighlightWrapsEveryMatch(t *testing.T) {
	a := New()

	result := a.Analyze("um I think, like, this works")
	assert.Equal(t, 2, strings.Count(result.Highlighted, `<mark class="filler-word">`))
	assert.Contains(t, result.Highlighted, `<mark class="filler-word">um</mark>`)
	assert.Contains(t, result.Highlighted, `<mark class="filler-word">like</mark>`)
	assert.Contains(t, result.Highlighted, "this works")
}

func TestHighlightPreservesOriginalCasing(t *testing.T) {
	a := New()

	result := a.Analyze("Um that is fine")
	assert.Contains(t, result.Highlighted, `<mark class="filler-word">Um</mark>`)
}

func TestAddCustomWords(t *testing.T) {
	a := New()
	before := len(a.Words())

	a.AddCustomWords([]string{"gonna", "LIKE", "  ", "gonna"})
	words := a.Words()
	require.Len(t, words, before+1)
	require.Contains(t, words, "gonna")

	result := a.Analyze("gonna do it")
	require.Equal(t, 1, result.Count)
	assert.Equal(t, 1, result.Occurrences["gonna"])
}

func TestCustomListEscapesRegexMetacharacters(t *testing.T) {
	a := New("c++", "um")

	result := a.Analyze("um I wrote c++ code")
	require.GreaterOrEqual(t, result.Count, 1)
	assert.Equal(t, 1, result.Occurrences["um"])
}
