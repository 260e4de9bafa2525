// Package analysis detects filler words in answer transcripts and scores density.
package analysis

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// DefaultFillerWords is the built-in set of common English fillers.
var DefaultFillerWords = []string{
	"um", "uh", "er", "ah", "like", "basically", "literally",
	"actually", "you know", "i mean", "so", "right", "well",
	"kind of", "sort of", "just", "okay", "hmm", "yeah",
}

// Match is one detected filler occurrence with its byte offset in the text.
type Match struct {
	Word     string
	Position int
	Length   int
}

// Result is the full analysis output for one text.
// Highlighted is the input with each match wrapped in
// `<mark class="filler-word">...</mark>`; consumers rendering it elsewhere
// must rewrite that tag.
type Result struct {
	Matches     []Match
	Occurrences map[string]int
	Count       int
	TotalWords  int
	Density     float64
	Highlighted string
}

// Analyzer matches a configured filler-word list against answer text.
// The word list may contain multi-word phrases; matching is case-insensitive
// and word-boundary delimited.
type Analyzer struct {
	words   []string
	pattern *regexp.Regexp
}

// New builds an analyzer for the given word list, or the default list when
// words is empty.
func New(words ...string) *Analyzer {
	if len(words) == 0 {
		words = DefaultFillerWords
	}
	a := &Analyzer{words: append([]string(nil), words...)}
	a.rebuild()
	return a
}

// Words returns a copy of the configured filler list.
func (a *Analyzer) Words() []string {
	return append([]string(nil), a.words...)
}

// AddCustomWords extends the filler list, deduplicating case-insensitively,
// and rebuilds the match pattern.
func (a *Analyzer) AddCustomWords(words []string) {
	known := make(map[string]struct{}, len(a.words))
	for _, w := range a.words {
		known[strings.ToLower(w)] = struct{}{}
	}

	added := false
	for _, w := range words {
		lower := strings.ToLower(strings.TrimSpace(w))
		if lower == "" {
			continue
		}
		if _, ok := known[lower]; ok {
			continue
		}
		known[lower] = struct{}{}
		a.words = append(a.words, lower)
		added = true
	}
	if added {
		a.rebuild()
	}
}

// Analyze scans text for configured fillers. Empty input yields a zero
// result, never an error.
func (a *Analyzer) Analyze(text string) Result {
	result := Result{Occurrences: map[string]int{}}
	if text == "" {
		return result
	}

	result.TotalWords = len(strings.Fields(text))

	for _, loc := range a.pattern.FindAllStringIndex(text, -1) {
		word := text[loc[0]:loc[1]]
		result.Matches = append(result.Matches, Match{
			Word:     word,
			Position: loc[0],
			Length:   loc[1] - loc[0],
		})
		result.Occurrences[strings.ToLower(word)]++
	}

	result.Count = len(result.Matches)
	if result.TotalWords > 0 {
		result.Density = float64(result.Count) / float64(result.TotalWords) * 100
	}
	result.Highlighted = highlight(text, result.Matches)
	return result
}

// highlight wraps every match in a mark span. Matches are replaced from the
// end of the string backward so earlier replacements never shift the offsets
// of matches not yet processed.
func highlight(text string, matches []Match) string {
	if len(matches) == 0 {
		return text
	}

	sorted := append([]Match(nil), matches...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Position > sorted[j].Position
	})

	result := text
	for _, m := range sorted {
		before := result[:m.Position]
		after := result[m.Position+m.Length:]
		result = fmt.Sprintf(`%s<mark class="filler-word">%s</mark>%s`, before, m.Word, after)
	}
	return result
}

// rebuild recompiles the boundary-delimited alternation over the word list.
// Words are longest-first so multi-word phrases win over their prefixes.
func (a *Analyzer) rebuild() {
	escaped := make([]string, len(a.words))
	for i, w := range a.words {
		escaped[i] = regexp.QuoteMeta(w)
	}
	sort.Slice(escaped, func(i, j int) bool {
		return len(escaped[i]) > len(escaped[j])
	})
	a.pattern = regexp.MustCompile(`(?i)\b(` + strings.Join(escaped, "|") + `)\b`)
}
