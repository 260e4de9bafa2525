// Package report renders a finished practice session as a markdown summary
// with per-question transcripts and filler-word analytics.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"prepmate/internal/analysis"
	"prepmate/internal/transcript"
)

// Report is a fully rendered practice summary ready to write to disk.
type Report struct {
	StartedAt time.Time
	Duration  time.Duration
	Questions []QuestionSummary
}

// QuestionSummary pairs one answered question with its filler analysis.
type QuestionSummary struct {
	ID       int
	Question string
	Answer   string
	Duration time.Duration
	Analysis analysis.Result
}

// Build assembles the report from session data and a filler analyzer.
func Build(session transcript.SessionData, analyzer *analysis.Analyzer) Report {
	report := Report{
		StartedAt: time.UnixMilli(session.StartTime),
	}
	if session.EndTime > session.StartTime {
		report.Duration = time.Duration(session.EndTime-session.StartTime) * time.Millisecond
	}

	ids := make([]int, 0, len(session.Questions))
	for id := range session.Questions {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		question := session.Questions[id]
		answer := joinSegments(question.Segments)

		summary := QuestionSummary{
			ID:       id,
			Question: question.Text,
			Answer:   answer,
			Analysis: analyzer.Analyze(answer),
		}
		if n := len(question.Segments); n > 0 {
			summary.Duration = time.Duration(question.Segments[n-1].EndTime-question.StartTime) * time.Millisecond
		}
		report.Questions = append(report.Questions, summary)
	}

	return report
}

// Markdown renders the report document.
func (r Report) Markdown() string {
	var b strings.Builder

	b.WriteString("# Practice Session Report\n\n")
	fmt.Fprintf(&b, "- Date: %s\n", r.StartedAt.Format("2006-01-02 15:04"))
	if r.Duration > 0 {
		fmt.Fprintf(&b, "- Duration: %s\n", formatClock(r.Duration))
	}
	fmt.Fprintf(&b, "- Questions answered: %d\n", len(r.Questions))
	b.WriteString("\n---\n\n")

	for i, q := range r.Questions {
		fmt.Fprintf(&b, "## Q%d: %s\n\n", i+1, q.Question)
		if q.Duration > 0 {
			fmt.Fprintf(&b, "*Answered in %s*\n\n", formatClock(q.Duration))
		}
		if strings.TrimSpace(q.Answer) == "" {
			b.WriteString("_No answer recorded._\n\n")
			continue
		}
		fmt.Fprintf(&b, "%s\n\n", q.Answer)
		b.WriteString(fillerTable(q.Analysis))
	}

	b.WriteString(r.totals())
	return b.String()
}

// WriteFile writes the markdown report under dir with a timestamped name and
// returns the full path.
func (r Report) WriteFile(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("ensure report dir: %w", err)
	}

	name := fmt.Sprintf("practice-%s.md", r.StartedAt.Format("20060102-150405"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(r.Markdown()), 0o600); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

func (r Report) totals() string {
	var words, fillers int
	for _, q := range r.Questions {
		words += q.Analysis.TotalWords
		fillers += q.Analysis.Count
	}
	if words == 0 {
		return ""
	}

	density := float64(fillers) / float64(words) * 100

	var b strings.Builder
	b.WriteString("---\n\n## Overall\n\n")
	fmt.Fprintf(&b, "- Total words: %d\n", words)
	fmt.Fprintf(&b, "- Filler words: %d\n", fillers)
	fmt.Fprintf(&b, "- Filler density: %.1f%%\n", density)
	return b.String()
}

func fillerTable(result analysis.Result) string {
	if result.Count == 0 {
		return "No filler words detected.\n\n"
	}

	words := make([]string, 0, len(result.Occurrences))
	for word := range result.Occurrences {
		words = append(words, word)
	}
	sort.Slice(words, func(i, j int) bool {
		if result.Occurrences[words[i]] == result.Occurrences[words[j]] {
			return words[i] < words[j]
		}
		return result.Occurrences[words[i]] > result.Occurrences[words[j]]
	})

	var b strings.Builder
	b.WriteString("| Filler | Count |\n|---|---|\n")
	for _, word := range words {
		fmt.Fprintf(&b, "| %s | %d |\n", word, result.Occurrences[word])
	}
	fmt.Fprintf(&b, "\n%d filler words in %d total (%.1f%% density).\n\n", result.Count, result.TotalWords, result.Density)
	return b.String()
}

func joinSegments(segments []transcript.Segment) string {
	parts := make([]string, 0, len(segments))
	for _, segment := range segments {
		text := strings.TrimSpace(segment.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

func formatClock(d time.Duration) string {
	d = d.Truncate(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
