package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"pdfrag/internal/summarizer"
)

var (
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	ranker         = summarizer.NewFrequencySummarizer()
)

// highlightBestSentence emphasizes the sentence of text that best matches
// query. Text without a matching sentence is returned re-joined but unstyled.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := summarizer.Sentences(text)
	best := ranker.Rank(query, text, 1)
	done := len(best) == 0
	out := make([]string, len(sentences))
	for i, sent := range sentences {
		out[i] = sent
		if !done && sent == best[0] {
			out[i] = highlightStyle.Render(sent)
			done = true
		}
	}
	return strings.Join(out, " ")
}
