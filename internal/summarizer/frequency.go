// Package summarizer picks representative sentences out of a text.
package summarizer

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"pdfrag/internal/embedding/tfidf"
)

var sentencePattern = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)

// FrequencySummarizer ranks sentences by word frequency (stopwords filtered).
type FrequencySummarizer struct {
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

// NewFrequencySummarizer creates a frequency-based sentence ranker summarizer.
func NewFrequencySummarizer() *FrequencySummarizer {
	return &FrequencySummarizer{
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`),
		stopwords:    tfidf.Stopwords(),
	}
}

// Sentences splits text into trimmed sentences. Text without terminal
// punctuation is one sentence.
func Sentences(text string) []string {
	raw := sentencePattern.FindAllString(text, -1)
	if len(raw) == 0 {
		if t := strings.TrimSpace(text); t != "" {
			return []string{t}
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}

type scored struct {
	idx   int
	score float64
}

// Summarize returns a short summary by ranking sentences using token frequency.
// Selected sentences keep their original order.
func (s *FrequencySummarizer) Summarize(text string, maxSentences int) (string, error) {
	if maxSentences <= 0 {
		maxSentences = 5
	}
	sentences := Sentences(text)
	if len(sentences) == 0 {
		return "", nil
	}
	scores := s.score(sentences, nil)
	if maxSentences > len(scores) {
		maxSentences = len(scores)
	}
	selected := make([]int, maxSentences)
	for i := range selected {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)
	out := make([]string, len(selected))
	for i, idx := range selected {
		out[i] = sentences[idx]
	}
	return strings.Join(out, " "), nil
}

// Rank returns up to maxSentences sentences of text that share at least one
// term with query, best first.
func (s *FrequencySummarizer) Rank(query, text string, maxSentences int) []string {
	terms := make(map[string]struct{})
	for _, tok := range s.tokens(query) {
		if _, stop := s.stopwords[tok]; !stop {
			terms[tok] = struct{}{}
		}
	}
	if len(terms) == 0 || maxSentences <= 0 {
		return nil
	}
	sentences := Sentences(text)
	var out []string
	for _, sc := range s.score(sentences, terms) {
		if sc.score <= 0 || len(out) == maxSentences {
			break
		}
		out = append(out, sentences[sc.idx])
	}
	return out
}

// score ranks sentences by normalized term frequency. When query terms are
// given, only matching terms contribute, so sentences without any score 0.
func (s *FrequencySummarizer) score(sentences []string, query map[string]struct{}) []scored {
	tokens := make([][]string, len(sentences))
	freq := map[string]float64{}
	for i, sent := range sentences {
		tokens[i] = s.tokens(sent)
		for _, tok := range tokens[i] {
			if _, ok := s.stopwords[tok]; ok {
				continue
			}
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		maxF = math.Max(maxF, v)
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}

	scores := make([]scored, len(sentences))
	for i := range sentences {
		total := 0.0
		for _, tok := range tokens[i] {
			if query != nil {
				if _, ok := query[tok]; !ok {
					continue
				}
				// Query matches outweigh any frequency weight.
				total++
			}
			total += freq[tok]
		}
		// Normalize by sentence length to avoid bias
		if l := float64(len(tokens[i])); l > 0 {
			total /= math.Sqrt(l)
		}
		scores[i] = scored{i, total}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	return scores
}

func (s *FrequencySummarizer) tokens(text string) []string {
	return s.tokenPattern.FindAllString(strings.ToLower(text), -1)
}
