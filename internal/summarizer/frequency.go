// Package summarizer picks the most representative sentences of a text.
package summarizer

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

var (
	sentencePattern = regexp.MustCompile(`(?m)(?U)([^.!?\n]+[.!?\n])`)
	wordPattern     = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
)

// Sentences splits text on terminal punctuation and line breaks. A trailing
// fragment without punctuation is kept as its own sentence.
func Sentences(text string) []string {
	var out []string
	rest := text
	for _, loc := range sentencePattern.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[loc[0]:loc[1]]); s != "" {
			out = append(out, s)
		}
		rest = text[loc[1]:]
	}
	if s := strings.TrimSpace(rest); s != "" {
		out = append(out, s)
	}
	return out
}

// Words returns the lower-cased words of text.
func Words(text string) []string {
	return wordPattern.FindAllString(strings.ToLower(text), -1)
}

// FrequencySummarizer ranks sentences by the normalised frequency of their
// non-stopword words.
type FrequencySummarizer struct {
	stopwords map[string]struct{}
}

func NewFrequencySummarizer() *FrequencySummarizer {
	return &FrequencySummarizer{stopwords: defaultStopwords()}
}

// Summarize returns up to maxSentences sentences of text in their original order.
// Non-positive maxSentences means 3.
func (s *FrequencySummarizer) Summarize(text string, maxSentences int) string {
	if maxSentences <= 0 {
		maxSentences = 3
	}
	sentences := Sentences(text)
	if len(sentences) <= maxSentences {
		return strings.Join(sentences, " ")
	}

	freq := map[string]float64{}
	maxF := 0.0
	for _, sent := range sentences {
		for _, w := range Words(sent) {
			if _, stop := s.stopwords[w]; stop {
				continue
			}
			freq[w]++
			maxF = math.Max(maxF, freq[w])
		}
	}

	type ranked struct {
		idx   int
		score float64
	}
	scores := make([]ranked, len(sentences))
	for i, sent := range sentences {
		words := Words(sent)
		score := 0.0
		for _, w := range words {
			score += freq[w] / maxF
		}
		// long sentences would otherwise always win
		if len(words) > 0 {
			score /= math.Sqrt(float64(len(words)))
		}
		scores[i] = ranked{i, score}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	selected := make([]int, maxSentences)
	for i := range selected {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)
	out := make([]string, len(selected))
	for i, idx := range selected {
		out[i] = sentences[idx]
	}
	return strings.Join(out, " ")
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"i", "me", "my", "we", "our", "you", "your", "he", "she", "they", "them", "their", "do", "did", "have", "has", "had", "not", "no",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
