// Package vocab holds the reserved sentinel tokens and vocabulary policies
// shared by the counting and modelling packages.
package vocab

const (
	// SentenceBoundary marks the start and end of a sentence.
	SentenceBoundary = "SENTENCE_BOUNDARY"
	// Unknown stands in for out-of-vocabulary and first-occurrence words.
	Unknown = "UNKNOWN_TOKEN"
	// Ellipsis is appended to generated sentences that hit the length cap.
	Ellipsis = "..."
)

// IsSentinel reports whether token is one of the reserved tokens.
func IsSentinel(token string) bool {
	return token == SentenceBoundary || token == Unknown
}

// ReplaceFirstOccurrences returns a copy of tokens in which the first
// occurrence of every word is replaced with Unknown. SentenceBoundary is
// never replaced. Each word type thus contributes exactly one unknown event.
func ReplaceFirstOccurrences(tokens []string) []string {
	out := make([]string, len(tokens))
	seen := make(map[string]struct{}, len(tokens)/2)

	for i, word := range tokens {
		out[i] = word
		if _, ok := seen[word]; !ok && word != SentenceBoundary {
			out[i] = Unknown
		}
		seen[word] = struct{}{}
	}
	return out
}

// Words returns the distinct non-sentinel tokens in first-seen order.
func Words(tokens []string) []string {
	seen := make(map[string]struct{})
	var words []string
	for _, t := range tokens {
		if IsSentinel(t) {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		words = append(words, t)
	}
	return words
}
