package ingest

import (
	"strings"
	"unicode"

	"github.com/cognicore/bigrams/pkg/bigrams/vocab"
)

// Tokenizer splits text into sentences of normalized word tokens
type Tokenizer struct {
	stopwords map[string]struct{}
	lowercase bool
}

// NewTokenizer creates a new tokenizer with the given stopword list.
// Tokens are lowercased unless SetLowercase(false) is called.
func NewTokenizer(stopwords []string) *Tokenizer {
	stops := make(map[string]struct{}, len(stopwords))
	for _, w := range stopwords {
		stops[strings.ToLower(w)] = struct{}{}
	}
	return &Tokenizer{stopwords: stops, lowercase: true}
}

// SetLowercase controls case folding.
func (t *Tokenizer) SetLowercase(on bool) {
	t.lowercase = on
}

// Tokenize splits text into normalized tokens, removing stopwords.
// Sentence structure is discarded.
func (t *Tokenizer) Tokenize(text string) []string {
	var tokens []string
	for _, s := range t.TokenizeSentences(text) {
		tokens = append(tokens, s...)
	}
	return tokens
}

// TokenizeSentences splits text into sentences of tokens. A sentence ends
// at '.', '!' or '?', or at a blank line. Punctuation is dropped and
// apostrophes are elided, so "don't" becomes "dont". Empty sentences are
// skipped.
func (t *Tokenizer) TokenizeSentences(text string) [][]string {
	var (
		sentences [][]string
		current   []string
		word      strings.Builder
		newlines  int
	)

	flushWord := func() {
		if word.Len() > 0 {
			if tok := t.processToken(word.String()); tok != "" {
				current = append(current, tok)
			}
			word.Reset()
		}
	}
	endSentence := func() {
		flushWord()
		if len(current) > 0 {
			sentences = append(sentences, current)
			current = nil
		}
	}

	for _, r := range text {
		switch {
		case isWordRune(r):
			if t.lowercase {
				r = unicode.ToLower(r)
			}
			word.WriteRune(r)
			newlines = 0
		case r == '\'' || r == '’':
			// elided inside words
		case r == '.' || r == '!' || r == '?':
			endSentence()
			newlines = 0
		case r == '\n':
			flushWord()
			newlines++
			if newlines >= 2 {
				endSentence()
			}
		default:
			flushWord()
			if !unicode.IsSpace(r) {
				newlines = 0
			}
		}
	}
	endSentence()

	return sentences
}

// Normalize folds a single word the way TokenizeSentences folds the words
// of a text, without stopword filtering. Non-word characters are dropped.
func (t *Tokenizer) Normalize(word string) string {
	var b strings.Builder
	for _, r := range word {
		if !isWordRune(r) {
			continue
		}
		if t.lowercase {
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return t.cleanToken(b.String())
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r) || r == '-' || r == '_'
}

// Stream tokenizes text into a single token sequence in which every
// sentence is surrounded by vocab.SentenceBoundary:
//
//	BOUNDARY w w w BOUNDARY w w BOUNDARY
//
// Text without words yields nil.
func (t *Tokenizer) Stream(text string) []string {
	return JoinSentences(t.TokenizeSentences(text))
}

// JoinSentences flattens sentences into a boundary-delimited stream.
func JoinSentences(sentences [][]string) []string {
	if len(sentences) == 0 {
		return nil
	}

	out := []string{vocab.SentenceBoundary}
	for _, s := range sentences {
		out = append(out, s...)
		out = append(out, vocab.SentenceBoundary)
	}
	return out
}

// processToken applies cleaning and stopword filtering. Tokens that collide
// with the reserved sentinels are dropped.
func (t *Tokenizer) processToken(token string) string {
	word := t.cleanToken(token)
	if word == "" || vocab.IsSentinel(word) {
		return ""
	}
	if t.isStopword(word) {
		return ""
	}
	return word
}

// cleanToken strips leading/trailing hyphens and normalizes consecutive hyphens
func (t *Tokenizer) cleanToken(token string) string {
	token = strings.Trim(token, "-")

	for strings.Contains(token, "--") {
		token = strings.ReplaceAll(token, "--", "-")
	}

	return token
}

func (t *Tokenizer) isStopword(word string) bool {
	_, ok := t.stopwords[strings.ToLower(word)]
	return ok
}

// AddStopword adds a word to the stopword list
func (t *Tokenizer) AddStopword(word string) {
	t.stopwords[strings.ToLower(word)] = struct{}{}
}

// RemoveStopword removes a word from the stopword list
func (t *Tokenizer) RemoveStopword(word string) {
	delete(t.stopwords, strings.ToLower(word))
}
