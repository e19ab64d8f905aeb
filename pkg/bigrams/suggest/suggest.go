// Package suggest ranks completion candidates by how likely they are to
// follow the previous word.
package suggest

import (
	"fmt"
	"io"
	"sort"

	"github.com/tchap/go-patricia/v2/patricia"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/cognicore/bigrams/pkg/bigrams"
	"github.com/cognicore/bigrams/pkg/bigrams/vocab"
)

// Suggestion is a ranked candidate.
type Suggestion struct {
	Word        string
	Probability float64
	Label       string // "word\tprobability"
}

// Ranker scores candidates against a bigram model. Candidate words are
// found by prefix in a trie of the vocabulary.
type Ranker struct {
	model  *bigrams.Model
	trie   *patricia.Trie
	words  int
	logger *zap.Logger
}

// NewRanker indexes words for prefix lookup. When words is empty, the
// model's training words are used. Sentinel tokens are never indexed.
func NewRanker(model *bigrams.Model, words []string, logger *zap.Logger) *Ranker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(words) == 0 {
		words = model.Words()
	}

	trie := patricia.NewTrie()
	n := 0
	for _, w := range words {
		if w == "" || vocab.IsSentinel(w) {
			continue
		}
		if trie.Insert(patricia.Prefix(w), struct{}{}) {
			n++
		}
	}

	return &Ranker{model: model, trie: trie, words: n, logger: logger}
}

// Len returns the number of indexed words.
func (r *Ranker) Len() int { return r.words }

// Candidates returns the indexed words that start with prefix, prefix
// itself included, in lexical order. An empty prefix returns every word.
func (r *Ranker) Candidates(prefix string) []string {
	var out []string
	err := r.trie.VisitSubtree(patricia.Prefix(prefix), func(p patricia.Prefix, item patricia.Item) error {
		out = append(out, string(p))
		return nil
	})
	if err != nil {
		r.logger.Error("visit vocabulary trie", zap.String("prefix", prefix), zap.Error(err))
	}
	sort.Strings(out)
	return out
}

// Rank scores each candidate as p(candidate | prev) and sorts them by
// descending probability, ties broken by word. Candidates that can not be
// scored get probability 0.
func (r *Ranker) Rank(prev string, candidates []string) []Suggestion {
	out := make([]Suggestion, 0, len(candidates))
	for _, c := range candidates {
		p, err := r.model.Probability(prev, c)
		if err != nil {
			r.logger.Debug("unscored candidate",
				zap.String("prev", prev),
				zap.String("candidate", c),
				zap.Error(err))
			p = 0
		}
		out = append(out, Suggestion{Word: c, Probability: p, Label: Label(c, p)})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Probability != out[j].Probability {
			return out[i].Probability > out[j].Probability
		}
		return out[i].Word < out[j].Word
	})
	return out
}

// Complete ranks the words starting with prefix after prev. limit <= 0
// returns all of them.
func (r *Ranker) Complete(prev, prefix string, limit int) []Suggestion {
	ranked := r.Rank(prev, r.Candidates(prefix))
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// Label formats a candidate for display next to its probability.
func Label(word string, p float64) string {
	return fmt.Sprintf("%s\t%2.2f", word, p)
}

// Response is the wire form of a completion answer for editor clients.
type Response struct {
	Prev        string           `msgpack:"prev"`
	Prefix      string           `msgpack:"p"`
	Suggestions []WireSuggestion `msgpack:"s"`
	Count       int              `msgpack:"c"`
}

// WireSuggestion is one ranked candidate on the wire.
type WireSuggestion struct {
	Word        string  `msgpack:"w"`
	Probability float64 `msgpack:"pr"`
}

// NewResponse packs ranked suggestions for prev and prefix.
func NewResponse(prev, prefix string, ranked []Suggestion) Response {
	resp := Response{
		Prev:        prev,
		Prefix:      prefix,
		Suggestions: make([]WireSuggestion, len(ranked)),
		Count:       len(ranked),
	}
	for i, s := range ranked {
		resp.Suggestions[i] = WireSuggestion{Word: s.Word, Probability: s.Probability}
	}
	return resp
}

// WriteResponse writes resp to w as a single msgpack message.
func WriteResponse(w io.Writer, resp Response) error {
	if err := msgpack.NewEncoder(w).Encode(resp); err != nil {
		return fmt.Errorf("encode completion response: %w", err)
	}
	return nil
}

// ReadResponse reads one msgpack message written by WriteResponse.
func ReadResponse(r io.Reader) (Response, error) {
	var resp Response
	if err := msgpack.NewDecoder(r).Decode(&resp); err != nil {
		return Response{}, fmt.Errorf("decode completion response: %w", err)
	}
	return resp, nil
}
