// Package bigrams is a bigram statistical language model: it predicts,
// scores and generates token sequences from counts of consecutive pairs.
package bigrams

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cognicore/bigrams/pkg/bigrams/counts"
	"github.com/cognicore/bigrams/pkg/bigrams/dist"
	"github.com/cognicore/bigrams/pkg/bigrams/internalerr"
	"github.com/cognicore/bigrams/pkg/bigrams/store"
	"github.com/cognicore/bigrams/pkg/bigrams/vocab"
)

const (
	// DefaultMaxSentenceWords caps the words sampled by GenerateSentence.
	DefaultMaxSentenceWords = 30
	// DefaultMaxResamples caps the draws spent rejecting sentinel tokens.
	DefaultMaxResamples = 1000
)

// Options configures a Model. Zero values select the defaults.
type Options struct {
	Smoothing        bool
	TrackRare        bool
	Threshold        int
	CacheSize        int
	MaxSentenceWords int
	MaxResamples     int
	Rand             dist.Source
	Logger           *zap.Logger
}

// Model is a bigram language model. It is read-only after construction
// apart from memoised derived state, and safe for concurrent use.
type Model struct {
	tokens    []string
	words     []string
	smoothing bool
	matrix    *counts.Matrix

	maxWords     int
	maxResamples int
	logger       *zap.Logger

	mu  sync.Mutex // guards rng
	rng dist.Source
}

// New builds a model from a token sequence. With TrackRare the first
// occurrence of every word is counted as vocab.Unknown, which gives the
// model statistics for words it has never seen.
func New(tokens []string, opts Options) (*Model, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxSentenceWords <= 0 {
		opts.MaxSentenceWords = DefaultMaxSentenceWords
	}
	if opts.MaxResamples <= 0 {
		opts.MaxResamples = DefaultMaxResamples
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	words := vocab.Words(tokens)
	if opts.TrackRare {
		tokens = vocab.ReplaceFirstOccurrences(tokens)
	} else {
		tokens = append([]string(nil), tokens...)
	}

	matrix, err := counts.NewMatrix(tokens,
		counts.WithSmoothing(opts.Smoothing),
		counts.WithThreshold(opts.Threshold),
		counts.WithCacheSize(opts.CacheSize),
		counts.WithLogger(opts.Logger),
	)
	if err != nil {
		return nil, err
	}

	return &Model{
		tokens:       tokens,
		words:        words,
		smoothing:    opts.Smoothing,
		matrix:       matrix,
		maxWords:     opts.MaxSentenceWords,
		maxResamples: opts.MaxResamples,
		logger:       opts.Logger,
		rng:          opts.Rand,
	}, nil
}

// Train builds a model from every document in the corpus store, in
// insertion order.
func Train(ctx context.Context, st store.Store, opts Options) (*Model, error) {
	docs, err := st.ListDocs(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("list corpus: %w", err)
	}

	streams := make([][]string, len(docs))
	for i, d := range docs {
		streams[i] = d.Tokens
	}
	tokens := JoinStreams(streams...)

	if opts.Logger != nil {
		opts.Logger.Info("training bigram model",
			zap.Int("documents", len(docs)),
			zap.Int("tokens", len(tokens)),
			zap.Bool("smoothing", opts.Smoothing),
			zap.Bool("track_rare", opts.TrackRare))
	}

	return New(tokens, opts)
}

// JoinStreams concatenates token streams. A sentence boundary ending one
// stream is not repeated when the next one starts with a boundary.
func JoinStreams(streams ...[]string) []string {
	var out []string
	for _, s := range streams {
		if len(s) == 0 {
			continue
		}
		if len(out) > 0 && out[len(out)-1] == vocab.SentenceBoundary && s[0] == vocab.SentenceBoundary {
			s = s[1:]
		}
		out = append(out, s...)
	}
	return out
}

// Tokens returns the sequence the model was counted from, after any
// rare-word rewrite.
func (m *Model) Tokens() []string {
	return append([]string(nil), m.tokens...)
}

// Words returns the distinct words of the training sequence in first-seen
// order, including words the rare-word rewrite hid from the counts.
func (m *Model) Words() []string {
	return append([]string(nil), m.words...)
}

// Matrix exposes the underlying count matrix.
func (m *Model) Matrix() *counts.Matrix { return m.matrix }

// Smoothing reports whether Good-Turing smoothing is enabled.
func (m *Model) Smoothing() bool { return m.smoothing }

// PredictNext samples a token from the distribution of tokens that follow
// token.
func (m *Model) PredictNext(token string) (string, error) {
	d, err := m.matrix.Distribution(token)
	if err != nil {
		return "", err
	}
	return m.sample(d), nil
}

func (m *Model) sample(d *dist.Distribution) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return d.Sample(m.rng)
}

// Surprisal returns -log p(follower | token). When no distribution can be
// built for token, the UNKNOWN_TOKEN distribution is used instead.
func (m *Model) Surprisal(token, follower string) (float64, error) {
	d, err := m.matrix.Distribution(token)
	if err != nil {
		d, err = m.matrix.Distribution(vocab.Unknown)
		if err != nil {
			return 0, fmt.Errorf("context %q: %w: %w", token, internalerr.ErrUnknownContext, err)
		}
	}
	return d.Surprisal(follower)
}

// Probability returns p(follower | token). Unlike Surprisal it does not
// recover when no distribution exists for token: it returns 0 and the error.
func (m *Model) Probability(token, follower string) (float64, error) {
	d, err := m.matrix.Distribution(token)
	if err != nil {
		return 0, fmt.Errorf("context %q: %w: %w", token, internalerr.ErrUnknownContext, err)
	}
	return d.Probability(follower)
}

// GenerateSentence returns a randomly generated sentence, optionally
// continuing the given initial words. Generation stops at a sentence
// boundary; after MaxSentenceWords sampled words the sentence is cut and an
// ellipsis appended. UNKNOWN_TOKEN is never emitted.
func (m *Model) GenerateSentence(initial string) (string, error) {
	words := strings.Fields(initial)
	sampled := 0

	if len(words) == 0 {
		opener, ok, err := m.draw(vocab.SentenceBoundary, true)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", fmt.Errorf("sentence opener: %w", internalerr.ErrGenerationStalled)
		}
		words = append(words, opener)
		sampled++
	}

	for {
		if sampled >= m.maxWords {
			words = append(words, vocab.Ellipsis)
			break
		}

		next, ok, err := m.draw(words[len(words)-1], false)
		if err != nil {
			return "", err
		}
		if !ok || next == vocab.SentenceBoundary {
			break
		}
		words = append(words, next)
		sampled++
	}

	return strings.Join(words, " "), nil
}

// draw samples a follower of prev, rejecting UNKNOWN_TOKEN (and the
// sentence boundary too when rejectBoundary is set). ok is false when
// MaxResamples draws produced nothing usable.
func (m *Model) draw(prev string, rejectBoundary bool) (string, bool, error) {
	d, err := m.matrix.Distribution(prev)
	if err != nil {
		return "", false, err
	}
	for i := 0; i < m.maxResamples; i++ {
		next := m.sample(d)
		if next == vocab.Unknown {
			continue
		}
		if rejectBoundary && next == vocab.SentenceBoundary {
			continue
		}
		return next, true, nil
	}
	m.logger.Debug("gave up resampling", zap.String("prev", prev), zap.Int("draws", m.maxResamples))
	return "", false, nil
}

// Perplexity is the exponentiated average surprisal of tokens, the first
// token being scored as following a sentence boundary.
func (m *Model) Perplexity(tokens []string) (float64, error) {
	if len(tokens) == 0 {
		return 0, internalerr.ErrEmptySequence
	}

	total, err := m.Surprisal(vocab.SentenceBoundary, tokens[0])
	if err != nil {
		return 0, err
	}
	for i := 0; i < len(tokens)-1; i++ {
		s, err := m.Surprisal(tokens[i], tokens[i+1])
		if err != nil {
			return 0, err
		}
		total += s
	}

	return math.Exp(total / float64(len(tokens))), nil
}

// Stats describes a trained model.
type Stats struct {
	Tokens int
	Matrix counts.Stats
}

// Stats returns summary statistics for the model.
func (m *Model) Stats() Stats {
	return Stats{
		Tokens: len(m.tokens),
		Matrix: m.matrix.Stats(),
	}
}
