package counts

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/cognicore/bigrams/pkg/bigrams/dist"
	"github.com/cognicore/bigrams/pkg/bigrams/vocab"
)

const (
	// DefaultThreshold is the number of low counts re-estimated by Good-Turing.
	DefaultThreshold = 5
	// DefaultCacheSize bounds the number of cached per-token distributions.
	DefaultCacheSize = 100000
)

// Matrix is a sparse two dimensional matrix of bigram counts with default
// zero values. Rows are predecessor tokens, columns are followers.
type Matrix struct {
	rows  map[string]*row
	order []string // predecessors in first-seen order
	vocab int      // distinct tokens in the source sequence
	total int64    // bigrams scanned

	smooth    bool
	threshold int
	logger    *zap.Logger

	ccOnce        sync.Once
	countOfCounts map[string]map[int64]int64

	gtOnce     sync.Once
	goodTuring map[int64]float64

	uniOnce    sync.Once
	unigram    *dist.Distribution
	unigramErr error

	cache *lru.Cache[string, *dist.Distribution]
}

type row struct {
	followers []string // first-seen order
	counts    map[string]int64
	total     int64
}

// Option configures a Matrix.
type Option func(*config)

type config struct {
	smooth    bool
	threshold int
	cacheSize int
	logger    *zap.Logger
}

// WithSmoothing enables Good-Turing smoothed distributions.
func WithSmoothing(on bool) Option {
	return func(c *config) { c.smooth = on }
}

// WithThreshold sets how many low counts (0..n-1) are smoothed.
func WithThreshold(n int) Option {
	return func(c *config) { c.threshold = n }
}

// WithCacheSize bounds the per-token distribution cache.
func WithCacheSize(n int) Option {
	return func(c *config) { c.cacheSize = n }
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) { c.logger = l }
}

// NewMatrix counts every consecutive pair of tokens.
func NewMatrix(tokens []string, opts ...Option) (*Matrix, error) {
	cfg := config{
		threshold: DefaultThreshold,
		cacheSize: DefaultCacheSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.threshold <= 0 {
		cfg.threshold = DefaultThreshold
	}
	if cfg.cacheSize <= 0 {
		cfg.cacheSize = DefaultCacheSize
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	cache, err := lru.New[string, *dist.Distribution](cfg.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create distribution cache: %w", err)
	}

	m := &Matrix{
		rows:      make(map[string]*row),
		smooth:    cfg.smooth,
		threshold: cfg.threshold,
		logger:    cfg.logger,
		cache:     cache,
	}

	seen := make(map[string]struct{})
	for i, t := range tokens {
		seen[t] = struct{}{}
		if i+1 < len(tokens) {
			m.add(t, tokens[i+1])
		}
	}
	m.vocab = len(seen)

	m.logger.Debug("built bigram matrix",
		zap.Int("tokens", len(tokens)),
		zap.Int("predecessors", len(m.rows)),
		zap.Int("vocabulary", m.vocab),
		zap.Bool("smoothing", m.smooth))

	return m, nil
}

func (m *Matrix) add(pred, follower string) {
	r, ok := m.rows[pred]
	if !ok {
		r = &row{counts: make(map[string]int64)}
		m.rows[pred] = r
		m.order = append(m.order, pred)
	}
	if _, ok := r.counts[follower]; !ok {
		r.followers = append(r.followers, follower)
	}
	r.counts[follower]++
	r.total++
	m.total++
}

// Len returns the number of distinct predecessor tokens.
func (m *Matrix) Len() int { return len(m.rows) }

// VocabularySize returns the number of distinct tokens in the sequence.
func (m *Matrix) VocabularySize() int { return m.vocab }

// Smoothing reports whether distributions are Good-Turing smoothed.
func (m *Matrix) Smoothing() bool { return m.smooth }

// Count returns how many times follower was seen right after pred.
func (m *Matrix) Count(pred, follower string) int64 {
	if r, ok := m.rows[pred]; ok {
		return r.counts[follower]
	}
	return 0
}

// PredecessorCount returns how many times pred was followed by any token.
func (m *Matrix) PredecessorCount(pred string) int64 {
	if r, ok := m.rows[pred]; ok {
		return r.total
	}
	return 0
}

// Followers returns the distinct followers of pred in first-seen order.
func (m *Matrix) Followers(pred string) []string {
	r, ok := m.rows[pred]
	if !ok {
		return nil
	}
	out := make([]string, len(r.followers))
	copy(out, r.followers)
	return out
}

// Predecessors returns the distinct predecessor tokens in first-seen order.
func (m *Matrix) Predecessors() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// CountOfCounts returns, per predecessor, the number of followers seen
// exactly c times. The c=0 entry counts the vocabulary words never seen
// after that predecessor. Computed once; callers must not modify it.
func (m *Matrix) CountOfCounts() map[string]map[int64]int64 {
	m.ccOnce.Do(func() {
		m.countOfCounts = make(map[string]map[int64]int64, len(m.rows))
		for pred, r := range m.rows {
			cc := make(map[int64]int64)
			for _, c := range r.counts {
				cc[c]++
			}
			cc[0] = int64(m.vocab - len(r.counts))
			m.countOfCounts[pred] = cc
		}
		m.logger.Debug("computed count-of-counts", zap.Int("predecessors", len(m.countOfCounts)))
	})
	return m.countOfCounts
}

// GoodTuringTable maps low raw counts to their smoothed counts, estimated
// from the count-of-counts of all predecessors. Computed once; callers must
// not modify it.
func (m *Matrix) GoodTuringTable() map[int64]float64 {
	m.gtOnce.Do(func() {
		global := AggregateCountOfCounts(m.CountOfCounts())
		m.goodTuring = GoodTuring(global, m.threshold)
		m.logger.Debug("computed good-turing table",
			zap.Int("threshold", m.threshold),
			zap.Int("entries", len(m.goodTuring)))
	})
	return m.goodTuring
}

// UnigramDistribution returns the marginal distribution of predecessor
// tokens, each weighted by the number of bigrams it starts.
func (m *Matrix) UnigramDistribution() (*dist.Distribution, error) {
	m.uniOnce.Do(func() {
		pairs := make([]dist.Pair, 0, len(m.order))
		for _, pred := range m.order {
			pairs = append(pairs, dist.Pair{Item: pred, Count: m.rows[pred].total})
		}
		m.unigram, m.unigramErr = dist.New(pairs)
		if m.unigramErr != nil {
			m.unigramErr = fmt.Errorf("unigram distribution: %w", m.unigramErr)
		}
	})
	return m.unigram, m.unigramErr
}

// Distribution returns the distribution of tokens that follow token.
// Tokens never seen as predecessors resolve to vocab.Unknown. Without
// smoothing, a predecessor with no followers falls back to the unigram
// distribution.
//
// Distribution("the").Sample(r) gives words likely to occur after "the".
func (m *Matrix) Distribution(token string) (*dist.Distribution, error) {
	if _, ok := m.rows[token]; !ok {
		token = vocab.Unknown
	}
	if d, ok := m.cache.Get(token); ok {
		return d, nil
	}

	d, err := m.build(token)
	if err != nil {
		return nil, err
	}
	m.cache.Add(token, d)
	return d, nil
}

func (m *Matrix) build(token string) (*dist.Distribution, error) {
	m.logger.Debug("distribution cache miss", zap.String("token", token))

	r := m.rows[token]
	if !m.smooth {
		if r == nil || len(r.followers) == 0 {
			// no information -> use unigram
			return m.UnigramDistribution()
		}
		return dist.New(r.pairs())
	}

	var pairs []dist.Pair
	if r != nil {
		pairs = r.pairs()
	}
	d, err := dist.New(pairs, dist.WithSmoothing(m.GoodTuringTable(), m.CountOfCounts()[token]))
	if err != nil {
		return nil, fmt.Errorf("distribution for %q: %w", token, err)
	}
	return d, nil
}

func (r *row) pairs() []dist.Pair {
	pairs := make([]dist.Pair, len(r.followers))
	for i, f := range r.followers {
		pairs[i] = dist.Pair{Item: f, Count: r.counts[f]}
	}
	return pairs
}

// Stats summarises the matrix.
type Stats struct {
	Predecessors   int
	Vocabulary     int
	UniqueBigrams  int
	TotalBigrams   int64
	Smoothing      bool
	CachedEntries  int
	GoodTuringSize int
}

// Stats returns summary statistics. The Good-Turing table is only counted
// when smoothing is enabled.
func (m *Matrix) Stats() Stats {
	unique := 0
	for _, r := range m.rows {
		unique += len(r.counts)
	}
	s := Stats{
		Predecessors:  len(m.rows),
		Vocabulary:    m.vocab,
		UniqueBigrams: unique,
		TotalBigrams:  m.total,
		Smoothing:     m.smooth,
		CachedEntries: m.cache.Len(),
	}
	if m.smooth {
		s.GoodTuringSize = len(m.GoodTuringTable())
	}
	return s
}
