package bigrams

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/cognicore/bigrams/pkg/bigrams/ingest"
	"github.com/cognicore/bigrams/pkg/bigrams/internalerr"
	"github.com/cognicore/bigrams/pkg/bigrams/store"
	"github.com/cognicore/bigrams/pkg/bigrams/store/memstore"
	"github.com/cognicore/bigrams/pkg/bigrams/vocab"
)

const B = vocab.SentenceBoundary

var catDog = []string{B, "the", "cat", B, "the", "dog", B}

func mustModel(t *testing.T, tokens []string, opts Options) *Model {
	t.Helper()
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(1))
	}
	m, err := New(tokens, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func TestProbabilityAndSurprisal(t *testing.T) {
	m := mustModel(t, catDog, Options{})

	p, err := m.Probability("the", "cat")
	if err != nil {
		t.Fatalf("Probability: %v", err)
	}
	if p != 0.5 {
		t.Errorf("p(cat|the) = %v, want 0.5", p)
	}

	s, err := m.Surprisal("the", "cat")
	if err != nil {
		t.Fatalf("Surprisal: %v", err)
	}
	if math.Abs(s-math.Ln2) > 1e-12 {
		t.Errorf("surprisal = %v, want ln 2", s)
	}

	s, err = m.Surprisal("the", "the")
	if err != nil {
		t.Fatalf("Surprisal: %v", err)
	}
	if !math.IsInf(s, 1) {
		t.Errorf("unseen follower surprisal = %v, want +Inf", s)
	}
}

func TestSmoothedModelWithoutUnknown(t *testing.T) {
	m := mustModel(t, catDog, Options{Smoothing: true})

	p, err := m.Probability("zebra", "cat")
	if err == nil {
		t.Fatalf("expected error, got p=%v", p)
	}
	if p != 0 {
		t.Errorf("p = %v on error, want 0", p)
	}
	if !errors.Is(err, internalerr.ErrUnknownContext) {
		t.Errorf("error %v should wrap ErrUnknownContext", err)
	}
	if !errors.Is(err, internalerr.ErrEmptyDistribution) {
		t.Errorf("error %v should wrap ErrEmptyDistribution", err)
	}

	if _, err := m.Surprisal("zebra", "cat"); !errors.Is(err, internalerr.ErrUnknownContext) {
		t.Errorf("Surprisal error = %v, want ErrUnknownContext", err)
	}

	// known contexts still score with smoothing
	p, err = m.Probability("the", "cat")
	if err != nil {
		t.Fatalf("Probability: %v", err)
	}
	if math.Abs(p-5.5/19) > 1e-12 {
		t.Errorf("smoothed p(cat|the) = %v, want %v", p, 5.5/19)
	}
}

func TestSurprisalFallsBackToUnknown(t *testing.T) {
	tokens := []string{B, "a", "b", B, "a", "c", B, "a", "b", B}
	m := mustModel(t, tokens, Options{Smoothing: true, TrackRare: true})

	want, err := m.Surprisal(vocab.Unknown, "a")
	if err != nil {
		t.Fatalf("Surprisal(UNKNOWN): %v", err)
	}
	got, err := m.Surprisal("never-seen", "a")
	if err != nil {
		t.Fatalf("Surprisal(never-seen): %v", err)
	}
	if got != want {
		t.Errorf("unseen context surprisal = %v, want UNKNOWN's %v", got, want)
	}
}

func TestTrackRareRewritesFirstOccurrences(t *testing.T) {
	m := mustModel(t, catDog, Options{TrackRare: true})

	want := []string{B, vocab.Unknown, vocab.Unknown, B, "the", vocab.Unknown, B}
	got := m.Tokens()
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("tokens = %v, want %v", got, want)
	}
	if catDog[1] != "the" {
		t.Error("input sequence was modified")
	}
}

func TestPredictNext(t *testing.T) {
	m := mustModel(t, catDog, Options{})

	for i := 0; i < 50; i++ {
		next, err := m.PredictNext("the")
		if err != nil {
			t.Fatalf("PredictNext: %v", err)
		}
		if next != "cat" && next != "dog" {
			t.Fatalf("PredictNext(the) = %q", next)
		}
	}
}

func TestGenerateSentence(t *testing.T) {
	m := mustModel(t, catDog, Options{})

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		s, err := m.GenerateSentence("")
		if err != nil {
			t.Fatalf("GenerateSentence: %v", err)
		}
		seen[s] = true
	}
	for s := range seen {
		if s != "the cat" && s != "the dog" {
			t.Errorf("unexpected sentence %q", s)
		}
	}
}

func TestGenerateSentenceContinuesInitialWords(t *testing.T) {
	m := mustModel(t, catDog, Options{})

	s, err := m.GenerateSentence("look at the")
	if err != nil {
		t.Fatalf("GenerateSentence: %v", err)
	}
	if s != "look at the cat" && s != "look at the dog" {
		t.Errorf("sentence = %q", s)
	}
}

func TestGenerateSentenceEllipsis(t *testing.T) {
	m := mustModel(t, []string{B, "a", "a"}, Options{})

	s, err := m.GenerateSentence("")
	if err != nil {
		t.Fatalf("GenerateSentence: %v", err)
	}
	words := strings.Fields(s)
	if len(words) != DefaultMaxSentenceWords+1 {
		t.Fatalf("got %d words, want %d", len(words), DefaultMaxSentenceWords+1)
	}
	if words[len(words)-1] != vocab.Ellipsis {
		t.Errorf("last word = %q, want %q", words[len(words)-1], vocab.Ellipsis)
	}

	m = mustModel(t, []string{B, "a", "a"}, Options{MaxSentenceWords: 3})
	s, err = m.GenerateSentence("")
	if err != nil {
		t.Fatalf("GenerateSentence: %v", err)
	}
	if s != "a a a ..." {
		t.Errorf("sentence = %q, want %q", s, "a a a ...")
	}
}

func TestGenerateSentenceNeverEmitsUnknown(t *testing.T) {
	tokens := strings.Fields("B the cat sat on the mat B the dog sat on a log B a cat saw a dog B")
	for i, tok := range tokens {
		if tok == "B" {
			tokens[i] = B
		}
	}
	for _, smoothing := range []bool{false, true} {
		m := mustModel(t, tokens, Options{TrackRare: true, Smoothing: smoothing})
		for i := 0; i < 200; i++ {
			s, err := m.GenerateSentence("")
			if err != nil {
				if errors.Is(err, internalerr.ErrGenerationStalled) {
					continue
				}
				t.Fatalf("GenerateSentence: %v", err)
			}
			words := strings.Fields(s)
			if len(words) > DefaultMaxSentenceWords+1 {
				t.Fatalf("sentence too long: %d words", len(words))
			}
			for _, w := range words {
				if w == vocab.Unknown || w == B {
					t.Fatalf("sentence %q contains sentinel %q", s, w)
				}
			}
		}
	}
}

func TestGenerateSentenceStalledContinuation(t *testing.T) {
	// "the" is only ever followed by UNKNOWN after the rare-word rewrite
	m := mustModel(t, catDog, Options{TrackRare: true, MaxResamples: 10})

	s, err := m.GenerateSentence("")
	if err != nil {
		t.Fatalf("GenerateSentence: %v", err)
	}
	if s != "the" {
		t.Errorf("sentence = %q, want %q", s, "the")
	}
}

func TestGenerateSentenceStalledOpener(t *testing.T) {
	m := mustModel(t, []string{B, B, "x"}, Options{MaxResamples: 10})

	_, err := m.GenerateSentence("")
	if !errors.Is(err, internalerr.ErrGenerationStalled) {
		t.Errorf("err = %v, want ErrGenerationStalled", err)
	}
}

func TestPerplexity(t *testing.T) {
	m := mustModel(t, catDog, Options{})

	pp, err := m.Perplexity([]string{"the", "cat"})
	if err != nil {
		t.Fatalf("Perplexity: %v", err)
	}
	if math.Abs(pp-math.Sqrt2) > 1e-12 {
		t.Errorf("perplexity = %v, want sqrt(2)", pp)
	}

	pp, err = m.Perplexity([]string{"the", "the"})
	if err != nil {
		t.Fatalf("Perplexity: %v", err)
	}
	if !math.IsInf(pp, 1) {
		t.Errorf("perplexity with unseen bigram = %v, want +Inf", pp)
	}

	if _, err := m.Perplexity(nil); !errors.Is(err, internalerr.ErrEmptySequence) {
		t.Errorf("empty sequence err = %v, want ErrEmptySequence", err)
	}
}

func TestPerplexitySmoothedIsFinite(t *testing.T) {
	tokens := []string{B, "a", "b", B, "a", "c", B, "a", "b", B, "c", "b", B}
	m := mustModel(t, tokens, Options{Smoothing: true, TrackRare: true})

	pp, err := m.Perplexity([]string{"c", "a", "zzz"})
	if err != nil {
		t.Fatalf("Perplexity: %v", err)
	}
	if math.IsInf(pp, 0) || math.IsNaN(pp) || pp < 1 {
		t.Errorf("perplexity = %v, want finite value >= 1", pp)
	}
}

func TestJoinStreams(t *testing.T) {
	got := JoinStreams(
		[]string{B, "a", B},
		nil,
		[]string{B, "b", B},
		[]string{"c"},
	)
	want := []string{B, "a", B, "b", B, "c"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("JoinStreams = %v, want %v", got, want)
	}
}

func TestTrainFromStore(t *testing.T) {
	ctx := context.Background()

	st := memstore.New()
	defer st.Close()

	pipeline := ingest.NewPipeline(ingest.NewTokenizer(nil))
	docs := []ingest.Doc{
		{Source: "one.txt", Title: "one", Body: "The cat sat. The dog sat.", AddedAt: time.Now()},
		{Source: "two.txt", Title: "two", Body: "The cat ran.", AddedAt: time.Now()},
	}
	for _, d := range docs {
		sd, err := pipeline.ToStoreDoc(d)
		if err != nil {
			t.Fatalf("ToStoreDoc: %v", err)
		}
		if _, err := st.UpsertDoc(ctx, sd); err != nil {
			t.Fatalf("UpsertDoc: %v", err)
		}
	}

	m, err := Train(ctx, st, Options{Rand: rand.New(rand.NewSource(7))})
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	p, err := m.Probability("the", "cat")
	if err != nil {
		t.Fatalf("Probability: %v", err)
	}
	if math.Abs(p-2.0/3) > 1e-12 {
		t.Errorf("p(cat|the) = %v, want 2/3", p)
	}

	for i := 1; i < len(m.Tokens()); i++ {
		if m.Tokens()[i] == B && m.Tokens()[i-1] == B {
			t.Fatalf("doubled boundary at %d: %v", i, m.Tokens())
		}
	}

	stats := m.Stats()
	if stats.Tokens != len(m.Tokens()) {
		t.Errorf("Stats.Tokens = %d, want %d", stats.Tokens, len(m.Tokens()))
	}
}

func TestTrainEmptyStore(t *testing.T) {
	st := memstore.New()
	defer st.Close()

	var _ store.Store = st
	m, err := Train(context.Background(), st, Options{})
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if len(m.Tokens()) != 0 {
		t.Errorf("tokens = %v, want none", m.Tokens())
	}
}

func TestWordsKeepsRareWords(t *testing.T) {
	m := mustModel(t, catDog, Options{TrackRare: true})

	if got, want := strings.Join(m.Words(), " "), "the cat dog"; got != want {
		t.Errorf("Words = %q, want %q", got, want)
	}
}
