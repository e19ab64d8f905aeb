package suggest

import (
	"bytes"
	"math/rand"
	"reflect"
	"testing"

	"github.com/cognicore/bigrams/pkg/bigrams"
	"github.com/cognicore/bigrams/pkg/bigrams/vocab"
)

const B = vocab.SentenceBoundary

func newRanker(t *testing.T, tokens []string, words []string) *Ranker {
	t.Helper()
	m, err := bigrams.New(tokens, bigrams.Options{Rand: rand.New(rand.NewSource(1))})
	if err != nil {
		t.Fatalf("bigrams.New: %v", err)
	}
	return NewRanker(m, words, nil)
}

var corpus = []string{
	B, "the", "cat", "sat", B,
	"the", "car", "stopped", B,
	"the", "cat", "ran", B,
	"a", "cart", "rolled", B,
}

func TestCandidates(t *testing.T) {
	r := newRanker(t, corpus, nil)

	if got, want := r.Candidates("ca"), []string{"car", "cart", "cat"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Candidates(ca) = %v, want %v", got, want)
	}
	if got, want := r.Candidates("car"), []string{"car", "cart"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Candidates(car) = %v, want %v", got, want)
	}
	if got := r.Candidates("zz"); len(got) != 0 {
		t.Errorf("Candidates(zz) = %v, want none", got)
	}

	all := r.Candidates("")
	if len(all) != r.Len() {
		t.Errorf("Candidates(\"\") returned %d words, want %d", len(all), r.Len())
	}
	for _, w := range all {
		if vocab.IsSentinel(w) {
			t.Errorf("sentinel %q offered as candidate", w)
		}
	}
}

func TestRank(t *testing.T) {
	r := newRanker(t, corpus, nil)

	got := r.Rank("the", []string{"car", "cart", "cat"})
	want := []struct {
		word string
		p    float64
	}{
		{"cat", 2.0 / 3},
		{"car", 1.0 / 3},
		{"cart", 0},
	}
	if len(got) != len(want) {
		t.Fatalf("Rank returned %d suggestions, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Word != w.word || got[i].Probability != w.p {
			t.Errorf("suggestion %d = %s %.3f, want %s %.3f", i, got[i].Word, got[i].Probability, w.word, w.p)
		}
	}
	if got[0].Label != "cat\t0.67" {
		t.Errorf("label = %q", got[0].Label)
	}
}

func TestRankTiesByWord(t *testing.T) {
	r := newRanker(t, corpus, nil)

	got := r.Rank("sat", []string{"zebra", "apple", "mango"})
	for i, w := range []string{"apple", "mango", "zebra"} {
		if got[i].Word != w {
			t.Errorf("position %d = %q, want %q", i, got[i].Word, w)
		}
	}
}

func TestComplete(t *testing.T) {
	r := newRanker(t, corpus, nil)

	got := r.Complete("the", "ca", 1)
	if len(got) != 1 || got[0].Word != "cat" {
		t.Errorf("Complete(the, ca, 1) = %v", got)
	}
	if got := r.Complete("the", "ca", 0); len(got) != 3 {
		t.Errorf("Complete without limit returned %d", len(got))
	}
}

func TestExplicitWords(t *testing.T) {
	r := newRanker(t, corpus, []string{"cat", "cat", "", B, "catalog"})

	if r.Len() != 2 {
		t.Errorf("Len = %d, want 2", r.Len())
	}
	if got, want := r.Candidates("cat"), []string{"cat", "catalog"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Candidates(cat) = %v, want %v", got, want)
	}
}

func TestRankerIndexesRareWords(t *testing.T) {
	m, err := bigrams.New(corpus, bigrams.Options{TrackRare: true, Rand: rand.New(rand.NewSource(1))})
	if err != nil {
		t.Fatalf("bigrams.New: %v", err)
	}
	r := NewRanker(m, nil, nil)

	// "cart" occurs once and is counted as UNKNOWN, but is still offered
	if got, want := r.Candidates("car"), []string{"car", "cart"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Candidates(car) = %v, want %v", got, want)
	}
}

func TestResponseWire(t *testing.T) {
	r := newRanker(t, corpus, nil)
	ranked := r.Complete("the", "ca", 2)

	var buf bytes.Buffer
	if err := WriteResponse(&buf, NewResponse("the", "ca", ranked)); err != nil {
		t.Fatalf("WriteResponse: %v", err)
	}

	resp, err := ReadResponse(&buf)
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	if resp.Prev != "the" || resp.Prefix != "ca" || resp.Count != 2 {
		t.Errorf("header = %+v", resp)
	}
	if len(resp.Suggestions) != 2 || resp.Suggestions[0].Word != "cat" || resp.Suggestions[0].Probability != 2.0/3 {
		t.Errorf("suggestions = %+v", resp.Suggestions)
	}

	if _, err := ReadResponse(bytes.NewReader([]byte{0xc1})); err == nil {
		t.Error("Expected error decoding garbage")
	}
}

func TestCompleteRanksTypedWord(t *testing.T) {
	r := newRanker(t, corpus, nil)

	got := r.Complete("the", "cat", 0)
	if len(got) != 1 || got[0].Word != "cat" || got[0].Probability != 2.0/3 {
		t.Errorf("Complete(the, cat) = %+v, want cat at 2/3", got)
	}
}
