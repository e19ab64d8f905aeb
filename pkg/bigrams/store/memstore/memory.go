package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cognicore/bigrams/pkg/bigrams/internalerr"
	"github.com/cognicore/bigrams/pkg/bigrams/store"
)

// Store is an in-memory implementation of store.Store for tests.
type Store struct {
	mu          sync.RWMutex
	ids         *store.IDGenerator
	docs        map[string]store.Doc
	sourceIndex map[string]string
	now         func() time.Time
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		ids:         store.NewIDGenerator(),
		docs:        make(map[string]store.Doc),
		sourceIndex: make(map[string]string),
		now:         time.Now,
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// UpsertDoc inserts or replaces a document, keyed by Source.
func (s *Store) UpsertDoc(ctx context.Context, d store.Doc) (string, error) {
	if d.Source == "" {
		return "", fmt.Errorf("doc source is required: %w", internalerr.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if d.AddedAt.IsZero() {
		d.AddedAt = s.now()
	}

	if existingID, ok := s.sourceIndex[d.Source]; ok {
		d.ID = existingID
	} else {
		d.ID = s.ids.New(s.now())
		s.sourceIndex[d.Source] = d.ID
	}

	s.docs[d.ID] = copyDoc(d)
	return d.ID, nil
}

// GetDoc returns a document by ID.
func (s *Store) GetDoc(ctx context.Context, id string) (store.Doc, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if doc, ok := s.docs[id]; ok {
		return copyDoc(doc), true, nil
	}
	return store.Doc{}, false, nil
}

// GetDocBySource returns a document by its source.
func (s *Store) GetDocBySource(ctx context.Context, source string) (store.Doc, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id, ok := s.sourceIndex[source]; ok {
		if doc, exists := s.docs[id]; exists {
			return copyDoc(doc), true, nil
		}
	}
	return store.Doc{}, false, nil
}

// DeleteDoc removes a document. Deleting a missing ID returns ErrNotFound.
func (s *Store) DeleteDoc(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return fmt.Errorf("doc %s: %w", id, internalerr.ErrNotFound)
	}
	delete(s.docs, id)
	delete(s.sourceIndex, doc.Source)
	return nil
}

// ListDocs returns documents ordered by ID, which is insertion order.
func (s *Store) ListDocs(ctx context.Context, limit int) ([]store.Doc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	out := make([]store.Doc, len(ids))
	for i, id := range ids {
		out[i] = copyDoc(s.docs[id])
	}
	return out, nil
}

// Stats implements store.Store.
func (s *Store) Stats(ctx context.Context) (store.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	types := make(map[string]struct{})
	st := store.Stats{Docs: len(s.docs)}
	for _, doc := range s.docs {
		st.Tokens += int64(len(doc.Tokens))
		for _, t := range doc.Tokens {
			types[t] = struct{}{}
		}
	}
	st.Types = int64(len(types))
	return st, nil
}

func copyDoc(d store.Doc) store.Doc {
	d.Tokens = append([]string(nil), d.Tokens...)
	return d
}
