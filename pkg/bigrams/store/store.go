package store

import (
	"context"
	"time"
)

// Store persists the training corpus: documents and their token streams.
// Trained models are never stored; they are rebuilt from the corpus.
type Store interface {
	Close() error

	// UpsertDoc inserts a document, or replaces the one with the same
	// Source, and returns its ID.
	UpsertDoc(ctx context.Context, d Doc) (string, error)
	GetDoc(ctx context.Context, id string) (Doc, bool, error)
	GetDocBySource(ctx context.Context, source string) (Doc, bool, error)
	DeleteDoc(ctx context.Context, id string) error

	// ListDocs returns documents in insertion order. limit <= 0 means all.
	ListDocs(ctx context.Context, limit int) ([]Doc, error)

	Stats(ctx context.Context) (Stats, error)
}

// Doc is one corpus document.
type Doc struct {
	ID      string // ULID, assigned by the store
	Source  string // file path or URL, unique
	Title   string
	AddedAt time.Time
	Tokens  []string
}

// Stats summarises the corpus.
type Stats struct {
	Docs   int
	Tokens int64
	Types  int64 // distinct tokens
}
