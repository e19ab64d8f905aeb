package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/cognicore/bigrams/pkg/bigrams/internalerr"
	"github.com/cognicore/bigrams/pkg/bigrams/store"
)

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db     *sql.DB
	ids    *store.IDGenerator
	logger *zap.Logger
}

// OpenSQLite opens a SQLite corpus database with WAL mode enabled.
// An optional logger receives debug output; it defaults to a no-op logger.
func OpenSQLite(ctx context.Context, path string, logger ...*zap.Logger) (store.Store, error) {
	l := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, unavailable(path, err)
	}
	// PRAGMAs are per connection
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, unavailable(path, err)
	}

	// Enable foreign keys
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, unavailable(path, err)
	}

	// Initialize schema
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, unavailable(path, err)
	}

	l.Debug("opened corpus database", zap.String("path", path))

	return &sqliteStore{
		db:     db,
		ids:    store.NewIDGenerator(),
		logger: l,
	}, nil
}

func unavailable(path string, err error) error {
	return fmt.Errorf("open %s: %w: %w", path, internalerr.ErrStoreUnavailable, err)
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS docs (
	id TEXT PRIMARY KEY,
	source TEXT UNIQUE NOT NULL,
	title TEXT,
	added_at TEXT
);

CREATE TABLE IF NOT EXISTS doc_tokens (
	doc_id TEXT NOT NULL,
	pos INTEGER NOT NULL,
	token TEXT NOT NULL,
	PRIMARY KEY(doc_id, pos),
	FOREIGN KEY(doc_id) REFERENCES docs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_doc_tokens_token ON doc_tokens(token);
`

	_, err := db.ExecContext(ctx, schema)
	return err
}

// UpsertDoc inserts or replaces a document, keyed by source
func (s *sqliteStore) UpsertDoc(ctx context.Context, d store.Doc) (string, error) {
	if d.Source == "" {
		return "", fmt.Errorf("doc source is required: %w", internalerr.ErrInvalidInput)
	}
	if d.AddedAt.IsZero() {
		d.AddedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var docID string
	err = tx.QueryRowContext(ctx, `SELECT id FROM docs WHERE source = ?`, d.Source).Scan(&docID)
	if errors.Is(err, sql.ErrNoRows) {
		docID = s.ids.New(time.Now())
	} else if err != nil {
		return "", err
	}

	const stmt = `
INSERT INTO docs (id, source, title, added_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(source) DO UPDATE SET
	title=excluded.title,
	added_at=excluded.added_at;
`
	if _, err := tx.ExecContext(ctx, stmt, docID, d.Source, d.Title, d.AddedAt.UTC().Format(time.RFC3339Nano)); err != nil {
		return "", err
	}

	if err := replaceDocTokens(ctx, tx, docID, d.Tokens); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}

	s.logger.Debug("stored corpus document",
		zap.String("id", docID),
		zap.String("source", d.Source),
		zap.Int("tokens", len(d.Tokens)))
	return docID, nil
}

func replaceDocTokens(ctx context.Context, tx *sql.Tx, docID string, tokens []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM doc_tokens WHERE doc_id=?`, docID); err != nil {
		return err
	}
	if len(tokens) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO doc_tokens (doc_id, pos, token) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for pos, tok := range tokens {
		if _, err := stmt.ExecContext(ctx, docID, pos, tok); err != nil {
			return err
		}
	}
	return nil
}

// GetDoc retrieves a document by ID
func (s *sqliteStore) GetDoc(ctx context.Context, id string) (store.Doc, bool, error) {
	return s.loadDoc(ctx, `SELECT id, source, title, added_at FROM docs WHERE id = ?`, id)
}

// GetDocBySource retrieves a document by source
func (s *sqliteStore) GetDocBySource(ctx context.Context, source string) (store.Doc, bool, error) {
	return s.loadDoc(ctx, `SELECT id, source, title, added_at FROM docs WHERE source = ?`, source)
}

// DeleteDoc removes a document and its tokens
func (s *sqliteStore) DeleteDoc(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM docs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("doc %s: %w", id, internalerr.ErrNotFound)
	}
	return nil
}

// ListDocs returns documents ordered by ID, which is insertion order
func (s *sqliteStore) ListDocs(ctx context.Context, limit int) ([]store.Doc, error) {
	query := `SELECT id, source, title, added_at FROM docs ORDER BY id`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	var docs []store.Doc
	for rows.Next() {
		doc, err := scanDoc(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range docs {
		tokens, err := s.loadTokens(ctx, docs[i].ID)
		if err != nil {
			return nil, err
		}
		docs[i].Tokens = tokens
	}
	return docs, nil
}

// Stats summarises the corpus
func (s *sqliteStore) Stats(ctx context.Context) (store.Stats, error) {
	var st store.Stats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM docs`).Scan(&st.Docs); err != nil {
		return store.Stats{}, err
	}
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*), COUNT(DISTINCT token) FROM doc_tokens`).Scan(&st.Tokens, &st.Types)
	if err != nil {
		return store.Stats{}, err
	}
	return st, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDoc(r rowScanner) (store.Doc, error) {
	var (
		doc     store.Doc
		title   sql.NullString
		addedAt sql.NullString
	)
	if err := r.Scan(&doc.ID, &doc.Source, &title, &addedAt); err != nil {
		return store.Doc{}, err
	}
	doc.Title = title.String
	if addedAt.Valid {
		if ts, err := time.Parse(time.RFC3339Nano, addedAt.String); err == nil {
			doc.AddedAt = ts
		}
	}
	return doc, nil
}

func (s *sqliteStore) loadDoc(ctx context.Context, query string, arg string) (store.Doc, bool, error) {
	doc, err := scanDoc(s.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return store.Doc{}, false, nil
	}
	if err != nil {
		return store.Doc{}, false, err
	}

	doc.Tokens, err = s.loadTokens(ctx, doc.ID)
	if err != nil {
		return store.Doc{}, false, err
	}
	return doc, true, nil
}

func (s *sqliteStore) loadTokens(ctx context.Context, docID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT token FROM doc_tokens WHERE doc_id = ? ORDER BY pos`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var tok string
		if err := rows.Scan(&tok); err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
	}
	return tokens, rows.Err()
}
