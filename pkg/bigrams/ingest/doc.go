package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Doc is a raw corpus document before tokenization
type Doc struct {
	Source  string // file path or URL
	Title   string
	Body    string
	AddedAt time.Time
}

// Validate checks if the document has required fields
func (d *Doc) Validate() error {
	if strings.TrimSpace(d.Source) == "" {
		return errors.New("doc source is required")
	}

	if strings.TrimSpace(d.Body) == "" {
		return errors.New("doc body is required")
	}

	return nil
}

// ReadFile loads a corpus document from disk. The title is the file name
// without its extension.
func ReadFile(path string) (Doc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Doc{}, err
	}

	base := filepath.Base(path)
	return Doc{
		Source:  path,
		Title:   strings.TrimSuffix(base, filepath.Ext(base)),
		Body:    string(data),
		AddedAt: time.Now(),
	}, nil
}
