package ingest

import (
	"github.com/cognicore/bigrams/pkg/bigrams/store"
)

// Pipeline orchestrates the ingestion flow:
// raw document → HTML text extraction → sentence tokenization → token stream
type Pipeline struct {
	tokenizer *Tokenizer
}

// NewPipeline creates an ingestion pipeline with the given tokenizer
func NewPipeline(tokenizer *Tokenizer) *Pipeline {
	if tokenizer == nil {
		tokenizer = NewTokenizer(nil)
	}
	return &Pipeline{tokenizer: tokenizer}
}

// ProcessedDoc represents a document after ingestion processing
type ProcessedDoc struct {
	Tokens    []string // boundary-delimited token stream
	Sentences int
	HTML      bool
}

// Process runs a document through the ingestion pipeline
func (p *Pipeline) Process(d Doc) ProcessedDoc {
	text := d.Body
	isHTML := IsHTML(text)
	if isHTML {
		text = ExtractText(text)
	}

	sentences := p.tokenizer.TokenizeSentences(text)
	return ProcessedDoc{
		Tokens:    JoinSentences(sentences),
		Sentences: len(sentences),
		HTML:      isHTML,
	}
}

// ToStoreDoc validates and processes d into a corpus store document
func (p *Pipeline) ToStoreDoc(d Doc) (store.Doc, error) {
	if err := d.Validate(); err != nil {
		return store.Doc{}, err
	}
	processed := p.Process(d)
	return store.Doc{
		Source:  d.Source,
		Title:   d.Title,
		AddedAt: d.AddedAt,
		Tokens:  processed.Tokens,
	}, nil
}
