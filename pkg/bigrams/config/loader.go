package config

import (
	"fmt"

	"github.com/cognicore/bigrams/pkg/bigrams/ingest"
)

// Loader loads all configuration files and constructs components
type Loader struct {
	ConfigPath   string
	StoplistPath string
}

// Components holds all loaded configuration components
type Components struct {
	Config    *Config
	Tokenizer *ingest.Tokenizer
	Pipeline  *ingest.Pipeline
}

// Load reads all configuration files and returns initialized components.
// Empty paths select the defaults.
func (l *Loader) Load() (*Components, error) {
	comp := &Components{}

	if l.ConfigPath != "" {
		cfg, err := Load(l.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		comp.Config = cfg
	} else {
		comp.Config = DefaultConfig()
	}

	if l.StoplistPath != "" {
		stoplist, err := LoadStoplist(l.StoplistPath)
		if err != nil {
			return nil, fmt.Errorf("load stoplist: %w", err)
		}
		comp.Tokenizer = ingest.NewTokenizer(stoplist.Terms)
	} else {
		comp.Tokenizer = ingest.NewTokenizer([]string{})
	}
	comp.Tokenizer.SetLowercase(comp.Config.Corpus.Lowercase)

	comp.Pipeline = ingest.NewPipeline(comp.Tokenizer)

	return comp, nil
}
