package config

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/cognicore/bigrams/pkg/bigrams"
	"github.com/cognicore/bigrams/pkg/bigrams/counts"
	"github.com/cognicore/bigrams/pkg/bigrams/internalerr"
)

// Config is the top-level YAML configuration
type Config struct {
	Model  ModelConfig  `yaml:"model" toml:"model"`
	Corpus CorpusConfig `yaml:"corpus" toml:"corpus"`
	Log    LogConfig    `yaml:"log" toml:"log"`
}

// ModelConfig configures the bigram model
type ModelConfig struct {
	Smoothing           bool  `yaml:"smoothing" toml:"smoothing"`
	TrackRare           bool  `yaml:"track_rare" toml:"track_rare"`
	GoodTuringThreshold int   `yaml:"good_turing_threshold" toml:"good_turing_threshold"`
	CacheSize           int   `yaml:"cache_size" toml:"cache_size"`
	MaxSentenceWords    int   `yaml:"max_sentence_words" toml:"max_sentence_words"`
	MaxResamples        int   `yaml:"max_resamples" toml:"max_resamples"`
	Seed                int64 `yaml:"seed" toml:"seed"` // 0 seeds from the clock
}

// CorpusConfig configures ingestion and the corpus database
type CorpusConfig struct {
	DBPath    string `yaml:"db" toml:"db"`
	Lowercase bool   `yaml:"lowercase" toml:"lowercase"`
}

// LogConfig configures logging
type LogConfig struct {
	Level       string `yaml:"level" toml:"level"`
	Development bool   `yaml:"development" toml:"development"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Smoothing:           true,
			TrackRare:           true,
			GoodTuringThreshold: counts.DefaultThreshold,
			CacheSize:           counts.DefaultCacheSize,
			MaxSentenceWords:    bigrams.DefaultMaxSentenceWords,
			MaxResamples:        bigrams.DefaultMaxResamples,
		},
		Corpus: CorpusConfig{
			DBPath:    "corpus.db",
			Lowercase: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads a config file, YAML unless the extension is .toml. Keys
// missing from the file keep their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	m := c.Model
	switch {
	case m.GoodTuringThreshold <= 0:
		return fmt.Errorf("model.good_turing_threshold must be positive, got %d: %w", m.GoodTuringThreshold, internalerr.ErrInvalidConfig)
	case m.CacheSize <= 0:
		return fmt.Errorf("model.cache_size must be positive, got %d: %w", m.CacheSize, internalerr.ErrInvalidConfig)
	case m.MaxSentenceWords <= 0:
		return fmt.Errorf("model.max_sentence_words must be positive, got %d: %w", m.MaxSentenceWords, internalerr.ErrInvalidConfig)
	case m.MaxResamples <= 0:
		return fmt.Errorf("model.max_resamples must be positive, got %d: %w", m.MaxResamples, internalerr.ErrInvalidConfig)
	}

	if _, err := zap.ParseAtomicLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level %q: %w", c.Log.Level, internalerr.ErrInvalidConfig)
	}
	return nil
}

// ModelOptions converts the model section into bigrams.Options. A non-zero
// seed gives a reproducible random source.
func (c *Config) ModelOptions(logger *zap.Logger) bigrams.Options {
	opts := bigrams.Options{
		Smoothing:        c.Model.Smoothing,
		TrackRare:        c.Model.TrackRare,
		Threshold:        c.Model.GoodTuringThreshold,
		CacheSize:        c.Model.CacheSize,
		MaxSentenceWords: c.Model.MaxSentenceWords,
		MaxResamples:     c.Model.MaxResamples,
		Logger:           logger,
	}
	if c.Model.Seed != 0 {
		opts.Rand = rand.New(rand.NewSource(c.Model.Seed))
	}
	return opts
}

// Stoplist represents the stopword list configuration
type Stoplist struct {
	Terms []string `yaml:"terms" toml:"terms"`
}

// LoadStoplist loads stopwords from a YAML file
func LoadStoplist(path string) (*Stoplist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var sl Stoplist
	if err := yaml.Unmarshal(data, &sl); err != nil {
		return nil, err
	}

	return &sl, nil
}
