package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/cognicore/bigrams/internal/logging"
	"github.com/cognicore/bigrams/pkg/bigrams"
	"github.com/cognicore/bigrams/pkg/bigrams/config"
	"github.com/cognicore/bigrams/pkg/bigrams/ingest"
	"github.com/cognicore/bigrams/pkg/bigrams/store"
	"github.com/cognicore/bigrams/pkg/bigrams/store/sqlite"
	"github.com/cognicore/bigrams/pkg/bigrams/suggest"
)

type options struct {
	configPath   string
	dbPath       string
	stoplistPath string
	ingest       bool
	files        []string
	mode         string
	prev         string
	prefix       string
	text         string
	format       string
	n            int
	seed         int64
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "YAML config file (optional)")
	flag.StringVar(&opts.dbPath, "db", "", "Corpus database path (overrides config)")
	flag.StringVar(&opts.stoplistPath, "stoplist", "", "Stoplist file (optional)")
	flag.BoolVar(&opts.ingest, "ingest", false, "Add the files given as arguments to the corpus")
	flag.StringVar(&opts.mode, "mode", "generate", "generate|perplexity|complete|predict|stats")
	flag.StringVar(&opts.prev, "prev", "", "Previous word (predict, complete) or sentence start (generate)")
	flag.StringVar(&opts.prefix, "prefix", "", "Word prefix to complete")
	flag.StringVar(&opts.text, "text", "", "Text to score (perplexity)")
	flag.StringVar(&opts.format, "format", "text", "Completion output: text|msgpack")
	flag.IntVar(&opts.n, "n", 5, "Number of sentences, predictions or suggestions")
	flag.Int64Var(&opts.seed, "seed", 0, "Random seed (overrides config, 0 keeps it)")
	flag.Parse()
	opts.files = flag.Args()

	if opts.ingest && len(opts.files) == 0 {
		log.Fatal("--ingest requires at least one file")
	}

	if err := run(context.Background(), opts, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, opts options, out io.Writer) error {
	loader := config.Loader{
		ConfigPath:   opts.configPath,
		StoplistPath: opts.stoplistPath,
	}
	components, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg := components.Config
	if opts.dbPath != "" {
		cfg.Corpus.DBPath = opts.dbPath
	}
	if opts.seed != 0 {
		cfg.Model.Seed = opts.seed
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	st, err := sqlite.OpenSQLite(ctx, cfg.Corpus.DBPath, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if opts.ingest {
		n, err := ingestFiles(ctx, st, components.Pipeline, opts.files, logger)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Ingested %d document(s)\n", n)
	}

	if opts.mode == "stats" {
		return printStats(ctx, st, cfg, logger, out)
	}

	model, err := buildModel(ctx, st, cfg, logger)
	if err != nil {
		return err
	}

	switch opts.mode {
	case "generate":
		for i := 0; i < opts.n; i++ {
			s, err := model.GenerateSentence(opts.prev)
			if err != nil {
				return fmt.Errorf("generate: %w", err)
			}
			fmt.Fprintln(out, s)
		}
	case "predict":
		if opts.prev == "" {
			return fmt.Errorf("--prev required for predict")
		}
		for i := 0; i < opts.n; i++ {
			next, err := model.PredictNext(opts.prev)
			if err != nil {
				return fmt.Errorf("predict: %w", err)
			}
			fmt.Fprintln(out, next)
		}
	case "perplexity":
		// Perplexity scores the first token after a boundary itself
		tokens := components.Tokenizer.Stream(opts.text)
		if len(tokens) > 0 {
			tokens = tokens[1:]
		}
		pp, err := model.Perplexity(tokens)
		if err != nil {
			return fmt.Errorf("perplexity: %w", err)
		}
		fmt.Fprintf(out, "Perplexity: %.4f (%d tokens)\n", pp, len(tokens))
	case "complete":
		prev := components.Tokenizer.Normalize(opts.prev)
		prefix := components.Tokenizer.Normalize(opts.prefix)
		ranked := suggest.NewRanker(model, nil, logger).Complete(prev, prefix, opts.n)
		if opts.format == "msgpack" {
			return suggest.WriteResponse(out, suggest.NewResponse(prev, prefix, ranked))
		}
		for _, s := range ranked {
			fmt.Fprintln(out, s.Label)
		}
	default:
		return fmt.Errorf("unknown mode %q", opts.mode)
	}

	return nil
}

// buildModel trains a model over the whole corpus in st.
func buildModel(ctx context.Context, st store.Store, cfg *config.Config, logger *zap.Logger) (*bigrams.Model, error) {
	model, err := bigrams.Train(ctx, st, cfg.ModelOptions(logger))
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}
	return model, nil
}

func ingestFiles(ctx context.Context, st store.Store, pipeline *ingest.Pipeline, paths []string, logger *zap.Logger) (int, error) {
	count := 0
	for _, path := range paths {
		doc, err := ingest.ReadFile(path)
		if err != nil {
			return count, err
		}
		sd, err := pipeline.ToStoreDoc(doc)
		if err != nil {
			return count, fmt.Errorf("process %s: %w", path, err)
		}
		id, err := st.UpsertDoc(ctx, sd)
		if err != nil {
			return count, fmt.Errorf("store %s: %w", path, err)
		}
		logger.Info("ingested document",
			zap.String("id", id),
			zap.String("source", sd.Source),
			zap.Int("tokens", len(sd.Tokens)))
		count++
	}
	return count, nil
}

func printStats(ctx context.Context, st store.Store, cfg *config.Config, logger *zap.Logger, out io.Writer) error {
	corpus, err := st.Stats(ctx)
	if err != nil {
		return fmt.Errorf("corpus stats: %w", err)
	}
	fmt.Fprintf(out, "Documents: %d\n", corpus.Docs)
	fmt.Fprintf(out, "Tokens:    %d\n", corpus.Tokens)
	fmt.Fprintf(out, "Types:     %d\n", corpus.Types)
	if corpus.Docs == 0 {
		return nil
	}

	model, err := buildModel(ctx, st, cfg, logger)
	if err != nil {
		return err
	}
	stats := model.Stats()
	fmt.Fprintf(out, "Vocabulary:     %d\n", stats.Matrix.Vocabulary)
	fmt.Fprintf(out, "Predecessors:   %d\n", stats.Matrix.Predecessors)
	fmt.Fprintf(out, "Unique bigrams: %d\n", stats.Matrix.UniqueBigrams)
	fmt.Fprintf(out, "Total bigrams:  %d\n", stats.Matrix.TotalBigrams)
	if stats.Matrix.Smoothing {
		fmt.Fprintf(out, "Good-Turing table entries: %d\n", stats.Matrix.GoodTuringSize)
	}
	return nil
}
