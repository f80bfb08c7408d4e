package corpus

import (
	"context"
	"fmt"
	"os"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/postgres"
)

// Open builds the source selected by cfg.Corpus.Source. The returned close
// function releases any connection the source holds.
func Open(ctx context.Context, cfg *config.Config) (Source, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Corpus.Source {
	case "fs":
		return NewFSSource(cfg.Corpus), noop, nil
	case "jsonl":
		if cfg.Corpus.Input == "" || cfg.Corpus.Input == "-" {
			return NewJSONLReader("stdin", os.Stdin), noop, nil
		}
		return NewJSONLSource(cfg.Corpus.Input), noop, nil
	case "postgres":
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		return NewPostgresSource(db, cfg.Corpus.Table), db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown corpus source %q", cfg.Corpus.Source)
	}
}
