package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/searchindex"
)

type buildFlags struct {
	source     string
	dir        string
	input      string
	output     string
	workers    int
	minLength  int
	publish    bool
	noProgress bool
}

func (a *app) newBuildCmd() *cobra.Command {
	f := &buildFlags{}
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a search index from a corpus",
		Long: `Build reads document records from a directory tree, a JSON Lines file or a
PostgreSQL table, tokenizes them in parallel and writes the index atomically.
The output format follows the file extension: .js for the Search.setIndex
wrapper, anything else for plain JSON.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f.apply(cmd, a.cfg)
			return a.runBuild(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), f.noProgress)
		},
	}
	cmd.Flags().StringVar(&f.source, "source", "", "corpus source: fs, jsonl or postgres")
	cmd.Flags().StringVar(&f.dir, "dir", "", "corpus directory for the fs source")
	cmd.Flags().StringVar(&f.input, "input", "", "JSON Lines file for the jsonl source (- for stdin)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "index file to write")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "tokenizer goroutines")
	cmd.Flags().IntVar(&f.minLength, "min-length", 0, "minimum term length")
	cmd.Flags().BoolVar(&f.publish, "publish", false, "announce the new index on Kafka")
	cmd.Flags().BoolVar(&f.noProgress, "no-progress", false, "disable the progress bar")
	return cmd
}

// apply copies explicitly set flags over the loaded config.
func (f *buildFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("source") {
		cfg.Corpus.Source = f.source
	}
	if flags.Changed("dir") {
		cfg.Corpus.Dir = f.dir
	}
	if flags.Changed("input") {
		cfg.Corpus.Input = f.input
		if !flags.Changed("source") {
			cfg.Corpus.Source = "jsonl"
		}
	}
	if flags.Changed("output") {
		cfg.Indexer.Output = f.output
	}
	if flags.Changed("workers") {
		cfg.Indexer.Workers = f.workers
		cfg.Corpus.Workers = f.workers
	}
	if flags.Changed("min-length") {
		cfg.Indexer.MinTokenLength = f.minLength
	}
	if flags.Changed("publish") {
		cfg.Indexer.Publish = f.publish
	}
}

func (a *app) runBuild(ctx context.Context, out, errOut io.Writer, noProgress bool) error {
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	log := slog.Default().With("component", "build")

	var m *metrics.Metrics
	if a.cfg.Metrics.Enabled {
		m = metrics.New(prometheus.DefaultRegisterer)
		srv, err := metrics.Serve(fmt.Sprintf(":%d", a.cfg.Metrics.Port), "build")
		if err != nil {
			return err
		}
		defer srv.Shutdown(context.Background())
	}

	source, closeSource, err := corpus.Open(ctx, a.cfg)
	if err != nil {
		return err
	}
	defer closeSource()

	records, err := source.Records(ctx)
	if err != nil {
		return fmt.Errorf("reading corpus %s: %w", source.Name(), err)
	}
	log.Info("corpus loaded", "source", source.Name(), "records", len(records))

	opts := []indexer.Option{}
	if m != nil {
		opts = append(opts, indexer.WithMetrics(m))
	}
	var bar *progressbar.ProgressBar
	if !noProgress && len(records) > 0 && isTerminal(errOut) {
		bar = progressbar.NewOptions(len(records),
			progressbar.OptionSetWriter(errOut),
			progressbar.OptionSetDescription("indexing"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
		// progressbar serialises Add internally.
		opts = append(opts, indexer.WithProgress(func() { _ = bar.Add(1) }))
	}

	idx, report, err := indexer.NewBuilder(a.cfg.Indexer, nil, opts...).Build(ctx, records)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return err
	}
	if err := searchindex.WriteFile(a.cfg.Indexer.Output, idx); err != nil {
		return err
	}
	fingerprint, err := idx.Fingerprint()
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "wrote %s: %d documents, %d terms, %d title terms, %d objects (%d skipped) in %s\n",
		a.cfg.Indexer.Output, report.Documents, report.Terms, report.TitleTerms,
		report.Objects, report.Skipped, report.Duration.Round(time.Millisecond))
	for _, e := range report.Errors {
		fmt.Fprintf(errOut, "skipped: %v\n", e)
	}

	if a.cfg.Indexer.Publish {
		if !a.cfg.Kafka.Enabled() {
			log.Warn("publish requested but no kafka brokers configured")
			return nil
		}
		return a.publishIndex(ctx, idx, fingerprint)
	}
	return nil
}

// publishIndex announces the written index so serving replicas reload it.
func (a *app) publishIndex(ctx context.Context, idx *searchindex.Index, fingerprint string) error {
	path, err := filepath.Abs(a.cfg.Indexer.Output)
	if err != nil {
		return err
	}
	event := kafka.IndexPublished{
		BuildID:     uuid.NewString(),
		Path:        path,
		Fingerprint: fingerprint,
		Documents:   idx.DocCount(),
		Terms:       len(idx.Terms),
		PublishedAt: time.Now().UTC(),
	}
	producer := kafka.NewProducer(a.cfg.Kafka, a.cfg.Kafka.Topics.IndexPublished)
	defer producer.Close()

	err = resilience.Retry(ctx, "publish-index", resilience.RetryConfig{MaxAttempts: 5}, func(ctx context.Context) error {
		return resilience.Attempt(ctx, "publish-index", 10*time.Second, func(ctx context.Context) error {
			return producer.Publish(ctx, kafka.Event{Key: path, Value: event})
		})
	})
	if err != nil {
		return fmt.Errorf("publishing index event: %w", err)
	}
	slog.Info("index published", "build_id", event.BuildID, "topic", a.cfg.Kafka.Topics.IndexPublished)
	return nil
}

// isTerminal reports whether w is a terminal; the progress bar is not drawn
// into pipes or log files.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
