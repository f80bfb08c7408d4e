// Package cli implements the docsearch command line: building indexes,
// querying and inspecting them, and serving them over HTTP.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/searchindex"
)

type app struct {
	cfgFile   string
	logLevel  string
	logFormat string
	cfg       *config.Config
}

// NewRootCmd assembles the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "docsearch",
		Short: "Build and query static full-text search indexes for documentation",
		Long: `docsearch builds an inverted index over a documentation corpus, writes it
as a searchindex.js compatible file, and answers queries against it from the
command line or over HTTP.

Example usage:
  docsearch build --dir docs -o build/searchindex.js
  docsearch query -i build/searchindex.js install package
  docsearch serve --config docsearch.yaml`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if a.logLevel != "" {
				cfg.Logging.Level = a.logLevel
			}
			if a.logFormat != "" {
				cfg.Logging.Format = a.logFormat
			}
			a.cfg = cfg
			logger.SetupWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (.yaml, .yml or .toml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "log format: text or json")

	root.AddCommand(
		a.newBuildCmd(),
		a.newQueryCmd(),
		a.newInspectCmd(),
		a.newServeCmd(),
		a.newAnalyticsCmd(),
		a.newLoadTestCmd(),
	)
	return root
}

// Execute runs the command line until it finishes or the process is
// interrupted, and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func (a *app) validateOptions() searchindex.ValidateOptions {
	return searchindex.ValidateOptions{SphinxEnv: a.cfg.Search.SphinxEnv}
}

// executorOptions translates the search and indexer config. The tokenizer
// applies only to indexes that do not record their own settings.
func (a *app) executorOptions(modeOverride string) ([]executor.Option, error) {
	modeName := a.cfg.Search.Mode
	if modeOverride != "" {
		modeName = modeOverride
	}
	mode, err := executor.ParseMode(modeName)
	if err != nil {
		return nil, err
	}
	weights := ranker.DefaultWeights()
	weights.Title = a.cfg.Search.TitleWeight
	weights.Body = a.cfg.Search.BodyWeight
	return []executor.Option{
		executor.WithMode(mode),
		executor.WithWeights(weights),
		executor.WithValidateOptions(a.validateOptions()),
		executor.WithTokenizer(tokenizer.New(tokenizer.Settings{
			MinLength: a.cfg.Indexer.MinTokenLength,
			StopWords: a.cfg.Indexer.StopWords,
		})),
	}, nil
}

func (a *app) openExecutor(path, modeOverride string) (*executor.Executor, error) {
	idx, err := searchindex.Load(path, a.validateOptions())
	if err != nil {
		return nil, err
	}
	opts, err := a.executorOptions(modeOverride)
	if err != nil {
		return nil, err
	}
	return executor.New(idx, opts...)
}
