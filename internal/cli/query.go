package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
)

func (a *app) newQueryCmd() *cobra.Command {
	var (
		indexPath string
		mode      string
		limit     int
		types     []string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "query [flags] <words...>",
		Short: "Search an index file",
		Long: `Query loads an index file and prints the ranked matches for the given words.
Upper-case AND or OR inside the query force that combination; NOT word or
-word excludes documents containing word.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if indexPath == "" {
				indexPath = a.cfg.Search.IndexPath
			}
			e, err := a.openExecutor(indexPath, mode)
			if err != nil {
				return err
			}
			res, err := e.SearchWithOptions(cmd.Context(), strings.Join(args, " "), executor.Options{
				Limit:       limit,
				ObjectTypes: types,
			})
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			printResults(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().StringVarP(&indexPath, "index", "i", "", "index file (default search.indexPath)")
	cmd.Flags().StringVar(&mode, "mode", "", "combination mode: and, or, and_fallback_or")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum results, 0 for all")
	cmd.Flags().StringSliceVar(&types, "types", nil, "restrict object matches to these domain:type values")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	return cmd
}

func printResults(w io.Writer, res *executor.SearchResult) {
	if len(res.Results) == 0 {
		fmt.Fprintf(w, "no results for %q\n", res.Query)
		return
	}
	note := ""
	if res.FellBack {
		note = ", no document matched every term"
	}
	fmt.Fprintf(w, "%d of %d results (%s%s)\n", len(res.Results), res.TotalHits, res.Mode, note)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, r := range res.Results {
		target := r.FileName
		if r.Anchor != "" {
			target += "#" + r.Anchor
		}
		label := r.Title
		if r.Object != "" {
			label = fmt.Sprintf("%s (%s)", r.Object, r.ObjectType)
		}
		fmt.Fprintf(tw, "%g\t%s\t%s\n", r.Score, label, target)
	}
	tw.Flush()
}
