package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/searchindex"
)

type indexSummary struct {
	Path        string                         `json:"path"`
	Format      string                         `json:"format"`
	Version     int                            `json:"version,omitempty"`
	EnvVersion  map[string]int                 `json:"envversion"`
	Documents   int                            `json:"documents"`
	Terms       int                            `json:"terms"`
	TitleTerms  int                            `json:"title_terms"`
	Objects     int                            `json:"objects"`
	ObjTypes    []string                       `json:"objtypes"`
	Tokenizer   *searchindex.TokenizerSettings `json:"tokenizer,omitempty"`
	Fingerprint string                         `json:"fingerprint"`
}

func summarize(path string, idx *searchindex.Index) (indexSummary, error) {
	fp, err := idx.Fingerprint()
	if err != nil {
		return indexSummary{}, err
	}
	s := indexSummary{
		Path:        path,
		Format:      "docsearch",
		Version:     idx.Version,
		EnvVersion:  idx.EnvVersion,
		Documents:   idx.DocCount(),
		Terms:       len(idx.Terms),
		TitleTerms:  len(idx.TitleTerms),
		Objects:     idx.ObjectCount(),
		ObjTypes:    make([]string, 0, len(idx.ObjTypes)),
		Tokenizer:   idx.Tokenizer,
		Fingerprint: fp,
	}
	if idx.IsSphinx() {
		s.Format = "sphinx"
		if s.Tokenizer == nil {
			st := tokenizer.Sphinx().Settings()
			s.Tokenizer = &searchindex.TokenizerSettings{
				MinLength: st.MinLength,
				StopWords: st.StopWords,
				Stemmer:   st.Stemmer,
			}
		}
	}
	for i := 0; i < len(idx.ObjTypes); i++ {
		if t, ok := idx.ObjTypes[searchindex.TypeKey(i)]; ok {
			s.ObjTypes = append(s.ObjTypes, t)
		}
	}
	return s, nil
}

func (a *app) newInspectCmd() *cobra.Command {
	var (
		indexPath string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Validate an index file and print its summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if indexPath == "" {
				indexPath = a.cfg.Search.IndexPath
			}
			idx, err := searchindex.Load(indexPath, a.validateOptions())
			if err != nil {
				return err
			}
			s, err := summarize(indexPath, idx)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(s)
			}
			envKeys := make([]string, 0, len(s.EnvVersion))
			for k, v := range s.EnvVersion {
				envKeys = append(envKeys, fmt.Sprintf("%s=%d", k, v))
			}
			sort.Strings(envKeys)
			fmt.Fprintf(w, "path:        %s\n", s.Path)
			fmt.Fprintf(w, "format:      %s\n", s.Format)
			fmt.Fprintf(w, "envversion:  %s\n", strings.Join(envKeys, ", "))
			fmt.Fprintf(w, "documents:   %d\n", s.Documents)
			fmt.Fprintf(w, "terms:       %d\n", s.Terms)
			fmt.Fprintf(w, "title terms: %d\n", s.TitleTerms)
			fmt.Fprintf(w, "objects:     %d\n", s.Objects)
			if len(s.ObjTypes) > 0 {
				fmt.Fprintf(w, "objtypes:    %s\n", strings.Join(s.ObjTypes, ", "))
			}
			if s.Tokenizer != nil {
				stemmer := "no stemming"
				if s.Tokenizer.Stemmer != "" {
					stemmer = s.Tokenizer.Stemmer + " stemming"
				}
				fmt.Fprintf(w, "tokenizer:   min length %d, %d stop words, %s\n", s.Tokenizer.MinLength, len(s.Tokenizer.StopWords), stemmer)
			}
			fmt.Fprintf(w, "fingerprint: %s\n", s.Fingerprint)
			return nil
		},
	}
	cmd.Flags().StringVarP(&indexPath, "index", "i", "", "index file (default search.indexPath)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the summary as JSON")
	return cmd
}
