package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qeforge/knowledgehub/internal/retrieval"
)

// newQueryCmd creates the query command.
func newQueryCmd() *cobra.Command {
	var (
		docsFlag   []string
		topK       int
		synthesize bool
		allDocs    bool
	)

	cmd := &cobra.Command{
		Use:   "query [text]",
		Short: "Retrieve relevant documentation for a query",
		Long: `Query expands the input into multiple phrasings, searches the vector
index with each, and prints the merged context. With --synthesize the
context is distilled into a structured requirements digest; with --all
the digest covers every indexed segment instead of a similarity search.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			if !allDocs && query == "" {
				return fmt.Errorf("query text is required unless --all is set")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if topK > 0 {
				cfg.Retrieval.TopK = topK
			}

			engine, cleanup, err := buildEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			selection := selectionFromFlag(cmd, docsFlag)

			var answer string
			switch {
			case allDocs:
				answer, _, err = engine.SynthesizeAll(cmd.Context(), selection)
			case synthesize:
				answer, _, err = engine.SynthesizeQuery(cmd.Context(), selection, query)
			default:
				var diag *retrieval.Diagnostics
				answer, diag, err = engine.RetrieveContext(cmd.Context(), selection, query)
				if err == nil && diag != nil && diag.Stats.Variants > 0 {
					printHeading(cmd, "Retrieved %d of %d unique segments (%d variants searched)",
						diag.Stats.Returned, diag.Stats.Unique, diag.Stats.Variants)
				}
			}
			if err != nil {
				return err
			}

			cmd.Println(answer)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&docsFlag, "docs", nil,
		"Restrict retrieval to the named documents (default: all supported files)")
	cmd.Flags().IntVar(&topK, "top-k", 0, "Override the maximum number of merged results")
	cmd.Flags().BoolVar(&synthesize, "synthesize", false,
		"Distill the retrieved context into a structured requirements digest")
	cmd.Flags().BoolVar(&allDocs, "all", false,
		"Synthesize a digest of every indexed segment instead of searching")

	return cmd
}
