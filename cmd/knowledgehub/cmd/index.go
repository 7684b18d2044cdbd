package cmd

import (
	"github.com/spf13/cobra"

	"github.com/qeforge/knowledgehub/internal/cache"
)

// newIndexCmd creates the index command.
func newIndexCmd() *cobra.Command {
	var docsFlag []string

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build or refresh the vector index for the selected documents",
		Long: `Index fingerprints the selected documents and rebuilds the vector
index only when the selection or its modification times changed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			engine, cleanup, err := buildEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			res, diag, err := engine.OpenIndex(cmd.Context(), selectionFromFlag(cmd, docsFlag))
			if err != nil {
				return err
			}
			defer res.Index.Close()

			switch res.State {
			case cache.StateHit:
				cmd.Printf("Index up to date (%d segments, fingerprint %.12s)\n",
					diag.Indexed, diag.Fingerprint)
			case cache.StateCorruptRebuilt:
				cmd.Printf("Index was corrupt; rebuilt with %d segments from %d documents\n",
					diag.Indexed, diag.Documents)
			default:
				cmd.Printf("Index rebuilt with %d segments from %d documents\n",
					diag.Indexed, diag.Documents)
			}

			for _, failure := range diag.CleanupFailures {
				cmd.Printf("warning: orphaned index directory not removed: %s\n", failure)
			}

			return nil
		},
	}

	cmd.Flags().StringSliceVar(&docsFlag, "docs", nil,
		"Index only the named documents (default: all supported files in the data directory)")

	return cmd
}
