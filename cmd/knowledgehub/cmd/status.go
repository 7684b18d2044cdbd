package cmd

import (
	"github.com/spf13/cobra"

	"github.com/qeforge/knowledgehub/internal/cache"
	"github.com/qeforge/knowledgehub/internal/fingerprint"
	"github.com/qeforge/knowledgehub/internal/store"
)

// newStatusCmd creates the status command.
func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show configuration and cache state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			cmd.Printf("Data directory:      %s\n", cfg.Paths.DataDir)
			cmd.Printf("Cache directory:     %s\n", cfg.Paths.CacheDir)
			cmd.Printf("Embedding provider:  %s (%s)\n", cfg.Embeddings.Provider, cfg.Embeddings.Model)
			cmd.Printf("Completion provider: %s (%s)\n", cfg.LLM.Provider, cfg.LLM.Model)

			names, err := fingerprint.Resolve(cfg.Paths.DataDir, nil)
			if err != nil {
				return err
			}
			cmd.Printf("Documents found:     %d\n", len(names))
			for _, name := range names {
				cmd.Printf("  - %s\n", name)
			}

			current, err := fingerprint.Compute(cfg.Paths.DataDir, names)
			if err != nil {
				return err
			}

			records := cache.NewRecordStore(cfg.Paths.CacheDir)
			rec, err := records.Load()
			if err != nil {
				cmd.Printf("Cache record:        unreadable (%v)\n", err)
				return nil
			}
			if rec == nil {
				cmd.Println("Cache record:        none (first index run pending)")
				return nil
			}

			cmd.Printf("Cache record:        %s\n", records.Path())
			cmd.Printf("Cached fingerprint:  %.12s\n", rec.Fingerprint)
			cmd.Printf("Index directory:     %s\n", rec.DBPath)
			if index, err := store.OpenIndex(rec.DBPath); err != nil {
				cmd.Printf("Indexed segments:    unavailable (%v)\n", err)
			} else {
				cmd.Printf("Indexed segments:    %d\n", index.Count())
				index.Close()
			}
			if rec.Fingerprint == current {
				cmd.Println("Cache state:         current")
			} else {
				cmd.Println("Cache state:         stale (documents changed since last index)")
			}
			return nil
		},
	}
	return cmd
}
