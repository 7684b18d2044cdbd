package cmd

import (
	"github.com/spf13/cobra"

	"github.com/qeforge/knowledgehub/internal/cache"
)

// newClearCmd creates the clear command.
func newClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the cache record and all index directories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			manager := cache.NewManager(cfg.Paths.CacheDir, nil, nil)
			if err := manager.Clear(); err != nil {
				return err
			}

			cmd.Printf("Cache cleared: %s\n", cfg.Paths.CacheDir)
			return nil
		},
	}
	return cmd
}
