package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qeforge/knowledgehub/internal/logging"
)

// newLogsCmd creates the logs command.
func newLogsCmd() *cobra.Command {
	var (
		file  string
		lines int
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the tail of the hub log file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := logging.FindLogFile(file)
			if err != nil {
				return err
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}

			cmd.Printf("Log file: %s\n\n", path)
			for _, line := range tailLines(string(data), lines) {
				cmd.Println(line)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Log file to read instead of the default location")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to print")

	return cmd
}

// tailLines returns the last n lines of text, ignoring a trailing newline.
func tailLines(text string, n int) []string {
	all := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(all) == 1 && all[0] == "" {
		return nil
	}
	if n > 0 && len(all) > n {
		all = all[len(all)-n:]
	}
	return all
}
