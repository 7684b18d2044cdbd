// Package cmd provides the CLI commands for the knowledge hub.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/qeforge/knowledgehub/internal/cache"
	"github.com/qeforge/knowledgehub/internal/chunk"
	"github.com/qeforge/knowledgehub/internal/config"
	"github.com/qeforge/knowledgehub/internal/docs"
	"github.com/qeforge/knowledgehub/internal/embed"
	"github.com/qeforge/knowledgehub/internal/llm"
	"github.com/qeforge/knowledgehub/internal/logging"
	"github.com/qeforge/knowledgehub/internal/retrieval"
	"github.com/qeforge/knowledgehub/pkg/version"
)

var (
	debugMode      bool
	projectDir     string
	loggingCleanup func()
)

// NewRootCmd creates the root command for the knowledgehub CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "knowledgehub",
		Short: "Selective knowledge cache and retrieval engine for requirement documents",
		Long: `knowledgehub indexes requirement documents into a fingerprint-cached
vector index and answers queries with multi-query semantic retrieval.

Indexes are rebuilt only when the selected documents change on disk;
unchanged corpora are served from the cache.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("knowledgehub version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.knowledgehub/logs/")
	cmd.PersistentFlags().StringVarP(&projectDir, "dir", "C", ".", "Project directory holding .knowledgehub.yaml")

	cmd.PersistentPreRunE = setupEnvironment
	cmd.PersistentPostRun = func(_ *cobra.Command, _ []string) {
		if loggingCleanup != nil {
			loggingCleanup()
			loggingCleanup = nil
		}
	}

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newClearCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setupEnvironment loads .env API keys and configures logging.
func setupEnvironment(_ *cobra.Command, _ []string) error {
	// Missing .env is fine; keys may come from the environment directly
	_ = godotenv.Load()

	if debugMode {
		logger, cleanup, err := logging.Setup(logging.DebugConfig())
		if err != nil {
			return fmt.Errorf("failed to set up debug logging: %w", err)
		}
		loggingCleanup = cleanup
		slog.SetDefault(logger)
		slog.Info("debug logging enabled", "log_file", logging.DefaultLogPath())
	}

	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig loads configuration from the project directory.
func loadConfig() (*config.Config, error) {
	return config.Load(projectDir)
}

// buildEngine assembles the retrieval pipeline from configuration.
// The returned cleanup closes the embedder and completer.
func buildEngine(ctx context.Context, cfg *config.Config) (*retrieval.Engine, func(), error) {
	logger := slog.Default()

	embedder, err := embed.NewFromConfig(ctx, cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing embedder: %w", err)
	}

	completer, err := llm.NewFromConfig(cfg)
	if err != nil {
		embedder.Close()
		return nil, nil, fmt.Errorf("initializing completion backend: %w", err)
	}

	splitter, err := chunk.NewSplitter(cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap)
	if err != nil {
		embedder.Close()
		completer.Close()
		return nil, nil, err
	}

	engine := retrieval.NewEngine(
		docs.NewLoader(cfg.Paths.DataDir, logger),
		splitter,
		cache.NewManager(cfg.Paths.CacheDir, embedder, logger),
		embedder,
		completer,
		retrieval.EngineConfig{
			TopK:             cfg.Retrieval.TopK,
			QueryVariants:    cfg.Retrieval.QueryVariants,
			VariantResults:   cfg.Retrieval.VariantResults,
			SummaryMaxChars:  cfg.Retrieval.SummaryMaxChars,
			DisableSummaries: cfg.Retrieval.DisableSummaries,
		},
		logger,
	)

	cleanup := func() {
		if err := embedder.Close(); err != nil {
			slog.Warn("failed to close embedder", "error", err)
		}
		if err := completer.Close(); err != nil {
			slog.Warn("failed to close completion backend", "error", err)
		}
	}

	return engine, cleanup, nil
}

// selectionFromFlag maps the --docs flag to the engine's selection
// semantics: flag absent means all documents, present means exactly the
// named ones.
func selectionFromFlag(cmd *cobra.Command, docsFlag []string) []string {
	if !cmd.Flags().Changed("docs") {
		return nil
	}
	if docsFlag == nil {
		return []string{}
	}
	return docsFlag
}

// stdoutIsTerminal reports whether stdout is an interactive terminal.
func stdoutIsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// printHeading writes a heading line only for interactive terminals, so
// piped output stays machine-consumable.
func printHeading(cmd *cobra.Command, format string, args ...any) {
	if stdoutIsTerminal() {
		cmd.Printf(format+"\n", args...)
	}
}
