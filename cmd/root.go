// Package cmd provides Olive's command-line interface.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/olive/internal/config"
	"github.com/JonMunkholm/olive/internal/llm"
	"github.com/JonMunkholm/olive/internal/observability"
	"github.com/JonMunkholm/olive/internal/pipeline"
)

const serviceName = "olive"

var showVersion bool

// rootCmd runs the server when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:           "olive",
	Short:         "Ask questions about a table in plain language",
	Long:          `Olive turns natural-language questions about one table into a SQL SELECT and shows the matching rows.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Fprintf(cmd.OutOrStdout(), "olive %s\n", Version)
			return nil
		}
		return runServe(cmd, args)
	},
}

// Execute runs the CLI application.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "Show version information")
}

// env holds what every command needs.
type env struct {
	cfg      config.Config
	logger   *slog.Logger
	pipeline *pipeline.Pipeline
}

func loadEnv() (*env, error) {
	_ = godotenv.Load() // .env is optional

	cfg, err := config.LoadFromEnv(serviceName)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := observability.NewLogger(cfg, os.Stderr)
	slog.SetDefault(logger)

	var provider llm.Provider
	if cfg.LLM.APIKey != "" {
		provider, err = llm.NewProvider(cfg.LLM)
		if err != nil {
			logger.Warn("failed to initialize LLM", slog.String("error", err.Error()))
		} else {
			logger.Info("LLM provider initialized", slog.String("provider", provider.Name()))
		}
	} else {
		logger.Info("LLM not configured (set LLM_API_KEY to enable)")
	}

	p := pipeline.New(pipeline.Options{
		Provider:          provider,
		SampleRows:        cfg.Pipeline.SampleRows,
		MaxTokens:         cfg.LLM.MaxTokens,
		CompletionTimeout: cfg.Pipeline.CompletionTimeout,
		FetchTimeout:      cfg.Pipeline.FetchTimeout,
		MaxRows:           cfg.Pipeline.MaxRows,
		Logger:            logger,
	})
	return &env{cfg: cfg, logger: logger, pipeline: p}, nil
}
