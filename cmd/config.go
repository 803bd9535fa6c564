package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/schema-rag/internal/config"
)

func (a *app) configCommand() *cli.Command {
	return &cli.Command{
		Name:        "config",
		Usage:       "Display the active configuration",
		Description: `Show the configuration after merging defaults, the config file, SCHEMA_RAG_* environment variables, and command-line flags. API keys are never printed.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Print the configuration as JSON"},
		},
		Action: a.runConfig,
	}
}

func (a *app) runConfig(_ context.Context, cmd *cli.Command) error {
	cfg, err := a.loadConfig(cmd, nil)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config to JSON: %w", err)
		}

		_, err = fmt.Fprintln(a.out, string(data))

		return err
	}

	a.printConfig(cfg)

	return nil
}

func (a *app) printConfig(cfg *config.Config) {
	w := a.out

	fmt.Fprintln(w, "Active Configuration:")

	fmt.Fprintln(w, "\nSchemas:")
	fmt.Fprintf(w, "  Directory: %s\n", cfg.Schemas.Directory)
	fmt.Fprintf(w, "  Pattern: %s\n", cfg.Schemas.Pattern)

	fmt.Fprintln(w, "\nIndex:")
	fmt.Fprintf(w, "  Backend: %s\n", cfg.Index.Backend)
	fmt.Fprintf(w, "  Path: %s\n", cfg.Index.Path)
	fmt.Fprintf(w, "  Collection: %s\n", cfg.Index.Collection)
	fmt.Fprintf(w, "  Max Connections: %d\n", cfg.Index.MaxConnections)
	fmt.Fprintf(w, "  Query Timeout: %s\n", cfg.Index.QueryTimeout)

	fmt.Fprintln(w, "\nEmbedding:")
	fmt.Fprintf(w, "  Provider: %s\n", cfg.Embedding.Provider)
	fmt.Fprintf(w, "  Model: %s\n", cfg.Embedding.Model)
	fmt.Fprintf(w, "  Dimensions: %d\n", cfg.Embedding.Dimensions)
	fmt.Fprintf(w, "  API Key: %s\n", keyStatus(cfg.Embedding.APIKey))

	fmt.Fprintln(w, "\nLanguage Model:")
	fmt.Fprintf(w, "  Provider: %s\n", cfg.LLM.Provider)
	fmt.Fprintf(w, "  Model: %s\n", cfg.LLM.Model)

	if cfg.LLM.BaseURL != "" {
		fmt.Fprintf(w, "  Base URL: %s\n", cfg.LLM.BaseURL)
	}

	fmt.Fprintf(w, "  Temperature: %g\n", cfg.LLM.Temperature)
	fmt.Fprintf(w, "  Max Tokens: %d\n", cfg.LLM.MaxTokens)
	fmt.Fprintf(w, "  API Key: %s\n", keyStatus(cfg.LLM.APIKey))

	fmt.Fprintln(w, "\nRetrieval:")
	fmt.Fprintf(w, "  Top K: %d\n", cfg.Retrieval.TopK)

	fmt.Fprintln(w, "\nAgent:")
	fmt.Fprintf(w, "  History Enabled: %t\n", cfg.Agent.HistoryEnabled)
	fmt.Fprintf(w, "  Max History: %d\n", cfg.Agent.MaxHistory)
	fmt.Fprintf(w, "  History In Prompt: %d\n", cfg.Agent.HistoryInPrompt)
	fmt.Fprintf(w, "  Summarize Old Turns: %t\n", cfg.Agent.SummarizeOldTurns)

	fmt.Fprintln(w, "\nLogging:")
	fmt.Fprintf(w, "  Level: %s\n", cfg.Logging.Level)
	fmt.Fprintf(w, "  Format: %s\n", cfg.Logging.Format)
	fmt.Fprintf(w, "  Output: %s\n", cfg.Logging.Output)

	if cfg.Logging.Output == "file" {
		fmt.Fprintf(w, "  File: %s\n", cfg.Logging.File)
	}

	if cfg.Metrics.TextfilePath != "" {
		fmt.Fprintln(w, "\nMetrics:")
		fmt.Fprintf(w, "  Textfile: %s\n", cfg.Metrics.TextfilePath)
	}
}

func keyStatus(key string) string {
	if key == "" {
		return "not set"
	}

	return "set"
}
