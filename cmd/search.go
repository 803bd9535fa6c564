package cmd

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/schema-rag/internal/errors"
	"github.com/kyleking/schema-rag/internal/retrieval"
)

func (a *app) searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Show the indexed schemas most relevant to a query",
		ArgsUsage: "<query>",
		Description: `Rank indexed tables by similarity to the query. This is the same retrieval
'ask' performs before calling the language model.

Examples:
  schema-rag search "customer orders"
  schema-rag search --top-k 3 --full "monthly revenue"`,
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "top-k", Aliases: []string{"k"}, Usage: "Number of tables to return (default from config)"},
			&cli.BoolFlag{Name: "full", Usage: "Print each matching schema document"},
		},
		Action: a.runSearch,
	}
}

func (a *app) runSearch(ctx context.Context, cmd *cli.Command) error {
	query := commandArgs(cmd)
	if query == "" {
		return errors.New(errors.ErrTypeValidation, "search query is required").
			WithSuggestion(`Usage: schema-rag search "customer orders"`)
	}

	s, err := a.open(ctx, cmd, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	svc := retrieval.NewService(s.store, retrieval.WithLogger(s.logger), retrieval.WithRecorder(s.metrics))

	results, err := svc.RetrieveMatches(ctx, query, topK(cmd, s.cfg.Retrieval.TopK))
	if err != nil {
		return err
	}

	return a.formatter().SearchResults(query, results, cmd.Bool("full"))
}

// topK prefers an explicit --top-k, including invalid values so they are
// reported rather than silently replaced
func topK(cmd *cli.Command, fallback int) int {
	if cmd.IsSet("top-k") {
		return int(cmd.Int("top-k"))
	}

	return fallback
}
