package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/schema-rag/internal/agent"
	"github.com/kyleking/schema-rag/internal/errors"
	"github.com/kyleking/schema-rag/internal/retrieval"
)

func (a *app) askCommand() *cli.Command {
	return &cli.Command{
		Name:      "ask",
		Usage:     "Generate SQL for a natural-language request",
		ArgsUsage: "<request>",
		Description: `Retrieve the schemas relevant to the request and ask the configured language
model for a SQL query that uses only those tables. The SQL is not validated or run.

Examples:
  schema-rag ask "total order value per customer last month"
  schema-rag ask --explain "customers without orders"
  schema-rag ask --interactive`,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "explain", Aliases: []string{"e"}, Usage: "Ask for an explanation after the SQL"},
			&cli.BoolFlag{Name: "interactive", Aliases: []string{"i"}, Usage: "Read requests from stdin with conversation history"},
			&cli.StringFlag{Name: "provider", Usage: "Language model provider: openai, anthropic, or ollama"},
			&cli.StringFlag{Name: "model", Usage: "Language model name"},
			&cli.IntFlag{Name: "top-k", Aliases: []string{"k"}, Usage: "Number of schemas to include (default from config)"},
		},
		Action: a.runAsk,
	}
}

func (a *app) runAsk(ctx context.Context, cmd *cli.Command) error {
	request := commandArgs(cmd)
	interactive := cmd.Bool("interactive")

	if request == "" && !interactive {
		return errors.New(errors.ErrTypeValidation, "request is required").
			WithSuggestion(`Usage: schema-rag ask "orders per customer"`).
			WithSuggestion("Use --interactive to enter requests one at a time")
	}

	s, err := a.open(ctx, cmd, map[string]interface{}{
		"provider": cmd.String("provider"),
		"model":    cmd.String("model"),
	})
	if err != nil {
		return err
	}
	defer s.Close()

	completer, err := a.newCompleter(s.cfg.LLM, s.logger)
	if err != nil {
		return err
	}

	k := topK(cmd, s.cfg.Retrieval.TopK)
	if k <= 0 {
		return errors.Newf(errors.ErrTypeValidation, "k must be positive, got %d", k).
			WithSuggestion("Use --top-k with a value of 1 or more")
	}

	svc := retrieval.NewService(s.store, retrieval.WithLogger(s.logger), retrieval.WithRecorder(s.metrics))
	sqlAgent := agent.New(svc, completer, agent.Options{
		TopK:     k,
		Model:    s.cfg.LLM.Model,
		History:  s.cfg.Agent,
		Logger:   s.logger,
		Recorder: s.metrics,
	})

	explain := cmd.Bool("explain")

	if interactive {
		entries, err := s.store.ListAll(ctx)
		if err != nil {
			return errors.NewBackendError(err, "listing")
		}

		tables := make([]string, len(entries))
		for i, e := range entries {
			tables[i] = e.ID
		}

		return sqlAgent.RunInteractive(ctx, a.in, a.out, explain, tables)
	}

	stop := a.startSpinner("Generating SQL")
	answer, err := sqlAgent.Generate(ctx, request, explain)
	stop()

	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(a.out, answer.SQL)

	return err
}
