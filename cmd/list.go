package cmd

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/schema-rag/internal/errors"
)

func (a *app) listCommand() *cli.Command {
	return &cli.Command{
		Name:   "list",
		Usage:  "List indexed tables",
		Action: a.runList,
	}
}

func (a *app) runList(ctx context.Context, cmd *cli.Command) error {
	s, err := a.open(ctx, cmd, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	entries, err := s.store.ListAll(ctx)
	if err != nil {
		return errors.NewBackendError(err, "listing")
	}

	return a.formatter().Tables(entries)
}

func (a *app) showCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Print the stored schema document for a table",
		ArgsUsage: "<table>",
		Action:    a.runShow,
	}
}

func (a *app) runShow(ctx context.Context, cmd *cli.Command) error {
	name := commandArgs(cmd)
	if name == "" {
		return errors.New(errors.ErrTypeValidation, "table name is required").
			WithSuggestion("Usage: schema-rag show <table>")
	}

	s, err := a.open(ctx, cmd, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	entry, err := s.store.Get(ctx, name)
	if err != nil {
		return err
	}

	return a.formatter().Document(*entry)
}
