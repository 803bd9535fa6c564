package cmd

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/schema-rag/internal/errors"
)

func (a *app) statsCommand() *cli.Command {
	return &cli.Command{
		Name:        "stats",
		Usage:       "Display index statistics",
		Description: `Show the number of indexed tables, the database size, and the outcome of the last sync run.`,
		Action:      a.runStats,
	}
}

func (a *app) runStats(ctx context.Context, cmd *cli.Command) error {
	s, err := a.open(ctx, cmd, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	stats, err := s.store.GetStats(ctx)
	if err != nil {
		return errors.Wrap(err, errors.ErrTypeDatabase, "failed to get statistics")
	}

	return a.formatter().Stats(stats)
}
