package cmd

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/schema-rag/internal/errors"
)

func (a *app) clearCommand() *cli.Command {
	return &cli.Command{
		Name:        "clear",
		Usage:       "Remove every entry from the index",
		Description: `Delete all indexed tables. Sync history and schema files are not touched; run 'sync' to rebuild. Requires confirmation unless --force is given.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "Skip confirmation prompt"},
		},
		Action: a.runClear,
	}
}

func (a *app) runClear(ctx context.Context, cmd *cli.Command) error {
	s, err := a.open(ctx, cmd, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	stats, err := s.store.GetStats(ctx)
	if err != nil {
		return errors.Wrap(err, errors.ErrTypeDatabase, "failed to get statistics")
	}

	if stats.TotalEntries == 0 {
		fmt.Fprintln(a.out, "Index is already empty.")
		return nil
	}

	fmt.Fprintf(a.out, "This will delete %d indexed table(s).\n", stats.TotalEntries)

	if !cmd.Bool("force") {
		fmt.Fprint(a.out, "Type 'yes' to confirm: ")

		response, err := bufio.NewReader(a.in).ReadString('\n')
		if err != nil && response == "" {
			return fmt.Errorf("failed to read input: %w", err)
		}

		if strings.TrimSpace(strings.ToLower(response)) != "yes" {
			fmt.Fprintln(a.out, "Operation cancelled.")
			return nil
		}
	}

	if err := s.store.Clear(ctx); err != nil {
		return errors.Wrap(err, errors.ErrTypeDatabase, "failed to clear index")
	}

	fmt.Fprintln(a.out, "Index cleared.")

	return nil
}
