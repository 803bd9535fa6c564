package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/schema-rag/internal/errors"
	"github.com/kyleking/schema-rag/internal/formatter"
	"github.com/kyleking/schema-rag/internal/logging"
	"github.com/kyleking/schema-rag/internal/syncer"
)

func (a *app) syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Sync schema files into the vector index",
		Description: `Parse every schema file in the schemas directory, embed tables that are new or
whose file content changed, and remove entries whose file is gone. Unchanged files
are skipped by comparing content fingerprints, so repeated runs are cheap.

Exits non-zero when any file fails to sync; the other files are still processed.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "force-reload", Aliases: []string{"f"}, Usage: "Re-embed every table even if unchanged"},
			&cli.BoolFlag{Name: "watch", Aliases: []string{"w"}, Usage: "Keep running and re-sync when schema files change"},
			&cli.DurationFlag{Name: "debounce", Value: syncer.DefaultDebounce, Usage: "Quiet period before a watch re-sync"},
		},
		Action: a.runSync,
	}
}

func (a *app) runSync(ctx context.Context, cmd *cli.Command) error {
	s, err := a.open(ctx, cmd, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	sy := syncer.New(s.store, syncer.Options{
		Logger:     s.logger,
		Pattern:    s.cfg.Schemas.Pattern,
		Recorder:   s.metrics,
		EmbedderID: s.embedder.Identity(),
	})
	f := a.formatter()
	dir := s.cfg.Schemas.Directory

	if cmd.Bool("watch") {
		fmt.Fprintf(a.errOut, "Watching %s for changes (Ctrl+C to stop)\n", dir)

		return sy.Watch(ctx, dir, cmd.Duration("debounce"), func(report *syncer.Report, err error) {
			if err != nil {
				a.printError(err)
				return
			}

			a.printWatchPass(f, s.logger, report)
			s.writeMetrics()
		})
	}

	var report *syncer.Report

	stop := a.startSpinner("Syncing schemas from " + dir)
	err = logging.LoggerMiddleware(s.logger, "sync", func() error {
		var syncErr error
		report, syncErr = sy.Sync(ctx, dir, cmd.Bool("force-reload"))

		return syncErr
	})
	stop()

	if err != nil {
		return err
	}

	if err := f.SyncReport(report); err != nil {
		return err
	}

	if n := report.Count(syncer.StatusFailed); n > 0 {
		return errors.Newf(errors.ErrTypeSchemaFormat, "%d schema file(s) failed to sync", n).
			WithSuggestion("Fix the files marked failed and run sync again")
	}

	return nil
}

// printWatchPass prints a watch pass that changed the index or failed.
// Passes that only skipped tables, such as a save without edits, are logged.
func (a *app) printWatchPass(f *formatter.Formatter, logger *logging.Logger, report *syncer.Report) {
	if !report.Changed() && !report.HasFailures() {
		logger.WithField("skipped", report.Count(syncer.StatusSkipped)).Debug("No schema changes")
		return
	}

	if err := f.SyncReport(report); err != nil {
		logger.WithError(err).Warn("Failed to print sync report")
	}
}
