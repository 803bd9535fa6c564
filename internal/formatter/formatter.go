package formatter

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/cli/go-gh/v2/pkg/tableprinter"

	"github.com/kyleking/schema-rag/internal/retrieval"
	"github.com/kyleking/schema-rag/internal/storage"
	"github.com/kyleking/schema-rag/internal/syncer"
)

const (
	defaultWidth      = 120
	fingerprintLength = 12
	descriptionLength = 60
)

// statusSymbols mark each sync outcome in the report
var statusSymbols = map[syncer.Status]string{
	syncer.StatusNew:     "+",
	syncer.StatusUpdated: "~",
	syncer.StatusSkipped: "=",
	syncer.StatusRemoved: "-",
	syncer.StatusFailed:  "!",
}

// Formatter renders reports and index contents as tables
type Formatter struct {
	out   io.Writer
	isTTY bool
	width int
	now   func() time.Time
}

// NewFormatter creates a formatter writing to out. Off a terminal, tables
// are tab separated and never truncated.
func NewFormatter(out io.Writer, isTTY bool, width int) *Formatter {
	if width <= 0 {
		width = defaultWidth
	}

	return &Formatter{out: out, isTTY: isTTY, width: width, now: time.Now}
}

// StatusSymbol returns the one-character marker for status
func StatusSymbol(status syncer.Status) string {
	if s, ok := statusSymbols[status]; ok {
		return s
	}

	return "?"
}

func (f *Formatter) table() tableprinter.TablePrinter {
	return tableprinter.New(f.out, f.isTTY, f.width)
}

// SyncReport prints one row per entry followed by a summary line
func (f *Formatter) SyncReport(report *syncer.Report) error {
	if len(report.Entries) > 0 {
		tp := f.table()
		tp.AddHeader([]string{"", "STATUS", "TABLE", "FILE", "DETAIL"})

		for _, e := range report.Entries {
			tp.AddField(StatusSymbol(e.Status))
			tp.AddField(e.Status.String())
			tp.AddField(orDash(e.TableName))
			tp.AddField(orDash(e.File))
			tp.AddField(orDash(entryDetail(e)))
			tp.EndRow()
		}

		if err := tp.Render(); err != nil {
			return err
		}

		fmt.Fprintln(f.out)
	}

	_, err := fmt.Fprintln(f.out, Summary(report))

	return err
}

// Summary is a one-line count of each status and the run duration
func Summary(report *syncer.Report) string {
	parts := make([]string, 0, len(syncer.Statuses))
	for _, s := range syncer.Statuses {
		parts = append(parts, fmt.Sprintf("%d %s", report.Count(s), s))
	}

	return fmt.Sprintf("Sync complete: %s (%s)", strings.Join(parts, ", "), report.Duration().Round(time.Millisecond))
}

func entryDetail(e syncer.Entry) string {
	if e.Err != nil {
		return e.Err.Error()
	}

	return e.Reason
}

// Tables lists indexed entries with their fingerprints
func (f *Formatter) Tables(entries []storage.Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(f.out, "No tables indexed. Run 'schema-rag sync' first.")
		return err
	}

	tp := f.table()
	tp.AddHeader([]string{"TABLE", "COLUMNS", "FINGERPRINT", "SOURCE", "SYNCED"})

	for _, e := range entries {
		tp.AddField(e.ID)
		tp.AddField(orDash(e.Metadata[storage.MetaColumnCount]))
		tp.AddField(orDash(shortFingerprint(e.Metadata[storage.MetaFingerprint])))
		tp.AddField(orDash(e.Metadata[storage.MetaSourceFile]))
		tp.AddField(f.syncedAge(e.Metadata[storage.MetaSyncedAt]))
		tp.EndRow()
	}

	if err := tp.Render(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(f.out, "\n%d table(s)\n", len(entries))

	return err
}

// SearchResults prints ranked matches. With full, each stored document
// follows the table.
func (f *Formatter) SearchResults(query string, results []retrieval.Result, full bool) error {
	if len(results) == 0 {
		_, err := fmt.Fprintf(f.out, "No tables match %q.\n", query)
		return err
	}

	tp := f.table()
	tp.AddHeader([]string{"RANK", "TABLE", "SCORE", "DESCRIPTION"})

	for _, r := range results {
		tp.AddField(strconv.Itoa(r.Rank))
		tp.AddField(r.TableName)
		tp.AddField(fmt.Sprintf("%.3f", r.Score))
		tp.AddField(orDash(shorten(r.Metadata[storage.MetaDescription], descriptionLength)))
		tp.EndRow()
	}

	if err := tp.Render(); err != nil {
		return err
	}

	if !full {
		return nil
	}

	for _, r := range results {
		fmt.Fprintf(f.out, "\n--- %d. %s (score %.3f) ---\n%s\n", r.Rank, r.TableName, r.Score, r.Document)
	}

	return nil
}

// Document prints one stored schema
func (f *Formatter) Document(entry storage.Entry) error {
	fmt.Fprintln(f.out, entry.Document)
	fmt.Fprintln(f.out)

	keys := []string{storage.MetaSourceFile, storage.MetaFingerprint, storage.MetaColumnCount, storage.MetaSyncedAt}
	for _, k := range keys {
		if v := entry.Metadata[k]; v != "" {
			fmt.Fprintf(f.out, "%s: %s\n", k, v)
		}
	}

	return nil
}

// Stats prints index statistics and the most recent sync run
func (f *Formatter) Stats(stats *storage.Stats) error {
	lines := []string{
		"Backend: " + stats.Backend,
		"Collection: " + stats.Collection,
		"Indexed tables: " + strconv.Itoa(stats.TotalEntries),
		"Last updated: " + f.humanizeAge(stats.LastUpdated),
	}

	if stats.DatabaseSizeMB > 0 {
		lines = append(lines, fmt.Sprintf("Database size: %.2f MB", stats.DatabaseSizeMB))
	}

	if run := stats.LastRun; run != nil {
		forced := ""
		if run.Forced {
			forced = " (forced)"
		}

		lines = append(lines,
			fmt.Sprintf("Last sync: %s%s", f.humanizeAge(run.FinishedAt), forced),
			fmt.Sprintf("  %d new, %d updated, %d skipped, %d removed, %d failed",
				run.New, run.Updated, run.Skipped, run.Removed, run.Failed),
		)
	} else {
		lines = append(lines, "Last sync: never")
	}

	_, err := fmt.Fprintln(f.out, strings.Join(lines, "\n"))

	return err
}

func (f *Formatter) syncedAge(value string) string {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return "?"
	}

	return f.humanizeAge(t)
}

// humanizeAge converts a time to a human-readable age string
func (f *Formatter) humanizeAge(t time.Time) string {
	if t.IsZero() {
		return "?"
	}

	duration := f.now().Sub(t)

	if duration < time.Minute {
		return "just now"
	}

	if duration < time.Hour {
		return plural(int(duration.Minutes()), "minute")
	}

	if duration < 24*time.Hour {
		return plural(int(duration.Hours()), "hour")
	}

	days := int(duration.Hours() / 24)

	switch {
	case days < 30:
		return plural(days, "day")
	case days < 365:
		return plural(days/30, "month")
	default:
		return plural(days/365, "year")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit + " ago"
	}

	return fmt.Sprintf("%d %ss ago", n, unit)
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}

	return string(r[:n-1]) + "…"
}

func shortFingerprint(fp string) string {
	if len(fp) > fingerprintLength {
		return fp[:fingerprintLength]
	}

	return fp
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}

	return s
}
