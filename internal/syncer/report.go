package syncer

import (
	"fmt"
	"time"

	"github.com/kyleking/schema-rag/internal/storage"
)

// Status classifies what a sync pass did with one table
type Status int

const (
	StatusNew Status = iota
	StatusUpdated
	StatusSkipped
	StatusRemoved
	StatusFailed
)

// Statuses lists every status in display order
var Statuses = []Status{StatusNew, StatusUpdated, StatusSkipped, StatusRemoved, StatusFailed}

func (s Status) String() string {
	switch s {
	case StatusNew:
		return "new"
	case StatusUpdated:
		return "updated"
	case StatusSkipped:
		return "skipped"
	case StatusRemoved:
		return "removed"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// MarshalText renders the status by name in JSON output
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Reasons attached to updated entries
const (
	ReasonForced             = "forced"
	ReasonFingerprintChanged = "fingerprint changed"
	ReasonEmbedderChanged    = "embedder changed"
	ReasonFileMissing        = "source file missing"
)

// Entry is one line of a sync report. TableName may be empty for a file
// that could not be read or did not name its table.
type Entry struct {
	TableName string `json:"table_name"`
	File      string `json:"file,omitempty"`
	Status    Status `json:"status"`
	Reason    string `json:"reason,omitempty"`
	Err       error  `json:"-"`
}

// Report is the outcome of one sync pass. Entries are in file order,
// followed by removals sorted by table name.
type Report struct {
	RunID      string    `json:"run_id"`
	Directory  string    `json:"directory"`
	Forced     bool      `json:"forced"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Entries    []Entry   `json:"entries"`
}

// Count returns how many entries have the given status
func (r *Report) Count(status Status) int {
	n := 0

	for _, e := range r.Entries {
		if e.Status == status {
			n++
		}
	}

	return n
}

// HasFailures reports whether any table failed to sync
func (r *Report) HasFailures() bool {
	return r.Count(StatusFailed) > 0
}

// Changed reports whether the pass modified the index
func (r *Report) Changed() bool {
	return r.Count(StatusNew)+r.Count(StatusUpdated)+r.Count(StatusRemoved) > 0
}

// Duration is the wall time of the pass
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Failures returns the failed entries
func (r *Report) Failures() []Entry {
	var failed []Entry

	for _, e := range r.Entries {
		if e.Status == StatusFailed {
			failed = append(failed, e)
		}
	}

	return failed
}

// StatusOf returns the status recorded for table, if any
func (r *Report) StatusOf(table string) (Status, bool) {
	for _, e := range r.Entries {
		if e.TableName == table {
			return e.Status, true
		}
	}

	return 0, false
}

// SyncRun converts the report to the record persisted by the index
func (r *Report) SyncRun() storage.SyncRun {
	return storage.SyncRun{
		ID:         r.RunID,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Forced:     r.Forced,
		New:        r.Count(StatusNew),
		Updated:    r.Count(StatusUpdated),
		Skipped:    r.Count(StatusSkipped),
		Removed:    r.Count(StatusRemoved),
		Failed:     r.Count(StatusFailed),
	}
}
