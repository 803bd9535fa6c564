package syncer

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/kyleking/schema-rag/internal/errors"
	"github.com/kyleking/schema-rag/internal/logging"
	"github.com/kyleking/schema-rag/internal/schema"
	"github.com/kyleking/schema-rag/internal/storage"
)

// DefaultPattern selects schema files within the directory
const DefaultPattern = "*.json"

const maxDescriptionMeta = 200

// Recorder receives every completed pass. metrics.Recorder satisfies it.
type Recorder interface {
	ObserveSync(run storage.SyncRun, duration time.Duration)
}

// Options configures a Syncer. The zero value is usable.
type Options struct {
	Logger   *logging.Logger
	Pattern  string
	Recorder Recorder
	Now      func() time.Time

	// EmbedderID identifies the embedder behind the index. When set, entries
	// embedded under a different ID are re-embedded even if unchanged.
	EmbedderID string
}

// Syncer reconciles a directory of schema files with an index. It is the
// only writer of index entries.
type Syncer struct {
	index    storage.Index
	logger   *logging.Logger
	pattern  string
	recorder Recorder
	now      func() time.Time
	embedder string
}

// New creates a Syncer that writes to index
func New(index storage.Index, opts Options) *Syncer {
	s := &Syncer{
		index:    index,
		logger:   logging.OrDiscard(opts.Logger),
		pattern:  opts.Pattern,
		recorder: opts.Recorder,
		now:      opts.Now,
		embedder: opts.EmbedderID,
	}

	if s.pattern == "" {
		s.pattern = DefaultPattern
	}

	if s.now == nil {
		s.now = time.Now
	}

	return s
}

// loadedFile is a schema file after reading and parsing
type loadedFile struct {
	file        string
	tableName   string
	fingerprint string
	record      *schema.Record
	err         error
}

// Sync brings the index in line with the schema files in dir. Per-table
// failures are reported as StatusFailed and do not stop the pass. An
// error is returned only when no diff can be computed: the index cannot
// be listed or dir cannot be read.
func (s *Syncer) Sync(ctx context.Context, dir string, forceReload bool) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		Directory: dir,
		Forced:    forceReload,
		StartedAt: s.now(),
	}

	logger := s.logger.WithFields(map[string]interface{}{
		"run_id": report.RunID,
		"dir":    dir,
	})

	existing, err := s.index.ListAll(ctx)
	if err != nil {
		return nil, errors.NewBackendError(err, "listing").
			WithSuggestion("Check that the index database is reachable and not locked by another process")
	}

	stored := make(map[string]storage.Entry, len(existing))
	for _, entry := range existing {
		stored[entry.ID] = entry
	}

	files, err := s.listFiles(dir)
	if err != nil {
		return nil, err
	}

	if len(files) == 0 {
		logger.Warnf("No files matching %s in %s; every indexed table will be removed", s.pattern, dir)
	}

	loaded := make([]loadedFile, 0, len(files))
	for _, path := range files {
		loaded = append(loaded, loadFile(path))
	}

	// an unreadable file names no table; attribute it through the source
	// file recorded at the last sync so its entry is not removed
	bySource := make(map[string]string, len(stored))
	for id, entry := range stored {
		bySource[entry.Metadata[storage.MetaSourceFile]] = id
	}

	for i := range loaded {
		if loaded[i].err != nil && loaded[i].tableName == "" {
			loaded[i].tableName = bySource[loaded[i].file]
		}
	}

	present := make(map[string]bool, len(loaded))
	claims := make(map[string][]string, len(loaded))

	for _, lf := range loaded {
		if lf.tableName != "" {
			present[lf.tableName] = true
		}

		if lf.err == nil {
			claims[lf.tableName] = append(claims[lf.tableName], lf.file)
		}
	}

	for _, lf := range loaded {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entry := s.syncFile(ctx, lf, stored, claims[lf.tableName], forceReload)
		logEntry(logger, entry)
		report.Entries = append(report.Entries, entry)
	}

	var orphans []string

	for id := range stored {
		if !present[id] {
			orphans = append(orphans, id)
		}
	}

	sort.Strings(orphans)

	for _, id := range orphans {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entry := Entry{TableName: id, File: stored[id].Metadata[storage.MetaSourceFile], Status: StatusRemoved, Reason: ReasonFileMissing}

		if err := s.index.Delete(ctx, id); err != nil {
			entry.Status = StatusFailed
			entry.Err = errors.NewBackendError(err, "delete of "+id)
		}

		logEntry(logger, entry)
		report.Entries = append(report.Entries, entry)
	}

	report.FinishedAt = s.now()
	s.finish(ctx, logger, report)

	return report, nil
}

func (s *Syncer) syncFile(ctx context.Context, lf loadedFile, stored map[string]storage.Entry, claimants []string, forceReload bool) Entry {
	entry := Entry{TableName: lf.tableName, File: lf.file}

	if lf.err != nil {
		entry.Status = StatusFailed
		entry.Err = lf.err

		return entry
	}

	if len(claimants) > 1 {
		entry.Status = StatusFailed
		entry.Err = errors.NewDuplicateTableError(lf.tableName, claimants)

		return entry
	}

	prior, exists := stored[lf.tableName]

	switch {
	case !exists:
		entry.Status = StatusNew
	case forceReload:
		entry.Status = StatusUpdated
		entry.Reason = ReasonForced
	case prior.Metadata[storage.MetaFingerprint] != lf.fingerprint:
		entry.Status = StatusUpdated
		entry.Reason = ReasonFingerprintChanged
	case s.embedder != "" && prior.Metadata[storage.MetaEmbedder] != s.embedder:
		entry.Status = StatusUpdated
		entry.Reason = ReasonEmbedderChanged
	default:
		entry.Status = StatusSkipped
		return entry
	}

	if err := s.index.Upsert(ctx, lf.tableName, lf.record.CanonicalText(), s.metadata(lf)); err != nil {
		entry.Status = StatusFailed
		entry.Reason = ""
		entry.Err = errors.NewBackendError(err, "upsert of "+lf.tableName)
	}

	return entry
}

func (s *Syncer) metadata(lf loadedFile) map[string]string {
	description := lf.record.Description
	if r := []rune(description); len(r) > maxDescriptionMeta {
		description = string(r[:maxDescriptionMeta])
	}

	metadata := map[string]string{
		storage.MetaFingerprint: lf.fingerprint,
		storage.MetaSourceFile:  lf.file,
		storage.MetaDescription: description,
		storage.MetaColumnCount: strconv.Itoa(len(lf.record.Columns)),
		storage.MetaSyncedAt:    s.now().UTC().Format(time.RFC3339),
	}

	if s.embedder != "" {
		metadata[storage.MetaEmbedder] = s.embedder
	}

	return metadata
}

// finish records the pass with the backend and metrics. Neither failure
// affects the report.
func (s *Syncer) finish(ctx context.Context, logger *logging.Logger, report *Report) {
	run := report.SyncRun()

	if recorder, ok := s.index.(storage.SyncRecorder); ok {
		if err := recorder.RecordSync(ctx, run); err != nil {
			logger.WithError(err).Warn("Failed to record sync run")
		}
	}

	if s.recorder != nil {
		s.recorder.ObserveSync(run, report.Duration())
	}

	logger.WithFields(map[string]interface{}{
		"new":      run.New,
		"updated":  run.Updated,
		"skipped":  run.Skipped,
		"removed":  run.Removed,
		"failed":   run.Failed,
		"duration": report.Duration().String(),
	}).Info("Sync completed")
}

// listFiles returns the schema files directly inside dir, sorted by name
func (s *Syncer) listFiles(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.NewParseIOError(err, dir).
			WithSuggestion("Set --schemas-dir or SCHEMA_RAG_SCHEMAS_DIR to an existing directory")
	}

	if !info.IsDir() {
		return nil, errors.Newf(errors.ErrTypeParseIO, "%s is not a directory", dir)
	}

	matches, err := filepath.Glob(filepath.Join(dir, s.pattern))
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrTypeConfig, "invalid schema file pattern %q", s.pattern)
	}

	files := matches[:0]

	for _, path := range matches {
		if fi, err := os.Stat(path); err == nil && fi.IsDir() {
			continue
		}

		files = append(files, path)
	}

	sort.Strings(files)

	return files, nil
}

func loadFile(path string) loadedFile {
	lf := loadedFile{file: filepath.Base(path)}

	content, err := os.ReadFile(path)
	if err != nil {
		lf.err = errors.NewParseIOError(err, lf.file)
		return lf
	}

	lf.fingerprint = schema.Fingerprint(content)

	record, err := schema.Parse(content)
	if err != nil {
		// keep a best-effort name so the entry is attributed and not removed
		lf.tableName = schema.PeekTableName(content)
		lf.err = errors.Wrapf(err, errors.ErrTypeSchemaFormat, "%s", lf.file)

		return lf
	}

	lf.tableName = record.TableName
	lf.record = record

	return lf
}

func logEntry(logger *logging.Logger, entry Entry) {
	fields := map[string]interface{}{
		"table":  entry.TableName,
		"file":   entry.File,
		"status": entry.Status.String(),
	}

	if entry.Reason != "" {
		fields["reason"] = entry.Reason
	}

	if entry.Err != nil {
		logger.WithFields(fields).WithError(entry.Err).Warn("Table failed to sync")
		return
	}

	logger.WithFields(fields).Debug("Table synced")
}
