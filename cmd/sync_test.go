package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleking/schema-rag/internal/logging"
	"github.com/kyleking/schema-rag/internal/syncer"
	"github.com/kyleking/schema-rag/internal/testutil"
)

func TestSyncCommand(t *testing.T) {
	h := newHarness(t)
	h.writeSchemas()

	res := h.sync()
	assert.Contains(t, res.stdout, "new\tcustomers\tcustomers.json")
	assert.Contains(t, res.stdout, "new\torders\torders.json")
	assert.Contains(t, res.stdout, "Sync complete: 2 new, 0 updated, 0 skipped, 0 removed, 0 failed")

	// second run over unchanged files only skips
	res = h.sync()
	assert.Contains(t, res.stdout, "Sync complete: 0 new, 0 updated, 2 skipped, 0 removed, 0 failed")

	res = h.sync("--force-reload")
	assert.Contains(t, res.stdout, "updated\tcustomers\tcustomers.json\tforced")
	assert.Contains(t, res.stdout, "Sync complete: 0 new, 2 updated")

	testutil.RemoveFile(t, h.schemasDir, "orders.json")

	res = h.sync()
	assert.Contains(t, res.stdout, "removed\torders\torders.json\tsource file missing")
	assert.Contains(t, res.stdout, "1 skipped, 1 removed")
}

func TestSyncCommandFailsOnBadFile(t *testing.T) {
	h := newHarness(t)
	h.writeSchemas()
	testutil.WriteFile(t, h.schemasDir, "broken.json", []byte(`{"table_name": "broken", "columns": 3`))

	res := h.run("sync")
	require.Error(t, res.err)

	assert.Contains(t, res.stdout, "failed\tbroken\tbroken.json")
	assert.Contains(t, res.stdout, "2 new")
	assert.Contains(t, res.stderr, "1 schema file(s) failed to sync")

	// the valid tables were still indexed
	res = h.run("list")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "customers\t")
	assert.Contains(t, res.stdout, "orders\t")
}

func TestSyncCommandMissingDirectory(t *testing.T) {
	h := newHarness(t)

	res := h.run("--schemas-dir", filepath.Join(t.TempDir(), "nope"), "sync")
	require.Error(t, res.err)
	assert.Contains(t, res.stderr, "nope")
}

func TestSyncCommandWritesMetrics(t *testing.T) {
	h := newHarness(t)
	h.writeSchemas()

	path := filepath.Join(t.TempDir(), "metrics", "schema_rag.prom")
	t.Setenv("SCHEMA_RAG_METRICS_TEXTFILE", path)

	h.sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "schema_rag_sync_runs_total 1")
	assert.Contains(t, string(data), `schema_rag_sync_tables_total{status="new"} 2`)
}

func TestWatchPassOnlyPrintsChanges(t *testing.T) {
	var out bytes.Buffer

	a := &app{out: &out}
	f := a.formatter()
	logger := logging.OrDiscard(nil)

	quiet := &syncer.Report{Entries: []syncer.Entry{
		{TableName: "customers", File: "customers.json", Status: syncer.StatusSkipped},
	}}
	a.printWatchPass(f, logger, quiet)
	assert.Empty(t, out.String())

	edited := &syncer.Report{Entries: []syncer.Entry{
		{TableName: "customers", File: "customers.json", Status: syncer.StatusUpdated, Reason: syncer.ReasonFingerprintChanged},
	}}
	a.printWatchPass(f, logger, edited)
	assert.Contains(t, out.String(), "updated\tcustomers\tcustomers.json\tfingerprint changed")

	out.Reset()

	broken := &syncer.Report{Entries: []syncer.Entry{
		{File: "broken.json", Status: syncer.StatusFailed, Err: fmt.Errorf("unexpected end of JSON input")},
	}}
	a.printWatchPass(f, logger, broken)
	assert.Contains(t, out.String(), "1 failed")
}
