package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleking/schema-rag/internal/storage"
)

func TestObserveSync(t *testing.T) {
	r := NewRecorder()
	finished := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	r.ObserveSync(storage.SyncRun{New: 2, Skipped: 3, Removed: 1, FinishedAt: finished}, 2*time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.syncRunsTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.syncTablesTotal.WithLabelValues("new")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.syncTablesTotal.WithLabelValues("skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.syncTablesTotal.WithLabelValues("removed")))
	assert.Equal(t, 5.0, testutil.ToFloat64(r.indexedTables))
	assert.Equal(t, float64(finished.Unix()), testutil.ToFloat64(r.syncLastSuccess))

	// a pass with failures leaves the last success time alone
	r.ObserveSync(storage.SyncRun{Failed: 1, FinishedAt: finished.Add(time.Hour)}, time.Second)
	assert.Equal(t, float64(finished.Unix()), testutil.ToFloat64(r.syncLastSuccess))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.syncRunsTotal))
}

func TestObserveRetrievalAndGeneration(t *testing.T) {
	r := NewRecorder()

	r.ObserveRetrieval(10*time.Millisecond, 3, nil)
	r.ObserveRetrieval(time.Millisecond, 0, errors.New("down"))
	r.ObserveGeneration(nil)
	r.ObserveGeneration(errors.New("timeout"))
	r.ObserveGeneration(errors.New("timeout"))

	assert.Equal(t, 1.0, testutil.ToFloat64(r.retrievalRequestsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.retrievalRequestsTotal.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.generationTotal.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.generationTotal.WithLabelValues("error")))
}

func TestWriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.ObserveSync(storage.SyncRun{New: 1}, time.Second)

	path := filepath.Join(t.TempDir(), "nested", "schema_rag.prom")
	require.NoError(t, r.WriteTextfile(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "schema_rag_sync_runs_total 1")
	assert.Contains(t, string(content), `schema_rag_sync_tables_total{status="new"} 1`)
}

func TestWriteTextfileDisabled(t *testing.T) {
	assert.NoError(t, NewRecorder().WriteTextfile(""))
}

func TestRegistryExposesAllCollectors(t *testing.T) {
	r := NewRecorder()
	r.ObserveSync(storage.SyncRun{New: 1}, time.Second)
	r.ObserveRetrieval(time.Millisecond, 1, nil)
	r.ObserveGeneration(nil)

	count, err := testutil.GatherAndCount(r.Registry(),
		"schema_rag_sync_runs_total",
		"schema_rag_sql_generation_total",
	)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
