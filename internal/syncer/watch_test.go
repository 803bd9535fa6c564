package syncer

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleking/schema-rag/internal/errors"
	"github.com/kyleking/schema-rag/internal/storage"
	"github.com/kyleking/schema-rag/internal/testutil"
)

func TestWatchResyncsOnChange(t *testing.T) {
	dir := t.TempDir()
	idx := storage.NewTestIndex(t, "memory")
	s := New(idx, Options{})

	testutil.WriteSchema(t, dir, "customers.json", customersSchema())

	ctx, cancel := context.WithTimeout(context.Background(), testutil.TestTimeout)
	defer cancel()

	reports := make(chan *Report, 8)
	done := make(chan error, 1)

	go func() {
		done <- s.Watch(ctx, dir, testutil.TestDebounce, func(r *Report, err error) {
			if err == nil {
				reports <- r
			}
		})
	}()

	next := func() *Report {
		select {
		case r := <-reports:
			return r
		case <-time.After(testutil.ShortTestTimeout):
			t.Fatal("timed out waiting for sync report")
			return nil
		}
	}

	initial := next()
	assert.Equal(t, []pair{{"customers", StatusNew}}, pairs(initial))

	testutil.WriteSchema(t, dir, "orders.json", ordersSchema())

	// a burst of events may produce more than one pass; wait for the one that sees orders
	deadline := time.After(testutil.ShortTestTimeout)

wait:
	for {
		select {
		case r := <-reports:
			if status, ok := r.StatusOf("orders"); ok && status == StatusNew {
				break wait
			}
		case <-deadline:
			t.Fatal("orders was never synced")
		}
	}

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, []string{"customers", "orders"}, indexedNames(t, idx))
}

func TestWatchMissingDirectory(t *testing.T) {
	s := New(storage.NewTestIndex(t, "memory"), Options{})

	err := s.Watch(context.Background(), filepath.Join(t.TempDir(), "missing"), 0, func(*Report, error) {
		t.Fatal("no pass should run")
	})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeParseIO))
}

func TestRelevantEvent(t *testing.T) {
	s := New(storage.NewTestIndex(t, "memory"), Options{})

	tests := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{"create schema", fsnotify.Event{Name: "/s/orders.json", Op: fsnotify.Create}, true},
		{"write schema", fsnotify.Event{Name: "/s/orders.json", Op: fsnotify.Write}, true},
		{"remove schema", fsnotify.Event{Name: "/s/orders.json", Op: fsnotify.Remove}, true},
		{"rename schema", fsnotify.Event{Name: "/s/orders.json", Op: fsnotify.Rename}, true},
		{"chmod ignored", fsnotify.Event{Name: "/s/orders.json", Op: fsnotify.Chmod}, false},
		{"other extension", fsnotify.Event{Name: "/s/notes.txt", Op: fsnotify.Write}, false},
		{"hidden editor file", fsnotify.Event{Name: "/s/.orders.json", Op: fsnotify.Write}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.relevant(tt.event))
		})
	}
}
