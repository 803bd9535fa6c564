package syncer

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kyleking/schema-rag/internal/errors"
)

// DefaultDebounce batches bursts of file events (editors often write a
// file several times per save)
const DefaultDebounce = 500 * time.Millisecond

// Watch runs an incremental sync immediately and again after every burst
// of changes to schema files in dir. Passes are serialized. onReport
// receives the result of each pass. Watch returns nil when ctx is cancelled.
func (s *Syncer) Watch(ctx context.Context, dir string, debounce time.Duration, onReport func(*Report, error)) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return errors.NewParseIOError(err, dir)
	}

	onReport(s.Sync(ctx, dir, false))

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)

	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if !s.relevant(event) {
				continue
			}

			s.logger.WithField("event", event.String()).Debug("Schema directory changed")

			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}

			fire = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			s.logger.WithError(err).Warn("File watcher error")

		case <-fire:
			fire = nil

			onReport(s.Sync(ctx, dir, false))
		}
	}
}

// relevant reports whether event can change the outcome of a sync
func (s *Syncer) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}

	name := filepath.Base(event.Name)
	if len(name) > 0 && name[0] == '.' {
		return false
	}

	matched, err := filepath.Match(s.pattern, name)

	return err == nil && matched
}
