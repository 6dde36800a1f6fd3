// Package reload keeps a scanner's snapshot current, either by watching
// the model files on disk or by following registry announcements.
package reload

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/zpam/spamscan/pkg/registry"
	"github.com/zpam/spamscan/pkg/scanner"
)

// DefaultDebounce coalesces the burst of events one save produces.
const DefaultDebounce = 250 * time.Millisecond

// Loader builds a fresh snapshot.
type Loader func() (*scanner.Snapshot, error)

// FileWatcher reloads the scanner when any watched file changes.
type FileWatcher struct {
	scanner  *scanner.Scanner
	load     Loader
	files    map[string]struct{}
	dirs     map[string]struct{}
	Debounce time.Duration
}

// NewFileWatcher watches paths. Their parent directories are watched so
// files replaced by rename are still seen.
func NewFileWatcher(s *scanner.Scanner, load Loader, paths ...string) *FileWatcher {
	w := &FileWatcher{
		scanner:  s,
		load:     load,
		files:    make(map[string]struct{}),
		dirs:     make(map[string]struct{}),
		Debounce: DefaultDebounce,
	}
	for _, p := range paths {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = filepath.Clean(p)
		}
		w.files[abs] = struct{}{}
		w.dirs[filepath.Dir(abs)] = struct{}{}
	}
	return w
}

// Run blocks until ctx is cancelled. A failed reload is logged and the
// current snapshot stays in place.
func (w *FileWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create file watcher")
	}
	defer watcher.Close()

	for dir := range w.dirs {
		if err := watcher.Add(dir); err != nil {
			return errors.Wrapf(err, "failed to watch %s", dir)
		}
	}
	log.WithField("files", len(w.files)).Info("watching model files for changes")

	timer := time.NewTimer(w.Debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			log.WithFields(log.Fields{"file": event.Name, "op": event.Op.String()}).Debug("model file changed")
			timer.Reset(w.Debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("file watcher error")

		case <-timer.C:
			w.reload()
		}
	}
}

func (w *FileWatcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		abs = filepath.Clean(event.Name)
	}
	_, ok := w.files[abs]
	return ok
}

func (w *FileWatcher) reload() {
	snap, err := w.load()
	if err != nil {
		log.WithError(err).Error("model reload failed, keeping current model")
		return
	}
	w.scanner.Swap(snap)
}

// Source is the subset of the registry a follower needs.
type Source interface {
	Fetch(ctx context.Context) (*registry.Artifacts, error)
	Subscribe(ctx context.Context, fn func(version int64)) error
}

// Follower installs every version announced by a registry.
type Follower struct {
	scanner *scanner.Scanner
	source  Source
	opts    scanner.Options
}

// NewFollower returns a follower building snapshots with opts.
func NewFollower(s *scanner.Scanner, source Source, opts scanner.Options) *Follower {
	return &Follower{scanner: s, source: source, opts: opts}
}

// Sync fetches the current artifacts and installs them unless the scanner
// already holds the same or a newer version.
func (f *Follower) Sync(ctx context.Context) error {
	art, err := f.source.Fetch(ctx)
	if err != nil {
		return err
	}

	if cur := f.scanner.Current(); cur != nil && cur.Version >= art.Version {
		return nil
	}

	snap, err := scanner.LoadFromBytes(art.Model, art.Words, "redis", art.Version, f.opts)
	if err != nil {
		return errors.Wrapf(err, "model version %d", art.Version)
	}
	f.scanner.Swap(snap)
	return nil
}

// Run follows announcements until ctx is cancelled.
func (f *Follower) Run(ctx context.Context) error {
	return f.source.Subscribe(ctx, func(version int64) {
		if cur := f.scanner.Current(); cur != nil && cur.Version >= version {
			return
		}
		if err := f.Sync(ctx); err != nil {
			log.WithError(err).WithField("version", version).Error("model reload failed, keeping current model")
		}
	})
}
