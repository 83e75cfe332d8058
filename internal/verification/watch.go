package verification

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gardenloop/internal/logging"
	"gardenloop/internal/workspace"

	"github.com/fsnotify/fsnotify"
)

// defaultSettle is how long a new file must stay quiet before it is read.
const defaultSettle = 500 * time.Millisecond

// Watcher verifies images as they appear in the visuals folder.
type Watcher struct {
	v       *Verifier
	fs      *fsnotify.Watcher
	dir     string
	settle  time.Duration
	pending map[string]time.Time

	// OnResult, when set, receives every filed result.
	OnResult func(Result)
}

// NewWatcher starts watching the visuals folder, creating it if needed.
// Events that arrive before Run are queued, not lost.
func (v *Verifier) NewWatcher() (*Watcher, error) {
	dir := v.layout.Visuals
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	logging.Get(logging.CategoryVerify).Info("Watching %s for new designs", dir)

	return &Watcher{
		v:       v,
		fs:      fw,
		dir:     dir,
		settle:  defaultSettle,
		pending: make(map[string]time.Time),
	}, nil
}

// Watch verifies new images until ctx is done. It returns nil on cancel.
func (v *Verifier) Watch(ctx context.Context, onResult func(Result)) error {
	w, err := v.NewWatcher()
	if err != nil {
		return err
	}
	w.OnResult = onResult
	return w.Run(ctx)
}

// Run processes events until ctx is done, then closes the watcher.
// Images are verified one at a time on this goroutine.
func (w *Watcher) Run(ctx context.Context) error {
	log := logging.Get(logging.CategoryVerify)
	defer func() {
		if err := w.fs.Close(); err != nil {
			log.Error("error closing watcher: %v", err)
		}
	}()

	ticker := time.NewTicker(w.settle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Stopped watching %s", w.dir)
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			log.Error("watch error: %v", err)

		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if filepath.Dir(event.Name) != w.dir || !workspace.IsImage(event.Name) {
		return
	}
	logging.Get(logging.CategoryVerify).Debug("%s event for %s", event.Op, filepath.Base(event.Name))
	w.pending[event.Name] = time.Now()
}

// flush verifies every pending file that has been quiet for the settle time.
func (w *Watcher) flush(ctx context.Context) {
	now := time.Now()
	for path, last := range w.pending {
		if now.Sub(last) < w.settle {
			continue
		}
		delete(w.pending, path)
		if ctx.Err() != nil {
			return
		}
		if _, err := os.Stat(path); err != nil {
			continue
		}

		res, err := w.v.VerifyAndHandle(ctx, path)
		if err != nil {
			logging.Get(logging.CategoryVerify).Warn("%s: %v", filepath.Base(path), err)
		}
		if w.OnResult != nil && res.Verdict.Category != "" {
			w.OnResult(res)
		}
	}
}
