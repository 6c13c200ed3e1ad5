package rules

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads a Store whenever a rules file in its root changes.
type Watcher struct {
	store   *Store
	watcher *fsnotify.Watcher
	logger  *zap.Logger

	mu          sync.Mutex
	subscribers []chan *Snapshot
	done        chan struct{}
	closeOnce   sync.Once
}

// NewWatcher starts watching the root of store.
func NewWatcher(store *Store, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fw.Add(store.Root()); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", store.Root(), err)
	}

	w := &Watcher{
		store:   store,
		watcher: fw,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Subscribe returns a channel receiving every snapshot produced by a reload.
// Slow subscribers miss intermediate snapshots.
func (w *Watcher) Subscribe() <-chan *Snapshot {
	ch := make(chan *Snapshot, 1)
	w.mu.Lock()
	w.subscribers = append(w.subscribers, ch)
	w.mu.Unlock()
	return ch
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !IsCandidate(filepath.Base(event.Name)) {
				continue
			}
			w.logger.Debug("Rules file changed",
				zap.String("file", event.Name),
				zap.String("op", event.Op.String()),
			)
			w.publish(w.store.Reload())
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Rules watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) publish(snap *Snapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, sub := range w.subscribers {
		select {
		case sub <- snap:
		default:
			// Skip if subscriber is not ready
		}
	}
}

// Close stops watching and closes every subscriber channel.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()

		w.mu.Lock()
		for _, sub := range w.subscribers {
			close(sub)
		}
		w.subscribers = nil
		w.mu.Unlock()
	})
	return err
}
