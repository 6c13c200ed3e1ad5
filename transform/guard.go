package transform

import (
	"sync"

	"golang.org/x/sync/semaphore"
)

// documentGuard allows a single operation per document at a time. Callers
// that cannot acquire a document are rejected rather than queued.
//
// Each document key owns one weight-1 semaphore for the lifetime of the
// guard. Acquisition and the busy probe run under mu so a probe never makes
// a concurrent acquisition fail; release does not take mu.
type documentGuard struct {
	mu   sync.Mutex
	sems map[string]*semaphore.Weighted
}

func newDocumentGuard() *documentGuard {
	return &documentGuard{sems: make(map[string]*semaphore.Weighted)}
}

// semFor returns the semaphore for key, creating it on first use. Callers
// hold mu.
func (g *documentGuard) semFor(key string) *semaphore.Weighted {
	sem, ok := g.sems[key]
	if !ok {
		sem = semaphore.NewWeighted(1)
		g.sems[key] = sem
	}
	return sem
}

// tryAcquire claims key. The empty key is never guarded.
func (g *documentGuard) tryAcquire(key string) (release func(), ok bool) {
	if key == "" {
		return func() {}, true
	}

	g.mu.Lock()
	sem := g.semFor(key)
	ok = sem.TryAcquire(1)
	g.mu.Unlock()
	if !ok {
		return nil, false
	}

	var once sync.Once
	return func() {
		once.Do(func() { sem.Release(1) })
	}, true
}

// busy reports whether key is currently held.
func (g *documentGuard) busy(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	sem, ok := g.sems[key]
	if !ok {
		return false
	}
	if !sem.TryAcquire(1) {
		return true
	}
	sem.Release(1)
	return false
}
