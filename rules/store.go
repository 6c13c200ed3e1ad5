package rules

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/teilomillet/reprompt/metrics"
)

// Snapshot is an immutable view of the house rules at one point in time.
// Transformations receive a snapshot explicitly and never observe a reload
// half way through.
type Snapshot struct {
	Result
	Root     string    `json:"root"`
	LoadedAt time.Time `json:"loaded_at"`
}

// Present reports whether rules were found.
func (s *Snapshot) Present() bool {
	return s != nil && s.Status == Found
}

// Text returns the rules text, or "" when no rules are present.
func (s *Snapshot) Text() string {
	if !s.Present() {
		return ""
	}
	return s.Rules
}

// Empty returns a snapshot without rules.
func Empty() *Snapshot {
	return &Snapshot{Result: Result{Status: NotFound}}
}

// Store holds the current rules snapshot of a workspace root. The snapshot
// only changes through Reload.
type Store struct {
	root    string
	logger  *zap.Logger
	metrics *metrics.Metrics

	current atomic.Pointer[Snapshot]
	group   singleflight.Group
}

// NewStore creates a store for root holding an empty snapshot. Call Reload
// to read the rules.
func NewStore(root string, logger *zap.Logger, m *metrics.Metrics) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{root: root, logger: logger, metrics: m}
	empty := Empty()
	empty.Root = root
	s.current.Store(empty)
	return s
}

// Root returns the workspace root the store reads.
func (s *Store) Root() string {
	return s.root
}

// Snapshot returns the current snapshot.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Reload reads the rules again and swaps in the new snapshot. Concurrent
// calls share a single read.
func (s *Store) Reload() *Snapshot {
	v, _, _ := s.group.Do("reload", func() (interface{}, error) {
		snap := &Snapshot{
			Result:   Load(s.root, s.logger),
			Root:     s.root,
			LoadedAt: time.Now(),
		}
		s.current.Store(snap)
		s.metrics.RecordRulesReload(snap.Status.String())
		return snap, nil
	})
	return v.(*Snapshot)
}
