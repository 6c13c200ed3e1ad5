package mocks

import (
	"sync"

	"github.com/teilomillet/reprompt/config"
)

// MockConfigWatcher is a config.Watcher whose configuration is changed by the
// test. It records subscriptions and Close calls so tests can check how the
// server consumes it.
type MockConfigWatcher struct {
	mu          sync.Mutex
	current     *config.Config
	subscribers []chan *config.Config
	published   int
	closed      bool
}

// Verify at compile time that MockConfigWatcher implements config.Watcher
var _ config.Watcher = (*MockConfigWatcher)(nil)

// NewMockConfigWatcher creates a watcher serving cfg. A nil cfg serves
// config.DefaultConfig with the workspace root set to the current directory.
func NewMockConfigWatcher(cfg *config.Config) *MockConfigWatcher {
	if cfg == nil {
		cfg = config.DefaultConfig()
		cfg.Workspace.Root = "."
	}
	return &MockConfigWatcher{current: cfg}
}

// GetCurrentConfig implements config.Watcher
func (m *MockConfigWatcher) GetCurrentConfig() *config.Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Subscribe implements config.Watcher. The current configuration is queued
// on the new channel immediately.
func (m *MockConfigWatcher) Subscribe() <-chan *config.Config {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan *config.Config, 1)
	if m.closed {
		close(ch)
		return ch
	}
	ch <- m.current
	m.subscribers = append(m.subscribers, ch)
	return ch
}

// Close implements config.Watcher
func (m *MockConfigWatcher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	for _, ch := range m.subscribers {
		close(ch)
	}
	m.subscribers = nil
	m.closed = true
	return nil
}

// UpdateConfig publishes cfg to every subscriber. A subscriber that has not
// drained its previous update is skipped.
func (m *MockConfigWatcher) UpdateConfig(cfg *config.Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = cfg
	m.published++
	for _, ch := range m.subscribers {
		select {
		case ch <- cfg:
		default:
		}
	}
}

// Modify publishes a copy of the current configuration changed by fn.
// Slices are shared with the previous value unless fn replaces them.
func (m *MockConfigWatcher) Modify(fn func(*config.Config)) *config.Config {
	next := *m.GetCurrentConfig()
	fn(&next)
	m.UpdateConfig(&next)
	return &next
}

// RotateAPIKeys publishes the current configuration with keys as the only
// accepted server API keys.
func (m *MockConfigWatcher) RotateAPIKeys(keys ...string) *config.Config {
	return m.Modify(func(c *config.Config) {
		c.Server.APIKeys = keys
	})
}

// Subscribers returns the number of open subscriptions.
func (m *MockConfigWatcher) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscribers)
}

// Published returns how many configurations were published after creation.
func (m *MockConfigWatcher) Published() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.published
}

// Closed reports whether Close was called.
func (m *MockConfigWatcher) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
