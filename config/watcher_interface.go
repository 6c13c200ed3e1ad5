package config

// Watcher defines the behavior we expect from any configuration watcher
type Watcher interface {
	GetCurrentConfig() *Config
	Subscribe() <-chan *Config
	Close() error
}

// StaticWatcher serves a fixed configuration. It is used when no
// configuration file exists to watch.
type StaticWatcher struct {
	cfg *Config
}

// Verify at compile time that StaticWatcher implements Watcher
var _ Watcher = (*StaticWatcher)(nil)

// NewStaticWatcher returns a watcher that always reports cfg.
func NewStaticWatcher(cfg *Config) *StaticWatcher {
	return &StaticWatcher{cfg: cfg}
}

// GetCurrentConfig implements Watcher
func (w *StaticWatcher) GetCurrentConfig() *Config {
	return w.cfg
}

// Subscribe implements Watcher. The channel never receives.
func (w *StaticWatcher) Subscribe() <-chan *Config {
	return make(chan *Config)
}

// Close implements Watcher
func (w *StaticWatcher) Close() error {
	return nil
}
