package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/adalundhe/relay/core/fallback"
	"github.com/adalundhe/relay/core/ratelimit"
)

// reloadDebounce coalesces the bursts of filesystem events editors emit for
// a single save.
const reloadDebounce = 200 * time.Millisecond

// Manager owns the current snapshot pointer. Load publishes a new snapshot
// atomically; Get is wait-free. Manager satisfies the coordinator's
// ConfigSource and the orchestrator's ChainSource, always answering from
// the snapshot current at call time.
type Manager struct {
	path      string
	current   atomic.Pointer[Snapshot]
	logger    *slog.Logger
	watcherMu sync.RWMutex
	watchers  []func(*Snapshot)
}

// NewManager creates a manager seeded with the default snapshot.
func NewManager(path string, logger *slog.Logger) *Manager {
	m := &Manager{
		path:   path,
		logger: logger,
	}
	m.current.Store(DefaultSnapshot())
	return m
}

// Get returns the current snapshot. The result is immutable; callers must
// not modify it.
func (m *Manager) Get() *Snapshot {
	return m.current.Load()
}

// LimitConfig implements ratelimit.ConfigSource against the current
// snapshot.
func (m *Manager) LimitConfig(provider string) (ratelimit.ProviderLimitConfig, bool) {
	return m.Get().LimitConfig(provider)
}

// Chain implements fallback.ChainSource against the current snapshot.
func (m *Manager) Chain(agentKind string) (fallback.Chain, bool) {
	return m.Get().Chain(agentKind)
}

// Load reads, validates, and publishes a new snapshot. Environment
// references like ${ANTHROPIC_API_KEY} are expanded before parsing. An
// invalid file leaves the current snapshot in place.
func (m *Manager) Load() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	snap := DefaultSnapshot()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), snap); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	if err := snap.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	m.current.Store(snap)
	m.notify(snap)
	return nil
}

// Subscribe registers a callback invoked with each newly published
// snapshot.
func (m *Manager) Subscribe(fn func(*Snapshot)) {
	m.watcherMu.Lock()
	defer m.watcherMu.Unlock()
	m.watchers = append(m.watchers, fn)
}

func (m *Manager) notify(snap *Snapshot) {
	m.watcherMu.RLock()
	defer m.watcherMu.RUnlock()
	for _, fn := range m.watchers {
		fn(snap)
	}
}

// Watch reloads the config when its file changes, until ctx is done.
// Failed reloads keep the previous snapshot and are logged, never fatal.
func (m *Manager) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors replace files on save, which would
	// drop a watch on the file itself.
	if err := watcher.Add(filepath.Dir(m.path)); err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}

	var debounce *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !m.relevant(event) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case <-reload:
			if err := m.Load(); err != nil {
				m.logger.Error("config reload failed, keeping previous snapshot", "error", err)
			} else {
				m.logger.Info("config reloaded", "path", m.path)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			m.logger.Error("config watcher error", "error", err)
		}
	}
}

// relevant reports whether the event concerns the config file's content.
func (m *Manager) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != filepath.Clean(m.path) {
		return false
	}
	return event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Rename)
}
