package manager

import "sync"

var (
	instance     *Manager
	instanceOnce sync.Once
	instanceMu   sync.Mutex
)

// Default returns the process-wide Manager singleton, constructing an empty
// one on first use. Most callers should prefer an explicitly constructed
// Manager; Default exists for code paths (signal handlers, debug endpoints)
// that have no natural way to carry one.
func Default() *Manager {
	instanceOnce.Do(func() {
		instanceMu.Lock()
		defer instanceMu.Unlock()
		if instance == nil {
			instance = New(Config{}, nil, nil, nil)
		}
	})
	instanceMu.Lock()
	defer instanceMu.Unlock()
	return instance
}

// SetDefault replaces the process-wide Manager singleton. Intended for
// cmd/otcollector's startup path, which constructs the real Manager after
// loading configuration.
func SetDefault(m *Manager) {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	instance = m
	instanceOnce.Do(func() {})
}

// Reset clears the process-wide singleton so the next Default() call
// constructs a fresh one. Intended for tests.
func Reset() {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	instance = nil
	instanceOnce = sync.Once{}
}
