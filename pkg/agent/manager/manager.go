// Package manager supervises the full set of collectors for one agent
// process: construction, lifecycle, periodic health checks, and aggregated
// status/statistics reporting. It generalizes the teacher's
// pkg/snmpcollector/app.App from "one fixed SNMP pipeline" to "N
// heterogeneous collectors sharing one Publisher."
package manager

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/icsnexus/otcollector/models"
)

const healthCheckInterval = 30 * time.Second

// Collector is the subset of collector.Base consumed by Manager. Kept as an
// interface so tests can supply fakes without constructing a real Base.
type Collector interface {
	Name() string
	Start(ctx context.Context) error
	Stop()
	IsRunning() bool
	GetStatus() models.CollectorStatus
}

// Publisher is the subset of publish.Publisher consumed by Manager for
// status reporting and connection lifecycle.
type Publisher interface {
	Connected() bool
	Connect(ctx context.Context) error
	Disconnect()
}

// Config configures a Manager.
type Config struct {
	// HealthCheckInterval overrides the default 30s health-check cadence.
	// Zero means use the default.
	HealthCheckInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.HealthCheckInterval <= 0 {
		c.HealthCheckInterval = healthCheckInterval
	}
	return c
}

// Manager owns the full set of collectors for one agent process: it starts
// and stops them together, runs a periodic health check, and aggregates
// their status and counters.
type Manager struct {
	cfg    Config
	pub    Publisher
	logger *slog.Logger

	mu         sync.RWMutex
	collectors map[string]Collector
	running    bool
	startedAt  time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Manager from a set of already-built collectors, keyed by
// collector name. Manager owns the Publisher's connection lifecycle: Start
// connects it (if a broker is configured) before starting any collector,
// and Stop disconnects it after every collector has stopped.
func New(cfg Config, collectors map[string]Collector, pub Publisher, logger *slog.Logger) *Manager {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	cp := make(map[string]Collector, len(collectors))
	for name, c := range collectors {
		cp[name] = c
	}
	return &Manager{cfg: cfg, pub: pub, logger: logger, collectors: cp}
}

// Start connects the Publisher (if configured) and starts every registered
// collector in parallel. A collector that fails to start is logged and
// left out — it does not stop collectors that already started and does not
// abort the Manager's own startup, matching the architecture spec's
// partial-functionality contract: a single misconfigured collector must
// never take the rest of the agent down with it.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	collectors := make(map[string]Collector, len(m.collectors))
	for name, c := range m.collectors {
		collectors[name] = c
	}
	m.mu.Unlock()

	if m.pub != nil {
		if err := m.pub.Connect(ctx); err != nil {
			m.logger.Warn("manager: mqtt connect failed, publishing will fall back locally", "error", err.Error())
		}
	}

	var wg sync.WaitGroup
	var startedMu sync.Mutex
	started := 0
	for name, c := range collectors {
		wg.Add(1)
		go func(name string, c Collector) {
			defer wg.Done()
			if err := c.Start(ctx); err != nil {
				m.logger.Error("manager: collector start failed, continuing without it", "collector", name, "error", err.Error())
				return
			}
			startedMu.Lock()
			started++
			startedMu.Unlock()
		}(name, c)
	}
	wg.Wait()

	pipeCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancel = cancel
	m.running = true
	m.startedAt = time.Now()
	m.mu.Unlock()

	m.wg.Add(1)
	go m.healthCheckLoop(pipeCtx)

	m.logger.Info("manager: started", "collectors_started", started, "collectors_total", len(collectors))
	return nil
}

// Stop stops every collector, the health-check loop, and disconnects the
// Publisher. Idempotent.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel := m.cancel
	collectors := make([]Collector, 0, len(m.collectors))
	for _, c := range m.collectors {
		collectors = append(collectors, c)
	}
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()

	var stopWg sync.WaitGroup
	for _, c := range collectors {
		stopWg.Add(1)
		go func(c Collector) {
			defer stopWg.Done()
			c.Stop()
		}(c)
	}
	stopWg.Wait()

	if m.pub != nil {
		m.pub.Disconnect()
	}
	m.logger.Info("manager: stopped")
}

// Restart stops and starts the Manager, returning any error from Start.
func (m *Manager) Restart(ctx context.Context) error {
	m.Stop()
	return m.Start(ctx)
}

// IsRunning reports whether the Manager has been started and not yet
// stopped.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// GetStatus returns a snapshot of every collector's status plus the
// Manager-level fields.
func (m *Manager) GetStatus() models.ManagerStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	statuses := make([]models.CollectorStatus, 0, len(m.collectors))
	for _, c := range m.collectors {
		statuses = append(statuses, c.GetStatus())
	}

	connected := false
	if m.pub != nil {
		connected = m.pub.Connected()
	}

	return models.ManagerStatus{
		IsRunning:     m.running,
		StartedAt:     m.startedAt,
		Collectors:    statuses,
		MQTTConnected: connected,
	}
}

// GetStatistics returns the monotonic-sum view across every collector.
func (m *Manager) GetStatistics() models.ManagerStatistics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var stats models.ManagerStatistics
	for _, c := range m.collectors {
		s := c.GetStatus()
		stats.TotalPolls += s.PollCount
		stats.TotalSuccesses += s.SuccessCount
		stats.TotalErrors += s.ErrorCount
		stats.TotalDataPointsCollected += s.DataPointsCollected
	}
	if !m.startedAt.IsZero() {
		stats.Uptime = time.Since(m.startedAt)
	}
	return stats
}

// healthCheckLoop runs a health check every cfg.HealthCheckInterval until
// ctx is cancelled: it counts the collectors reporting Running == false and
// logs a warning when that count is non-zero (a debug line otherwise). The
// result is only logged; no HealthSnapshot or event is delivered to callers.
func (m *Manager) healthCheckLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.runHealthCheck()
		}
	}
}

func (m *Manager) runHealthCheck() {
	m.mu.RLock()
	statuses := make([]models.CollectorStatus, 0, len(m.collectors))
	for _, c := range m.collectors {
		statuses = append(statuses, c.GetStatus())
	}
	m.mu.RUnlock()

	unhealthy := 0
	for _, s := range statuses {
		if !s.Running {
			unhealthy++
		}
	}
	if unhealthy > 0 {
		m.logger.Warn("manager: health check found stopped collectors", "unhealthy_count", unhealthy)
	} else {
		m.logger.Debug("manager: health check ok", "collectors", len(statuses))
	}
}

type noopWriter struct{}

func (noopWriter) Write(b []byte) (int, error) { return len(b), nil }
