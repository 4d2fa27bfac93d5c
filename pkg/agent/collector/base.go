// Package collector implements CollectorBase: the lifecycle, target
// registry, polling scheduler, concurrency gate, and batch-and-publish
// pipeline shared by every SourceStrategy variant.
package collector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/icsnexus/otcollector/models"
	"github.com/icsnexus/otcollector/pkg/agent/agenterr"
	"github.com/icsnexus/otcollector/pkg/agent/retry"
	"github.com/icsnexus/otcollector/pkg/agent/strategy"
)

// state is the CollectorBase lifecycle, per the architecture spec's state
// machine: Stopped -> Starting -> Running -> Stopping -> Stopped. Only
// Running schedules polls; the other three states reject new polls.
type state int32

const (
	stateStopped state = iota
	stateStarting
	stateRunning
	stateStopping
)

// Publisher is the subset of publish.Publisher consumed by CollectorBase.
// CollectorBase holds only this lookup-only reference — it never owns the
// Publisher's lifecycle, matching the spec's "collectors hold a weak
// reference" contract.
type Publisher interface {
	Publish(ctx context.Context, envelope models.Envelope) error
}

// EventSink receives lifecycle/data events. The Manager subscribes exactly
// once per collector, at construction, per the design notes' replacement for
// the source system's string-keyed event emitter.
type EventSink func(models.CollectorEvent)

// Base is the common lifecycle and pipeline shared by every collector,
// parameterized by a strategy.Strategy.
type Base struct {
	name   string
	source models.Source
	strat  strategy.Strategy
	pub    Publisher
	events EventSink
	logger *slog.Logger

	cfgMu sync.RWMutex
	cfg   models.CollectorConfig

	targetsMu sync.RWMutex
	targets   map[string]models.Target

	state  atomic.Int32
	cancel context.CancelFunc
	wg     sync.WaitGroup

	pollCount           atomic.Int64
	successCount        atomic.Int64
	errorCount          atomic.Int64
	dataPointsCollected atomic.Int64

	statusMu        sync.Mutex
	lastPollTime    time.Time
	lastSuccessTime time.Time
	lastError       string
	lastErrorTime   time.Time
}

// New constructs a Base. The collector is Stopped until Start is called.
func New(name string, source models.Source, strat strategy.Strategy, cfg models.CollectorConfig, pub Publisher, events EventSink, logger *slog.Logger) *Base {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	if events == nil {
		events = func(models.CollectorEvent) {}
	}
	return &Base{
		name:    name,
		source:  source,
		strat:   strat,
		pub:     pub,
		events:  events,
		logger:  logger,
		cfg:     cfg,
		targets: make(map[string]models.Target),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Lifecycle
// ─────────────────────────────────────────────────────────────────────────────

// Start is idempotent: a no-op if already running, and a no-op (returning
// nil) if the collector is disabled. It initializes the strategy, performs
// an immediate poll, then schedules periodic polls.
func (b *Base) Start(ctx context.Context) error {
	if !b.state.CompareAndSwap(int32(stateStopped), int32(stateStarting)) {
		return nil // already running, starting, or stopping
	}

	b.cfgMu.RLock()
	enabled := b.cfg.Enabled
	b.cfgMu.RUnlock()
	if !enabled {
		b.state.Store(int32(stateStopped))
		return nil
	}

	if err := b.strat.Initialize(ctx); err != nil {
		b.recordError(err)
		b.state.Store(int32(stateStopped))
		return fmt.Errorf("collector %s: %w: %v", b.name, agenterr.ErrInit, err)
	}

	schedCtx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.state.Store(int32(stateRunning))

	b.wg.Add(1)
	go b.schedulerLoop(schedCtx)

	b.events(models.CollectorEvent{Kind: models.EventStarted, Collector: b.name})
	b.logger.Info("collector: started", "collector", b.name)
	return nil
}

// Stop is idempotent. It cancels the scheduler, waits for the current and
// any in-flight cycle to observe cancellation, then calls strategy.Cleanup
// (errors logged, not propagated).
func (b *Base) Stop() {
	cur := state(b.state.Load())
	if cur == stateStopped || cur == stateStopping {
		return
	}
	b.state.Store(int32(stateStopping))

	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()

	if err := b.strat.Cleanup(); err != nil {
		b.logger.Warn("collector: cleanup error", "collector", b.name, "error", err.Error())
	}

	b.state.Store(int32(stateStopped))
	b.events(models.CollectorEvent{Kind: models.EventStopped, Collector: b.name})
	b.logger.Info("collector: stopped", "collector", b.name)
}

// Restart stops then starts the collector.
func (b *Base) Restart(ctx context.Context) error {
	b.Stop()
	return b.Start(ctx)
}

// IsRunning reports whether the collector is in the Running state.
func (b *Base) IsRunning() bool {
	return state(b.state.Load()) == stateRunning
}

// Name returns the collector's configured name, as passed to New.
func (b *Base) Name() string {
	return b.name
}

// ─────────────────────────────────────────────────────────────────────────────
// Target registry
// ─────────────────────────────────────────────────────────────────────────────

// AddTarget registers a target, assigning it an ID if none was supplied, and
// returns the assigned ID.
func (b *Base) AddTarget(t models.Target) string {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	b.targetsMu.Lock()
	defer b.targetsMu.Unlock()
	b.targets[t.ID] = t
	return t.ID
}

// RemoveTarget deletes a target by ID. Returns false if the ID was unknown.
func (b *Base) RemoveTarget(id string) bool {
	b.targetsMu.Lock()
	defer b.targetsMu.Unlock()
	if _, ok := b.targets[id]; !ok {
		return false
	}
	delete(b.targets, id)
	return true
}

// SetTargetEnabled flips a target's Enabled flag. Returns false if the ID was
// unknown.
func (b *Base) SetTargetEnabled(id string, enabled bool) bool {
	b.targetsMu.Lock()
	defer b.targetsMu.Unlock()
	t, ok := b.targets[id]
	if !ok {
		return false
	}
	t.Enabled = enabled
	b.targets[id] = t
	return true
}

// GetTargets returns a copy of the current target set.
func (b *Base) GetTargets() []models.Target {
	b.targetsMu.RLock()
	defer b.targetsMu.RUnlock()
	out := make([]models.Target, 0, len(b.targets))
	for _, t := range b.targets {
		out = append(out, t)
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Config + status
// ─────────────────────────────────────────────────────────────────────────────

// UpdateConfig merges patch into the current config. A changed PollInterval
// takes effect after the next scheduled poll completes — there is no
// in-flight cancellation.
func (b *Base) UpdateConfig(patch models.CollectorConfig) {
	b.cfgMu.Lock()
	defer b.cfgMu.Unlock()
	b.cfg = b.cfg.Merge(patch)
}

// Config returns a copy of the current config.
func (b *Base) Config() models.CollectorConfig {
	b.cfgMu.RLock()
	defer b.cfgMu.RUnlock()
	return b.cfg
}

// GetStatus returns a snapshot of the collector's counters and timestamps.
func (b *Base) GetStatus() models.CollectorStatus {
	b.statusMu.Lock()
	defer b.statusMu.Unlock()
	return models.CollectorStatus{
		Name:                b.name,
		Running:             b.IsRunning(),
		PollCount:           b.pollCount.Load(),
		SuccessCount:        b.successCount.Load(),
		ErrorCount:          b.errorCount.Load(),
		DataPointsCollected: b.dataPointsCollected.Load(),
		LastPollTime:        b.lastPollTime,
		LastSuccessTime:     b.lastSuccessTime,
		LastError:           b.lastError,
		LastErrorTime:       b.lastErrorTime,
	}
}

func (b *Base) recordError(err error) {
	b.statusMu.Lock()
	defer b.statusMu.Unlock()
	b.lastError = err.Error()
	b.lastErrorTime = time.Now()
}

// ─────────────────────────────────────────────────────────────────────────────
// Scheduler + poll cycle
// ─────────────────────────────────────────────────────────────────────────────

func (b *Base) schedulerLoop(ctx context.Context) {
	defer b.wg.Done()

	b.runPollCycle(ctx)

	for {
		if state(b.state.Load()) != stateRunning {
			return
		}
		interval := b.Config().PollInterval
		if interval <= 0 {
			interval = models.DefaultCollectorConfig().PollInterval
		}
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if state(b.state.Load()) != stateRunning {
			return
		}
		b.runPollCycle(ctx)
	}
}

// runPollCycle implements the poll cycle algorithm of the architecture spec
// §4.1: increment pollCount, filter enabled targets, chunk by MaxConcurrent,
// collect each target with retry, batch and publish successes, update
// counters, emit a polled event.
func (b *Base) runPollCycle(ctx context.Context) {
	start := time.Now()
	b.pollCount.Add(1)
	b.statusMu.Lock()
	b.lastPollTime = start
	b.statusMu.Unlock()

	enabled := make([]models.Target, 0)
	for _, t := range b.GetTargets() {
		if t.Enabled {
			enabled = append(enabled, t)
		}
	}
	if len(enabled) == 0 {
		b.logger.Warn("collector: no enabled targets", "collector", b.name)
		return
	}

	cfg := b.Config()
	chunkSize := cfg.MaxConcurrent
	if chunkSize <= 0 {
		chunkSize = 1
	}

	runner := retry.New(retry.Policy{
		Retries: cfg.Retries,
		Timeout: cfg.Timeout,
	}, b.logger)

	var allRecords []models.TelemetryRecord
	var recordsMu sync.Mutex

	for i := 0; i < len(enabled); i += chunkSize {
		end := i + chunkSize
		if end > len(enabled) {
			end = len(enabled)
		}
		chunk := enabled[i:end]

		var wg sync.WaitGroup
		for _, target := range chunk {
			wg.Add(1)
			go func(target models.Target) {
				defer wg.Done()
				records, err := b.collectWithRetry(ctx, runner, target)
				if err != nil {
					b.errorCount.Add(1)
					b.recordError(err)
					b.logger.Warn("collector: collect failed",
						"collector", b.name,
						"target", target.ID,
						"host", target.Host,
						"error", err.Error(),
					)
					return
				}
				if len(records) == 0 {
					return
				}
				recordsMu.Lock()
				allRecords = append(allRecords, records...)
				recordsMu.Unlock()
			}(target)
		}
		wg.Wait()
	}

	if len(allRecords) > 0 {
		batchSize := cfg.BatchSize
		if batchSize <= 0 {
			batchSize = len(allRecords)
		}
		for i := 0; i < len(allRecords); i += batchSize {
			end := i + batchSize
			if end > len(allRecords) {
				end = len(allRecords)
			}
			b.publishBatch(ctx, allRecords[i:end])
		}
		b.dataPointsCollected.Add(int64(len(allRecords)))
	}

	b.successCount.Add(1)
	b.statusMu.Lock()
	b.lastSuccessTime = time.Now()
	b.statusMu.Unlock()

	b.events(models.CollectorEvent{
		Kind:           models.EventPolled,
		Collector:      b.name,
		PollDurationMs: time.Since(start).Milliseconds(),
		RecordCount:    len(allRecords),
	})
}

// collectWithRetry wraps strategy.Collect with the configured retry policy.
func (b *Base) collectWithRetry(ctx context.Context, runner *retry.Runner, target models.Target) ([]models.TelemetryRecord, error) {
	var records []models.TelemetryRecord
	err := runner.Do(ctx, b.name, func(attemptCtx context.Context) error {
		r, err := b.strat.Collect(attemptCtx, target)
		if err != nil {
			return fmt.Errorf("%w: %v", agenterr.ErrCollect, err)
		}
		records = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// publishBatch hands one batch to the Publisher. Publish failures are
// logged but never abort the cycle — the Publisher itself handles the
// local-emit fallback.
func (b *Base) publishBatch(ctx context.Context, records []models.TelemetryRecord) {
	if b.pub == nil {
		return
	}
	envelope := models.Envelope{
		Collector: b.name,
		Source:    b.source,
		Timestamp: time.Now().UTC(),
		Count:     len(records),
		Data:      records,
	}
	if err := b.pub.Publish(ctx, envelope); err != nil {
		b.logger.Warn("collector: publish error",
			"collector", b.name,
			"error", err.Error(),
			"count", len(records),
		)
	}
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
