// Package connectivity tracks whether the remote store is reachable.
//
// The monitor probes the remote endpoint on an interval and keeps a
// single boolean: online or offline. Transitions are edge-triggered
// events published on an event bus; subscribers (the sync engine) get
// exactly one notification per transition, not one per probe. A flap
// guard requires several consecutive failed probes before declaring
// offline so one dropped request doesn't bounce the state.
package connectivity

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/asaskevich/EventBus"
	"go.uber.org/zap"
)

// TopicChanged is the event bus topic connectivity transitions are
// published on. Handlers receive the new state as a bool.
const TopicChanged = "connectivity:changed"

// Probe checks reachability of the remote store. A nil return means
// online. The monitor bounds each call with its own timeout context.
type Probe func(ctx context.Context) error

// Config holds configuration for the monitor.
type Config struct {
	// Interval is how often the probe runs.
	Interval time.Duration

	// FailureThreshold is how many consecutive probe failures it takes
	// to declare offline. A single success is enough to declare online.
	FailureThreshold int

	// ProbeTimeout bounds each probe call.
	ProbeTimeout time.Duration

	// Logger for monitor activity.
	Logger *zap.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:         10 * time.Second,
		FailureThreshold: 2,
		ProbeTimeout:     5 * time.Second,
	}
}

// Monitor is the single source of truth for online/offline state.
type Monitor struct {
	probe  Probe
	config Config
	logger *zap.Logger
	bus    EventBus.Bus

	online   atomic.Bool
	failures atomic.Int32

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a monitor. The initial state is offline until the first
// successful probe. If the config logger is nil the global zap logger
// is used.
func New(probe Probe, config Config) *Monitor {
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = DefaultConfig().FailureThreshold
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = DefaultConfig().ProbeTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.L()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Monitor{
		probe:  probe,
		config: config,
		logger: logger,
		bus:    EventBus.New(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start probes once immediately, then begins the periodic probe loop.
func (m *Monitor) Start() {
	m.runProbe()

	m.wg.Add(1)
	go m.loop()
}

// Stop halts the probe loop.
func (m *Monitor) Stop() {
	m.cancel()
	m.wg.Wait()
}

// IsOnline returns the current connectivity state.
func (m *Monitor) IsOnline() bool {
	return m.online.Load()
}

// Subscribe registers a handler called on every state transition with
// the new state. Handlers run on the publishing goroutine.
func (m *Monitor) Subscribe(fn func(online bool)) error {
	return m.bus.Subscribe(TopicChanged, fn)
}

// Unsubscribe removes a previously subscribed handler.
func (m *Monitor) Unsubscribe(fn func(online bool)) error {
	return m.bus.Unsubscribe(TopicChanged, fn)
}

// SetOnline forces the state, bypassing the probe. Used when an outer
// layer knows connectivity changed (and by tests). Publishes an event
// only on an actual transition, like the probe path.
func (m *Monitor) SetOnline(online bool) {
	m.failures.Store(0)
	m.transition(online)
}

func (m *Monitor) loop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.runProbe()
		}
	}
}

func (m *Monitor) runProbe() {
	ctx, cancel := context.WithTimeout(m.ctx, m.config.ProbeTimeout)
	err := m.probe(ctx)
	cancel()

	if err == nil {
		m.failures.Store(0)
		m.transition(true)
		return
	}

	failures := int(m.failures.Add(1))
	m.logger.Debug("connectivity probe failed",
		zap.Int("consecutive_failures", failures),
		zap.Error(err))

	if failures >= m.config.FailureThreshold {
		m.transition(false)
	}
}

// transition flips the state and publishes the edge. Publishing happens
// at most once per actual change.
func (m *Monitor) transition(online bool) {
	if m.online.Swap(online) == online {
		return
	}

	if online {
		m.logger.Info("connectivity restored")
	} else {
		m.logger.Warn("connectivity lost")
	}
	m.bus.Publish(TopicChanged, online)
}
