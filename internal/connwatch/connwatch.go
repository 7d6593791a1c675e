// Package connwatch tracks whether the model backends (Ollama, an
// OpenAI-compatible server, the embedding endpoint) are reachable.
//
// A Watcher probes one backend in the background. While the backend is
// down it retries with exponential backoff; once up it polls at a fixed
// interval. GET /health reports the last known state instead of probing
// every backend on each request.
package connwatch

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Probe checks whether a backend is reachable. Return nil if healthy.
type Probe func(ctx context.Context) error

// Schedule controls probe timing.
type Schedule struct {
	// Initial is the delay after the first failed probe (default: 2s).
	Initial time.Duration

	// Max caps the backoff delay while a backend is down (default: 60s).
	Max time.Duration

	// Poll is the probe interval while a backend is up (default: 60s).
	Poll time.Duration

	// Timeout bounds each probe (default: 10s).
	Timeout time.Duration
}

// DefaultSchedule returns 2s, 4s, 8s ... 60s while down and 60s polling
// while up.
func DefaultSchedule() Schedule {
	return Schedule{
		Initial: 2 * time.Second,
		Max:     60 * time.Second,
		Poll:    60 * time.Second,
		Timeout: 10 * time.Second,
	}
}

func (s Schedule) withDefaults() Schedule {
	d := DefaultSchedule()
	if s.Initial <= 0 {
		s.Initial = d.Initial
	}
	if s.Max <= 0 {
		s.Max = d.Max
	}
	if s.Max < s.Initial {
		s.Max = s.Initial
	}
	if s.Poll <= 0 {
		s.Poll = d.Poll
	}
	if s.Timeout <= 0 {
		s.Timeout = d.Timeout
	}
	return s
}

// Status is one backend's last known state, as served by GET /health.
type Status struct {
	Name      string    `json:"name"`
	Ready     bool      `json:"ready"`
	Since     time.Time `json:"since,omitzero"` // last transition
	LastCheck time.Time `json:"last_check,omitzero"`
	LastError string    `json:"last_error,omitempty"`
}

// Watcher monitors one backend.
type Watcher struct {
	name   string
	probe  Probe
	sched  Schedule
	logger *slog.Logger
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	status Status
}

// Ready reports whether the last probe succeeded.
func (w *Watcher) Ready() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status.Ready
}

// Status returns the backend's last known state.
func (w *Watcher) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// Stop cancels the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() {
	w.cancel()
	<-w.done
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)

	delay := w.sched.Initial
	for {
		next := w.sched.Poll
		if !w.check(ctx) {
			next = delay
			delay *= 2
			if delay > w.sched.Max {
				delay = w.sched.Max
			}
		} else {
			delay = w.sched.Initial
		}

		timer := time.NewTimer(next)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// check runs one probe, records it and logs state transitions. It
// returns whether the backend is up.
func (w *Watcher) check(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, w.sched.Timeout)
	err := w.probe(probeCtx)
	cancel()
	if ctx.Err() != nil {
		return false
	}

	now := time.Now()
	w.mu.Lock()
	first := w.status.LastCheck.IsZero()
	was := w.status.Ready
	w.status.LastCheck = now
	w.status.Ready = err == nil
	w.status.LastError = ""
	if err != nil {
		w.status.LastError = err.Error()
	}
	if first || was != w.status.Ready {
		w.status.Since = now
	}
	w.mu.Unlock()

	switch {
	case err == nil && (first || !was):
		w.logger.Info("backend reachable", "backend", w.name)
	case err != nil && (first || was):
		w.logger.Warn("backend unreachable", "backend", w.name, "error", err)
	case err != nil:
		w.logger.Debug("backend still unreachable", "backend", w.name, "error", err)
	}
	return err == nil
}

// Manager owns the watchers for every configured backend.
type Manager struct {
	sched  Schedule
	logger *slog.Logger

	mu       sync.RWMutex
	watchers map[string]*Watcher
}

// NewManager creates a manager whose watchers follow sched. Zero fields
// in sched take their defaults.
func NewManager(sched Schedule, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		sched:    sched.withDefaults(),
		logger:   logger.With("component", "connwatch"),
		watchers: make(map[string]*Watcher),
	}
}

// Watch starts probing a backend until ctx is cancelled or Stop is
// called. Watching a name twice replaces the earlier watcher.
func (m *Manager) Watch(ctx context.Context, name string, probe Probe) *Watcher {
	watchCtx, cancel := context.WithCancel(ctx)
	w := &Watcher{
		name:   name,
		probe:  probe,
		sched:  m.sched,
		logger: m.logger,
		cancel: cancel,
		done:   make(chan struct{}),
		status: Status{Name: name},
	}

	m.mu.Lock()
	old := m.watchers[name]
	m.watchers[name] = w
	m.mu.Unlock()
	if old != nil {
		old.Stop()
	}

	go w.run(watchCtx)
	return w
}

// Status returns every backend's last known state, keyed by name.
func (m *Manager) Status() map[string]Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]Status, len(m.watchers))
	for name, w := range m.watchers {
		out[name] = w.Status()
	}
	return out
}

// Ready reports whether every watched backend is up.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, w := range m.watchers {
		if !w.Ready() {
			return false
		}
	}
	return true
}

// Stop shuts down all watchers and waits for them to exit.
func (m *Manager) Stop() {
	m.mu.RLock()
	watchers := make([]*Watcher, 0, len(m.watchers))
	for _, w := range m.watchers {
		watchers = append(watchers, w)
	}
	m.mu.RUnlock()

	for _, w := range watchers {
		w.Stop()
	}
}
