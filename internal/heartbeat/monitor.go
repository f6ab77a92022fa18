package heartbeat

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

type Transition struct {
	Component string `json:"component"`
	FromState string `json:"from_state"`
	ToState   string `json:"to_state"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	AtUnix    int64  `json:"at_unix"`
}

type MonitorConfig struct {
	Interval     time.Duration
	StaleAfter   time.Duration
	History      int
	Logger       *slog.Logger
	OnTransition func(context.Context, Transition, Snapshot)
}

// Monitor polls the registry, logs state changes and remembers the most recent ones.
type Monitor struct {
	registry     *Registry
	interval     time.Duration
	staleAfter   time.Duration
	history      int
	logger       *slog.Logger
	onTransition func(context.Context, Transition, Snapshot)

	mu     sync.Mutex
	recent []Transition
}

func NewMonitor(registry *Registry, cfg MonitorConfig) *Monitor {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	history := cfg.History
	if history < 1 {
		history = 50
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		registry:     registry,
		interval:     interval,
		staleAfter:   cfg.StaleAfter,
		history:      history,
		logger:       logger.With("component", "heartbeat_monitor"),
		onTransition: cfg.OnTransition,
	}
}

func (m *Monitor) Start(ctx context.Context) error {
	if m.registry == nil {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	m.logger.Info("heartbeat monitor started", "interval", m.interval.String(), "stale_after", m.staleAfter.String())

	previous := map[string]string{}
	for {
		snapshot := m.registry.Snapshot(m.staleAfter)
		m.evaluateTransitions(ctx, snapshot, previous)
		select {
		case <-ctx.Done():
			m.logger.Info("heartbeat monitor stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Recent returns transitions newest first.
func (m *Monitor) Recent() []Transition {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Transition, 0, len(m.recent))
	for i := len(m.recent) - 1; i >= 0; i-- {
		out = append(out, m.recent[i])
	}
	return out
}

func (m *Monitor) evaluateTransitions(ctx context.Context, snapshot Snapshot, previous map[string]string) {
	for _, item := range snapshot.Components {
		current := strings.ToLower(strings.TrimSpace(item.State))
		name := strings.ToLower(strings.TrimSpace(item.Name))
		if current == "" || name == "" {
			continue
		}
		before, seen := previous[name]
		previous[name] = current
		if !seen || before == current {
			continue
		}
		transition := Transition{
			Component: name,
			FromState: before,
			ToState:   current,
			Message:   strings.TrimSpace(item.Message),
			Error:     strings.TrimSpace(item.Error),
			AtUnix:    snapshot.GeneratedAtUnix,
		}
		m.record(transition)
		if IsDegradedState(current) {
			m.logger.Warn("component degraded", "component_name", name, "from_state", before, "to_state", current, "error", transition.Error)
		} else {
			m.logger.Info("component state changed", "component_name", name, "from_state", before, "to_state", current)
		}
		if m.onTransition != nil {
			m.onTransition(ctx, transition, snapshot)
		}
	}
}

func (m *Monitor) record(transition Transition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recent = append(m.recent, transition)
	if overflow := len(m.recent) - m.history; overflow > 0 {
		m.recent = append([]Transition(nil), m.recent[overflow:]...)
	}
}
