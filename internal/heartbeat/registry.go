package heartbeat

import (
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	StateStarting = "starting"
	StateHealthy  = "healthy"
	StateDegraded = "degraded"
	StateDisabled = "disabled"
	StateStopped  = "stopped"
	StateStale    = "stale"

	OverallUnknown = "unknown"
	OverallIdle    = "idle"
)

// Components reported by the runtime.
const (
	ComponentAPI       = "api"
	ComponentScheduler = "scheduler"
	ComponentWatcher   = "watcher"
	ComponentSafety    = "safety"
	ComponentAudit     = "audit"
	ComponentModel     = "model"
)

type Reporter interface {
	Starting(component, message string)
	Beat(component, message string)
	Degrade(component, message string, err error)
	Disabled(component, message string)
	Stopped(component, message string)
}

type ComponentStatus struct {
	Name           string `json:"name"`
	State          string `json:"state"`
	BaseState      string `json:"base_state"`
	Message        string `json:"message,omitempty"`
	Error          string `json:"error,omitempty"`
	Failures       int    `json:"failures,omitempty"`
	LastBeatAtUnix int64  `json:"last_beat_at_unix,omitempty"`
	UpdatedAtUnix  int64  `json:"updated_at_unix"`
	Stale          bool   `json:"stale,omitempty"`
}

type Snapshot struct {
	GeneratedAtUnix int64             `json:"generated_at_unix"`
	Overall         string            `json:"overall"`
	Components      []ComponentStatus `json:"components"`
}

type componentRecord struct {
	name       string
	state      string
	message    string
	lastError  string
	failures   int
	lastBeatAt time.Time
	updatedAt  time.Time
}

type Registry struct {
	mu         sync.RWMutex
	components map[string]componentRecord
	now        func() time.Time
}

func NewRegistry() *Registry {
	return NewRegistryWithClock(time.Now)
}

func NewRegistryWithClock(now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		components: map[string]componentRecord{},
		now:        now,
	}
}

func (r *Registry) Starting(component, message string) {
	r.setState(component, StateStarting, message, "")
}

// Beat marks the component healthy. The failure counter is cumulative and survives recovery.
func (r *Registry) Beat(component, message string) {
	name := normalizeComponent(component)
	if name == "" {
		return
	}
	now := r.now().UTC()
	r.mu.Lock()
	defer r.mu.Unlock()
	record := r.components[name]
	record.name = name
	record.state = StateHealthy
	record.message = strings.TrimSpace(message)
	record.lastError = ""
	record.lastBeatAt = now
	record.updatedAt = now
	r.components[name] = record
}

func (r *Registry) Degrade(component, message string, err error) {
	errorText := ""
	if err != nil {
		errorText = strings.TrimSpace(err.Error())
	}
	r.setState(component, StateDegraded, message, errorText)
}

func (r *Registry) Disabled(component, message string) {
	r.setState(component, StateDisabled, message, "")
}

func (r *Registry) Stopped(component, message string) {
	r.setState(component, StateStopped, message, "")
}

func (r *Registry) setState(component, state, message, errorText string) {
	name := normalizeComponent(component)
	if name == "" {
		return
	}
	now := r.now().UTC()
	r.mu.Lock()
	defer r.mu.Unlock()
	record := r.components[name]
	record.name = name
	record.state = normalizeState(state)
	record.message = strings.TrimSpace(message)
	record.lastError = strings.TrimSpace(errorText)
	record.updatedAt = now
	if record.state == StateDegraded {
		record.failures++
	}
	if record.lastBeatAt.IsZero() {
		record.lastBeatAt = now
	}
	r.components[name] = record
}

func (r *Registry) Snapshot(staleAfter time.Duration) Snapshot {
	now := r.now().UTC()
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make([]ComponentStatus, 0, len(r.components))
	for _, record := range r.components {
		status := ComponentStatus{
			Name:      record.name,
			BaseState: normalizeState(record.state),
			Message:   record.message,
			Error:     record.lastError,
			Failures:  record.failures,
		}
		if !record.lastBeatAt.IsZero() {
			status.LastBeatAtUnix = record.lastBeatAt.Unix()
		}
		if !record.updatedAt.IsZero() {
			status.UpdatedAtUnix = record.updatedAt.Unix()
		}
		status.State = status.BaseState

		if staleAfter > 0 && canBecomeStale(status.BaseState) {
			reference := record.lastBeatAt
			if reference.IsZero() {
				reference = record.updatedAt
			}
			if !reference.IsZero() && now.Sub(reference) > staleAfter {
				status.State = StateStale
				status.Stale = true
			}
		}
		results = append(results, status)
	}

	sort.Slice(results, func(left, right int) bool {
		return results[left].Name < results[right].Name
	})

	return Snapshot{
		GeneratedAtUnix: now.Unix(),
		Overall:         computeOverall(results),
		Components:      results,
	}
}

// Ready reports whether the named components have all reached healthy.
func (r *Registry) Ready(components ...string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, component := range components {
		record, ok := r.components[normalizeComponent(component)]
		if !ok || record.state != StateHealthy {
			return false
		}
	}
	return true
}

func IsDegradedState(state string) bool {
	switch normalizeState(state) {
	case StateDegraded, StateStale:
		return true
	default:
		return false
	}
}

func normalizeComponent(component string) string {
	return strings.ToLower(strings.TrimSpace(component))
}

func normalizeState(state string) string {
	switch value := strings.ToLower(strings.TrimSpace(state)); value {
	case StateStarting, StateHealthy, StateDegraded, StateDisabled, StateStopped, StateStale:
		return value
	default:
		return StateHealthy
	}
}

func canBecomeStale(state string) bool {
	switch normalizeState(state) {
	case StateHealthy, StateStarting:
		return true
	default:
		return false
	}
}

func computeOverall(items []ComponentStatus) string {
	if len(items) == 0 {
		return OverallUnknown
	}
	hasHealthy := false
	hasStarting := false
	for _, item := range items {
		switch normalizeState(item.State) {
		case StateDegraded, StateStale:
			return StateDegraded
		case StateHealthy:
			hasHealthy = true
		case StateStarting:
			hasStarting = true
		}
	}
	if hasStarting {
		return StateStarting
	}
	if hasHealthy {
		return StateHealthy
	}
	return OverallIdle
}
