package safety

import (
	"context"
	"strings"
	"sync"
	"time"
)

type Config struct {
	RateLimitPerWindow int
	RateLimitWindow    time.Duration
	RateLimitMessage   string
	Now                func() time.Time
}

// Request identifies who is submitting a turn.
type Request struct {
	ProjectID   string
	RequesterID string
}

type Decision struct {
	Allowed bool
	Notify  string
	Reason  string
}

// Policy is a sliding-window turn limiter keyed by project and requester.
type Policy struct {
	cfg     Config
	mu      sync.Mutex
	buckets map[string][]time.Time
}

func New(cfg Config) *Policy {
	if cfg.RateLimitPerWindow < 1 {
		cfg.RateLimitPerWindow = 20
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = time.Minute
	}
	if strings.TrimSpace(cfg.RateLimitMessage) == "" {
		cfg.RateLimitMessage = "Demasiadas solicitudes. Intenta de nuevo en unos momentos."
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Policy{
		cfg:     cfg,
		buckets: map[string][]time.Time{},
	}
}

func (p *Policy) Check(input Request) Decision {
	if p == nil {
		return Decision{Allowed: true}
	}
	if !p.consumeRateLimit(input) {
		return Decision{Allowed: false, Notify: p.cfg.RateLimitMessage, Reason: "rate_limited"}
	}
	return Decision{Allowed: true}
}

func (p *Policy) consumeRateLimit(input Request) bool {
	key := normalize(input.ProjectID) + ":" + normalize(input.RequesterID)
	if strings.Trim(key, ":") == "" {
		key = "unknown"
	}
	now := p.cfg.Now().UTC()
	cutoff := now.Add(-p.cfg.RateLimitWindow)

	p.mu.Lock()
	defer p.mu.Unlock()
	filtered := pruneBefore(p.buckets[key], cutoff)
	if len(filtered) >= p.cfg.RateLimitPerWindow {
		p.buckets[key] = filtered
		return false
	}
	p.buckets[key] = append(filtered, now)
	return true
}

// Run drops idle buckets every window until ctx is cancelled.
func (p *Policy) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.RateLimitWindow)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.Prune()
		}
	}
}

func (p *Policy) Prune() {
	cutoff := p.cfg.Now().UTC().Add(-p.cfg.RateLimitWindow)
	p.mu.Lock()
	defer p.mu.Unlock()
	for key, entries := range p.buckets {
		filtered := pruneBefore(entries, cutoff)
		if len(filtered) == 0 {
			delete(p.buckets, key)
			continue
		}
		p.buckets[key] = filtered
	}
}

func (p *Policy) trackedKeys() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buckets)
}

func pruneBefore(entries []time.Time, cutoff time.Time) []time.Time {
	filtered := entries[:0]
	for _, stamp := range entries {
		if stamp.After(cutoff) {
			filtered = append(filtered, stamp)
		}
	}
	return filtered
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
