// Package ratelimit implements token buckets per (agent, endpoint class).
// Buckets refill continuously; a request costs one token.
package ratelimit

import (
	"sync"
	"time"

	"github.com/tilemud/server/internal/config"
)

// Endpoint classes. Each class gets its own bucket per agent.
type Class string

const (
	ClassObservation Class = "observation"
	ClassAction      Class = "action"
	ClassChat        Class = "chat"
	ClassEvents      Class = "events"
)

type limit struct {
	perSec float64
	burst  float64
}

type bucket struct {
	tokens float64
	last   time.Time
}

// Limiter is the process-wide rate limiter.
type Limiter struct {
	mu      sync.Mutex
	limits  map[Class]limit
	buckets map[string]*bucket // agentID+"/"+class
	enabled bool
	now     func() time.Time
}

// New builds a limiter from config.
func New(cfg config.RateLimitConfig) *Limiter {
	return &Limiter{
		limits: map[Class]limit{
			ClassObservation: {cfg.ObservationPerSec, cfg.ObservationBurst},
			ClassAction:      {cfg.ActionPerSec, cfg.ActionBurst},
			ClassChat:        {cfg.ChatPerSec, cfg.ChatBurst},
			ClassEvents:      {cfg.EventsPerSec, cfg.EventsBurst},
		},
		buckets: make(map[string]*bucket),
		enabled: cfg.Enabled,
		now:     time.Now,
	}
}

// Allow consumes one token from the agent's bucket for the class. A fresh
// bucket starts full at burst capacity.
func (l *Limiter) Allow(agentID string, class Class) bool {
	if !l.enabled {
		return true
	}
	lim, ok := l.limits[class]
	if !ok || lim.perSec <= 0 {
		return true
	}

	key := agentID + "/" + string(class)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.buckets[key]
	if b == nil {
		b = &bucket{tokens: lim.burst, last: now}
		l.buckets[key] = b
	}
	b.tokens += now.Sub(b.last).Seconds() * lim.perSec
	if b.tokens > lim.burst {
		b.tokens = lim.burst
	}
	b.last = now
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Sweep drops buckets idle longer than maxIdle. Called periodically from a
// janitor goroutine.
func (l *Limiter) Sweep(maxIdle time.Duration) {
	cutoff := l.now().Add(-maxIdle)
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, b := range l.buckets {
		if b.last.Before(cutoff) {
			delete(l.buckets, k)
		}
	}
}
