package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tilemud/server/internal/config"
)

func newTestLimiter() (*Limiter, *time.Time) {
	l := New(config.RateLimitConfig{
		Enabled:      true,
		ActionPerSec: 2,
		ActionBurst:  5,
		ChatPerSec:   1,
		ChatBurst:    1,
	})
	now := time.Now()
	l.now = func() time.Time { return now }
	return l, &now
}

func TestBurstThenDeny(t *testing.T) {
	l, _ := newTestLimiter()

	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow("agt_a", ClassAction), "burst request %d", i)
	}
	assert.False(t, l.Allow("agt_a", ClassAction), "bucket drained")

	// Other agents and classes have their own buckets.
	assert.True(t, l.Allow("agt_b", ClassAction))
	assert.True(t, l.Allow("agt_a", ClassChat))
}

func TestRefillOverTime(t *testing.T) {
	l, now := newTestLimiter()
	for i := 0; i < 5; i++ {
		l.Allow("agt_a", ClassAction)
	}
	assert.False(t, l.Allow("agt_a", ClassAction))

	// 2/s refill: after one second two tokens are back.
	*now = now.Add(time.Second)
	assert.True(t, l.Allow("agt_a", ClassAction))
	assert.True(t, l.Allow("agt_a", ClassAction))
	assert.False(t, l.Allow("agt_a", ClassAction))
}

func TestRefillCapsAtBurst(t *testing.T) {
	l, now := newTestLimiter()
	l.Allow("agt_a", ClassAction)

	*now = now.Add(time.Hour)
	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow("agt_a", ClassAction))
	}
	assert.False(t, l.Allow("agt_a", ClassAction))
}

func TestDisabledAllowsEverything(t *testing.T) {
	l := New(config.RateLimitConfig{Enabled: false})
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow("agt_a", ClassAction))
	}
}

func TestUnconfiguredClassAllows(t *testing.T) {
	l, _ := newTestLimiter()
	// Events has no per-second rate configured, so it never limits.
	for i := 0; i < 10; i++ {
		assert.True(t, l.Allow("agt_a", ClassEvents))
	}
}

func TestSweepDropsIdleBuckets(t *testing.T) {
	l, now := newTestLimiter()
	for i := 0; i < 5; i++ {
		l.Allow("agt_a", ClassAction)
	}
	assert.False(t, l.Allow("agt_a", ClassAction))

	*now = now.Add(10 * time.Minute)
	l.Sweep(5 * time.Minute)

	// A fresh bucket starts at full burst again.
	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow("agt_a", ClassAction))
	}
}
