// Package event implements the per-room append-only event journal. Each
// room owns exactly one Log; agents replay it through long-poll cursors.
package event

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// Event types emitted by the room runtime. Closed set; the AIC surface
// never invents new ones.
const (
	TypePresenceJoin       = "presence.join"
	TypePresenceLeave      = "presence.leave"
	TypeProximityEnter     = "proximity.enter"
	TypeProximityExit      = "proximity.exit"
	TypeZoneEnter          = "zone.enter"
	TypeZoneExit           = "zone.exit"
	TypeChatMessage        = "chat.message"
	TypeObjectStateChanged = "object.state_changed"
	TypeProfileUpdated     = "profile.updated"
	TypeNpcStateChange     = "npc.state_change"
	TypeFacilityInteracted = "facility.interacted"
	TypeEmoteTriggered     = "emote.triggered"
	TypeSkillCastStarted   = "skill.cast_started"
	TypeSkillCastComplete  = "skill.cast_complete"
	TypeSkillCastCancelled = "skill.cast_cancelled"
	TypeEffectApplied      = "effect.applied"
	TypeEffectExpired      = "effect.expired"
)

// Envelope is one journal entry. Envelopes are immutable after append.
type Envelope struct {
	Cursor  string         `json:"cursor"`
	Type    string         `json:"type"`
	RoomID  string         `json:"roomId"`
	TsMs    int64          `json:"tsMs"`
	Payload map[string]any `json:"payload"`
}

// Log is a bounded ring of envelopes with monotonic cursors. Appends come
// from the room goroutine; Since and Wait are called from HTTP handlers, so
// the ring is guarded by a mutex held only for O(1)/O(limit) work.
type Log struct {
	mu     sync.Mutex
	roomID string
	buf    []Envelope
	next   int64 // next cursor to assign, starts at 1
	cap    int
	ttl    time.Duration
	lastTs int64
	notify chan struct{} // closed and replaced on every append
	now    func() time.Time
}

// NewLog creates a ring with the given capacity and entry TTL.
func NewLog(roomID string, capacity int, ttl time.Duration) *Log {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Log{
		roomID: roomID,
		next:   1,
		cap:    capacity,
		ttl:    ttl,
		notify: make(chan struct{}),
		now:    time.Now,
	}
}

// Append assigns the next cursor, stamps the envelope, evicts expired or
// overflowing entries, and wakes every waiter.
func (l *Log) Append(evType string, payload map[string]any) Envelope {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := l.now().UnixMilli()
	if ts < l.lastTs {
		ts = l.lastTs // tsMs is non-decreasing even if the clock steps back
	}
	l.lastTs = ts

	env := Envelope{
		Cursor:  strconv.FormatInt(l.next, 10),
		Type:    evType,
		RoomID:  l.roomID,
		TsMs:    ts,
		Payload: payload,
	}
	l.next++
	l.buf = append(l.buf, env)
	l.evictLocked(ts)

	close(l.notify)
	l.notify = make(chan struct{})
	return env
}

// evictLocked drops entries past capacity or TTL. Oldest go first.
func (l *Log) evictLocked(nowMs int64) {
	if n := len(l.buf) - l.cap; n > 0 {
		l.buf = l.buf[n:]
	}
	if l.ttl <= 0 {
		return
	}
	cutoff := nowMs - l.ttl.Milliseconds()
	i := 0
	for i < len(l.buf) && l.buf[i].TsMs < cutoff {
		i++
	}
	if i > 0 {
		l.buf = l.buf[i:]
	}
}

// Since returns up to limit envelopes strictly after cursor. An empty
// cursor means "from the current tail": no events, nextCursor at the tail.
// cursorExpired is true when the cursor predates the oldest retained entry,
// meaning events were lost and the caller must re-sync.
func (l *Log) Since(cursor string, limit int) (events []Envelope, nextCursor string, cursorExpired bool) {
	if limit <= 0 {
		limit = 100
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evictLocked(l.now().UnixMilli())

	tail := l.next - 1
	if cursor == "" {
		return nil, strconv.FormatInt(tail, 10), false
	}
	c, err := strconv.ParseInt(cursor, 10, 64)
	if err != nil || c < 0 {
		// Unparseable cursors behave like expired ones: the caller resets.
		return nil, strconv.FormatInt(tail, 10), true
	}

	if len(l.buf) > 0 {
		oldest, _ := strconv.ParseInt(l.buf[0].Cursor, 10, 64)
		if c < oldest-1 {
			cursorExpired = true
		}
	} else if c < tail {
		cursorExpired = true
	}

	nextCursor = cursor
	for _, env := range l.buf {
		ec, _ := strconv.ParseInt(env.Cursor, 10, 64)
		if ec <= c {
			continue
		}
		events = append(events, env)
		nextCursor = env.Cursor
		if len(events) >= limit {
			break
		}
	}
	if cursorExpired && len(events) == 0 {
		nextCursor = strconv.FormatInt(tail, 10)
	}
	return events, nextCursor, cursorExpired
}

// Wait blocks until an event with cursor' > cursor exists or ctx is done.
// Single-shot: the caller re-reads with Since afterwards. Abandoning the
// wait releases the slot without emitting anything.
func (l *Log) Wait(ctx context.Context, cursor string) {
	c, err := strconv.ParseInt(cursor, 10, 64)
	if err != nil {
		c = -1
	}
	for {
		l.mu.Lock()
		if l.next-1 > c {
			l.mu.Unlock()
			return
		}
		ch := l.notify
		l.mu.Unlock()

		select {
		case <-ch:
			// Re-check; a concurrent append may be for a lower cursor than
			// requested only when cursors run backwards, which they never do.
		case <-ctx.Done():
			return
		}
	}
}

// Tail returns the latest assigned cursor ("0" when nothing was appended).
func (l *Log) Tail() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strconv.FormatInt(l.next-1, 10)
}
