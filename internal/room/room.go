// Package room implements the authoritative per-room world runtime. Each
// room is one actor: every state mutation happens on the room goroutine,
// fed by a bounded intent queue, so no entity ever needs a lock.
package room

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tilemud/server/internal/chat"
	"github.com/tilemud/server/internal/config"
	"github.com/tilemud/server/internal/data"
	"github.com/tilemud/server/internal/event"
	"github.com/tilemud/server/internal/grid"
	"github.com/tilemud/server/internal/metrics"
	"github.com/tilemud/server/internal/pack"
	"github.com/tilemud/server/internal/safety"
	"github.com/tilemud/server/internal/scripting"
	"github.com/tilemud/server/internal/skill"
	"github.com/tilemud/server/internal/zone"
)

var (
	// ErrRoomNotReady is returned when the intent queue is full or the room
	// stopped. Callers may retry.
	ErrRoomNotReady = errors.New("room not ready")
)

// Publisher receives per-tick state diffs and chat fan-out for the
// realtime transport. Implementations must not block.
type Publisher interface {
	PublishDiff(diff StateDiff)
	PublishChat(roomID string, msg chat.Message)
}

// HeartbeatSource answers when an agent was last seen. The session store
// implements it.
type HeartbeatSource interface {
	LastHeartbeatMs(agentID string) int64
}

// Options configures a room.
type Options struct {
	ID             string
	Pack           *pack.Pack
	Skills         *data.SkillTable
	Npcs           *data.NpcTable
	Scripts        *scripting.Engine
	Safety         *safety.Registry
	World          config.WorldConfig
	ChatRing       int
	SessionTimeout time.Duration
	Log            *zap.Logger
	Metrics        *metrics.Metrics
	Publisher      Publisher
	Heartbeats     HeartbeatSource
	OnAgentTimeout func(agentID string)
}

type intent struct {
	kind  string
	fn    func() any
	reply chan any
}

// Room is one authoritative world instance.
type Room struct {
	id   string
	opts Options

	grid    *grid.Grid
	journal *event.Log
	chat    *chat.Store
	zones   *zone.Tracker
	skills  *skill.Engine

	entities map[string]*Entity
	occ      *occupancy

	// proximity pair state: key "a|b" with a < b, present while near.
	near map[string]struct{}

	lastViews map[string]EntityView

	intake    chan intent
	done      chan struct{}
	occupants atomic.Int64 // humans + agents, read by the registry

	log *zap.Logger
	now func() time.Time
}

// New builds a room, spawns its pack objects and NPCs, and starts the
// actor goroutine.
func New(opts Options) (*Room, error) {
	if opts.Pack == nil || opts.Pack.Grid == nil {
		return nil, fmt.Errorf("room %s: no map pack", opts.ID)
	}
	queueSize := opts.World.IntentQueueSize
	if queueSize <= 0 {
		queueSize = 4096
	}

	r := &Room{
		id:        opts.ID,
		opts:      opts,
		grid:      opts.Pack.Grid,
		journal:   event.NewLog(opts.ID, opts.World.EventRingSize, opts.World.EventTTL),
		entities:  make(map[string]*Entity),
		occ:       newOccupancy(),
		near:      make(map[string]struct{}),
		lastViews: make(map[string]EntityView),
		intake:    make(chan intent, queueSize),
		done:      make(chan struct{}),
		log:       opts.Log.With(zap.String("room", opts.ID)),
		now:       time.Now,
	}
	r.zones = zone.NewTracker(opts.Pack.Manifest.Zones, r.emit)
	r.skills = skill.NewEngine(opts.Skills, r.emit)
	r.chat = chat.NewStore(opts.ID, opts.ChatRing, r.membership, opts.Safety)

	r.spawnObjects()
	r.spawnNpcs()

	go r.run()
	return r, nil
}

// ID returns the room's channel id.
func (r *Room) ID() string { return r.id }

// Journal returns the room's event log for long-poll readers.
func (r *Room) Journal() *event.Log { return r.journal }

// Grid returns the room's collision grid. The grid is immutable once the
// pack is loaded, so reads are safe from any goroutine.
func (r *Room) Grid() *grid.Grid { return r.grid }

// Occupancy returns the current human+agent count. Safe from any
// goroutine.
func (r *Room) Occupancy() int { return int(r.occupants.Load()) }

// Close stops the actor. Pending intents are dropped with ErrRoomNotReady.
func (r *Room) Close() {
	select {
	case <-r.done:
	default:
		close(r.done)
	}
}

// emit appends to the journal and counts the event. Runs on the room
// goroutine only.
func (r *Room) emit(evType string, payload map[string]any) {
	r.journal.Append(evType, payload)
	if r.opts.Metrics != nil {
		r.opts.Metrics.EventsAppended.WithLabelValues(evType).Inc()
	}
}

// membership answers team and meeting scoping for the chat store. Runs on
// the room goroutine (the chat store only calls it from Send, which the
// room invokes).
func (r *Room) membership(kind, groupID, entityID string) bool {
	e := r.entities[entityID]
	if e == nil {
		return false
	}
	switch kind {
	case "team":
		return e.TeamID == groupID
	case "meeting":
		return e.meetingID == groupID
	}
	return false
}

// run is the actor loop: intents interleaved with the fixed-rate tick.
func (r *Room) run() {
	tickRate := r.opts.World.TickRate
	if tickRate <= 0 {
		tickRate = 100 * time.Millisecond
	}
	ticker := time.NewTicker(tickRate)
	defer ticker.Stop()
	if r.opts.Scripts != nil {
		// The VM is owned by this goroutine, so it is torn down here.
		defer r.opts.Scripts.Close()
	}

	for {
		select {
		case <-r.done:
			return
		case in := <-r.intake:
			r.apply(in)
		case <-ticker.C:
			r.tick()
		}
	}
}

// apply executes one intent with panic containment: a failing handler
// never takes the tick loop down.
func (r *Room) apply(in intent) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("intent panicked",
				zap.String("kind", in.kind),
				zap.Any("panic", rec),
			)
			if r.opts.Metrics != nil {
				r.opts.Metrics.IntentsTotal.WithLabelValues(in.kind, "panic").Inc()
			}
			in.reply <- errInternal{}
		}
	}()
	out := in.fn()
	if r.opts.Metrics != nil {
		r.opts.Metrics.IntentsTotal.WithLabelValues(in.kind, "ok").Inc()
	}
	in.reply <- out
}

// errInternal marks a panicked intent; the AIC surface maps it to an
// internal error.
type errInternal struct{}

// ErrInternal is returned when an intent handler panicked.
var ErrInternal = errors.New("internal room error")

// submit enqueues an intent and waits for its reply. A full intake queue
// fails fast with ErrRoomNotReady; callers shed load and retry instead of
// queueing behind the actor until their deadline. The reply channel is
// buffered so the actor never blocks on a caller that gave up: on deadline
// the intent still applies, the caller just sees ctx.Err().
func (r *Room) submit(ctx context.Context, kind string, fn func() any) (any, error) {
	in := intent{kind: kind, fn: fn, reply: make(chan any, 1)}
	select {
	case r.intake <- in:
	case <-r.done:
		return nil, ErrRoomNotReady
	default:
		return nil, ErrRoomNotReady
	}

	select {
	case out := <-in.reply:
		if _, bad := out.(errInternal); bad {
			return nil, ErrInternal
		}
		return out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.done:
		return nil, ErrRoomNotReady
	}
}
