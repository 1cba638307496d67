package room

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/tilemud/server/internal/config"
	"github.com/tilemud/server/internal/data"
	"github.com/tilemud/server/internal/metrics"
	"github.com/tilemud/server/internal/pack"
	"github.com/tilemud/server/internal/safety"
	"github.com/tilemud/server/internal/scripting"
)

// AutoChannel asks the registry to pick or create a room with free
// capacity.
const AutoChannel = "auto"

// RegistryOptions carries everything shared across rooms. Each room gets
// its own Lua engine because the VM is single-goroutine.
type RegistryOptions struct {
	Pack           *pack.Pack
	Skills         *data.SkillTable
	Npcs           *data.NpcTable
	Safety         *safety.Registry
	Cfg            *config.Config
	Log            *zap.Logger
	Metrics        *metrics.Metrics
	Publisher      Publisher
	Heartbeats     HeartbeatSource
	OnAgentTimeout func(agentID string)
}

// Registry owns the live rooms. Rooms are created on demand and live
// until the process exits; an empty room costs one idle goroutine.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	seq   int
	opts  RegistryOptions
}

// NewRegistry builds an empty registry.
func NewRegistry(opts RegistryOptions) *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
		opts:  opts,
	}
}

// Get returns a live room by id.
func (g *Registry) Get(roomID string) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.rooms[roomID]
	return r, ok
}

// ChannelInfo describes one room for channel discovery.
type ChannelInfo struct {
	ID        string `json:"id"`
	Occupancy int    `json:"occupancy"`
	Capacity  int    `json:"capacity"`
}

// List returns all rooms sorted by id.
func (g *Registry) List() []ChannelInfo {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]ChannelInfo, 0, len(g.rooms))
	for id, r := range g.rooms {
		out = append(out, ChannelInfo{
			ID:        id,
			Occupancy: r.Occupancy(),
			Capacity:  g.opts.Cfg.World.MaxOccupancy,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Resolve maps a requested channel id to a live room. "auto" picks the
// lowest-id room with free capacity, creating channel-1, channel-2, ...
// when everything is full. An explicit id creates the room on first use.
func (g *Registry) Resolve(roomID string) (*Room, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if roomID != AutoChannel {
		if r, ok := g.rooms[roomID]; ok {
			return r, nil
		}
		return g.createLocked(roomID)
	}

	ids := make([]string, 0, len(g.rooms))
	for id := range g.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if g.rooms[id].Occupancy() < g.opts.Cfg.World.MaxOccupancy {
			return g.rooms[id], nil
		}
	}
	g.seq++
	return g.createLocked(fmt.Sprintf("channel-%d", g.seq))
}

func (g *Registry) createLocked(roomID string) (*Room, error) {
	scripts, err := scripting.NewEngine(g.opts.Cfg.World.ScriptsDir, g.opts.Log)
	if err != nil {
		return nil, fmt.Errorf("room %s: %w", roomID, err)
	}
	r, err := New(Options{
		ID:             roomID,
		Pack:           g.opts.Pack,
		Skills:         g.opts.Skills,
		Npcs:           g.opts.Npcs,
		Scripts:        scripts,
		Safety:         g.opts.Safety,
		World:          g.opts.Cfg.World,
		ChatRing:       g.opts.Cfg.Chat.RingSize,
		SessionTimeout: g.opts.Cfg.Session.Timeout,
		Log:            g.opts.Log,
		Metrics:        g.opts.Metrics,
		Publisher:      g.opts.Publisher,
		Heartbeats:     g.opts.Heartbeats,
		OnAgentTimeout: g.opts.OnAgentTimeout,
	})
	if err != nil {
		scripts.Close()
		return nil, err
	}
	g.rooms[roomID] = r
	if g.opts.Metrics != nil {
		g.opts.Metrics.RoomsActive.Set(float64(len(g.rooms)))
	}
	g.opts.Log.Info("room created", zap.String("room", roomID))
	return r, nil
}

// Close stops every room.
func (g *Registry) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, r := range g.rooms {
		r.Close()
	}
}
