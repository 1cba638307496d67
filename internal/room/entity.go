package room

import (
	"strings"

	"github.com/google/uuid"

	"github.com/tilemud/server/internal/grid"
)

// Entity kinds. Objects never move and never block session timeouts.
type Kind string

const (
	KindHuman  Kind = "human"
	KindAgent  Kind = "agent"
	KindObject Kind = "object"
	KindNpc    Kind = "npc"
)

// Facing directions.
type Facing string

const (
	FacingUp    Facing = "up"
	FacingDown  Facing = "down"
	FacingLeft  Facing = "left"
	FacingRight Facing = "right"
)

// Presence statuses.
type Status string

const (
	StatusOnline  Status = "online"
	StatusFocus   Status = "focus"
	StatusDnd     Status = "dnd"
	StatusAfk     Status = "afk"
	StatusOffline Status = "offline"
)

// Entity is one inhabitant of a room. The room runtime exclusively owns
// every entity in its room; nothing outside the actor goroutine may hold a
// pointer to one.
type Entity struct {
	ID     string
	Kind   Kind
	Name   string
	RoomID string

	X, Y   float64
	TX, TY int
	Facing Facing
	Speed  float64 // base tiles per tick
	Status Status

	CurrentZone string
	Title       string
	Department  string
	TeamID      string
	Meta        map[string]string

	// Objects and NPCs advertise affordances; interact validates against
	// this list.
	Affordances []string
	State       map[string]string
	Script      string

	// Movement plan: remaining tiles, first element is the next step.
	path       []grid.Pos
	moveBudget float64

	// NPC wander state.
	wander      bool
	wanderTicks int

	// Current meeting room id, or "".
	meetingID string
}

// NewEntityID allocates a prefixed entity id: hum_*, agt_*, obj_*, npc_*.
func NewEntityID(kind Kind) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	switch kind {
	case KindHuman:
		return "hum_" + suffix
	case KindAgent:
		return "agt_" + suffix
	case KindObject:
		return "obj_" + suffix
	default:
		return "npc_" + suffix
	}
}

// setTile moves the entity to the center of a tile, keeping pos and tile
// coherent.
func (e *Entity) setTile(p grid.Pos) {
	e.TX, e.TY = p.TX, p.TY
	e.X, e.Y = grid.TileCenter(p)
}

// tile returns the entity's tile coordinate.
func (e *Entity) tile() grid.Pos {
	return grid.Pos{TX: e.TX, TY: e.TY}
}

// hasAffordance reports whether the entity advertises the action.
func (e *Entity) hasAffordance(action string) bool {
	for _, a := range e.Affordances {
		if a == action {
			return true
		}
	}
	return false
}

// occupancy is a tile occupancy index for O(1) collision checks. Multiple
// occupants per tile are possible during spawn congestion; movement keeps
// it to one non-object occupant in practice.
type occupancy struct {
	tiles map[grid.Pos]map[string]struct{}
}

func newOccupancy() *occupancy {
	return &occupancy{tiles: make(map[grid.Pos]map[string]struct{})}
}

func (o *occupancy) occupy(p grid.Pos, id string) {
	cell := o.tiles[p]
	if cell == nil {
		cell = make(map[string]struct{}, 1)
		o.tiles[p] = cell
	}
	cell[id] = struct{}{}
}

func (o *occupancy) vacate(p grid.Pos, id string) {
	if cell := o.tiles[p]; cell != nil {
		delete(cell, id)
		if len(cell) == 0 {
			delete(o.tiles, p)
		}
	}
}

func (o *occupancy) move(from, to grid.Pos, id string) {
	if from == to {
		return
	}
	o.vacate(from, id)
	o.occupy(to, id)
}

// occupiedBy returns the first occupant other than excludeID, or "".
func (o *occupancy) occupiedBy(p grid.Pos, excludeID string) string {
	for id := range o.tiles[p] {
		if id != excludeID {
			return id
		}
	}
	return ""
}
