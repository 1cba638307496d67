package room

import (
	"strings"

	"go.uber.org/zap"

	"github.com/tilemud/server/internal/grid"
)

// spawnObjects materializes the pack's object layer as entities. Objects
// never move, never time out, and never count toward occupancy limits.
func (r *Room) spawnObjects() {
	for _, o := range r.opts.Pack.Objects {
		e := &Entity{
			ID:     NewEntityID(KindObject),
			Kind:   KindObject,
			Name:   o.Name,
			RoomID: r.id,
			X:      o.X,
			Y:      o.Y,
			Facing: FacingDown,
			Status: StatusOnline,
			State:  make(map[string]string),
			Meta:   map[string]string{"type": o.Type},
		}
		t := grid.WorldToTile(o.X, o.Y)
		e.TX, e.TY = t.TX, t.TY

		if actions := o.Properties["actions"]; actions != "" {
			for _, a := range strings.Split(actions, ",") {
				if a = strings.TrimSpace(a); a != "" {
					e.Affordances = append(e.Affordances, a)
				}
			}
		}
		e.Script = o.Properties["script"]
		for k, v := range o.Properties {
			if key, ok := strings.CutPrefix(k, "state_"); ok {
				e.State[key] = v
			}
		}

		e.CurrentZone = r.zoneAtSilent(e.X, e.Y)
		r.entities[e.ID] = e
	}
	r.log.Info("spawned pack objects", zap.Int("count", len(r.opts.Pack.Objects)))
}

// spawnNpcs places NPCs from the data table. Spawn tiles shift to the
// nearest free tile when the configured one is blocked or taken.
func (r *Room) spawnNpcs() {
	if r.opts.Npcs == nil {
		return
	}
	for _, tpl := range r.opts.Npcs.All() {
		tile, ok := r.freeTileNear(grid.Pos{TX: tpl.TX, TY: tpl.TY})
		if !ok {
			r.log.Warn("no free tile for npc", zap.String("npc", tpl.ID))
			continue
		}
		e := &Entity{
			ID:          "npc_" + tpl.ID,
			Kind:        KindNpc,
			Name:        tpl.Name,
			RoomID:      r.id,
			Facing:      FacingDown,
			Speed:       0.5,
			Status:      StatusOnline,
			Affordances: append([]string(nil), tpl.Actions...),
			State:       make(map[string]string),
			Script:      tpl.Script,
			wander:      tpl.Wander,
		}
		e.setTile(tile)
		r.occ.occupy(tile, e.ID)
		e.CurrentZone = r.zoneAtSilent(e.X, e.Y)
		r.entities[e.ID] = e
	}
	r.log.Info("spawned npcs", zap.Int("count", r.opts.Npcs.Count()))
}

// zoneAtSilent resolves a zone without registering the entity with the
// tracker. Used for entities that never emit zone crossings at spawn.
func (r *Room) zoneAtSilent(x, y float64) string {
	return r.zones.ZoneAt(x, y)
}

// spawnTile returns the room's preferred spawn tile.
func (r *Room) spawnTile() (grid.Pos, bool) {
	if r.opts.Pack.HasSpawn {
		p := grid.Pos{TX: r.opts.Pack.SpawnTX, TY: r.opts.Pack.SpawnTY}
		if !r.grid.IsBlocked(p.TX, p.TY) {
			return p, true
		}
	}
	return r.grid.FirstPassable()
}

// freeTileNear finds the closest passable, unoccupied tile to want,
// scanning outward in growing rings. Ring radius is capped so a packed
// spawn area fails fast instead of sweeping the whole map.
func (r *Room) freeTileNear(want grid.Pos) (grid.Pos, bool) {
	const maxRing = 8
	if r.tileFree(want) {
		return want, true
	}
	for ring := 1; ring <= maxRing; ring++ {
		for dy := -ring; dy <= ring; dy++ {
			for dx := -ring; dx <= ring; dx++ {
				if dx > -ring && dx < ring && dy > -ring && dy < ring {
					continue // interior already scanned in a previous ring
				}
				p := grid.Pos{TX: want.TX + dx, TY: want.TY + dy}
				if r.tileFree(p) {
					return p, true
				}
			}
		}
	}
	return grid.Pos{}, false
}

func (r *Room) tileFree(p grid.Pos) bool {
	return !r.grid.IsBlocked(p.TX, p.TY) && r.occ.occupiedBy(p, "") == ""
}
