package room

import (
	"math"

	"github.com/tilemud/server/internal/event"
)

// tick advances the world one step: movement, NPC wander, zone tracking,
// skill resolution, proximity crossings, session timeouts, and finally the
// diff publish. Order matters; zone and proximity events must reflect the
// positions movement just produced.
func (r *Room) tick() {
	r.stepMovement()
	r.stepNpcs()
	r.updateZones()
	r.skills.Tick(r.positionOf)
	r.scanProximity()
	r.sweepSessions()
	r.publishDiff()

	if r.opts.Metrics != nil {
		r.opts.Metrics.RoomOccupancy.WithLabelValues(r.id).Set(float64(r.Occupancy()))
	}
}

// positionOf feeds the skill engine's moved-while-casting check.
func (r *Room) positionOf(entityID string) (float64, float64, bool) {
	e := r.entities[entityID]
	if e == nil {
		return 0, 0, false
	}
	return e.X, e.Y, true
}

// stepMovement advances every entity with a pending path. Speed accrues
// into a fractional budget so sub-tile speeds (slow effects) work; each
// whole unit of budget buys one tile. A step onto an occupied or newly
// blocked tile skips this tick but keeps the plan, so congestion delays a
// walk instead of cancelling it.
func (r *Room) stepMovement() {
	for _, e := range r.entities {
		if len(e.path) == 0 {
			continue
		}
		e.moveBudget += e.Speed * r.skills.SpeedMultiplier(e.ID)
		for e.moveBudget >= 1 && len(e.path) > 0 {
			next := e.path[0]
			if r.occ.occupiedBy(next, e.ID) != "" || !r.grid.CanMoveTo(e.tile(), next) {
				e.moveBudget = 0
				break
			}
			from := e.tile()
			r.occ.move(from, next, e.ID)
			e.Facing = facingFrom(next.TX-from.TX, next.TY-from.TY)
			e.setTile(next)
			e.path = e.path[1:]
			e.moveBudget--
		}
		if len(e.path) == 0 {
			e.moveBudget = 0
		}
	}
}

func facingFrom(dx, dy int) Facing {
	switch {
	case dy < 0:
		return FacingUp
	case dy > 0:
		return FacingDown
	case dx < 0:
		return FacingLeft
	default:
		return FacingRight
	}
}

// updateZones re-resolves zones for mobile entities. Objects never move,
// so they are skipped.
func (r *Room) updateZones() {
	for _, e := range r.entities {
		if e.Kind == KindObject {
			continue
		}
		t := r.zones.Update(e.ID, e.X, e.Y)
		e.CurrentZone = t.Current
	}
}

// pairKey builds the canonical unordered key for a proximity pair.
func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// scanProximity emits proximity.enter / proximity.exit when mobile entity
// pairs cross the proximity radius. O(n²) over mobile entities; rooms cap
// occupancy low enough that a spatial index would not pay for itself.
func (r *Room) scanProximity() {
	radius := r.opts.World.ProximityRadius

	var mobile []*Entity
	for _, e := range r.entities {
		if e.Kind != KindObject {
			mobile = append(mobile, e)
		}
	}

	seen := make(map[string]struct{}, len(r.near))
	for i := 0; i < len(mobile); i++ {
		for j := i + 1; j < len(mobile); j++ {
			a, b := mobile[i], mobile[j]
			if math.Hypot(a.X-b.X, a.Y-b.Y) > radius {
				continue
			}
			key := pairKey(a.ID, b.ID)
			seen[key] = struct{}{}
			if _, was := r.near[key]; !was {
				r.near[key] = struct{}{}
				r.emit(event.TypeProximityEnter, map[string]any{
					"entityId":      a.ID,
					"otherEntityId": b.ID,
				})
			}
		}
	}

	for key := range r.near {
		if _, still := seen[key]; !still {
			delete(r.near, key)
			a, b := splitPairKey(key)
			r.emit(event.TypeProximityExit, map[string]any{
				"entityId":      a,
				"otherEntityId": b,
			})
		}
	}
}

func splitPairKey(key string) (string, string) {
	for i := 0; i < len(key); i++ {
		if key[i] == '|' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}

// dropProximity emits exits for every pair involving a departing entity
// and forgets them.
func (r *Room) dropProximity(entityID string) {
	for key := range r.near {
		a, b := splitPairKey(key)
		if a != entityID && b != entityID {
			continue
		}
		delete(r.near, key)
		r.emit(event.TypeProximityExit, map[string]any{
			"entityId":      a,
			"otherEntityId": b,
		})
	}
}

// sweepSessions removes humans and agents whose heartbeat went stale.
// A zero last-heartbeat means the session layer does not track the
// entity, so it is left alone.
func (r *Room) sweepSessions() {
	if r.opts.Heartbeats == nil || r.opts.SessionTimeout <= 0 {
		return
	}
	cutoff := r.now().UnixMilli() - r.opts.SessionTimeout.Milliseconds()

	var stale []string
	for _, e := range r.entities {
		if e.Kind != KindHuman && e.Kind != KindAgent {
			continue
		}
		last := r.opts.Heartbeats.LastHeartbeatMs(e.ID)
		if last > 0 && last < cutoff {
			stale = append(stale, e.ID)
		}
	}
	for _, id := range stale {
		r.removeEntity(id, "timeout")
		if r.opts.OnAgentTimeout != nil {
			r.opts.OnAgentTimeout(id)
		}
	}
}

// publishDiff compares this tick's entity views to the previous tick's and
// hands the delta to the transport.
func (r *Room) publishDiff() {
	if r.opts.Publisher == nil {
		// Still refresh the baseline so a transport attached later starts
		// from a coherent snapshot.
		r.refreshViews()
		return
	}

	diff := StateDiff{RoomID: r.id}
	cur := make(map[string]EntityView, len(r.entities))
	for id, e := range r.entities {
		v := viewOf(e)
		cur[id] = v
		prev, existed := r.lastViews[id]
		if !existed {
			diff.Added = append(diff.Added, v)
			continue
		}
		if p := patchBetween(prev, v); p != nil {
			diff.Changed = append(diff.Changed, EntityPatch{ID: id, Patch: p})
		}
	}
	for id := range r.lastViews {
		if _, still := cur[id]; !still {
			diff.Removed = append(diff.Removed, id)
		}
	}
	r.lastViews = cur

	if !diff.Empty() {
		r.opts.Publisher.PublishDiff(diff)
	}
}

func (r *Room) refreshViews() {
	cur := make(map[string]EntityView, len(r.entities))
	for id, e := range r.entities {
		cur[id] = viewOf(e)
	}
	r.lastViews = cur
}
