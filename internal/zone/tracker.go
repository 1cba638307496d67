// Package zone maps entity positions onto named rectangular zones and
// reports crossings. One tracker per room, touched only from the room
// goroutine.
package zone

import (
	"github.com/tilemud/server/internal/pack"
)

// EmitFunc receives zone.exit / zone.enter events, in that order.
type EmitFunc func(evType string, payload map[string]any)

// Transition is the result of an Update.
type Transition struct {
	Previous string
	Current  string
	Changed  bool
}

// Tracker resolves zones in manifest order (insertion order is the lookup
// order, so overlapping rectangles resolve deterministically) and keeps
// population counters.
type Tracker struct {
	zones    []pack.ZoneEntry
	byEntity map[string]string
	pop      map[string]int
	emit     EmitFunc
}

// NewTracker builds a tracker from manifest zone entries.
func NewTracker(zones []pack.ZoneEntry, emit EmitFunc) *Tracker {
	return &Tracker{
		zones:    zones,
		byEntity: make(map[string]string),
		pop:      make(map[string]int),
		emit:     emit,
	}
}

// ZoneAt returns the id of the first zone containing the point, or "".
func (t *Tracker) ZoneAt(x, y float64) string {
	for _, z := range t.zones {
		if z.Bounds.Contains(x, y) {
			return z.ID
		}
	}
	return ""
}

// Update recomputes the entity's zone from its position. On a change it
// emits zone.exit for the previous zone and then zone.enter for the new
// one, and moves the population counter.
func (t *Tracker) Update(entityID string, x, y float64) Transition {
	prev := t.byEntity[entityID]
	cur := t.ZoneAt(x, y)
	if cur == prev {
		return Transition{Previous: prev, Current: cur}
	}

	if prev != "" {
		t.decr(prev)
		if t.emit != nil {
			t.emit("zone.exit", map[string]any{
				"entityId":   entityID,
				"zoneId":     prev,
				"nextZoneId": cur,
			})
		}
	}
	if cur == "" {
		delete(t.byEntity, entityID)
	} else {
		t.byEntity[entityID] = cur
		t.pop[cur]++
		if t.emit != nil {
			t.emit("zone.enter", map[string]any{
				"entityId":       entityID,
				"zoneId":         cur,
				"previousZoneId": prev,
			})
		}
	}
	return Transition{Previous: prev, Current: cur, Changed: true}
}

// Remove drops an entity from tracking, freeing its zone population. Safe
// to call repeatedly; population never goes negative.
func (t *Tracker) Remove(entityID string) {
	prev, ok := t.byEntity[entityID]
	if !ok {
		return
	}
	delete(t.byEntity, entityID)
	t.decr(prev)
}

func (t *Tracker) decr(zoneID string) {
	if t.pop[zoneID] > 0 {
		t.pop[zoneID]--
	}
	if t.pop[zoneID] == 0 {
		delete(t.pop, zoneID)
	}
}

// Current returns the entity's tracked zone, or "".
func (t *Tracker) Current(entityID string) string {
	return t.byEntity[entityID]
}

// Population returns the entity count for a zone.
func (t *Tracker) Population(zoneID string) int {
	return t.pop[zoneID]
}

// Populations returns a copy of all non-zero zone populations.
func (t *Tracker) Populations() map[string]int {
	out := make(map[string]int, len(t.pop))
	for k, v := range t.pop {
		out[k] = v
	}
	return out
}
