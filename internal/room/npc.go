package room

import (
	"math/rand"

	"github.com/tilemud/server/internal/grid"
)

// wanderInterval is the mean tick gap between wander steps; actual gaps
// are uniform in [interval/2, interval*3/2) so NPCs drift out of phase.
const wanderInterval = 30

// stepNpcs drives idle wander for NPCs flagged for it. A wandering NPC
// never strays more than one tile per step and never enters an occupied
// or blocked tile; a blocked pick just resets the timer.
func (r *Room) stepNpcs() {
	for _, e := range r.entities {
		if e.Kind != KindNpc || !e.wander || len(e.path) > 0 {
			continue
		}
		if e.wanderTicks > 0 {
			e.wanderTicks--
			continue
		}
		e.wanderTicks = wanderInterval/2 + rand.Intn(wanderInterval)

		dir := rand.Intn(4)
		next := grid.Pos{TX: e.TX + stepsDX[dir], TY: e.TY + stepsDY[dir]}
		if !r.tileFree(next) {
			continue
		}
		from := e.tile()
		r.occ.move(from, next, e.ID)
		e.Facing = facingFrom(next.TX-from.TX, next.TY-from.TY)
		e.setTile(next)
	}
}

var stepsDX = [4]int{0, 1, 0, -1}
var stepsDY = [4]int{-1, 0, 1, 0}
