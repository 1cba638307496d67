// Package skill implements installable skills with cast times, cooldowns,
// and timed effects. One engine per room, touched only from the room
// goroutine; definitions are shared read-only tables.
package skill

import (
	"math"
	"strconv"
	"time"

	"github.com/tilemud/server/internal/data"
	"github.com/tilemud/server/internal/event"
)

// Invoke outcomes. Rejections are outcomes, not errors: the request itself
// succeeded.
const (
	OutcomePending            = "pending"
	OutcomeActionNotInstalled = "action_not_installed"
	OutcomeOnCooldown         = "on_cooldown"
	OutcomeOutOfRange         = "out_of_range"
	OutcomeAlreadyCasting     = "already_casting"
	OutcomeUnknownAction      = "unknown_action"
)

// castEps is the distance in world units a caster may drift before the
// cast counts as "moved" and cancels.
const castEps = 1.0

// PendingCast is the latent window between invoke and effect application.
type PendingCast struct {
	TxID           string
	SkillID        string
	ActionID       string
	TargetID       string
	StartX, StartY float64
	CompletionMs   int64
}

// ActiveEffect is a timed effect applied to an entity.
type ActiveEffect struct {
	EffectID        string  `json:"effectId"`
	EffectType      string  `json:"effectType"`
	SpeedMultiplier float64 `json:"speedMultiplier"`
	ExpiresAtMs     int64   `json:"expiresAt"`
}

type agentState struct {
	installed     map[string]struct{}
	cooldownUntil map[string]int64
	pending       *PendingCast
	effects       []ActiveEffect
}

// EmitFunc appends an event to the room's journal.
type EmitFunc func(evType string, payload map[string]any)

// PosFunc resolves an entity's current position; ok=false when the entity
// left the room.
type PosFunc func(entityID string) (x, y float64, ok bool)

// Engine holds per-entity skill runtime for one room.
type Engine struct {
	table   *data.SkillTable
	actions map[string]actionRef // actionID → owning skill + def
	agents  map[string]*agentState
	emit    EmitFunc
	now     func() time.Time
	nextFx  int64
}

type actionRef struct {
	skillID string
	def     data.ActionDef
}

// NewEngine indexes the skill table for one room.
func NewEngine(table *data.SkillTable, emit EmitFunc) *Engine {
	e := &Engine{
		table:   table,
		actions: make(map[string]actionRef),
		agents:  make(map[string]*agentState),
		emit:    emit,
		now:     time.Now,
	}
	if table != nil {
		for _, s := range table.All() {
			for _, a := range s.Actions {
				e.actions[a.ID] = actionRef{skillID: s.ID, def: a}
			}
		}
	}
	return e
}

func (e *Engine) state(entityID string) *agentState {
	st := e.agents[entityID]
	if st == nil {
		st = &agentState{
			installed:     make(map[string]struct{}),
			cooldownUntil: make(map[string]int64),
		}
		e.agents[entityID] = st
	}
	return st
}

// List returns all skill definitions.
func (e *Engine) List() []*data.SkillDef {
	if e.table == nil {
		return nil
	}
	return e.table.All()
}

// Install installs a skill for an entity. A second install is a no-op that
// reports alreadyInstalled=true and emits nothing.
func (e *Engine) Install(entityID, skillID string) (alreadyInstalled, ok bool) {
	if e.table == nil || e.table.Get(skillID) == nil {
		return false, false
	}
	st := e.state(entityID)
	if _, has := st.installed[skillID]; has {
		return true, true
	}
	st.installed[skillID] = struct{}{}
	return false, true
}

// Installed returns the skill ids installed for an entity.
func (e *Engine) Installed(entityID string) []string {
	st := e.agents[entityID]
	if st == nil {
		return nil
	}
	out := make([]string, 0, len(st.installed))
	for _, s := range e.table.All() {
		if _, has := st.installed[s.ID]; has {
			out = append(out, s.ID)
		}
	}
	return out
}

// InvokeResult is the room-facing result of an invoke.
type InvokeResult struct {
	Outcome      string `json:"outcome"`
	CompletionMs int64  `json:"completionTime,omitempty"`
	CooldownMs   int64  `json:"cooldownUntil,omitempty"`
}

// Invoke validates an action invocation in order: installed, cooldown,
// range, single pending cast. On success the cast becomes pending; the
// effect lands on a later tick.
func (e *Engine) Invoke(entityID, txID, skillID, actionID, targetID string, distance float64, x, y float64) InvokeResult {
	ref, known := e.actions[actionID]
	if !known || ref.skillID != skillID {
		return InvokeResult{Outcome: OutcomeUnknownAction}
	}
	st := e.state(entityID)
	if _, has := st.installed[skillID]; !has {
		return InvokeResult{Outcome: OutcomeActionNotInstalled}
	}
	now := e.now().UnixMilli()
	if until := st.cooldownUntil[actionID]; now < until {
		return InvokeResult{Outcome: OutcomeOnCooldown, CooldownMs: until}
	}
	if ref.def.RangeUnits > 0 && distance > ref.def.RangeUnits {
		return InvokeResult{Outcome: OutcomeOutOfRange}
	}
	if st.pending != nil {
		return InvokeResult{Outcome: OutcomeAlreadyCasting}
	}

	completion := now + ref.def.CastTimeMs
	st.pending = &PendingCast{
		TxID:         txID,
		SkillID:      skillID,
		ActionID:     actionID,
		TargetID:     targetID,
		StartX:       x,
		StartY:       y,
		CompletionMs: completion,
	}
	if e.emit != nil {
		e.emit(event.TypeSkillCastStarted, map[string]any{
			"entityId":       entityID,
			"skillId":        skillID,
			"actionId":       actionID,
			"targetId":       targetID,
			"completionTime": completion,
		})
	}
	return InvokeResult{Outcome: OutcomePending, CompletionMs: completion}
}

// Cancel aborts an in-flight cast at the caster's request. No cooldown is
// applied.
func (e *Engine) Cancel(entityID string) bool {
	st := e.agents[entityID]
	if st == nil || st.pending == nil {
		return false
	}
	p := st.pending
	st.pending = nil
	if e.emit != nil {
		e.emit(event.TypeSkillCastCancelled, map[string]any{
			"entityId": entityID,
			"skillId":  p.SkillID,
			"actionId": p.ActionID,
			"reason":   "user",
		})
	}
	return true
}

// Tick completes due casts and expires effects. pos resolves current
// caster positions for the moved-while-casting check.
func (e *Engine) Tick(pos PosFunc) {
	now := e.now().UnixMilli()

	for entityID, st := range e.agents {
		p := st.pending
		if p != nil && p.CompletionMs <= now {
			st.pending = nil
			x, y, here := pos(entityID)
			if !here || math.Hypot(x-p.StartX, y-p.StartY) > castEps {
				if e.emit != nil {
					e.emit(event.TypeSkillCastCancelled, map[string]any{
						"entityId": entityID,
						"skillId":  p.SkillID,
						"actionId": p.ActionID,
						"reason":   "moved",
					})
				}
			} else {
				e.completeCast(entityID, st, p, now)
			}
		}

		// Drop expired effects.
		kept := st.effects[:0]
		for _, fx := range st.effects {
			if fx.ExpiresAtMs <= now {
				if e.emit != nil {
					e.emit(event.TypeEffectExpired, map[string]any{
						"entityId":   entityID,
						"effectId":   fx.EffectID,
						"effectType": fx.EffectType,
					})
				}
				continue
			}
			kept = append(kept, fx)
		}
		st.effects = kept
	}
}

func (e *Engine) completeCast(entityID string, st *agentState, p *PendingCast, now int64) {
	ref := e.actions[p.ActionID]
	st.cooldownUntil[p.ActionID] = now + ref.def.CooldownMs

	if fx := ref.def.Effect; fx != nil {
		target := p.TargetID
		if target == "" {
			target = entityID
		}
		e.nextFx++
		applied := ActiveEffect{
			EffectID:        p.ActionID + "#" + strconv.FormatInt(e.nextFx, 10),
			EffectType:      fx.Type,
			SpeedMultiplier: fx.SpeedMultiplier,
			ExpiresAtMs:     now + fx.DurationMs,
		}
		ts := e.state(target)
		ts.effects = append(ts.effects, applied)
		if e.emit != nil {
			e.emit(event.TypeEffectApplied, map[string]any{
				"entityId":   target,
				"casterId":   entityID,
				"effectId":   applied.EffectID,
				"effectType": applied.EffectType,
				"expiresAt":  applied.ExpiresAtMs,
			})
		}
	}
	if e.emit != nil {
		e.emit(event.TypeSkillCastComplete, map[string]any{
			"entityId": entityID,
			"skillId":  p.SkillID,
			"actionId": p.ActionID,
			"targetId": p.TargetID,
		})
	}
}

// SpeedMultiplier returns the product of active speed multipliers for an
// entity (1.0 when none).
func (e *Engine) SpeedMultiplier(entityID string) float64 {
	st := e.agents[entityID]
	if st == nil {
		return 1.0
	}
	mult := 1.0
	for _, fx := range st.effects {
		if fx.SpeedMultiplier > 0 {
			mult *= fx.SpeedMultiplier
		}
	}
	return mult
}

// Effects returns a copy of an entity's active effects.
func (e *Engine) Effects(entityID string) []ActiveEffect {
	st := e.agents[entityID]
	if st == nil {
		return nil
	}
	return append([]ActiveEffect(nil), st.effects...)
}

// Pending returns the entity's pending cast, or nil.
func (e *Engine) Pending(entityID string) *PendingCast {
	st := e.agents[entityID]
	if st == nil {
		return nil
	}
	return st.pending
}

// Forget drops all runtime state for an entity that left the room.
func (e *Engine) Forget(entityID string) {
	delete(e.agents, entityID)
}
