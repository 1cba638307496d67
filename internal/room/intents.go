package room

import (
	"context"
	"errors"
	"math"
	"sort"

	"github.com/tilemud/server/internal/chat"
	"github.com/tilemud/server/internal/data"
	"github.com/tilemud/server/internal/event"
	"github.com/tilemud/server/internal/grid"
	"github.com/tilemud/server/internal/scripting"
	"github.com/tilemud/server/internal/skill"
)

var (
	// ErrRoomFull is returned when occupancy is at the configured cap.
	ErrRoomFull = errors.New("room full")
	// ErrNoSuchEntity is returned when an intent names an entity that is not
	// in the room.
	ErrNoSuchEntity = errors.New("no such entity")
)

// MoveTo results. Rejections are results, not errors.
const (
	MoveAccepted = "accepted"
	MoveRejected = "rejected"
	MoveNoOp     = "no_op"
)

// MoveTo rejection reasons.
const (
	MoveReasonOutOfBounds = "out_of_bounds"
	MoveReasonBlocked     = "blocked"
	MoveReasonNoPath      = "no_path"
)

// Interact results.
const (
	InteractOK             = "ok"
	InteractNoEffect       = "no_effect"
	InteractTargetNotFound = "target_not_found"
	InteractTooFar         = "too_far"
	InteractInvalidAction  = "invalid_action"
)

// JoinResult is returned to a freshly registered entity.
type JoinResult struct {
	EntityID string  `json:"entityId"`
	TX       int     `json:"tx"`
	TY       int     `json:"ty"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Zone     string  `json:"zone,omitempty"`
}

// Profile carries the optional identity fields at registration.
type Profile struct {
	Title      string
	Department string
	TeamID     string
	Status     string
}

// Join spawns a new entity at the room's spawn point, shifted to the
// nearest free tile when it is taken.
func (r *Room) Join(ctx context.Context, name string, kind Kind, profile Profile) (JoinResult, error) {
	out, err := r.submit(ctx, "join", func() any {
		return r.placeOccupant(NewEntityID(kind), name, kind, profile)
	})
	if err != nil {
		return JoinResult{}, err
	}
	if ferr, isErr := out.(error); isErr {
		return JoinResult{}, ferr
	}
	return out.(JoinResult), nil
}

// Rejoin restores a timed-out entity under its original id, so the agent
// id and session token a client holds stay valid across a respawn. A
// rejoin for an entity that is still present returns its live position.
func (r *Room) Rejoin(ctx context.Context, entityID, name string, kind Kind, profile Profile) (JoinResult, error) {
	out, err := r.submit(ctx, "rejoin", func() any {
		if e := r.entities[entityID]; e != nil {
			return JoinResult{EntityID: e.ID, TX: e.TX, TY: e.TY, X: e.X, Y: e.Y, Zone: e.CurrentZone}
		}
		return r.placeOccupant(entityID, name, kind, profile)
	})
	if err != nil {
		return JoinResult{}, err
	}
	if ferr, isErr := out.(error); isErr {
		return JoinResult{}, ferr
	}
	return out.(JoinResult), nil
}

// placeOccupant spawns a human or agent with the given id at the spawn
// point. Runs on the room goroutine.
func (r *Room) placeOccupant(id, name string, kind Kind, profile Profile) any {
	if r.Occupancy() >= r.opts.World.MaxOccupancy {
		return ErrRoomFull
	}
	want, ok := r.spawnTile()
	if !ok {
		return ErrRoomFull
	}
	tile, ok := r.freeTileNear(want)
	if !ok {
		return ErrRoomFull
	}

	e := &Entity{
		ID:         id,
		Kind:       kind,
		Name:       name,
		RoomID:     r.id,
		Facing:     FacingDown,
		Speed:      1.0,
		Status:     StatusOnline,
		Title:      profile.Title,
		Department: profile.Department,
		TeamID:     profile.TeamID,
	}
	if profile.Status != "" {
		e.Status = Status(profile.Status)
	}
	e.setTile(tile)
	r.occ.occupy(tile, e.ID)
	r.entities[e.ID] = e
	r.occupants.Add(1)

	r.emit(event.TypePresenceJoin, map[string]any{
		"entityId": e.ID,
		"name":     e.Name,
		"kind":     string(e.Kind),
		"tx":       e.TX,
		"ty":       e.TY,
	})
	t := r.zones.Update(e.ID, e.X, e.Y)
	e.CurrentZone = t.Current

	return JoinResult{EntityID: e.ID, TX: e.TX, TY: e.TY, X: e.X, Y: e.Y, Zone: e.CurrentZone}
}

// Leave removes an entity. Idempotent: a second leave for the same id is
// ErrNoSuchEntity, which callers may treat as success.
func (r *Room) Leave(ctx context.Context, entityID, reason string) error {
	out, err := r.submit(ctx, "leave", func() any {
		if !r.removeEntity(entityID, reason) {
			return ErrNoSuchEntity
		}
		return nil
	})
	if err != nil {
		return err
	}
	if ferr, isErr := out.(error); isErr {
		return ferr
	}
	return nil
}

// removeEntity runs on the room goroutine. It tears down every per-entity
// index and emits presence.leave.
func (r *Room) removeEntity(entityID, reason string) bool {
	e := r.entities[entityID]
	if e == nil {
		return false
	}
	delete(r.entities, entityID)
	r.occ.vacate(e.tile(), entityID)
	r.zones.Remove(entityID)
	r.skills.Forget(entityID)
	r.dropProximity(entityID)
	if e.Kind == KindHuman || e.Kind == KindAgent {
		r.occupants.Add(-1)
	}
	r.emit(event.TypePresenceLeave, map[string]any{
		"entityId": entityID,
		"name":     e.Name,
		"reason":   reason,
	})
	return true
}

// MoveResult is the outcome of a moveTo intent.
type MoveResult struct {
	Result     string `json:"result"`
	Reason     string `json:"reason,omitempty"`
	PathLength int    `json:"pathLength,omitempty"`
}

// MoveTo plans a path to the destination tile and starts walking it. A
// new plan replaces any in-flight one. Requesting the tile the entity
// already stands on with no plan in flight is a no_op.
func (r *Room) MoveTo(ctx context.Context, entityID string, dest grid.Pos) (MoveResult, error) {
	out, err := r.submit(ctx, "move_to", func() any {
		e := r.entities[entityID]
		if e == nil {
			return ErrNoSuchEntity
		}
		if !r.grid.InBounds(dest.TX, dest.TY) {
			return MoveResult{Result: MoveRejected, Reason: MoveReasonOutOfBounds}
		}
		if r.grid.IsBlocked(dest.TX, dest.TY) {
			return MoveResult{Result: MoveRejected, Reason: MoveReasonBlocked}
		}
		if e.tile() == dest {
			if len(e.path) == 0 {
				return MoveResult{Result: MoveNoOp}
			}
			e.path = nil
			e.moveBudget = 0
			return MoveResult{Result: MoveNoOp}
		}
		path, ok := r.grid.FindPath(e.tile(), dest, r.opts.World.PathMaxNodes)
		if !ok {
			return MoveResult{Result: MoveRejected, Reason: MoveReasonNoPath}
		}
		e.path = path
		return MoveResult{Result: MoveAccepted, PathLength: len(path)}
	})
	if err != nil {
		return MoveResult{}, err
	}
	if ferr, isErr := out.(error); isErr {
		return MoveResult{}, ferr
	}
	return out.(MoveResult), nil
}

// InteractOutcome is the result of an interact intent.
type InteractOutcome struct {
	Result  string            `json:"result"`
	Message string            `json:"message,omitempty"`
	State   map[string]string `json:"state,omitempty"`
}

// Interact runs an affordance on a nearby object or NPC through the Lua
// layer. Distance is measured center to center in world units.
func (r *Room) Interact(ctx context.Context, actorID, targetID, action string, params map[string]string) (InteractOutcome, error) {
	out, err := r.submit(ctx, "interact", func() any {
		actor := r.entities[actorID]
		if actor == nil {
			return ErrNoSuchEntity
		}
		target := r.entities[targetID]
		if target == nil || (target.Kind != KindObject && target.Kind != KindNpc) {
			return InteractOutcome{Result: InteractTargetNotFound}
		}
		if math.Hypot(target.X-actor.X, target.Y-actor.Y) > r.opts.World.InteractionRadius {
			return InteractOutcome{Result: InteractTooFar}
		}
		if !target.hasAffordance(action) {
			return InteractOutcome{Result: InteractInvalidAction}
		}

		res := r.runScript(actor, target, action, params)
		if !res.OK {
			return InteractOutcome{Result: InteractNoEffect, Message: res.Message}
		}

		if len(res.StateChanges) > 0 {
			if target.State == nil {
				target.State = make(map[string]string)
			}
			patch := make(map[string]any, len(res.StateChanges))
			for k, v := range res.StateChanges {
				target.State[k] = v
				patch[k] = v
			}
			evType := event.TypeObjectStateChanged
			if target.Kind == KindNpc {
				evType = event.TypeNpcStateChange
			}
			r.emit(evType, map[string]any{
				"entityId": target.ID,
				"actorId":  actor.ID,
				"action":   action,
				"patch":    patch,
			})
		}
		if target.Kind == KindObject && target.Meta["type"] == "facility" {
			r.emit(event.TypeFacilityInteracted, map[string]any{
				"facilityId": target.ID,
				"actorId":    actor.ID,
				"action":     action,
			})
		}
		return InteractOutcome{Result: InteractOK, Message: res.Message, State: copyState(target.State)}
	})
	if err != nil {
		return InteractOutcome{}, err
	}
	if ferr, isErr := out.(error); isErr {
		return InteractOutcome{}, ferr
	}
	return out.(InteractOutcome), nil
}

func (r *Room) runScript(actor, target *Entity, action string, params map[string]string) scripting.InteractResult {
	if r.opts.Scripts == nil {
		return scripting.InteractResult{}
	}
	targetType := target.Meta["type"]
	if target.Kind == KindNpc {
		targetType = "npc"
	}
	return r.opts.Scripts.RunInteract(scripting.InteractContext{
		TargetID:   target.ID,
		TargetType: targetType,
		TargetName: target.Name,
		Script:     target.Script,
		Action:     action,
		ActorID:    actor.ID,
		ActorName:  actor.Name,
		State:      copyState(target.State),
		Params:     params,
	})
}

func copyState(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Chat send rejection reasons.
const (
	ChatReasonMuted          = "muted"
	ChatReasonBlocked        = "blocked"
	ChatReasonBadTarget      = "target_not_found"
	ChatReasonNotDeliverable = "not_deliverable"
)

// ChatResult is the outcome of a chat send.
type ChatResult struct {
	Message *chat.Message
	Reason  string
}

// ChatSend validates sender standing and scoping, stores the message,
// journals it, and fans it out to the realtime transport.
func (r *Room) ChatSend(ctx context.Context, fromID, channel, text string, opts chat.Opts) (ChatResult, error) {
	out, err := r.submit(ctx, "chat_send", func() any {
		from := r.entities[fromID]
		if from == nil {
			return ErrNoSuchEntity
		}
		if r.opts.Safety != nil && r.opts.Safety.IsMuted(r.id, fromID) {
			return ChatResult{Reason: ChatReasonMuted}
		}
		if channel == chat.ChannelDM {
			target := r.entities[opts.TargetEntityID]
			if target == nil {
				return ChatResult{Reason: ChatReasonBadTarget}
			}
			if r.opts.Safety != nil && r.opts.Safety.IsBlockedEitherWay(fromID, opts.TargetEntityID) {
				return ChatResult{Reason: ChatReasonBlocked}
			}
		}
		msg := r.chat.Send(channel, fromID, from.Name, text, opts)
		if msg == nil {
			return ChatResult{Reason: ChatReasonNotDeliverable}
		}

		r.emit(event.TypeChatMessage, map[string]any{
			"messageId":    msg.ID,
			"channel":      msg.Channel,
			"fromEntityId": msg.FromEntityID,
			"fromName":     msg.FromName,
			"message":      msg.Text,
			"emotes":       msg.Emotes,
		})
		if r.opts.Metrics != nil {
			r.opts.Metrics.ChatMessages.Inc()
		}
		if r.opts.Publisher != nil {
			r.opts.Publisher.PublishChat(r.id, *msg)
		}
		return ChatResult{Message: msg}
	})
	if err != nil {
		return ChatResult{}, err
	}
	if ferr, isErr := out.(error); isErr {
		return ChatResult{}, ferr
	}
	return out.(ChatResult), nil
}

// ChatObserve reads the chat ring as seen by the viewer.
func (r *Room) ChatObserve(ctx context.Context, viewerID, channel string, windowSec int) ([]chat.Message, error) {
	out, err := r.submit(ctx, "chat_observe", func() any {
		if r.entities[viewerID] == nil {
			return ErrNoSuchEntity
		}
		return r.chat.ReadFor(viewerID, channel, windowSec)
	})
	if err != nil {
		return nil, err
	}
	if ferr, isErr := out.(error); isErr {
		return nil, ferr
	}
	msgs, _ := out.([]chat.Message)
	return msgs, nil
}

// Observation is the agent-facing world snapshot.
type Observation struct {
	Self        EntityView           `json:"self"`
	Effects     []skill.ActiveEffect `json:"effects,omitempty"`
	Casting     bool                 `json:"casting"`
	Entities    []EntityView         `json:"entities"`
	CurrentZone string               `json:"currentZone,omitempty"`
	ZonePops    map[string]int       `json:"zonePopulations,omitempty"`
	MapWidth    int                  `json:"mapWidth"`
	MapHeight   int                  `json:"mapHeight"`
	Cursor      string               `json:"cursor"`
}

// Observe returns the observer's own state plus every entity within
// radius world units (the proximity radius when radius <= 0), sorted by
// distance then id.
func (r *Room) Observe(ctx context.Context, entityID string, radius float64) (Observation, error) {
	out, err := r.submit(ctx, "observe", func() any {
		self := r.entities[entityID]
		if self == nil {
			return ErrNoSuchEntity
		}
		obs := Observation{
			Self:        viewOf(self),
			Effects:     r.skills.Effects(entityID),
			Casting:     r.skills.Pending(entityID) != nil,
			CurrentZone: self.CurrentZone,
			ZonePops:    r.zones.Populations(),
			MapWidth:    r.grid.Width,
			MapHeight:   r.grid.Height,
			Cursor:      r.journal.Tail(),
		}

		type scored struct {
			view EntityView
			dist float64
		}
		var near []scored
		if radius <= 0 {
			radius = r.opts.World.ProximityRadius
		}
		for _, e := range r.entities {
			if e.ID == entityID {
				continue
			}
			d := math.Hypot(e.X-self.X, e.Y-self.Y)
			if d > radius {
				continue
			}
			near = append(near, scored{view: viewOf(e), dist: d})
		}
		sort.Slice(near, func(i, j int) bool {
			if near[i].dist != near[j].dist {
				return near[i].dist < near[j].dist
			}
			return near[i].view.ID < near[j].view.ID
		})
		obs.Entities = make([]EntityView, len(near))
		for i, s := range near {
			obs.Entities[i] = s.view
		}
		return obs
	})
	if err != nil {
		return Observation{}, err
	}
	if ferr, isErr := out.(error); isErr {
		return Observation{}, ferr
	}
	return out.(Observation), nil
}

// ProfileFields are the mutable identity fields. Nil pointers leave the
// field untouched.
type ProfileFields struct {
	Name       *string
	Title      *string
	Department *string
	TeamID     *string
	Status     *string
}

// ProfileUpdate applies the non-nil fields and journals the change with
// only the fields that actually changed.
func (r *Room) ProfileUpdate(ctx context.Context, entityID string, fields ProfileFields) (EntityView, error) {
	out, err := r.submit(ctx, "profile_update", func() any {
		e := r.entities[entityID]
		if e == nil {
			return ErrNoSuchEntity
		}
		changed := map[string]any{}
		apply := func(key string, dst *string, src *string) {
			if src != nil && *src != *dst {
				*dst = *src
				changed[key] = *src
			}
		}
		apply("name", &e.Name, fields.Name)
		apply("title", &e.Title, fields.Title)
		apply("department", &e.Department, fields.Department)
		apply("teamId", &e.TeamID, fields.TeamID)
		if fields.Status != nil && Status(*fields.Status) != e.Status {
			e.Status = Status(*fields.Status)
			changed["status"] = *fields.Status
		}
		if len(changed) > 0 {
			changed["entityId"] = entityID
			r.emit(event.TypeProfileUpdated, changed)
		}
		return viewOf(e)
	})
	if err != nil {
		return EntityView{}, err
	}
	if ferr, isErr := out.(error); isErr {
		return EntityView{}, ferr
	}
	return out.(EntityView), nil
}

// Emote broadcasts a whitelisted emote as a journal event.
func (r *Room) Emote(ctx context.Context, entityID, emote string) error {
	out, err := r.submit(ctx, "emote", func() any {
		e := r.entities[entityID]
		if e == nil {
			return ErrNoSuchEntity
		}
		if !chat.ValidEmote(emote) {
			return errors.New("unknown emote")
		}
		r.emit(event.TypeEmoteTriggered, map[string]any{
			"entityId": entityID,
			"name":     e.Name,
			"emote":    emote,
		})
		return nil
	})
	if err != nil {
		return err
	}
	if ferr, isErr := out.(error); isErr {
		return ferr
	}
	return nil
}

// SkillList returns the room's skill catalog. The table is immutable, so
// this skips the intent queue.
func (r *Room) SkillList() []*data.SkillDef {
	return r.skills.List()
}

// SkillInstallResult reports an install outcome.
type SkillInstallResult struct {
	AlreadyInstalled bool     `json:"alreadyInstalled"`
	Installed        []string `json:"installed"`
}

// SkillInstall installs a skill for an entity. Unknown skill ids are
// ErrNoSuchEntity-style errors, repeats are flagged no-ops.
func (r *Room) SkillInstall(ctx context.Context, entityID, skillID string) (SkillInstallResult, error) {
	out, err := r.submit(ctx, "skill_install", func() any {
		if r.entities[entityID] == nil {
			return ErrNoSuchEntity
		}
		already, ok := r.skills.Install(entityID, skillID)
		if !ok {
			return errors.New("unknown skill")
		}
		return SkillInstallResult{AlreadyInstalled: already, Installed: r.skills.Installed(entityID)}
	})
	if err != nil {
		return SkillInstallResult{}, err
	}
	if ferr, isErr := out.(error); isErr {
		return SkillInstallResult{}, ferr
	}
	return out.(SkillInstallResult), nil
}

// SkillInvoke starts a cast. The target may be empty for self-casts;
// range checks measure caster-to-target distance in world units.
func (r *Room) SkillInvoke(ctx context.Context, entityID, txID, skillID, actionID, targetID string) (skill.InvokeResult, error) {
	out, err := r.submit(ctx, "skill_invoke", func() any {
		e := r.entities[entityID]
		if e == nil {
			return ErrNoSuchEntity
		}
		dist := 0.0
		if targetID != "" && targetID != entityID {
			target := r.entities[targetID]
			if target == nil {
				return ErrNoSuchEntity
			}
			dist = math.Hypot(target.X-e.X, target.Y-e.Y)
		}
		return r.skills.Invoke(entityID, txID, skillID, actionID, targetID, dist, e.X, e.Y)
	})
	if err != nil {
		return skill.InvokeResult{}, err
	}
	if ferr, isErr := out.(error); isErr {
		return skill.InvokeResult{}, ferr
	}
	return out.(skill.InvokeResult), nil
}

// SkillCancel aborts the entity's in-flight cast, if any.
func (r *Room) SkillCancel(ctx context.Context, entityID string) (bool, error) {
	out, err := r.submit(ctx, "skill_cancel", func() any {
		if r.entities[entityID] == nil {
			return ErrNoSuchEntity
		}
		return r.skills.Cancel(entityID)
	})
	if err != nil {
		return false, err
	}
	if ferr, isErr := out.(error); isErr {
		return false, ferr
	}
	return out.(bool), nil
}

// MeetingInfo describes one meeting room and its participants.
type MeetingInfo struct {
	ID           string   `json:"id"`
	ZonePop      int      `json:"zonePopulation"`
	Participants []string `json:"participants"`
}

// MeetingList returns all meeting-flagged zones with their participants.
func (r *Room) MeetingList(ctx context.Context) ([]MeetingInfo, error) {
	out, err := r.submit(ctx, "meeting_list", func() any {
		var infos []MeetingInfo
		for _, z := range r.opts.Pack.Manifest.Zones {
			if !z.Meeting {
				continue
			}
			info := MeetingInfo{ID: z.ID, ZonePop: r.zones.Population(z.ID)}
			for _, e := range r.entities {
				if e.meetingID == z.ID {
					info.Participants = append(info.Participants, e.ID)
				}
			}
			sort.Strings(info.Participants)
			infos = append(infos, info)
		}
		return infos
	})
	if err != nil {
		return nil, err
	}
	infos, _ := out.([]MeetingInfo)
	return infos, nil
}

// MeetingJoin adds the entity to a meeting-flagged zone's participant set.
// Joining a second meeting implicitly leaves the first.
func (r *Room) MeetingJoin(ctx context.Context, entityID, meetingID string) error {
	out, err := r.submit(ctx, "meeting_join", func() any {
		e := r.entities[entityID]
		if e == nil {
			return ErrNoSuchEntity
		}
		found := false
		for _, z := range r.opts.Pack.Manifest.Zones {
			if z.ID == meetingID && z.Meeting {
				found = true
				break
			}
		}
		if !found {
			return errors.New("unknown meeting")
		}
		e.meetingID = meetingID
		return nil
	})
	if err != nil {
		return err
	}
	if ferr, isErr := out.(error); isErr {
		return ferr
	}
	return nil
}

// MeetingLeave clears the entity's meeting membership. Idempotent.
func (r *Room) MeetingLeave(ctx context.Context, entityID string) error {
	out, err := r.submit(ctx, "meeting_leave", func() any {
		e := r.entities[entityID]
		if e == nil {
			return ErrNoSuchEntity
		}
		e.meetingID = ""
		return nil
	})
	if err != nil {
		return err
	}
	if ferr, isErr := out.(error); isErr {
		return ferr
	}
	return nil
}

// Snapshot returns a full view of every entity, sorted by id. The
// realtime transport sends it on connect before streaming diffs.
func (r *Room) Snapshot(ctx context.Context) ([]EntityView, error) {
	out, err := r.submit(ctx, "snapshot", func() any {
		views := make([]EntityView, 0, len(r.entities))
		for _, e := range r.entities {
			views = append(views, viewOf(e))
		}
		sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })
		return views
	})
	if err != nil {
		return nil, err
	}
	views, _ := out.([]EntityView)
	return views, nil
}
