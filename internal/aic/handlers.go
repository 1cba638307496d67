package aic

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tilemud/server/internal/chat"
	"github.com/tilemud/server/internal/event"
	"github.com/tilemud/server/internal/grid"
	"github.com/tilemud/server/internal/ratelimit"
	"github.com/tilemud/server/internal/room"
	"github.com/tilemud/server/internal/session"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if _, ok := readBody(w, r, &req); !ok {
		return
	}
	if err := req.validate(); err != nil {
		writeErr(w, errOf(CodeBadRequest, err.Error()))
		return
	}

	rm, err := s.rooms.Resolve(req.RoomID)
	if err != nil {
		s.log.Error("resolve room failed", zap.String("room", req.RoomID), zap.Error(err))
		writeErr(w, errOf(CodeInternal, "room could not be started"))
		return
	}

	kind := room.KindAgent
	if req.Kind == "human" {
		kind = room.KindHuman
	}
	ctx, cancel := deadline(r)
	defer cancel()
	join, err := rm.Join(ctx, req.Name, kind, room.Profile{
		Title:      req.Title,
		Department: req.Department,
		TeamID:     req.TeamID,
	})
	if err != nil {
		writeErr(w, fromRoomErr(err))
		return
	}

	// The entity id doubles as the agent id; the token binds it to the room.
	token := session.NewToken()
	s.sessions.Put(&session.Session{
		AgentID:         join.EntityID,
		RoomID:          rm.ID(),
		EntityID:        join.EntityID,
		Name:            req.Name,
		Token:           token,
		LastHeartbeatMs: time.Now().UnixMilli(),
	})

	writeOK(w, map[string]any{
		"agentId":      join.EntityID,
		"roomId":       rm.ID(),
		"entityId":     join.EntityID,
		"sessionToken": token,
		"spawn":        map[string]any{"tx": join.TX, "ty": join.TY, "x": join.X, "y": join.Y},
		"zone":         join.Zone,
	})
}

func (s *Server) handleUnregister(w http.ResponseWriter, r *http.Request) {
	var req UnregisterRequest
	if _, ok := readBody(w, r, &req); !ok {
		return
	}
	if err := req.validate(); err != nil {
		writeErr(w, errOf(CodeBadRequest, err.Error()))
		return
	}
	if !s.authenticate(w, r, req.AgentID, req.RoomID) {
		return
	}

	rm, ok := s.rooms.Get(req.RoomID)
	if !ok {
		writeErr(w, errOf(CodeNotFound, "unknown channel"))
		return
	}
	sess, _ := s.sessions.Get(req.AgentID)

	ctx, cancel := deadline(r)
	defer cancel()
	if err := rm.Leave(ctx, sess.EntityID, "unregister"); err != nil && fromRoomErr(err).Code != CodeAgentNotInRoom {
		writeErr(w, fromRoomErr(err))
		return
	}
	s.sessions.Remove(req.AgentID)
	writeOK(w, map[string]any{"left": true})
}

func (s *Server) handleReconnect(w http.ResponseWriter, r *http.Request) {
	var req ReconnectRequest
	if _, ok := readBody(w, r, &req); !ok {
		return
	}
	if err := req.validate(); err != nil {
		writeErr(w, errOf(CodeBadRequest, err.Error()))
		return
	}

	sess, ok := s.sessions.Get(req.AgentID)
	if !ok {
		writeErr(w, errOf(CodeNotFound, "no session for agent"))
		return
	}
	if sess.Token != req.SessionToken {
		writeErr(w, errOf(CodeUnauthorized, "token does not match session"))
		return
	}
	rm, ok := s.rooms.Get(sess.RoomID)
	if !ok {
		writeErr(w, errOf(CodeNotFound, "session's channel is gone"))
		return
	}

	ctx, cancel := deadline(r)
	defer cancel()
	respawned := false
	obs, err := rm.Observe(ctx, sess.EntityID, 0)
	if err != nil {
		if fromRoomErr(err).Code != CodeAgentNotInRoom {
			writeErr(w, fromRoomErr(err))
			return
		}
		// The entity timed out of the room; respawn it under its original
		// id so the agent id and token the client holds stay valid.
		join, jerr := rm.Rejoin(ctx, sess.EntityID, sess.Name, room.KindAgent, room.Profile{})
		if jerr != nil {
			writeErr(w, fromRoomErr(jerr))
			return
		}
		respawned = true
		obs = room.Observation{Self: room.EntityView{ID: join.EntityID, TX: join.TX, TY: join.TY, X: join.X, Y: join.Y}}
	}
	sess.LastHeartbeatMs = time.Now().UnixMilli()
	s.sessions.Put(&sess)

	writeOK(w, map[string]any{
		"agentId":   sess.AgentID,
		"roomId":    sess.RoomID,
		"entityId":  sess.EntityID,
		"respawned": respawned,
		"tx":        obs.Self.TX,
		"ty":        obs.Self.TY,
	})
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req HeartbeatRequest
	if _, ok := readBody(w, r, &req); !ok {
		return
	}
	if err := req.validate(); err != nil {
		writeErr(w, errOf(CodeBadRequest, err.Error()))
		return
	}
	// Heartbeats authenticate (which touches the session) but are never
	// rate-limited.
	if !s.authenticate(w, r, req.AgentID, req.RoomID) {
		return
	}
	writeOK(w, map[string]any{"tsMs": time.Now().UnixMilli()})
}

// roomFor is the common tail of every authenticated room endpoint.
func (s *Server) roomFor(w http.ResponseWriter, roomID string) (*room.Room, bool) {
	rm, ok := s.rooms.Get(roomID)
	if !ok {
		writeErr(w, errOf(CodeNotFound, "unknown channel"))
		return nil, false
	}
	return rm, true
}

func (s *Server) handleObserve(w http.ResponseWriter, r *http.Request) {
	var req ObserveRequest
	if _, ok := readBody(w, r, &req); !ok {
		return
	}
	if err := req.validate(); err != nil {
		writeErr(w, errOf(CodeBadRequest, err.Error()))
		return
	}
	if !s.authenticate(w, r, req.AgentID, req.RoomID) {
		return
	}
	if !s.allow(w, req.AgentID, ratelimit.ClassObservation) {
		return
	}
	rm, ok := s.roomFor(w, req.RoomID)
	if !ok {
		return
	}
	sess, _ := s.sessions.Get(req.AgentID)

	ctx, cancel := deadline(r)
	defer cancel()
	obs, err := rm.Observe(ctx, sess.EntityID, req.Radius)
	if err != nil {
		writeErr(w, fromRoomErr(err))
		return
	}
	if req.Detail == "lite" {
		for i := range obs.Entities {
			obs.Entities[i] = liteView(obs.Entities[i])
		}
	}
	resp := observeResponse{Observation: obs}
	if req.IncludeGrid {
		radius := req.Radius
		if radius <= 0 {
			radius = s.cfg.World.ProximityRadius
		}
		resp.Grid = collisionWindow(rm.Grid(), obs.Self.TX, obs.Self.TY, int(radius)/grid.TileSize)
	}
	if req.IncludeSelf != nil && !*req.IncludeSelf {
		resp.Self = room.EntityView{}
	}
	writeOK(w, resp)
}

// observeResponse is the observe payload: the world snapshot, optionally
// with a collision window around the observer.
type observeResponse struct {
	room.Observation
	Grid *gridWindow `json:"grid,omitempty"`
}

// gridWindow is a rectangular slice of the collision grid. Collision rows
// run top to bottom from originTy; 1 means blocked.
type gridWindow struct {
	OriginTX  int     `json:"originTx"`
	OriginTY  int     `json:"originTy"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	Collision [][]int `json:"collision"`
}

// liteView trims a neighbor view down to its positional core.
func liteView(v room.EntityView) room.EntityView {
	return room.EntityView{
		ID:     v.ID,
		Kind:   v.Kind,
		Name:   v.Name,
		X:      v.X,
		Y:      v.Y,
		TX:     v.TX,
		TY:     v.TY,
		Facing: v.Facing,
	}
}

// collisionWindow extracts the tiles within halfTiles of the center,
// clamped to the map edges.
func collisionWindow(g *grid.Grid, centerTX, centerTY, halfTiles int) *gridWindow {
	if halfTiles < 1 {
		halfTiles = 1
	}
	x0, y0 := centerTX-halfTiles, centerTY-halfTiles
	x1, y1 := centerTX+halfTiles, centerTY+halfTiles
	if x0 < 0 {
		x0 = 0
	}
	if y0 < 0 {
		y0 = 0
	}
	if x1 >= g.Width {
		x1 = g.Width - 1
	}
	if y1 >= g.Height {
		y1 = g.Height - 1
	}
	win := &gridWindow{OriginTX: x0, OriginTY: y0, Width: x1 - x0 + 1, Height: y1 - y0 + 1}
	win.Collision = make([][]int, 0, win.Height)
	for ty := y0; ty <= y1; ty++ {
		row := make([]int, 0, win.Width)
		for tx := x0; tx <= x1; tx++ {
			blocked := 0
			if g.IsBlocked(tx, ty) {
				blocked = 1
			}
			row = append(row, blocked)
		}
		win.Collision = append(win.Collision, row)
	}
	return win
}

func (s *Server) handleMoveTo(w http.ResponseWriter, r *http.Request) {
	var req MoveToRequest
	body, ok := readBody(w, r, &req)
	if !ok {
		return
	}
	if err := req.validate(); err != nil {
		writeErr(w, errOf(CodeBadRequest, err.Error()))
		return
	}
	if !s.authenticate(w, r, req.AgentID, req.RoomID) {
		return
	}
	if !s.allow(w, req.AgentID, ratelimit.ClassAction) {
		return
	}
	rm, ok := s.roomFor(w, req.RoomID)
	if !ok {
		return
	}
	sess, _ := s.sessions.Get(req.AgentID)

	ctx, cancel := deadline(r)
	defer cancel()
	s.transactional(w, req.AgentID, req.TxID, body, func() (any, *apiError) {
		res, err := rm.MoveTo(ctx, sess.EntityID, grid.Pos{TX: req.Dest.TX, TY: req.Dest.TY})
		if err != nil {
			return nil, fromRoomErr(err)
		}
		return res, nil
	})
}

func (s *Server) handleInteract(w http.ResponseWriter, r *http.Request) {
	var req InteractRequest
	body, ok := readBody(w, r, &req)
	if !ok {
		return
	}
	if err := req.validate(); err != nil {
		writeErr(w, errOf(CodeBadRequest, err.Error()))
		return
	}
	if !s.authenticate(w, r, req.AgentID, req.RoomID) {
		return
	}
	if !s.allow(w, req.AgentID, ratelimit.ClassAction) {
		return
	}
	rm, ok := s.roomFor(w, req.RoomID)
	if !ok {
		return
	}
	sess, _ := s.sessions.Get(req.AgentID)

	ctx, cancel := deadline(r)
	defer cancel()
	s.transactional(w, req.AgentID, req.TxID, body, func() (any, *apiError) {
		res, err := rm.Interact(ctx, sess.EntityID, req.TargetID, req.Action, req.Params)
		if err != nil {
			return nil, fromRoomErr(err)
		}
		return res, nil
	})
}

func (s *Server) handleChatSend(w http.ResponseWriter, r *http.Request) {
	var req ChatSendRequest
	body, ok := readBody(w, r, &req)
	if !ok {
		return
	}
	if err := req.validate(); err != nil {
		writeErr(w, errOf(CodeBadRequest, err.Error()))
		return
	}
	if !s.authenticate(w, r, req.AgentID, req.RoomID) {
		return
	}
	if !s.allow(w, req.AgentID, ratelimit.ClassChat) {
		return
	}
	rm, ok := s.roomFor(w, req.RoomID)
	if !ok {
		return
	}
	sess, _ := s.sessions.Get(req.AgentID)

	ctx, cancel := deadline(r)
	defer cancel()
	s.transactional(w, req.AgentID, req.TxID, body, func() (any, *apiError) {
		res, err := rm.ChatSend(ctx, sess.EntityID, req.Channel, req.Message, chat.Opts{
			TargetEntityID: req.TargetEntityID,
			TeamID:         req.TeamID,
			MeetingRoomID:  req.MeetingRoomID,
		})
		if err != nil {
			return nil, fromRoomErr(err)
		}
		if res.Reason != "" {
			return map[string]any{"delivered": false, "reason": res.Reason}, nil
		}
		return map[string]any{
			"delivered": true,
			"messageId": res.Message.ID,
			"tsMs":      res.Message.TsMs,
			"emotes":    res.Message.Emotes,
		}, nil
	})
}

func (s *Server) handleChatObserve(w http.ResponseWriter, r *http.Request) {
	var req ChatObserveRequest
	if _, ok := readBody(w, r, &req); !ok {
		return
	}
	if err := req.validate(); err != nil {
		writeErr(w, errOf(CodeBadRequest, err.Error()))
		return
	}
	if !s.authenticate(w, r, req.AgentID, req.RoomID) {
		return
	}
	if !s.allow(w, req.AgentID, ratelimit.ClassObservation) {
		return
	}
	rm, ok := s.roomFor(w, req.RoomID)
	if !ok {
		return
	}
	sess, _ := s.sessions.Get(req.AgentID)

	ctx, cancel := deadline(r)
	defer cancel()
	msgs, err := rm.ChatObserve(ctx, sess.EntityID, req.Channel, req.WindowSec)
	if err != nil {
		writeErr(w, fromRoomErr(err))
		return
	}
	if msgs == nil {
		msgs = []chat.Message{}
	}
	writeOK(w, map[string]any{"messages": msgs})
}

func (s *Server) handlePollEvents(w http.ResponseWriter, r *http.Request) {
	var req PollEventsRequest
	if _, ok := readBody(w, r, &req); !ok {
		return
	}
	if err := req.validate(); err != nil {
		writeErr(w, errOf(CodeBadRequest, err.Error()))
		return
	}
	if !s.authenticate(w, r, req.AgentID, req.RoomID) {
		return
	}
	if !s.allow(w, req.AgentID, ratelimit.ClassEvents) {
		return
	}
	rm, ok := s.roomFor(w, req.RoomID)
	if !ok {
		return
	}
	journal := rm.Journal()

	// An empty cursor reads from the current tail, so the long-poll waits
	// on the tail cursor instead.
	cursor := req.SinceCursor
	if cursor == "" {
		cursor = journal.Tail()
	}
	events, next, expired := journal.Since(cursor, req.Limit)
	if len(events) == 0 && !expired && req.WaitMs > 0 {
		wait := time.Duration(req.WaitMs) * time.Millisecond
		if max := s.cfg.Server.PollWaitMax; max > 0 && wait > max {
			wait = max
		}
		ctx, cancel := context.WithTimeout(r.Context(), wait)
		journal.Wait(ctx, cursor)
		cancel()
		events, next, expired = journal.Since(cursor, req.Limit)
	}
	if events == nil {
		events = []event.Envelope{}
	}
	writeOK(w, map[string]any{
		"events":        events,
		"nextCursor":    next,
		"cursorExpired": expired,
	})
}

func (s *Server) handleProfileUpdate(w http.ResponseWriter, r *http.Request) {
	var req ProfileUpdateRequest
	if _, ok := readBody(w, r, &req); !ok {
		return
	}
	if err := req.validate(); err != nil {
		writeErr(w, errOf(CodeBadRequest, err.Error()))
		return
	}
	if !s.authenticate(w, r, req.AgentID, req.RoomID) {
		return
	}
	if !s.allow(w, req.AgentID, ratelimit.ClassAction) {
		return
	}
	rm, ok := s.roomFor(w, req.RoomID)
	if !ok {
		return
	}
	sess, _ := s.sessions.Get(req.AgentID)

	ctx, cancel := deadline(r)
	defer cancel()
	view, err := rm.ProfileUpdate(ctx, sess.EntityID, room.ProfileFields{
		Name:       req.Name,
		Title:      req.Title,
		Department: req.Department,
		TeamID:     req.TeamID,
		Status:     req.Status,
	})
	if err != nil {
		writeErr(w, fromRoomErr(err))
		return
	}
	writeOK(w, view)
}

func (s *Server) handleEmote(w http.ResponseWriter, r *http.Request) {
	var req EmoteRequest
	if _, ok := readBody(w, r, &req); !ok {
		return
	}
	if err := req.validate(); err != nil {
		writeErr(w, errOf(CodeBadRequest, err.Error()))
		return
	}
	if !s.authenticate(w, r, req.AgentID, req.RoomID) {
		return
	}
	if !s.allow(w, req.AgentID, ratelimit.ClassChat) {
		return
	}
	rm, ok := s.roomFor(w, req.RoomID)
	if !ok {
		return
	}
	sess, _ := s.sessions.Get(req.AgentID)

	ctx, cancel := deadline(r)
	defer cancel()
	if err := rm.Emote(ctx, sess.EntityID, req.Emote); err != nil {
		writeErr(w, fromRoomErr(err))
		return
	}
	writeOK(w, map[string]any{"triggered": true})
}

func (s *Server) handleSkillList(w http.ResponseWriter, r *http.Request) {
	var req SkillListRequest
	if _, ok := readBody(w, r, &req); !ok {
		return
	}
	if err := req.validate(); err != nil {
		writeErr(w, errOf(CodeBadRequest, err.Error()))
		return
	}
	if !s.authenticate(w, r, req.AgentID, req.RoomID) {
		return
	}
	if !s.allow(w, req.AgentID, ratelimit.ClassObservation) {
		return
	}
	rm, ok := s.roomFor(w, req.RoomID)
	if !ok {
		return
	}
	writeOK(w, map[string]any{"skills": rm.SkillList()})
}

func (s *Server) handleSkillInstall(w http.ResponseWriter, r *http.Request) {
	var req SkillInstallRequest
	if _, ok := readBody(w, r, &req); !ok {
		return
	}
	if err := req.validate(); err != nil {
		writeErr(w, errOf(CodeBadRequest, err.Error()))
		return
	}
	if !s.authenticate(w, r, req.AgentID, req.RoomID) {
		return
	}
	if !s.allow(w, req.AgentID, ratelimit.ClassAction) {
		return
	}
	rm, ok := s.roomFor(w, req.RoomID)
	if !ok {
		return
	}
	sess, _ := s.sessions.Get(req.AgentID)

	ctx, cancel := deadline(r)
	defer cancel()
	res, err := rm.SkillInstall(ctx, sess.EntityID, req.SkillID)
	if err != nil {
		if fromRoomErr(err).Code == CodeAgentNotInRoom {
			writeErr(w, fromRoomErr(err))
			return
		}
		writeErr(w, errOf(CodeNotFound, "unknown skill "+req.SkillID))
		return
	}
	writeOK(w, res)
}

func (s *Server) handleSkillInvoke(w http.ResponseWriter, r *http.Request) {
	var req SkillInvokeRequest
	body, ok := readBody(w, r, &req)
	if !ok {
		return
	}
	if err := req.validate(); err != nil {
		writeErr(w, errOf(CodeBadRequest, err.Error()))
		return
	}
	if !s.authenticate(w, r, req.AgentID, req.RoomID) {
		return
	}
	if !s.allow(w, req.AgentID, ratelimit.ClassAction) {
		return
	}
	rm, ok := s.roomFor(w, req.RoomID)
	if !ok {
		return
	}
	sess, _ := s.sessions.Get(req.AgentID)

	ctx, cancel := deadline(r)
	defer cancel()
	s.transactional(w, req.AgentID, req.TxID, body, func() (any, *apiError) {
		res, err := rm.SkillInvoke(ctx, sess.EntityID, req.TxID, req.SkillID, req.ActionID, req.TargetID)
		if err != nil {
			return nil, fromRoomErr(err)
		}
		return res, nil
	})
}

func (s *Server) handleSkillCancel(w http.ResponseWriter, r *http.Request) {
	var req SkillCancelRequest
	if _, ok := readBody(w, r, &req); !ok {
		return
	}
	if err := req.validate(); err != nil {
		writeErr(w, errOf(CodeBadRequest, err.Error()))
		return
	}
	if !s.authenticate(w, r, req.AgentID, req.RoomID) {
		return
	}
	if !s.allow(w, req.AgentID, ratelimit.ClassAction) {
		return
	}
	rm, ok := s.roomFor(w, req.RoomID)
	if !ok {
		return
	}
	sess, _ := s.sessions.Get(req.AgentID)

	ctx, cancel := deadline(r)
	defer cancel()
	cancelled, err := rm.SkillCancel(ctx, sess.EntityID)
	if err != nil {
		writeErr(w, fromRoomErr(err))
		return
	}
	writeOK(w, map[string]any{"cancelled": cancelled})
}

func (s *Server) handleMeetingList(w http.ResponseWriter, r *http.Request) {
	var req MeetingListRequest
	if _, ok := readBody(w, r, &req); !ok {
		return
	}
	if err := req.validate(); err != nil {
		writeErr(w, errOf(CodeBadRequest, err.Error()))
		return
	}
	if !s.authenticate(w, r, req.AgentID, req.RoomID) {
		return
	}
	if !s.allow(w, req.AgentID, ratelimit.ClassObservation) {
		return
	}
	rm, ok := s.roomFor(w, req.RoomID)
	if !ok {
		return
	}

	ctx, cancel := deadline(r)
	defer cancel()
	meetings, err := rm.MeetingList(ctx)
	if err != nil {
		writeErr(w, fromRoomErr(err))
		return
	}
	if meetings == nil {
		meetings = []room.MeetingInfo{}
	}
	writeOK(w, map[string]any{"meetings": meetings})
}

func (s *Server) handleMeetingJoin(w http.ResponseWriter, r *http.Request) {
	var req MeetingJoinRequest
	if _, ok := readBody(w, r, &req); !ok {
		return
	}
	if err := req.validate(); err != nil {
		writeErr(w, errOf(CodeBadRequest, err.Error()))
		return
	}
	if !s.authenticate(w, r, req.AgentID, req.RoomID) {
		return
	}
	if !s.allow(w, req.AgentID, ratelimit.ClassAction) {
		return
	}
	rm, ok := s.roomFor(w, req.RoomID)
	if !ok {
		return
	}
	sess, _ := s.sessions.Get(req.AgentID)

	ctx, cancel := deadline(r)
	defer cancel()
	if err := rm.MeetingJoin(ctx, sess.EntityID, req.MeetingID); err != nil {
		if fromRoomErr(err).Code == CodeAgentNotInRoom {
			writeErr(w, fromRoomErr(err))
			return
		}
		writeErr(w, errOf(CodeNotFound, "unknown meeting "+req.MeetingID))
		return
	}
	writeOK(w, map[string]any{"joined": req.MeetingID})
}

func (s *Server) handleMeetingLeave(w http.ResponseWriter, r *http.Request) {
	var req MeetingLeaveRequest
	if _, ok := readBody(w, r, &req); !ok {
		return
	}
	if err := req.validate(); err != nil {
		writeErr(w, errOf(CodeBadRequest, err.Error()))
		return
	}
	if !s.authenticate(w, r, req.AgentID, req.RoomID) {
		return
	}
	if !s.allow(w, req.AgentID, ratelimit.ClassAction) {
		return
	}
	rm, ok := s.roomFor(w, req.RoomID)
	if !ok {
		return
	}
	sess, _ := s.sessions.Get(req.AgentID)

	ctx, cancel := deadline(r)
	defer cancel()
	if err := rm.MeetingLeave(ctx, sess.EntityID); err != nil {
		writeErr(w, fromRoomErr(err))
		return
	}
	writeOK(w, map[string]any{"left": true})
}

func (s *Server) handleSafetyReport(w http.ResponseWriter, r *http.Request) {
	var req SafetyReportRequest
	if _, ok := readBody(w, r, &req); !ok {
		return
	}
	if err := req.validate(); err != nil {
		writeErr(w, errOf(CodeBadRequest, err.Error()))
		return
	}
	if !s.authenticate(w, r, req.AgentID, req.RoomID) {
		return
	}
	if !s.allow(w, req.AgentID, ratelimit.ClassAction) {
		return
	}
	sess, _ := s.sessions.Get(req.AgentID)
	rep := s.safety.Report(sess.EntityID, req.TargetID, req.Reason)
	writeOK(w, rep)
}

func (s *Server) handleSafetyBlock(w http.ResponseWriter, r *http.Request) {
	var req SafetyBlockRequest
	if _, ok := readBody(w, r, &req); !ok {
		return
	}
	if err := req.validate(); err != nil {
		writeErr(w, errOf(CodeBadRequest, err.Error()))
		return
	}
	if !s.authenticate(w, r, req.AgentID, req.RoomID) {
		return
	}
	if !s.allow(w, req.AgentID, ratelimit.ClassAction) {
		return
	}
	sess, _ := s.sessions.Get(req.AgentID)
	if req.Unblock {
		s.safety.Unblock(sess.EntityID, req.TargetID)
	} else {
		s.safety.Block(sess.EntityID, req.TargetID)
	}
	writeOK(w, map[string]any{"blocked": !req.Unblock, "targetId": req.TargetID})
}

func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	channels := s.rooms.List()
	if channels == nil {
		channels = []room.ChannelInfo{}
	}
	writeOK(w, map[string]any{"channels": channels})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeOK(w, map[string]any{
		"status":        "healthy",
		"name":          s.cfg.Server.Name,
		"uptimeSeconds": time.Now().Unix() - s.cfg.Server.StartTime,
	})
}
