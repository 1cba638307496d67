package aic

import (
	"fmt"
	"regexp"

	"github.com/tilemud/server/internal/chat"
)

// Authoritative ID formats.
var (
	roomIDPattern    = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)
	agentIDPattern   = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)
	entityIDPattern  = regexp.MustCompile(`^(hum|agt|obj)_[A-Za-z0-9._-]{1,64}$`)
	npcIDPattern     = regexp.MustCompile(`^(npc_)?[a-z][a-z0-9-]{0,63}$`)
	txIDPattern      = regexp.MustCompile(`^tx_[A-Za-z0-9._-]{8,128}$`)
	messageIDPattern = regexp.MustCompile(`^msg_[A-Za-z0-9._-]{8,128}$`)
)

const maxMessageLen = 500

// validTargetID accepts entity or NPC ids; interact and skill targets may
// be either.
func validTargetID(id string) bool {
	return entityIDPattern.MatchString(id) || npcIDPattern.MatchString(id)
}

type RegisterRequest struct {
	Name   string `json:"name"`
	RoomID string `json:"roomId"`
	Kind   string `json:"kind,omitempty"` // "agent" (default) or "human"

	Title      string `json:"title,omitempty"`
	Department string `json:"department,omitempty"`
	TeamID     string `json:"teamId,omitempty"`
}

func (r *RegisterRequest) validate() error {
	if r.Name == "" || len(r.Name) > 64 {
		return fmt.Errorf("name must be 1-64 chars")
	}
	if r.RoomID == "" {
		r.RoomID = "auto"
	}
	if r.RoomID != "auto" && !roomIDPattern.MatchString(r.RoomID) {
		return fmt.Errorf("roomId %q is malformed", r.RoomID)
	}
	switch r.Kind {
	case "", "agent", "human":
	default:
		return fmt.Errorf("kind must be agent or human")
	}
	return nil
}

// authedRequest is the base every authenticated call embeds.
type authedRequest struct {
	AgentID string `json:"agentId"`
	RoomID  string `json:"roomId"`
}

func (r *authedRequest) validate() error {
	if !agentIDPattern.MatchString(r.AgentID) {
		return fmt.Errorf("agentId is malformed")
	}
	if !roomIDPattern.MatchString(r.RoomID) {
		return fmt.Errorf("roomId is malformed")
	}
	return nil
}

type ReconnectRequest struct {
	AgentID      string `json:"agentId"`
	SessionToken string `json:"sessionToken"`
}

func (r *ReconnectRequest) validate() error {
	if !agentIDPattern.MatchString(r.AgentID) {
		return fmt.Errorf("agentId is malformed")
	}
	if len(r.SessionToken) < 8 {
		return fmt.Errorf("sessionToken is malformed")
	}
	return nil
}

type HeartbeatRequest struct {
	authedRequest
}

type UnregisterRequest struct {
	authedRequest
}

type ObserveRequest struct {
	authedRequest
	Radius      float64 `json:"radius,omitempty"`
	Detail      string  `json:"detail,omitempty"` // "lite" or "full"
	IncludeSelf *bool   `json:"includeSelf,omitempty"`
	IncludeGrid bool    `json:"includeGrid,omitempty"`
}

func (r *ObserveRequest) validate() error {
	if err := r.authedRequest.validate(); err != nil {
		return err
	}
	if r.Radius != 0 && (r.Radius < 1 || r.Radius > 2000) {
		return fmt.Errorf("radius must be in [1,2000]")
	}
	switch r.Detail {
	case "", "lite", "full":
	default:
		return fmt.Errorf("detail must be lite or full")
	}
	return nil
}

type TilePoint struct {
	TX int `json:"tx"`
	TY int `json:"ty"`
}

type MoveToRequest struct {
	authedRequest
	TxID string    `json:"txId"`
	Dest TilePoint `json:"dest"`
	Mode string    `json:"mode,omitempty"`
}

func (r *MoveToRequest) validate() error {
	if err := r.authedRequest.validate(); err != nil {
		return err
	}
	if !txIDPattern.MatchString(r.TxID) {
		return fmt.Errorf("txId is malformed")
	}
	if r.Mode != "" && r.Mode != "walk" {
		return fmt.Errorf("mode must be walk")
	}
	return nil
}

type InteractRequest struct {
	authedRequest
	TxID     string            `json:"txId"`
	TargetID string            `json:"targetId"`
	Action   string            `json:"action"`
	Params   map[string]string `json:"params,omitempty"`
}

func (r *InteractRequest) validate() error {
	if err := r.authedRequest.validate(); err != nil {
		return err
	}
	if !txIDPattern.MatchString(r.TxID) {
		return fmt.Errorf("txId is malformed")
	}
	if !validTargetID(r.TargetID) {
		return fmt.Errorf("targetId is malformed")
	}
	if r.Action == "" || len(r.Action) > 64 {
		return fmt.Errorf("action must be 1-64 chars")
	}
	return nil
}

type ChatSendRequest struct {
	authedRequest
	TxID           string `json:"txId"`
	Channel        string `json:"channel"`
	Message        string `json:"message"`
	TargetEntityID string `json:"targetEntityId,omitempty"`
	TeamID         string `json:"teamId,omitempty"`
	MeetingRoomID  string `json:"meetingRoomId,omitempty"`
}

func (r *ChatSendRequest) validate() error {
	if err := r.authedRequest.validate(); err != nil {
		return err
	}
	if !txIDPattern.MatchString(r.TxID) {
		return fmt.Errorf("txId is malformed")
	}
	if !chat.ValidChannel(r.Channel) {
		return fmt.Errorf("channel %q is not a chat channel", r.Channel)
	}
	if len(r.Message) < 1 || len(r.Message) > maxMessageLen {
		return fmt.Errorf("message must be 1-%d chars", maxMessageLen)
	}
	if r.TargetEntityID != "" && !entityIDPattern.MatchString(r.TargetEntityID) {
		return fmt.Errorf("targetEntityId is malformed")
	}
	return nil
}

type ChatObserveRequest struct {
	authedRequest
	WindowSec int    `json:"windowSec"`
	Channel   string `json:"channel,omitempty"`
}

func (r *ChatObserveRequest) validate() error {
	if err := r.authedRequest.validate(); err != nil {
		return err
	}
	if r.WindowSec < 1 || r.WindowSec > 300 {
		return fmt.Errorf("windowSec must be in [1,300]")
	}
	if r.Channel != "" && !chat.ValidChannel(r.Channel) {
		return fmt.Errorf("channel %q is not a chat channel", r.Channel)
	}
	return nil
}

type PollEventsRequest struct {
	authedRequest
	SinceCursor string `json:"sinceCursor,omitempty"`
	Limit       int    `json:"limit,omitempty"`
	WaitMs      int    `json:"waitMs,omitempty"`
}

func (r *PollEventsRequest) validate() error {
	if err := r.authedRequest.validate(); err != nil {
		return err
	}
	if r.Limit == 0 {
		r.Limit = 100
	}
	if r.Limit < 1 || r.Limit > 200 {
		return fmt.Errorf("limit must be in [1,200]")
	}
	if r.WaitMs < 0 || r.WaitMs > 25000 {
		return fmt.Errorf("waitMs must be in [0,25000]")
	}
	return nil
}

type ProfileUpdateRequest struct {
	authedRequest
	Name       *string `json:"name,omitempty"`
	Title      *string `json:"title,omitempty"`
	Department *string `json:"department,omitempty"`
	TeamID     *string `json:"teamId,omitempty"`
	Status     *string `json:"status,omitempty"`
}

func (r *ProfileUpdateRequest) validate() error {
	if err := r.authedRequest.validate(); err != nil {
		return err
	}
	if r.Status != nil {
		switch *r.Status {
		case "online", "focus", "dnd", "afk", "offline":
		default:
			return fmt.Errorf("status %q is not valid", *r.Status)
		}
	}
	if r.Name != nil && (*r.Name == "" || len(*r.Name) > 64) {
		return fmt.Errorf("name must be 1-64 chars")
	}
	return nil
}

type SkillListRequest struct {
	authedRequest
}

type SkillInstallRequest struct {
	authedRequest
	SkillID string `json:"skillId"`
}

func (r *SkillInstallRequest) validate() error {
	if err := r.authedRequest.validate(); err != nil {
		return err
	}
	if r.SkillID == "" || len(r.SkillID) > 64 {
		return fmt.Errorf("skillId must be 1-64 chars")
	}
	return nil
}

type SkillInvokeRequest struct {
	authedRequest
	TxID     string            `json:"txId"`
	SkillID  string            `json:"skillId"`
	ActionID string            `json:"actionId"`
	TargetID string            `json:"targetId,omitempty"`
	Params   map[string]string `json:"params,omitempty"`
}

func (r *SkillInvokeRequest) validate() error {
	if err := r.authedRequest.validate(); err != nil {
		return err
	}
	if !txIDPattern.MatchString(r.TxID) {
		return fmt.Errorf("txId is malformed")
	}
	if r.SkillID == "" || r.ActionID == "" {
		return fmt.Errorf("skillId and actionId are required")
	}
	if r.TargetID != "" && !validTargetID(r.TargetID) {
		return fmt.Errorf("targetId is malformed")
	}
	return nil
}

type SkillCancelRequest struct {
	authedRequest
}

type EmoteRequest struct {
	authedRequest
	Emote string `json:"emote"`
}

func (r *EmoteRequest) validate() error {
	if err := r.authedRequest.validate(); err != nil {
		return err
	}
	if !chat.ValidEmote(r.Emote) {
		return fmt.Errorf("emote %q is not in the whitelist", r.Emote)
	}
	return nil
}

type MeetingListRequest struct {
	authedRequest
}

type MeetingJoinRequest struct {
	authedRequest
	MeetingID string `json:"meetingId"`
}

func (r *MeetingJoinRequest) validate() error {
	if err := r.authedRequest.validate(); err != nil {
		return err
	}
	if r.MeetingID == "" || len(r.MeetingID) > 64 {
		return fmt.Errorf("meetingId must be 1-64 chars")
	}
	return nil
}

type MeetingLeaveRequest struct {
	authedRequest
}

type SafetyReportRequest struct {
	authedRequest
	TargetID string `json:"targetId"`
	Reason   string `json:"reason"`
}

func (r *SafetyReportRequest) validate() error {
	if err := r.authedRequest.validate(); err != nil {
		return err
	}
	if !validTargetID(r.TargetID) {
		return fmt.Errorf("targetId is malformed")
	}
	if r.Reason == "" || len(r.Reason) > 500 {
		return fmt.Errorf("reason must be 1-500 chars")
	}
	return nil
}

type SafetyBlockRequest struct {
	authedRequest
	TargetID string `json:"targetId"`
	Unblock  bool   `json:"unblock,omitempty"`
}

func (r *SafetyBlockRequest) validate() error {
	if err := r.authedRequest.validate(); err != nil {
		return err
	}
	if !entityIDPattern.MatchString(r.TargetID) {
		return fmt.Errorf("targetId is malformed")
	}
	return nil
}
