// Package chat implements the per-room chat ring. Messages are immutable;
// retention is bounded by the ring and eviction runs in batches.
package chat

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tilemud/server/internal/safety"
)

// Chat channels. "proximity" reaches nearby entities, "global" the whole
// room, the rest are scoped by membership.
const (
	ChannelProximity = "proximity"
	ChannelGlobal    = "global"
	ChannelTeam      = "team"
	ChannelMeeting   = "meeting"
	ChannelDM        = "dm"
)

// ValidChannel reports whether ch is one of the closed channel set.
func ValidChannel(ch string) bool {
	switch ch {
	case ChannelProximity, ChannelGlobal, ChannelTeam, ChannelMeeting, ChannelDM:
		return true
	}
	return false
}

var emotePattern = regexp.MustCompile(`:[a-z]+:`)

// emoteWhitelist is the fixed set of emotes clients may render.
var emoteWhitelist = map[string]struct{}{
	":wave:":  {},
	":smile:": {},
	":laugh:": {},
	":think:": {},
	":heart:": {},
	":clap:":  {},
	":nod:":   {},
	":sweat:": {},
}

// ValidEmote reports whether e is a whitelisted emote token like ":wave:".
func ValidEmote(e string) bool {
	_, ok := emoteWhitelist[e]
	return ok
}

// ExtractEmotes returns the whitelisted emotes present in text, in order.
func ExtractEmotes(text string) []string {
	var out []string
	for _, m := range emotePattern.FindAllString(text, -1) {
		if _, ok := emoteWhitelist[m]; ok {
			out = append(out, m)
		}
	}
	return out
}

// Message is one chat entry.
type Message struct {
	ID             string   `json:"id"`
	RoomID         string   `json:"roomId"`
	Channel        string   `json:"channel"`
	FromEntityID   string   `json:"fromEntityId"`
	FromName       string   `json:"fromName"`
	Text           string   `json:"message"`
	TsMs           int64    `json:"tsMs"`
	TargetEntityID string   `json:"targetEntityId,omitempty"`
	TeamID         string   `json:"teamId,omitempty"`
	MeetingRoomID  string   `json:"meetingRoomId,omitempty"`
	Emotes         []string `json:"emotes,omitempty"`
}

// Opts carries channel-specific scoping for Send.
type Opts struct {
	TargetEntityID string
	TeamID         string
	MeetingRoomID  string
}

// MembershipFunc answers team and meeting membership questions for the
// room. kind is "team" or "meeting".
type MembershipFunc func(kind, groupID, entityID string) bool

// Store is the bounded chat ring for one room.
type Store struct {
	mu         sync.Mutex
	roomID     string
	msgs       []Message
	max        int
	membership MembershipFunc
	safety     *safety.Registry
	now        func() time.Time
}

// NewStore builds a ring of at most max messages.
func NewStore(roomID string, max int, membership MembershipFunc, reg *safety.Registry) *Store {
	if max <= 0 {
		max = 1000
	}
	return &Store{
		roomID:     roomID,
		max:        max,
		membership: membership,
		safety:     reg,
		now:        time.Now,
	}
}

// Send validates and appends a message. Returns nil when validation fails:
// team messages need a teamId the sender belongs to, meeting messages a
// meeting the sender participates in, DMs a target.
func (s *Store) Send(channel, from, fromName, text string, opts Opts) *Message {
	if text == "" || !ValidChannel(channel) {
		return nil
	}
	switch channel {
	case ChannelTeam:
		if opts.TeamID == "" || s.membership == nil || !s.membership("team", opts.TeamID, from) {
			return nil
		}
	case ChannelMeeting:
		if opts.MeetingRoomID == "" || s.membership == nil || !s.membership("meeting", opts.MeetingRoomID, from) {
			return nil
		}
	case ChannelDM:
		if opts.TargetEntityID == "" {
			return nil
		}
	}

	msg := Message{
		ID:             "msg_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		RoomID:         s.roomID,
		Channel:        channel,
		FromEntityID:   from,
		FromName:       fromName,
		Text:           text,
		TsMs:           s.now().UnixMilli(),
		TargetEntityID: opts.TargetEntityID,
		TeamID:         opts.TeamID,
		MeetingRoomID:  opts.MeetingRoomID,
		Emotes:         ExtractEmotes(text),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	if len(s.msgs) > s.max {
		// Evict the oldest 10% in one shot so eviction does not run on
		// every message at the high-water mark.
		drop := (s.max + 9) / 10
		if drop > len(s.msgs) {
			drop = len(s.msgs)
		}
		s.msgs = append([]Message(nil), s.msgs[drop:]...)
	}
	return &msg
}

// ReadFor returns messages visible to viewerID: channel-filtered when
// channel is non-empty, bounded by windowSec, DMs restricted to their two
// parties, and blocked pairs filtered in both directions.
func (s *Store) ReadFor(viewerID, channel string, windowSec int) []Message {
	cutoff := int64(0)
	if windowSec > 0 {
		cutoff = s.now().UnixMilli() - int64(windowSec)*1000
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Message
	for _, m := range s.msgs {
		if channel != "" && m.Channel != channel {
			continue
		}
		if m.TsMs < cutoff {
			continue
		}
		if m.Channel == ChannelDM && m.FromEntityID != viewerID && m.TargetEntityID != viewerID {
			continue
		}
		if s.safety != nil && m.FromEntityID != viewerID && s.safety.IsBlockedEitherWay(viewerID, m.FromEntityID) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Len returns the current ring size.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}
