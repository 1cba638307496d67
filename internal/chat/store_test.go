package chat

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilemud/server/internal/safety"
)

func allMembers(kind, groupID, entityID string) bool { return true }
func noMembers(kind, groupID, entityID string) bool  { return false }

func TestSendGlobal(t *testing.T) {
	s := NewStore("room-1", 100, allMembers, nil)

	msg := s.Send(ChannelGlobal, "agt_a", "Ada", "hello world", Opts{})
	require.NotNil(t, msg)
	assert.True(t, strings.HasPrefix(msg.ID, "msg_"))
	assert.Equal(t, "room-1", msg.RoomID)
	assert.Equal(t, "hello world", msg.Text)
	assert.Equal(t, 1, s.Len())
}

func TestSendRejectsEmptyAndUnknownChannel(t *testing.T) {
	s := NewStore("r", 100, allMembers, nil)
	assert.Nil(t, s.Send(ChannelGlobal, "agt_a", "Ada", "", Opts{}))
	assert.Nil(t, s.Send("shout", "agt_a", "Ada", "hi", Opts{}))
}

func TestTeamChannelRequiresMembership(t *testing.T) {
	s := NewStore("r", 100, noMembers, nil)
	assert.Nil(t, s.Send(ChannelTeam, "agt_a", "Ada", "hi", Opts{TeamID: "team-1"}))
	assert.Nil(t, s.Send(ChannelTeam, "agt_a", "Ada", "hi", Opts{}), "missing teamId")

	s2 := NewStore("r", 100, allMembers, nil)
	assert.NotNil(t, s2.Send(ChannelTeam, "agt_a", "Ada", "hi", Opts{TeamID: "team-1"}))
}

func TestMeetingChannelRequiresParticipation(t *testing.T) {
	s := NewStore("r", 100, noMembers, nil)
	assert.Nil(t, s.Send(ChannelMeeting, "agt_a", "Ada", "hi", Opts{MeetingRoomID: "m1"}))

	s2 := NewStore("r", 100, allMembers, nil)
	assert.NotNil(t, s2.Send(ChannelMeeting, "agt_a", "Ada", "hi", Opts{MeetingRoomID: "m1"}))
}

func TestDMRequiresTarget(t *testing.T) {
	s := NewStore("r", 100, allMembers, nil)
	assert.Nil(t, s.Send(ChannelDM, "agt_a", "Ada", "psst", Opts{}))
	assert.NotNil(t, s.Send(ChannelDM, "agt_a", "Ada", "psst", Opts{TargetEntityID: "agt_b"}))
}

func TestEmoteExtraction(t *testing.T) {
	assert.Equal(t, []string{":wave:", ":smile:"}, ExtractEmotes("hi :wave: there :smile:"))
	assert.Empty(t, ExtractEmotes("no emotes here"))
	assert.Empty(t, ExtractEmotes(":notreal:"), "non-whitelisted emotes are dropped")
	assert.True(t, ValidEmote(":clap:"))
	assert.False(t, ValidEmote("clap"))

	s := NewStore("r", 100, allMembers, nil)
	msg := s.Send(ChannelGlobal, "agt_a", "Ada", "gg :clap:", Opts{})
	require.NotNil(t, msg)
	assert.Equal(t, []string{":clap:"}, msg.Emotes)
}

func TestRingEvictsOldestBatch(t *testing.T) {
	s := NewStore("r", 10, allMembers, nil)
	for i := 0; i < 11; i++ {
		require.NotNil(t, s.Send(ChannelGlobal, "agt_a", "Ada", "m", Opts{}))
	}
	// Crossing the high-water mark drops ceil(10*0.1)=1 oldest in one shot.
	assert.Equal(t, 10, s.Len())
}

func TestReadForFiltersChannelAndWindow(t *testing.T) {
	s := NewStore("r", 100, allMembers, nil)
	now := time.Now()
	s.now = func() time.Time { return now.Add(-time.Minute) }
	s.Send(ChannelGlobal, "agt_a", "Ada", "old", Opts{})
	s.now = func() time.Time { return now }
	s.Send(ChannelGlobal, "agt_a", "Ada", "fresh", Opts{})
	s.Send(ChannelProximity, "agt_a", "Ada", "nearby", Opts{})

	msgs := s.ReadFor("agt_b", ChannelGlobal, 30)
	require.Len(t, msgs, 1)
	assert.Equal(t, "fresh", msgs[0].Text)

	msgs = s.ReadFor("agt_b", "", 120)
	assert.Len(t, msgs, 3)
}

func TestReadForHidesForeignDMs(t *testing.T) {
	s := NewStore("r", 100, allMembers, nil)
	s.Send(ChannelDM, "agt_a", "Ada", "secret", Opts{TargetEntityID: "agt_b"})

	assert.Len(t, s.ReadFor("agt_a", "", 0), 1)
	assert.Len(t, s.ReadFor("agt_b", "", 0), 1)
	assert.Empty(t, s.ReadFor("agt_c", "", 0))
}

func TestReadForFiltersBlockedEitherWay(t *testing.T) {
	reg := safety.NewRegistry()
	s := NewStore("r", 100, allMembers, reg)
	s.Send(ChannelProximity, "agt_b", "Bob", "hey", Opts{})

	// A blocks B: A no longer sees B's messages, C still does, and B sees
	// their own.
	reg.Block("agt_a", "agt_b")
	assert.Empty(t, s.ReadFor("agt_a", "", 0))
	assert.Len(t, s.ReadFor("agt_c", "", 0), 1)
	assert.Len(t, s.ReadFor("agt_b", "", 0), 1)

	// The reverse direction filters too.
	reg.Unblock("agt_a", "agt_b")
	reg.Block("agt_b", "agt_a")
	assert.Empty(t, s.ReadFor("agt_a", "", 0))
}
