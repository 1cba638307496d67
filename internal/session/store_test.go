package session

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetReplace(t *testing.T) {
	s := NewStore()

	s.Put(&Session{AgentID: "agt_a", RoomID: "room-1", EntityID: "agt_a", Token: "tok_1"})
	sess, ok := s.Get("agt_a")
	require.True(t, ok)
	assert.Equal(t, "room-1", sess.RoomID)

	// Re-registering replaces the binding wholesale.
	s.Put(&Session{AgentID: "agt_a", RoomID: "room-2", EntityID: "agt_a", Token: "tok_2"})
	sess, ok = s.Get("agt_a")
	require.True(t, ok)
	assert.Equal(t, "room-2", sess.RoomID)
	assert.Equal(t, "tok_2", sess.Token)

	_, ok = s.Get("agt_missing")
	assert.False(t, ok)
}

func TestAuthenticate(t *testing.T) {
	s := NewStore()
	s.Put(&Session{AgentID: "agt_a", RoomID: "room-1", Token: "tok_1"})

	assert.NoError(t, s.Authenticate("agt_a", "room-1", "tok_1"))
	assert.ErrorIs(t, s.Authenticate("agt_a", "room-1", "tok_x"), ErrBadToken)
	assert.ErrorIs(t, s.Authenticate("agt_a", "room-2", "tok_1"), ErrWrongRoom)
	assert.ErrorIs(t, s.Authenticate("agt_b", "room-1", "tok_1"), ErrNotFound)
}

func TestTouchAdvancesHeartbeat(t *testing.T) {
	s := NewStore()
	now := time.Now()
	s.now = func() time.Time { return now }
	s.Put(&Session{AgentID: "agt_a", RoomID: "room-1", Token: "tok_1"})

	assert.Zero(t, s.LastHeartbeatMs("agt_a"))
	s.Touch("agt_a")
	assert.Equal(t, now.UnixMilli(), s.LastHeartbeatMs("agt_a"))

	s.now = func() time.Time { return now.Add(5 * time.Second) }
	s.Touch("agt_a")
	assert.Equal(t, now.Add(5*time.Second).UnixMilli(), s.LastHeartbeatMs("agt_a"))

	// Touching an unknown agent is a no-op.
	s.Touch("agt_b")
	assert.Zero(t, s.LastHeartbeatMs("agt_b"))
}

func TestRemove(t *testing.T) {
	s := NewStore()
	s.Put(&Session{AgentID: "agt_a", RoomID: "room-1", Token: "tok_1"})
	s.Remove("agt_a")

	_, ok := s.Get("agt_a")
	assert.False(t, ok)
	assert.ErrorIs(t, s.Authenticate("agt_a", "room-1", "tok_1"), ErrNotFound)
	s.Remove("agt_a") // idempotent
}

func TestSweepRemovesIdleSessions(t *testing.T) {
	s := NewStore()
	now := time.Now()
	s.now = func() time.Time { return now }

	s.Put(&Session{AgentID: "agt_old", RoomID: "room-1", Token: "tok_1", LastHeartbeatMs: now.Add(-20 * time.Minute).UnixMilli()})
	s.Put(&Session{AgentID: "agt_live", RoomID: "room-1", Token: "tok_2", LastHeartbeatMs: now.UnixMilli()})

	assert.Equal(t, 1, s.Sweep(15*time.Minute))
	_, ok := s.Get("agt_old")
	assert.False(t, ok)
	_, ok = s.Get("agt_live")
	assert.True(t, ok)
	assert.Zero(t, s.Sweep(15*time.Minute))
}

func TestNewToken(t *testing.T) {
	a := NewToken()
	b := NewToken()
	assert.True(t, strings.HasPrefix(a, "tok_"))
	assert.Len(t, a, len("tok_")+32)
	assert.NotEqual(t, a, b)
}
