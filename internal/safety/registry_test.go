package safety

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportLifecycle(t *testing.T) {
	r := NewRegistry()

	rep := r.Report("agt_a", "agt_b", "spam")
	require.NotNil(t, rep)
	assert.True(t, strings.HasPrefix(rep.ID, "rep_"))
	assert.Equal(t, ReportPending, rep.Status)

	assert.True(t, r.AdvanceReport(rep.ID))
	assert.Equal(t, ReportReviewed, rep.Status)
	assert.True(t, r.AdvanceReport(rep.ID))
	assert.Equal(t, ReportResolved, rep.Status)

	assert.False(t, r.AdvanceReport(rep.ID), "resolved never moves")
	assert.False(t, r.AdvanceReport("rep_missing"))
}

func TestBlockIsOneDirectional(t *testing.T) {
	r := NewRegistry()
	r.Block("agt_a", "agt_b")

	assert.True(t, r.IsBlocked("agt_a", "agt_b"))
	assert.False(t, r.IsBlocked("agt_b", "agt_a"))
	assert.True(t, r.IsBlockedEitherWay("agt_a", "agt_b"))
	assert.True(t, r.IsBlockedEitherWay("agt_b", "agt_a"))

	r.Unblock("agt_a", "agt_b")
	assert.False(t, r.IsBlockedEitherWay("agt_a", "agt_b"))
}

func TestMuteExpiry(t *testing.T) {
	r := NewRegistry()
	now := time.Now()
	r.now = func() time.Time { return now }

	r.Mute("org", "agt_a", "admin", time.Minute)
	assert.True(t, r.IsMuted("org", "agt_a"))

	r.now = func() time.Time { return now.Add(2 * time.Minute) }
	assert.False(t, r.IsMuted("org", "agt_a"))
}

func TestMuteIndefiniteAndReplace(t *testing.T) {
	r := NewRegistry()
	now := time.Now()
	r.now = func() time.Time { return now }

	r.Mute("org", "agt_a", "admin", 0)
	r.now = func() time.Time { return now.Add(24 * time.Hour) }
	assert.True(t, r.IsMuted("org", "agt_a"), "zero duration mutes indefinitely")

	// Re-muting replaces the record; the new short duration wins.
	r.Mute("org", "agt_a", "admin", time.Second)
	r.now = func() time.Time { return now.Add(25 * time.Hour) }
	assert.False(t, r.IsMuted("org", "agt_a"))

	r.Unmute("org", "agt_a")
	assert.False(t, r.IsMuted("org", "agt_a"))
}
