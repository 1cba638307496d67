package skill

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilemud/server/internal/data"
)

func testTable(t *testing.T) *data.SkillTable {
	t.Helper()
	path := filepath.Join(t.TempDir(), "skill_list.yaml")
	yaml := `skills:
  - id: mobility
    name: Mobility
    category: movement
    actions:
      - id: sprint
        cooldown_ms: 10000
        cast_time_ms: 500
        range_units: 0
        effect:
          type: speed_boost
          speed_multiplier: 1.5
          duration_ms: 5000
      - id: slow_field
        cooldown_ms: 15000
        cast_time_ms: 1500
        range_units: 160
        effect:
          type: slow
          speed_multiplier: 0.5
          duration_ms: 4000
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	table, err := data.LoadSkillTable(path)
	require.NoError(t, err)
	return table
}

type recorder struct {
	events []string
}

func (r *recorder) emit(evType string, payload map[string]any) {
	r.events = append(r.events, evType)
}

func newTestEngine(t *testing.T) (*Engine, *recorder, *time.Time) {
	rec := &recorder{}
	e := NewEngine(testTable(t), rec.emit)
	now := time.Now()
	e.now = func() time.Time { return now }
	return e, rec, &now
}

func TestInstallIdempotent(t *testing.T) {
	e, rec, _ := newTestEngine(t)

	already, ok := e.Install("agt_a", "mobility")
	assert.False(t, already)
	assert.True(t, ok)

	already, ok = e.Install("agt_a", "mobility")
	assert.True(t, already, "second install is a flagged no-op")
	assert.True(t, ok)
	assert.Empty(t, rec.events, "install emits nothing")

	_, ok = e.Install("agt_a", "nope")
	assert.False(t, ok)

	assert.Equal(t, []string{"mobility"}, e.Installed("agt_a"))
}

func TestInvokeValidationChain(t *testing.T) {
	e, _, now := newTestEngine(t)

	res := e.Invoke("agt_a", "tx_11111111", "mobility", "sprint", "", 0, 100, 100)
	assert.Equal(t, OutcomeActionNotInstalled, res.Outcome)

	e.Install("agt_a", "mobility")

	res = e.Invoke("agt_a", "tx_11111111", "mobility", "nope", "", 0, 100, 100)
	assert.Equal(t, OutcomeUnknownAction, res.Outcome)

	res = e.Invoke("agt_a", "tx_11111111", "mobility", "slow_field", "agt_b", 500, 100, 100)
	assert.Equal(t, OutcomeOutOfRange, res.Outcome)

	res = e.Invoke("agt_a", "tx_11111111", "mobility", "sprint", "", 0, 100, 100)
	require.Equal(t, OutcomePending, res.Outcome)
	assert.Equal(t, now.UnixMilli()+500, res.CompletionMs)

	res = e.Invoke("agt_a", "tx_22222222", "mobility", "sprint", "", 0, 100, 100)
	assert.Equal(t, OutcomeAlreadyCasting, res.Outcome)
}

func TestTickCompletesCastAndAppliesEffect(t *testing.T) {
	e, rec, now := newTestEngine(t)
	e.Install("agt_a", "mobility")
	e.Invoke("agt_a", "tx_11111111", "mobility", "sprint", "", 0, 100, 100)

	stay := func(string) (float64, float64, bool) { return 100, 100, true }

	// Before completion nothing happens.
	e.Tick(stay)
	require.NotNil(t, e.Pending("agt_a"))

	*now = now.Add(600 * time.Millisecond)
	e.Tick(stay)
	assert.Nil(t, e.Pending("agt_a"))
	assert.Contains(t, rec.events, "effect.applied")
	assert.Contains(t, rec.events, "skill.cast_complete")

	fx := e.Effects("agt_a")
	require.Len(t, fx, 1)
	assert.Equal(t, "speed_boost", fx[0].EffectType)
	assert.InDelta(t, 1.5, e.SpeedMultiplier("agt_a"), 1e-9)

	// Cooldown now applies.
	res := e.Invoke("agt_a", "tx_22222222", "mobility", "sprint", "", 0, 100, 100)
	assert.Equal(t, OutcomeOnCooldown, res.Outcome)
}

func TestTickCancelsWhenCasterMoved(t *testing.T) {
	e, rec, now := newTestEngine(t)
	e.Install("agt_a", "mobility")
	e.Invoke("agt_a", "tx_11111111", "mobility", "sprint", "", 0, 100, 100)

	*now = now.Add(time.Second)
	moved := func(string) (float64, float64, bool) { return 164, 100, true }
	e.Tick(moved)

	assert.Nil(t, e.Pending("agt_a"))
	assert.Contains(t, rec.events, "skill.cast_cancelled")
	assert.NotContains(t, rec.events, "effect.applied")
	assert.Empty(t, e.Effects("agt_a"))

	// No cooldown either: the cast never completed.
	res := e.Invoke("agt_a", "tx_22222222", "mobility", "sprint", "", 0, 164, 100)
	assert.Equal(t, OutcomePending, res.Outcome)
}

func TestEffectExpiry(t *testing.T) {
	e, rec, now := newTestEngine(t)
	e.Install("agt_a", "mobility")
	e.Invoke("agt_a", "tx_11111111", "mobility", "sprint", "", 0, 100, 100)

	stay := func(string) (float64, float64, bool) { return 100, 100, true }
	*now = now.Add(time.Second)
	e.Tick(stay)
	require.Len(t, e.Effects("agt_a"), 1)

	*now = now.Add(10 * time.Second)
	e.Tick(stay)
	assert.Empty(t, e.Effects("agt_a"))
	assert.Contains(t, rec.events, "effect.expired")
	assert.InDelta(t, 1.0, e.SpeedMultiplier("agt_a"), 1e-9)
}

func TestEffectLandsOnTarget(t *testing.T) {
	e, _, now := newTestEngine(t)
	e.Install("agt_a", "mobility")
	res := e.Invoke("agt_a", "tx_11111111", "mobility", "slow_field", "agt_b", 100, 100, 100)
	require.Equal(t, OutcomePending, res.Outcome)

	stay := func(string) (float64, float64, bool) { return 100, 100, true }
	*now = now.Add(2 * time.Second)
	e.Tick(stay)

	assert.Empty(t, e.Effects("agt_a"))
	require.Len(t, e.Effects("agt_b"), 1)
	assert.InDelta(t, 0.5, e.SpeedMultiplier("agt_b"), 1e-9)
}

func TestCancelByUser(t *testing.T) {
	e, rec, _ := newTestEngine(t)
	e.Install("agt_a", "mobility")
	e.Invoke("agt_a", "tx_11111111", "mobility", "sprint", "", 0, 100, 100)

	assert.True(t, e.Cancel("agt_a"))
	assert.Nil(t, e.Pending("agt_a"))
	assert.Contains(t, rec.events, "skill.cast_cancelled")
	assert.False(t, e.Cancel("agt_a"), "nothing left to cancel")

	// No cooldown after a user cancel.
	res := e.Invoke("agt_a", "tx_22222222", "mobility", "sprint", "", 0, 100, 100)
	assert.Equal(t, OutcomePending, res.Outcome)
}

func TestForget(t *testing.T) {
	e, _, _ := newTestEngine(t)
	e.Install("agt_a", "mobility")
	e.Forget("agt_a")
	assert.Empty(t, e.Installed("agt_a"))
}
