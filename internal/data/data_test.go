package data

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadSkillTable(t *testing.T) {
	path := writeYAML(t, "skill_list.yaml", `skills:
  - id: mobility
    name: Mobility
    category: movement
    actions:
      - id: sprint
        cooldown_ms: 10000
        cast_time_ms: 500
        effect:
          type: speed_boost
          speed_multiplier: 1.5
          duration_ms: 5000
  - id: presence
    name: Presence
    category: social
    actions:
      - id: ping
        cooldown_ms: 2000
        range_units: 320
`)
	table, err := LoadSkillTable(path)
	require.NoError(t, err)
	assert.Equal(t, 2, table.Count())

	s := table.Get("mobility")
	require.NotNil(t, s)
	require.Len(t, s.Actions, 1)
	assert.Equal(t, int64(500), s.Actions[0].CastTimeMs)
	require.NotNil(t, s.Actions[0].Effect)
	assert.InDelta(t, 1.5, s.Actions[0].Effect.SpeedMultiplier, 1e-9)

	assert.Nil(t, table.Get("nope"))
	all := table.All()
	require.Len(t, all, 2)
	assert.Equal(t, "mobility", all[0].ID, "file order preserved")
}

func TestLoadSkillTableRejectsDuplicates(t *testing.T) {
	path := writeYAML(t, "skill_list.yaml", `skills:
  - id: a
    actions: [{id: x}]
  - id: a
    actions: [{id: y}]
`)
	_, err := LoadSkillTable(path)
	assert.ErrorContains(t, err, "duplicate skill id")

	// Action ids must be unique across skills; cooldowns key on them.
	path = writeYAML(t, "skill_list.yaml", `skills:
  - id: a
    actions: [{id: x}]
  - id: b
    actions: [{id: x}]
`)
	_, err = LoadSkillTable(path)
	assert.ErrorContains(t, err, `action "x"`)
}

func TestLoadNpcTable(t *testing.T) {
	path := writeYAML(t, "npc_list.yaml", `npcs:
  - id: receptionist
    name: Iris
    tx: 34
    ty: 31
    actions: [talk]
    script: receptionist
  - id: porter
    name: Max
    tx: 28
    ty: 44
    actions: [talk]
    wander: true
`)
	table, err := LoadNpcTable(path)
	require.NoError(t, err)
	assert.Equal(t, 2, table.Count())
	npcs := table.All()
	assert.Equal(t, "receptionist", npcs[0].ID)
	assert.True(t, npcs[1].Wander)
}

func TestLoadNpcTableMissingFileIsEmpty(t *testing.T) {
	table, err := LoadNpcTable(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Zero(t, table.Count())
}

func TestLoadNpcTableRequiresIDs(t *testing.T) {
	path := writeYAML(t, "npc_list.yaml", `npcs:
  - name: Nameless
`)
	_, err := LoadNpcTable(path)
	assert.ErrorContains(t, err, "no id")
}
