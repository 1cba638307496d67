package pack

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilemud/server/internal/grid"
)

// writePack lays out a minimal 4x4 pack: open floor, a sign, a door, and a
// spawn point, split into two manifest zones.
func writePack(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	manifest := map[string]any{
		"name":      "test-pack",
		"version":   "1.0",
		"entryZone": "east",
		"zones": []map[string]any{
			{
				"id":     "west",
				"file":   "main.json",
				"bounds": map[string]float64{"x": 0, "y": 0, "w": 64, "h": 128},
			},
			{
				"id":      "east",
				"file":    "main.json",
				"bounds":  map[string]float64{"x": 64, "y": 0, "w": 64, "h": 128},
				"meeting": true,
			},
		},
	}

	flat := func(v int) []int {
		out := make([]int, 16)
		for i := range out {
			out[i] = v
		}
		return out
	}
	collision := flat(0)
	collision[0] = 1 // wall at (0,0)

	tilemap := map[string]any{
		"width":  4,
		"height": 4,
		"layers": []map[string]any{
			{"name": "ground", "type": "tilelayer", "data": flat(1)},
			{"name": "collision", "type": "tilelayer", "data": collision},
			{"name": "objects", "type": "objectgroup", "objects": []map[string]any{
				{
					"name": "welcome-sign", "type": "sign", "x": 48.0, "y": 48.0,
					"properties": []map[string]any{
						{"name": "actions", "value": "read"},
						{"name": "script", "value": "sign"},
					},
				},
				{"name": "east-door", "type": "door", "x": 112.0, "y": 48.0},
				{"name": "spawn", "type": "spawn", "x": 80.0, "y": 80.0},
			}},
		},
	}

	writeJSON := func(name string, v any) {
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), raw, 0o644))
	}
	writeJSON("manifest.json", manifest)
	writeJSON("main.json", tilemap)
	return dir
}

func TestLoad(t *testing.T) {
	p, err := Load(writePack(t))
	require.NoError(t, err)

	assert.Equal(t, "test-pack", p.Manifest.Name)
	require.NotNil(t, p.Grid)
	assert.Equal(t, 4, p.Grid.Width)
	assert.Equal(t, 4, p.Grid.Height)
	assert.True(t, p.Grid.IsBlocked(0, 0))
	assert.False(t, p.Grid.IsBlocked(1, 1))
}

func TestLoadSpawnAndDoor(t *testing.T) {
	p, err := Load(writePack(t))
	require.NoError(t, err)

	require.True(t, p.HasSpawn)
	assert.Equal(t, 2, p.SpawnTX)
	assert.Equal(t, 2, p.SpawnTY)
	assert.True(t, p.Grid.At(3, 1).IsDoor)

	// Spawn and door markers are consumed; only the sign survives as an
	// object, with its properties flattened to strings.
	require.Len(t, p.Objects, 1)
	obj := p.Objects[0]
	assert.Equal(t, "welcome-sign", obj.Name)
	assert.Equal(t, "sign", obj.Type)
	assert.Equal(t, "read", obj.Properties["actions"])
	assert.Equal(t, "sign", obj.Properties["script"])
}

func TestLoadStampsZones(t *testing.T) {
	p, err := Load(writePack(t))
	require.NoError(t, err)

	// Columns 0-1 sit in west, columns 2-3 in east.
	assert.Equal(t, "west", p.Grid.At(1, 1).ZoneID)
	assert.Equal(t, "east", p.Grid.At(2, 1).ZoneID)
	assert.Equal(t, []string{"east"}, p.MeetingZones())
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(dir)
	assert.Error(t, err, "missing manifest")

	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}

	write("manifest.json", `{"name":"p","zones":[]}`)
	_, err = Load(dir)
	assert.ErrorContains(t, err, "no zones")

	write("manifest.json", `{"name":"p","entryZone":"nope","zones":[{"id":"a","file":"main.json","bounds":{"x":0,"y":0,"w":64,"h":64}}]}`)
	_, err = Load(dir)
	assert.ErrorContains(t, err, "entryZone")

	write("manifest.json", `{"name":"p","zones":[{"id":"a","file":"main.json","bounds":{"x":0,"y":0,"w":64,"h":64}}]}`)
	write("main.json", `{"width":2,"height":2,"layers":[{"name":"ground","type":"tilelayer","data":[1,1,1,1]}]}`)
	_, err = Load(dir)
	assert.ErrorIs(t, err, grid.ErrInvalidMap, "collision layer is required")
}

func TestRectContainsExclusiveEdges(t *testing.T) {
	r := Rect{X: 0, Y: 0, W: 64, H: 64}
	assert.True(t, r.Contains(0, 0))
	assert.True(t, r.Contains(63.9, 63.9))
	assert.False(t, r.Contains(64, 0))
	assert.False(t, r.Contains(0, 64))
}
