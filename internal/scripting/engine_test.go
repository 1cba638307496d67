package scripting

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestEngine(t *testing.T, scripts map[string]string) *Engine {
	t.Helper()
	dir := t.TempDir()
	for name, body := range scripts {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	e, err := NewEngine(dir, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func TestRunInteract(t *testing.T) {
	e := newTestEngine(t, map[string]string{
		"objects/sign.lua": `
function handle_interact(ctx)
  if ctx.script == "sign" and ctx.action == "read" then
    local count = tonumber(ctx.state.reads or "0") + 1
    return {
      ok = true,
      message = "Hello, " .. ctx.actor_name,
      state_changes = { reads = tostring(count) },
    }
  end
  return { ok = false, message = "nothing happens" }
end
`,
	})

	res := e.RunInteract(InteractContext{
		TargetID:  "obj_1",
		Script:    "sign",
		Action:    "read",
		ActorID:   "agt_a",
		ActorName: "Ada",
		State:     map[string]string{"reads": "2"},
	})
	assert.True(t, res.OK)
	assert.Equal(t, "Hello, Ada", res.Message)
	assert.Equal(t, map[string]string{"reads": "3"}, res.StateChanges)

	res = e.RunInteract(InteractContext{Script: "sign", Action: "kick"})
	assert.False(t, res.OK)
	assert.Equal(t, "nothing happens", res.Message)
}

func TestMissingHookFailsClosed(t *testing.T) {
	e := newTestEngine(t, nil)
	res := e.RunInteract(InteractContext{Script: "sign", Action: "read"})
	assert.False(t, res.OK)
	assert.Empty(t, res.Message)
}

func TestLuaErrorFailsClosed(t *testing.T) {
	e := newTestEngine(t, map[string]string{
		"objects/broken.lua": `
function handle_interact(ctx)
  error("boom")
end
`,
	})
	res := e.RunInteract(InteractContext{Script: "whatever", Action: "read"})
	assert.False(t, res.OK)
}

func TestBadScriptFailsLoad(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "objects"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "objects", "bad.lua"), []byte("this is not lua ("), 0o644))

	_, err := NewEngine(dir, zap.NewNop())
	assert.Error(t, err)
}

func TestMissingDirectoriesAreFine(t *testing.T) {
	e, err := NewEngine(filepath.Join(t.TempDir(), "nope"), zap.NewNop())
	require.NoError(t, err)
	e.Close()
}
