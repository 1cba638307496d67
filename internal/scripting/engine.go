// Package scripting wraps a gopher-lua VM that resolves object and NPC
// affordances. Scripts decide what an interaction does; Go applies the
// resulting state changes and emits events.
package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single Lua VM. Single-goroutine access only: each room
// actor must own its own engine.
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts from the directory
// tree: objects/ first, then npc/.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{SkipOpenLibs: false})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}
	for _, sub := range []string{"objects", "npc"} {
		if err := e.loadDir(filepath.Join(scriptsDir, sub)); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load %s scripts: %w", sub, err)
		}
	}
	return e, nil
}

// loadDir loads all .lua files in a directory. Missing directories are
// skipped.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// Close shuts down the VM.
func (e *Engine) Close() {
	e.vm.Close()
}

// InteractContext is the pre-packed data handed to the Lua hook.
type InteractContext struct {
	TargetID   string
	TargetType string // "sign", "chest", "door", "npc", ...
	TargetName string
	Script     string // handler key registered by the script files
	Action     string
	ActorID    string
	ActorName  string
	State      map[string]string
	Params     map[string]string
}

// InteractResult is returned by the Lua handle_interact function.
type InteractResult struct {
	OK           bool
	Message      string
	StateChanges map[string]string
}

// RunInteract calls the Lua handle_interact hook. A missing hook or a Lua
// error yields a failed result; the room converts that to invalid_action.
func (e *Engine) RunInteract(ctx InteractContext) InteractResult {
	fn := e.vm.GetGlobal("handle_interact")
	if fn == lua.LNil {
		return InteractResult{}
	}

	tbl := e.vm.NewTable()
	tbl.RawSetString("target_id", lua.LString(ctx.TargetID))
	tbl.RawSetString("target_type", lua.LString(ctx.TargetType))
	tbl.RawSetString("target_name", lua.LString(ctx.TargetName))
	tbl.RawSetString("script", lua.LString(ctx.Script))
	tbl.RawSetString("action", lua.LString(ctx.Action))
	tbl.RawSetString("actor_id", lua.LString(ctx.ActorID))
	tbl.RawSetString("actor_name", lua.LString(ctx.ActorName))

	state := e.vm.NewTable()
	for k, v := range ctx.State {
		state.RawSetString(k, lua.LString(v))
	}
	tbl.RawSetString("state", state)

	params := e.vm.NewTable()
	for k, v := range ctx.Params {
		params.RawSetString(k, lua.LString(v))
	}
	tbl.RawSetString("params", params)

	if err := e.vm.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, tbl); err != nil {
		e.log.Error("lua handle_interact failed",
			zap.String("target", ctx.TargetID),
			zap.String("action", ctx.Action),
			zap.Error(err),
		)
		return InteractResult{}
	}

	ret := e.vm.Get(-1)
	e.vm.Pop(1)
	res, ok := ret.(*lua.LTable)
	if !ok {
		return InteractResult{}
	}

	out := InteractResult{}
	if v, isBool := res.RawGetString("ok").(lua.LBool); isBool {
		out.OK = bool(v)
	}
	if v, isStr := res.RawGetString("message").(lua.LString); isStr {
		out.Message = string(v)
	}
	if changes, isTbl := res.RawGetString("state_changes").(*lua.LTable); isTbl {
		out.StateChanges = make(map[string]string)
		changes.ForEach(func(k, v lua.LValue) {
			out.StateChanges[k.String()] = v.String()
		})
	}
	return out
}
