// Package luavm binds the hook protocol's stack API onto an embedded
// gopher-lua runtime.
package luavm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/yousuf/hookbridge/internal/hook"
)

// nativeSource is the source reported for frames of native functions.
const nativeSource = "[C]"

// tailCallSource is the source reported for levels whose frames were
// replaced by tail calls.
const tailCallSource = "(tail call)"

// tailCall is the activation record of a level lost to a tail call.
type tailCall struct{}

// Options configures a new runtime.
type Options struct {
	// SkipOpenLibs leaves the standard libraries unloaded.
	SkipOpenLibs bool
	// CallStackSize bounds the call depth. Zero uses the runtime default.
	CallStackSize int
}

// State is a Lua runtime exposed through hook.State. Like the runtime it
// wraps, it must only be used by one goroutine at a time.
type State struct {
	L *lua.LState
}

var _ hook.State = (*State)(nil)

// New starts a fresh runtime.
func New(opts Options) *State {
	return &State{L: lua.NewState(lua.Options{
		SkipOpenLibs:  opts.SkipOpenLibs,
		CallStackSize: opts.CallStackSize,
	})}
}

// Wrap exposes an existing runtime.
func Wrap(L *lua.LState) *State {
	return &State{L: L}
}

// Close releases the runtime.
func (s *State) Close() {
	s.L.Close()
}

// SetContext bounds the execution of Lua code by ctx. A cancelled context
// raises an error at the next instruction.
func (s *State) SetContext(ctx context.Context) {
	s.L.SetContext(ctx)
}

// RemoveContext lifts a bound set by SetContext.
func (s *State) RemoveContext() {
	s.L.RemoveContext()
}

// DoString runs src as a chunk named name.
func (s *State) DoString(src, name string) error {
	return s.DoReader(strings.NewReader(src), name)
}

// DoReader runs the chunk read from r.
func (s *State) DoReader(r io.Reader, name string) error {
	fn, err := s.L.Load(r, name)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", name, err)
	}
	s.L.Push(fn)
	if err := s.L.PCall(0, 0, nil); err != nil {
		return fmt.Errorf("failed to run %s: %w", name, err)
	}
	return nil
}

// DoFile runs the script at path.
func (s *State) DoFile(path string) error {
	if err := s.L.DoFile(path); err != nil {
		return fmt.Errorf("failed to run %s: %w", path, err)
	}
	return nil
}

func (s *State) GetTop() int         { return s.L.GetTop() }
func (s *State) SetTop(idx int)      { s.L.SetTop(idx) }
func (s *State) Pop(n int)           { s.L.Pop(n) }
func (s *State) Remove(idx int)      { s.L.Remove(idx) }
func (s *State) PushString(v string) { s.L.Push(lua.LString(v)) }

func (s *State) valid(idx int) bool {
	top := s.L.GetTop()
	if idx > 0 {
		return idx <= top
	}
	return idx < 0 && -idx <= top
}

func (s *State) TypeAt(idx int) hook.Type {
	if !s.valid(idx) {
		return hook.TypeNone
	}
	switch s.L.Get(idx).Type() {
	case lua.LTNil:
		return hook.TypeNil
	case lua.LTBool:
		return hook.TypeBoolean
	case lua.LTNumber:
		return hook.TypeNumber
	case lua.LTString:
		return hook.TypeString
	case lua.LTTable:
		return hook.TypeTable
	case lua.LTFunction:
		return hook.TypeFunction
	default:
		return hook.TypeOther
	}
}

func (s *State) StringAt(idx int) string {
	return lua.LVAsString(s.L.Get(idx))
}

func (s *State) Value(idx int) any {
	return FromLua(s.L.Get(idx))
}

func (s *State) PushValue(v any) {
	s.L.Push(ToLua(s.L, v))
}

func (s *State) PushHandler(h hook.Handler) {
	s.L.Push(s.L.NewFunction(func(L *lua.LState) int {
		if L == s.L {
			return h(s)
		}
		return h(Wrap(L))
	}))
}

func (s *State) GetGlobal(name string) {
	s.L.Push(s.L.GetGlobal(name))
}

func (s *State) GetField(idx int, key string) {
	tb, ok := s.L.Get(idx).(*lua.LTable)
	if !ok {
		s.L.Push(lua.LNil)
		return
	}
	s.L.Push(s.L.GetField(tb, key))
}

// PCall calls the function below the top nargs values with the function at
// handlerIdx as error handler. On failure the handler's result is pushed in
// place of the function and its arguments.
func (s *State) PCall(nargs, nrets, handlerIdx int) error {
	handler, _ := s.L.Get(handlerIdx).(*lua.LFunction)

	err := s.L.PCall(nargs, nrets, handler)
	if err == nil {
		return nil
	}

	var apiErr *lua.ApiError
	if errors.As(err, &apiErr) && apiErr.Object != nil {
		s.L.Push(apiErr.Object)
	} else {
		s.L.Push(lua.LString(err.Error()))
	}
	return err
}

func (s *State) GetStack(level int) (*hook.Frame, bool) {
	dbg, ok := s.L.GetStack(level)
	if !ok {
		return nil, false
	}
	if s.lostToTailCall(level, dbg) {
		return &hook.Frame{Handle: tailCall{}}, true
	}
	return &hook.Frame{Handle: dbg}, true
}

// lostToTailCall reports whether level counts a call replaced by a tail
// call. gopher-lua answers such levels with the bottom frame of the stack,
// so a bottom frame is only genuine at the last level; before any other
// frame, or before more levels, it stands in for a lost call.
func (s *State) lostToTailCall(level int, dbg *lua.Debug) bool {
	bottom, ok := s.L.GetStack(-1)
	if !ok || *dbg != *bottom {
		return false
	}
	for next := level + 1; ; next++ {
		d, ok := s.L.GetStack(next)
		if !ok {
			return next != level+1
		}
		if *d != *bottom {
			return true
		}
	}
}

func (s *State) GetInfo(f *hook.Frame) error {
	if _, ok := f.Handle.(tailCall); ok {
		f.Name = ""
		f.Source = tailCallSource
		f.CurrentLine = -1
		return nil
	}

	dbg, ok := f.Handle.(*lua.Debug)
	if !ok || dbg == nil {
		return errors.New("frame has no activation record")
	}
	if _, err := s.L.GetInfo("Sln", dbg, lua.LNil); err != nil {
		return err
	}

	f.Name = dbg.Name
	f.Source = dbg.Source
	f.CurrentLine = dbg.CurrentLine
	if dbg.What == "G" || f.Source == "" {
		f.Source = nativeSource
		f.CurrentLine = -1
	}
	return nil
}
