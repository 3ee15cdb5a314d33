package luavm

import (
	_ "embed"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/yousuf/hookbridge/internal/hook"
)

// hookLibrary is the dispatcher installed as the global hook table.
//
//go:embed hook.lua
var hookLibrary string

// HookLibraryChunk is the chunk name the dispatcher is loaded under, as it
// appears in traces.
const HookLibraryChunk = "hook.lua"

// InstallHookLibrary defines the global hook table with Add, Remove,
// GetTable, Call and Run.
func InstallHookLibrary(s *State) error {
	return s.DoString(hookLibrary, HookLibraryChunk)
}

// InstallReporter defines ErrorNoHalt(...), which joins its arguments and
// reports them through r without raising an error.
func InstallReporter(s *State, r hook.Reporter) {
	s.L.SetGlobal("ErrorNoHalt", s.L.NewFunction(func(L *lua.LState) int {
		n := L.GetTop()
		parts := make([]string, 0, n)
		for i := 1; i <= n; i++ {
			parts = append(parts, L.ToStringMeta(L.Get(i)).String())
		}
		r.ErrorNoHalt("%s", strings.Join(parts, ""))
		return 0
	}))
}
