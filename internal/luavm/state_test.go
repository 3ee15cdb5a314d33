package luavm

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"

	"github.com/yousuf/hookbridge/internal/hook"
)

type recordingReporter struct {
	reports []string
}

func (r *recordingReporter) ErrorNoHalt(format string, args ...any) {
	r.reports = append(r.reports, fmt.Sprintf(format, args...))
}

func newState(t *testing.T) *State {
	t.Helper()
	s := New(Options{})
	t.Cleanup(s.Close)
	return s
}

func newHookState(t *testing.T) *State {
	t.Helper()
	s := newState(t)
	require.NoError(t, InstallHookLibrary(s))
	return s
}

func TestPushHookRunWithoutDispatcher(t *testing.T) {
	s := newState(t)

	require.False(t, hook.PushHookRun(s, "Think"))
	require.Equal(t, 0, s.GetTop())

	require.NoError(t, s.DoString(`hook = {}`, "setup.lua"))
	require.False(t, hook.PushHookRun(s, "Think"))
	require.Equal(t, 0, s.GetTop())

	require.NoError(t, s.DoString(`hook = { Run = 5 }`, "setup.lua"))
	require.False(t, hook.PushHookRun(s, "Think"))
	require.Equal(t, 0, s.GetTop())
}

func TestCallHookRunReturnsResults(t *testing.T) {
	s := newHookState(t)
	require.NoError(t, s.DoString(`
		hook.Add("Sum", "test", function(a, b) return a + b, "done" end)
	`, "addon.lua"))
	s.PushString("below")

	require.True(t, hook.PushHookRun(s, "Sum"))
	require.Equal(t, 4, s.GetTop())
	s.PushValue(2)
	s.PushValue(3)

	require.True(t, hook.CallHookRun(s, 2, 2, hook.DefaultCallOptions(nil)))
	require.Equal(t, 3, s.GetTop())
	require.Equal(t, "below", s.StringAt(1))
	require.Equal(t, float64(5), s.Value(-2))
	require.Equal(t, "done", s.Value(-1))
}

func TestCallHookRunFailure(t *testing.T) {
	s := newHookState(t)
	require.NoError(t, s.DoString(`
		local function explode(reason)
			error("exploded: " .. reason)
		end
		hook.Add("Fail", "test", function(reason) explode(reason) end)
	`, "addon.lua"))

	t.Run("keep error", func(t *testing.T) {
		rep := &recordingReporter{}
		require.True(t, hook.PushHookRun(s, "Fail"))
		s.PushString("bad input")

		ok := hook.CallHookRun(s, 1, 1, hook.CallOptions{PrintError: true, PopError: false, Reporter: rep})

		require.False(t, ok)
		require.Equal(t, 1, s.GetTop())
		diag := s.StringAt(-1)
		require.Contains(t, diag, "exploded: bad input")
		require.Contains(t, diag, "\n  1. ")
		require.Contains(t, diag, "addon.lua:")
		require.Contains(t, diag, HookLibraryChunk+":")
		require.Len(t, rep.reports, 1)
		require.Equal(t, "\n"+diag+"\n\n", rep.reports[0])
		s.Pop(1)
	})

	t.Run("pop error", func(t *testing.T) {
		rep := &recordingReporter{}
		require.True(t, hook.PushHookRun(s, "Fail"))
		s.PushString("again")

		require.False(t, hook.CallHookRun(s, 1, 0, hook.DefaultCallOptions(rep)))
		require.Equal(t, 0, s.GetTop())
		require.Len(t, rep.reports, 1)
	})
}

func TestTracebackLinesAreNested(t *testing.T) {
	s := newHookState(t)
	require.NoError(t, s.DoString(`
		local function c() error("deep") end
		local function b() c() end
		local function a() b() end
		hook.Add("Deep", "test", a)
	`, "deep.lua"))

	_, err := hook.Run(s, "Deep", nil, 0, hook.CallOptions{})

	var callErr *hook.CallError
	require.ErrorAs(t, err, &callErr)
	lines := strings.Split(callErr.Trace, "\n")[1:]
	require.GreaterOrEqual(t, len(lines), 4)
	for i, line := range lines {
		indent := len(line) - len(strings.TrimLeft(line, " "))
		require.Equal(t, 2+i, indent, "line %q", line)
		require.True(t, strings.HasPrefix(strings.TrimLeft(line, " "), fmt.Sprintf("%d. ", i+1)), "line %q", line)
	}
	require.Equal(t, 0, s.GetTop())
}

const tailScript = `
local function inner()
	error("deep")
end
local function outer()
	return inner()
end
hook.Add("Tail", "test", outer)
`

// frameLocations returns the "source:line" part of every frame line.
func frameLocations(trace string) []string {
	var locs []string
	for _, line := range strings.Split(trace, "\n")[1:] {
		if i := strings.LastIndex(line, " - "); i >= 0 {
			locs = append(locs, line[i+3:])
		}
	}
	return locs
}

func requireDistinctFrames(t *testing.T, locs []string) {
	t.Helper()
	seen := make(map[string]bool)
	for _, loc := range locs {
		if loc == "[C]:-1" || loc == "(tail call):-1" {
			continue
		}
		require.False(t, seen[loc], "frame %s repeated in %v", loc, locs)
		seen[loc] = true
	}
}

func TestTracebackMarksTailCalls(t *testing.T) {
	s := newHookState(t)
	require.NoError(t, s.DoString(tailScript, "tail.lua"))

	_, err := hook.Run(s, "Tail", nil, 0, hook.CallOptions{})

	var callErr *hook.CallError
	require.ErrorAs(t, err, &callErr)
	locs := frameLocations(callErr.Trace)

	tail := slices.Index(locs, "(tail call):-1")
	require.Greater(t, tail, 0, "trace %q", callErr.Trace)
	require.Equal(t, "tail.lua:3", locs[tail-1])
	require.Equal(t, -1, slices.Index(locs[tail+1:], "(tail call):-1"))
	require.True(t, strings.HasPrefix(locs[len(locs)-1], HookLibraryChunk+":"), "trace %q", callErr.Trace)
	requireDistinctFrames(t, locs)
	require.Contains(t, callErr.Trace, "unknown - (tail call):-1")
}

func TestTracebackAcrossNativeCall(t *testing.T) {
	s := newHookState(t)
	require.NoError(t, s.DoString(tailScript, "tail.lua"))

	var trace string
	s.L.SetGlobal("dispatch", s.L.NewFunction(func(*lua.LState) int {
		_, err := hook.Run(s, "Tail", nil, 0, hook.CallOptions{})
		var callErr *hook.CallError
		if errors.As(err, &callErr) {
			trace = callErr.Trace
		}
		return 0
	}))

	require.NoError(t, s.DoString("dispatch()", "outer.lua"))

	locs := frameLocations(trace)
	require.NotEmpty(t, locs, "trace %q", trace)
	require.Equal(t, "outer.lua:1", locs[len(locs)-1])
	require.Contains(t, locs, "(tail call):-1")
	require.Contains(t, locs, "tail.lua:3")
	requireDistinctFrames(t, locs)
}

func TestRunDepthStableAcrossOutcomes(t *testing.T) {
	s := newHookState(t)
	require.NoError(t, s.DoString(`
		hook.Add("Echo", "test", function(v) return v end)
		hook.Add("Boom", "test", function() error("boom") end)
	`, "addon.lua"))

	for i := 0; i < 50; i++ {
		res, err := hook.Run(s, "Echo", []any{"hi"}, 1, hook.CallOptions{})
		require.NoError(t, err)
		require.Equal(t, []any{"hi"}, res)

		_, err = hook.Run(s, "Boom", nil, 2, hook.CallOptions{})
		require.Error(t, err)

		res, err = hook.Run(s, "Missing", nil, 1, hook.CallOptions{})
		require.NoError(t, err)
		require.Equal(t, []any{nil}, res)
	}
	require.Equal(t, 0, s.GetTop())
}

func TestRunUsesGamemodeFallback(t *testing.T) {
	s := newHookState(t)
	require.NoError(t, s.DoString(`
		GAMEMODE = { PlayerSay = function(gm, text) return text:upper() end }
	`, "gamemode.lua"))

	res, err := hook.Run(s, "PlayerSay", []any{"hello"}, 1, hook.CallOptions{})

	require.NoError(t, err)
	require.Equal(t, []any{"HELLO"}, res)
}

func TestRunCancelledContext(t *testing.T) {
	s := newHookState(t)
	require.NoError(t, s.DoString(`
		hook.Add("Spin", "test", function() while true do end end)
	`, "spin.lua"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.SetContext(ctx)
	defer s.RemoveContext()

	_, err := hook.Run(s, "Spin", nil, 0, hook.CallOptions{})

	require.Error(t, err)
	require.Equal(t, 0, s.GetTop())
}

func TestInstallReporter(t *testing.T) {
	s := newState(t)
	rep := &recordingReporter{}
	InstallReporter(s, rep)

	require.NoError(t, s.DoString(`ErrorNoHalt("count: ", 3, "\n")`, "report.lua"))
	require.Equal(t, []string{"count: 3\n"}, rep.reports)
}

func TestConversions(t *testing.T) {
	s := newState(t)

	s.PushValue([]any{"a", 1.5, true})
	require.Equal(t, []any{"a", 1.5, true}, s.Value(-1))

	s.PushValue(map[string]any{"k": "v"})
	require.Equal(t, map[string]any{"k": "v"}, s.Value(-1))

	s.PushValue(nil)
	require.Equal(t, hook.TypeNil, s.TypeAt(-1))
	require.Nil(t, s.Value(-1))

	require.Equal(t, hook.TypeNone, s.TypeAt(10))
	s.SetTop(0)
}
