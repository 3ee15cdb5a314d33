package server

import (
	"context"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/yousuf/hookbridge/internal/config"
	"github.com/yousuf/hookbridge/internal/session"
	"github.com/yousuf/hookbridge/internal/symbols"
)

func connect(t *testing.T, opts Options) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	sessionMgr, err := session.NewManager(&config.Config{})
	require.NoError(t, err)
	t.Cleanup(sessionMgr.CloseAll)

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	serverSession, err := NewMcpServer(sessionMgr, opts).Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "hookbridge-test-client", Version: "1.0.0"}, nil)
	clientSession, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = clientSession.Close() })

	return clientSession
}

func callTool(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return text.Text, res.IsError
}

func TestListTools(t *testing.T) {
	cs := connect(t, Options{})

	res, err := cs.ListTools(context.Background(), &mcp.ListToolsParams{})
	require.NoError(t, err)

	names := make([]string, 0, len(res.Tools))
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	require.ElementsMatch(t, []string{"run_hook", "exec_lua", "call_extension", "binary_name", "list_symbols"}, names)
}

func TestRunHook(t *testing.T) {
	cs := connect(t, Options{})

	out, isErr := callTool(t, cs, "exec_lua", map[string]any{
		"code": `hook.Add("Greet", "test", function(who) return "hello " .. who end)`,
	})
	require.False(t, isErr, out)
	require.Equal(t, "ok", out)

	out, isErr = callTool(t, cs, "run_hook", map[string]any{"hook": "Greet", "args": []string{"world"}, "rets": 1})
	require.False(t, isErr, out)
	require.JSONEq(t, `["hello world"]`, out)

	out, isErr = callTool(t, cs, "run_hook", map[string]any{"hook": "Nobody"})
	require.False(t, isErr, out)
	require.JSONEq(t, `[]`, out)
}

func TestRunHookFailure(t *testing.T) {
	cs := connect(t, Options{})

	_, isErr := callTool(t, cs, "exec_lua", map[string]any{
		"code":  "hook.Add('Boom', 'test', function()\nerror('kaboom')\nend)",
		"chunk": "boom.lua",
	})
	require.False(t, isErr)

	out, isErr := callTool(t, cs, "run_hook", map[string]any{"hook": "Boom"})
	require.True(t, isErr)
	require.Contains(t, out, `hook "Boom" failed`)
	require.Contains(t, out, "kaboom")
	require.Contains(t, out, "\n  1. ")
	require.Contains(t, out, "boom.lua:2")
}

func TestExecLua(t *testing.T) {
	cs := connect(t, Options{})

	out, isErr := callTool(t, cs, "exec_lua", map[string]any{"code": `ErrorNoHalt("careful ", 42)`})
	require.False(t, isErr)
	require.Equal(t, "careful 42", out)

	out, isErr = callTool(t, cs, "exec_lua", map[string]any{"code": `this is not lua`})
	require.True(t, isErr)
	require.Contains(t, out, "exec_lua")
}

func TestCallExtensionUnknown(t *testing.T) {
	cs := connect(t, Options{})

	out, isErr := callTool(t, cs, "call_extension", map[string]any{"extension": "greeter", "export": "greet"})
	require.True(t, isErr)
	require.Contains(t, out, "not loaded")
}

func TestBinaryName(t *testing.T) {
	cs := connect(t, Options{})

	out, isErr := callTool(t, cs, "binary_name", map[string]any{"name": "server", "family": "windows"})
	require.False(t, isErr)
	require.Equal(t, "server.dll", out)

	out, isErr = callTool(t, cs, "binary_name", map[string]any{"name": "engine", "family": "linux", "server_suffix": false})
	require.False(t, isErr)
	require.Equal(t, "libengine.so", out)
}

func TestListSymbols(t *testing.T) {
	cs := connect(t, Options{
		Registry: symbols.NewRegistry(symbols.CapServer),
		Bindings: map[string]map[string]uintptr{
			"engine": {"g_pFullFileSystem": 0x1000},
		},
	})

	out, isErr := callTool(t, cs, "list_symbols", map[string]any{"family": "linux"})
	require.False(t, isErr)
	require.Contains(t, out, "linux symbols:")
	require.Contains(t, out, "- g_pFullFileSystem (universal)")
	require.Contains(t, out, "bound in engine at 0x1000")
	require.Contains(t, out, "- HandleClientLuaError (server)")
	require.Contains(t, out, "_Z20HandleClientLuaErrorP11CBasePlayerPKc")
}

func TestListSymbolsClientRole(t *testing.T) {
	cs := connect(t, Options{Registry: symbols.NewRegistry(0)})

	out, isErr := callTool(t, cs, "list_symbols", map[string]any{"family": "windows"})
	require.False(t, isErr)
	require.Contains(t, out, "g_pFullFileSystem")
	require.NotContains(t, out, "HandleClientLuaError")
}
