package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/yousuf/hookbridge/internal/binname"
	"github.com/yousuf/hookbridge/internal/hook"
	"github.com/yousuf/hookbridge/internal/platform"
	"github.com/yousuf/hookbridge/internal/session"
	"github.com/yousuf/hookbridge/internal/symbols"
)

// RunHookArgs represents the arguments for the run_hook tool
type RunHookArgs struct {
	Hook string   `json:"hook" jsonschema:"Name of the hook to dispatch, e.g. 'Think' or 'PlayerSay'"`
	Args []string `json:"args,omitempty" jsonschema:"String arguments passed to the hook handlers, in order"`
	Rets int      `json:"rets,omitempty" jsonschema:"Number of results to collect (default: 0)"`
}

// ExecLuaArgs represents the arguments for the exec_lua tool
type ExecLuaArgs struct {
	Code  string `json:"code" jsonschema:"Lua source to run in the session runtime"`
	Chunk string `json:"chunk,omitempty" jsonschema:"Chunk name shown in diagnostics (default: 'exec_lua')"`
}

// CallExtensionArgs represents the arguments for the call_extension tool
type CallExtensionArgs struct {
	Extension string `json:"extension" jsonschema:"Name of a configured WebAssembly extension"`
	Export    string `json:"export" jsonschema:"Exported function to call"`
	Input     string `json:"input,omitempty" jsonschema:"Input passed to the export"`
}

// BinaryNameArgs represents the arguments for the binary_name tool
type BinaryNameArgs struct {
	Name         string `json:"name" jsonschema:"Base name of the module, e.g. 'engine'"`
	Family       string `json:"family,omitempty" jsonschema:"Platform family: windows, linux or apple (default: this host)"`
	LibPrefix    *bool  `json:"lib_prefix,omitempty" jsonschema:"Prepend 'lib' on Linux (default: true)"`
	ServerSuffix *bool  `json:"server_suffix,omitempty" jsonschema:"Append '_srv' on Linux (default: true)"`
	ExtraPrefix  string `json:"extra_prefix,omitempty" jsonschema:"Prefix placed before everything else, e.g. 'bin/'"`
}

// ListSymbolsArgs represents the arguments for the list_symbols tool
type ListSymbolsArgs struct {
	Family string `json:"family,omitempty" jsonschema:"Platform family whose targets to show (default: this host)"`
}

// Options carries the process-wide state tools report on
type Options struct {
	Registry *symbols.Registry
	// Bindings maps module name to the addresses bound in it, by symbol name
	Bindings map[string]map[string]uintptr
}

// NewMcpServer creates and configures the MCP server
func NewMcpServer(sessionMgr *session.Manager, opts Options) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "hookbridge",
		Version: "1.0.0",
	}, &mcp.ServerOptions{
		Instructions: `
Hook runtime inspection

Every session owns a Lua runtime with the hook library installed, the
configured scripts loaded and the configured extensions bound to it.

Available Tools:
1. "run_hook" - Dispatch a hook through hook.Run and collect its results
2. "exec_lua" - Run Lua source in the session runtime (e.g. to hook.Add handlers)
3. "call_extension" - Call an export of a WebAssembly extension
4. "binary_name" - Compute the file name of a companion binary for a platform
5. "list_symbols" - List the host symbols this role exports and where they were bound

Failing hooks are reported with a numbered traceback; frames of transpiled
chunks are mapped back to their original sources when a source map is configured.
`,
	})

	server.AddReceivingMiddleware(createSessionInjectionMiddleware(sessionMgr))
	server.AddReceivingMiddleware(createLoggingMiddleware())

	mcp.AddTool(server, &mcp.Tool{
		Name:        "run_hook",
		Description: "Dispatch a hook by name through the runtime's hook.Run with string arguments. Returns the collected results as JSON, or the traceback when a handler fails.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args RunHookArgs) (*mcp.CallToolResult, any, error) {
		sessionCtx, err := getSessionFromContext(ctx)
		if err != nil {
			return nil, nil, err
		}
		if args.Hook == "" {
			return nil, nil, errors.New("hook is required")
		}
		if args.Rets < 0 {
			return nil, nil, errors.New("rets must not be negative")
		}

		hookArgs := make([]any, len(args.Args))
		for i, a := range args.Args {
			hookArgs[i] = a
		}

		results, err := sessionCtx.RunHook(ctx, args.Hook, hookArgs, args.Rets)
		sessionCtx.DrainOutput()

		var callErr *hook.CallError
		switch {
		case errors.As(err, &callErr):
			return errorResult(fmt.Sprintf("hook %q failed: %s", callErr.Hook, callErr.Trace)), nil, nil
		case err != nil:
			return errorResult(err.Error()), nil, nil
		}

		if results == nil {
			results = []any{}
		}
		data, err := json.Marshal(results)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode results: %w", err)
		}
		return textResult(string(data)), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "exec_lua",
		Description: "Run a chunk of Lua in the session runtime. Anything reported through ErrorNoHalt while it runs is returned.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ExecLuaArgs) (*mcp.CallToolResult, any, error) {
		sessionCtx, err := getSessionFromContext(ctx)
		if err != nil {
			return nil, nil, err
		}
		chunk := args.Chunk
		if chunk == "" {
			chunk = "exec_lua"
		}

		err = sessionCtx.Exec(ctx, args.Code, chunk)
		output := sessionCtx.DrainOutput()
		if err != nil {
			return errorResult(strings.TrimSpace(output + err.Error())), nil, nil
		}
		if output == "" {
			output = "ok"
		}
		return textResult(output), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "call_extension",
		Description: "Call an exported function of a WebAssembly extension loaded in the session. Returns the export's output.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args CallExtensionArgs) (*mcp.CallToolResult, any, error) {
		sessionCtx, err := getSessionFromContext(ctx)
		if err != nil {
			return nil, nil, err
		}

		out, err := sessionCtx.CallExtension(args.Extension, args.Export, []byte(args.Input))
		sessionCtx.DrainOutput()
		if err != nil {
			return errorResult(err.Error()), nil, nil
		}
		return textResult(string(out)), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "binary_name",
		Description: "Compute the platform-specific file name of a companion binary (e.g. 'engine' -> 'libengine_srv.so' on Linux).",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args BinaryNameArgs) (*mcp.CallToolResult, any, error) {
		if args.Name == "" {
			return nil, nil, errors.New("name is required")
		}
		family, err := familyOrCurrent(args.Family)
		if err != nil {
			return nil, nil, err
		}

		opts := binname.DefaultOptions()
		if args.LibPrefix != nil {
			opts.LibPrefix = *args.LibPrefix
		}
		if args.ServerSuffix != nil {
			opts.ServerSuffix = *args.ServerSuffix
		}
		opts.ExtraPrefix = args.ExtraPrefix

		return textResult(binname.For(family, args.Name, opts)), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_symbols",
		Description: "List the host symbols exported for the configured role with their candidate targets, and the modules they were bound in.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ListSymbolsArgs) (*mcp.CallToolResult, any, error) {
		if opts.Registry == nil {
			return nil, nil, errors.New("no symbol registry configured")
		}
		family, err := familyOrCurrent(args.Family)
		if err != nil {
			return nil, nil, err
		}
		return textResult(describeSymbols(opts.Registry, family, opts.Bindings)), nil, nil
	})

	return server
}

// describeSymbols renders the registry as an indented listing
func describeSymbols(reg *symbols.Registry, family platform.Family, bindings map[string]map[string]uintptr) string {
	modules := make([]string, 0, len(bindings))
	for name := range bindings {
		modules = append(modules, name)
	}
	slices.Sort(modules)

	var b strings.Builder
	fmt.Fprintf(&b, "%s symbols:\n", family)
	for _, sym := range reg.All() {
		fmt.Fprintf(&b, "- %s (%s)\n", sym.Name(), sym.Role())
		for _, t := range sym.Targets(family) {
			fmt.Fprintf(&b, "    %s\n", t)
		}
		for _, module := range modules {
			if addr, ok := bindings[module][sym.Name()]; ok {
				fmt.Fprintf(&b, "    bound in %s at %#x\n", module, addr)
			}
		}
	}
	return b.String()
}

func familyOrCurrent(name string) (platform.Family, error) {
	if name == "" {
		return platform.Current, nil
	}
	return platform.ParseFamily(name)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func errorResult(text string) *mcp.CallToolResult {
	res := textResult(text)
	res.IsError = true
	return res
}
