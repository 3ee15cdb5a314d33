package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/yousuf/hookbridge/internal/config"
	"github.com/yousuf/hookbridge/internal/hook"
	"github.com/yousuf/hookbridge/internal/logging"
	"github.com/yousuf/hookbridge/internal/luavm"
	"github.com/yousuf/hookbridge/internal/sandbox"
	"github.com/yousuf/hookbridge/internal/sourcemap"
)

// Context is one session's runtime together with the extensions bound to it.
// The runtime's stack is exclusively owned by whoever holds mu.
type Context struct {
	SessionID string

	mu         sync.Mutex
	state      *luavm.State
	host       *sandbox.Host
	mapper     *sourcemap.Mapper
	extensions map[string]*sandbox.Sandbox
	output     bytes.Buffer // reports not yet drained
}

// NewContext starts a runtime for sessionID and bootstraps it from cfg: the
// hook library, source maps, extensions, then scripts in order. fs may be nil.
func NewContext(ctx context.Context, sessionID string, cfg *config.Config, fs *sandbox.FileSystem) (*Context, error) {
	c := &Context{
		SessionID:  sessionID,
		state:      luavm.New(luavm.Options{}),
		mapper:     sourcemap.NewMapper(),
		extensions: make(map[string]*sandbox.Sandbox),
	}

	log := logging.Logger().With(zap.String("session", sessionID))
	reporter := logging.NewReporter(log, &c.output)
	c.host = sandbox.NewHost(c.state, reporter, c.mapper, fs)
	luavm.InstallReporter(c.state, c.host)

	if err := c.bootstrap(ctx, cfg); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Context) bootstrap(ctx context.Context, cfg *config.Config) error {
	if cfg.InstallHookLibrary() {
		if err := luavm.InstallHookLibrary(c.state); err != nil {
			return fmt.Errorf("failed to install hook library: %w", err)
		}
	}

	for chunk, path := range cfg.SourceMaps {
		if err := c.mapper.AddFile(chunk, path); err != nil {
			return err
		}
	}

	for _, ext := range cfg.Extensions {
		sb, err := sandbox.NewSandbox(ctx, ext.Name, ext.Wasm, c.host)
		if err != nil {
			return err
		}
		c.extensions[ext.Name] = sb
		if ext.Init != "" {
			if _, err := sb.Call(ext.Init, nil); err != nil {
				return fmt.Errorf("failed to initialize extension: %w", err)
			}
		}
	}

	c.state.SetContext(ctx)
	defer c.state.RemoveContext()
	for _, script := range cfg.Scripts {
		if err := c.state.DoFile(script); err != nil {
			return err
		}
	}

	return nil
}

// RunHook dispatches name through the runtime's hook.Run. A failing hook
// yields a *hook.CallError whose trace is mapped to original sources.
func (c *Context) RunHook(ctx context.Context, name string, args []any, rets int) ([]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.SetContext(ctx)
	defer c.state.RemoveContext()

	results, err := hook.Run(c.state, name, args, rets, hook.CallOptions{
		PrintError: true,
		Reporter:   c.host,
	})
	var callErr *hook.CallError
	if errors.As(err, &callErr) {
		return nil, &hook.CallError{Hook: callErr.Hook, Trace: c.mapper.Map(callErr.Trace)}
	}
	return results, err
}

// Exec runs src as a chunk named name in the runtime.
func (c *Context) Exec(ctx context.Context, src, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.SetContext(ctx)
	defer c.state.RemoveContext()

	if err := c.state.DoString(src, name); err != nil {
		return fmt.Errorf("%s", c.mapper.Map(err.Error()))
	}
	return nil
}

// CallExtension invokes an export of a loaded extension. Host functions it
// calls back into run under the same hold on the runtime.
func (c *Context) CallExtension(name, export string, input []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sb, ok := c.extensions[name]
	if !ok {
		return nil, fmt.Errorf("extension %q not loaded", name)
	}
	return sb.Call(export, input)
}

// Extensions returns the names of the loaded extensions.
func (c *Context) Extensions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.extensions))
	for name := range c.extensions {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// DrainOutput returns and clears everything reported since the last drain.
func (c *Context) DrainOutput() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := c.output.String()
	c.output.Reset()
	return out
}

// Close releases the extensions and the runtime.
func (c *Context) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, sb := range c.extensions {
		sb.Close()
	}
	c.extensions = nil
	c.state.Close()
}
