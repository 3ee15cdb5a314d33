package sandbox

import (
	"context"
	"fmt"

	extism "github.com/extism/go-sdk"
	"go.uber.org/zap"

	"github.com/yousuf/hookbridge/internal/logging"
)

// Sandbox is a WebAssembly extension bound to one runtime through its Host
type Sandbox struct {
	name   string
	plugin *extism.Plugin
	ctx    context.Context
}

// NewSandbox loads the extension at wasmPath and links it against host
func NewSandbox(ctx context.Context, name, wasmPath string, host *Host) (*Sandbox, error) {
	manifest := extism.Manifest{
		Wasm: []extism.Wasm{
			extism.WasmFile{
				Path: wasmPath,
				Name: name,
			},
		},
	}

	config := extism.PluginConfig{
		EnableWasi: true,
	}

	plugin, err := extism.NewPlugin(ctx, manifest, config, hostFunctions(host))
	if err != nil {
		return nil, fmt.Errorf("failed to create plugin %s: %w", name, err)
	}

	log := logging.Logger().With(zap.String("extension", name))
	plugin.SetLogger(func(level extism.LogLevel, message string) {
		switch level {
		case extism.LogLevelError:
			log.Error(message)
		case extism.LogLevelWarn:
			log.Warn(message)
		case extism.LogLevelInfo:
			log.Info(message)
		default:
			log.Debug(message)
		}
	})

	return &Sandbox{name: name, plugin: plugin, ctx: ctx}, nil
}

// Name returns the extension name
func (s *Sandbox) Name() string { return s.name }

// Has reports whether the extension exports a function
func (s *Sandbox) Has(export string) bool {
	return s.plugin.FunctionExists(export)
}

// Call invokes an exported function of the extension
func (s *Sandbox) Call(export string, input []byte) ([]byte, error) {
	exit, output, err := s.plugin.Call(export, input)
	if err != nil {
		return nil, fmt.Errorf("extension %s: %s failed: %w", s.name, export, err)
	}
	if exit != 0 {
		return nil, fmt.Errorf("extension %s: %s exited with code %d", s.name, export, exit)
	}
	return output, nil
}

// Close closes the sandbox and frees resources
func (s *Sandbox) Close() {
	if s.plugin != nil {
		s.plugin.Close(s.ctx)
	}
}
