package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"gopkg.in/yaml.v3"

	"github.com/yousuf/hookbridge/internal/binname"
	"github.com/yousuf/hookbridge/internal/symbols"
)

// Config represents the main configuration structure
type Config struct {
	Role   string `yaml:"role" hcl:"role,optional"`     // "client" or "server"
	Listen string `yaml:"listen" hcl:"listen,optional"` // e.g. ":3000"

	// HookLibrary installs the built-in hook table. Defaults to true.
	HookLibrary *bool `yaml:"hook_library" hcl:"hook_library,optional"`
	// Scripts run in every new runtime, in order
	Scripts []string `yaml:"scripts" hcl:"scripts,optional"`
	// SourceMaps maps chunk names to source map files
	SourceMaps map[string]string `yaml:"source_maps" hcl:"source_maps,optional"`

	Modules    []ModuleConfig    `yaml:"modules" hcl:"module,block"`
	Extensions []ExtensionConfig `yaml:"extensions" hcl:"extension,block"`
	Mounts     []MountConfig     `yaml:"mounts" hcl:"mount,block"`
	Log        *LogConfig        `yaml:"log" hcl:"log,block"`
}

// ModuleConfig names a companion binary to load and bind host symbols in
type ModuleConfig struct {
	Name         string `yaml:"name" hcl:"name,label"`
	Dir          string `yaml:"dir" hcl:"dir,optional"`
	LibPrefix    *bool  `yaml:"lib_prefix" hcl:"lib_prefix,optional"`
	ServerSuffix *bool  `yaml:"server_suffix" hcl:"server_suffix,optional"`
	ExtraPrefix  string `yaml:"extra_prefix" hcl:"extra_prefix,optional"`
}

// ExtensionConfig is a WebAssembly extension run in each runtime
type ExtensionConfig struct {
	Name string `yaml:"name" hcl:"name,label"`
	Wasm string `yaml:"wasm" hcl:"wasm"`
	// Init is the export called once the extension is loaded
	Init string `yaml:"init" hcl:"init,optional"`
}

// MountConfig exposes a host directory to extensions
type MountConfig struct {
	Name         string `yaml:"name" hcl:"name,label"`
	Root         string `yaml:"root" hcl:"root"`
	ReadOnly     bool   `yaml:"read_only" hcl:"read_only,optional"`
	MaxFileSize  int64  `yaml:"max_file_size" hcl:"max_file_size,optional"`
	MaxFiles     int    `yaml:"max_files" hcl:"max_files,optional"`
	MaxTotalSize int64  `yaml:"max_total_size" hcl:"max_total_size,optional"`
}

// LogConfig configures the process logger
type LogConfig struct {
	Level       string `yaml:"level" hcl:"level,optional"`
	Development bool   `yaml:"development" hcl:"development,optional"`
}

// Load reads and parses the configuration file. YAML files (.yaml, .yml)
// and HCL files (.hcl, or .json in HCL's JSON syntax) are accepted.
// Relative paths inside the file are resolved against its directory.
func Load(configPath string) (*Config, error) {
	var config Config

	switch ext := strings.ToLower(filepath.Ext(configPath)); ext {
	case ".yaml", ".yml":
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case ".hcl", ".json":
		if err := hclsimple.DecodeFile(configPath, nil, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	config.resolvePaths(filepath.Dir(configPath))
	return &config, nil
}

// Capabilities returns the symbol capabilities of the configured role.
func (c *Config) Capabilities() symbols.Capabilities {
	caps, _ := symbols.CapabilitiesFor(c.Role)
	return caps
}

// InstallHookLibrary reports whether the built-in hook table is wanted.
func (c *Config) InstallHookLibrary() bool {
	return c.HookLibrary == nil || *c.HookLibrary
}

// LogLevel returns the configured log level, "info" by default.
func (c *Config) LogLevel() (level string, development bool) {
	if c.Log == nil || c.Log.Level == "" {
		return "info", c.Log != nil && c.Log.Development
	}
	return c.Log.Level, c.Log.Development
}

// Options returns the binary naming options of the module, defaulting to
// binname.DefaultOptions.
func (m ModuleConfig) Options() binname.Options {
	opts := binname.DefaultOptions()
	if m.LibPrefix != nil {
		opts.LibPrefix = *m.LibPrefix
	}
	if m.ServerSuffix != nil {
		opts.ServerSuffix = *m.ServerSuffix
	}
	opts.ExtraPrefix = m.ExtraPrefix
	return opts
}

func (c *Config) resolvePaths(base string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}

	for i, s := range c.Scripts {
		c.Scripts[i] = abs(s)
	}
	for chunk, p := range c.SourceMaps {
		c.SourceMaps[chunk] = abs(p)
	}
	for i := range c.Modules {
		c.Modules[i].Dir = abs(c.Modules[i].Dir)
	}
	for i := range c.Extensions {
		c.Extensions[i].Wasm = abs(c.Extensions[i].Wasm)
	}
	for i := range c.Mounts {
		c.Mounts[i].Root = abs(c.Mounts[i].Root)
	}
}

// validate checks if the configuration is valid
func validate(config *Config) error {
	if _, err := symbols.CapabilitiesFor(config.Role); err != nil {
		return err
	}

	for i, s := range config.Scripts {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("script %d: path is empty", i)
		}
	}

	seen := make(map[string]bool)
	for _, m := range config.Modules {
		if m.Name == "" {
			return fmt.Errorf("module: name is required")
		}
		if seen["module:"+m.Name] {
			return fmt.Errorf("module %q: declared twice", m.Name)
		}
		seen["module:"+m.Name] = true
	}

	for _, ext := range config.Extensions {
		if ext.Name == "" {
			return fmt.Errorf("extension: name is required")
		}
		if ext.Wasm == "" {
			return fmt.Errorf("extension %q: wasm is required", ext.Name)
		}
		if seen["extension:"+ext.Name] {
			return fmt.Errorf("extension %q: declared twice", ext.Name)
		}
		seen["extension:"+ext.Name] = true
	}

	for _, m := range config.Mounts {
		if m.Name == "" || strings.ContainsAny(m.Name, `/\`) {
			return fmt.Errorf("mount %q: invalid name", m.Name)
		}
		if m.Root == "" {
			return fmt.Errorf("mount %q: root is required", m.Name)
		}
		if m.MaxFileSize < 0 || m.MaxFiles < 0 || m.MaxTotalSize < 0 {
			return fmt.Errorf("mount %q: limits must not be negative", m.Name)
		}
		if seen["mount:"+m.Name] {
			return fmt.Errorf("mount %q: declared twice", m.Name)
		}
		seen["mount:"+m.Name] = true
	}

	return nil
}
