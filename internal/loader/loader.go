// Package loader opens companion extension binaries and resolves the host
// symbols declared in the symbols registry against them.
package loader

import (
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/yousuf/hookbridge/internal/binname"
	"github.com/yousuf/hookbridge/internal/logging"
	"github.com/yousuf/hookbridge/internal/platform"
	"github.com/yousuf/hookbridge/internal/symbols"
)

var (
	ErrClosed              = errors.New("module closed")
	ErrNoTargets           = errors.New("symbol has no targets on this platform")
	ErrNoImage             = errors.New("no mapped image to scan for signatures")
	ErrSignatureNotFound   = errors.New("signature not found in mapped image")
	ErrUnsupportedPlatform = errors.New("dynamic loading is not supported on this platform")
)

// SymbolError reports why a symbol could not be bound.
type SymbolError struct {
	Symbol string
	Module string
	Errs   []error // one per target tried
}

func (e *SymbolError) Error() string {
	return fmt.Sprintf("symbol %q not found in %s: %v", e.Symbol, e.Module, errors.Join(e.Errs...))
}

func (e *SymbolError) Unwrap() []error { return e.Errs }

// Region is a readable span of a loaded module's code. Data aliases the
// module's memory and is only valid until the module is closed.
type Region struct {
	Base uintptr
	Data []byte
}

// Module is an opened binary.
type Module struct {
	path   string
	handle uintptr

	mapped     bool
	regions    []Region
	regionsErr error
}

// Open loads the binary for the logical module name from dir, using the
// platform naming convention.
func Open(dir, name string, opts binname.Options) (*Module, error) {
	return OpenPath(filepath.Join(dir, binname.FileName(name, opts)))
}

// OpenPath loads the binary at path.
func OpenPath(path string) (*Module, error) {
	handle, err := dlopen(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	logging.Logger().Debug("module loaded", zap.String("path", path))
	return &Module{path: path, handle: handle}, nil
}

// Path returns the file the module was loaded from.
func (m *Module) Path() string { return m.path }

// Lookup resolves an exported name.
func (m *Module) Lookup(name string) (uintptr, error) {
	if m.handle == 0 {
		return 0, ErrClosed
	}
	return dlsym(m.handle, name)
}

// Regions returns the module's mapped code, located on first use.
func (m *Module) Regions() ([]Region, error) {
	if m.handle == 0 {
		return nil, ErrClosed
	}
	if !m.mapped {
		m.regions, m.regionsErr = mappedRegions(m.handle, m.path)
		m.mapped = true
	}
	return m.regions, m.regionsErr
}

// Resolve tries the symbol's targets for the current platform in order and
// returns the first address found. Signature targets are matched against
// the module's mapped code.
func (m *Module) Resolve(sym symbols.Symbol) (uintptr, error) {
	regions, err := m.Regions()
	if err != nil && !errors.Is(err, ErrClosed) {
		logging.Logger().Debug("module image unavailable",
			zap.String("path", m.path), zap.Error(err))
	}
	return m.ResolveIn(sym, regions)
}

// ResolveIn is Resolve with signature targets matched against regions
// instead of the module's own mapping.
func (m *Module) ResolveIn(sym symbols.Symbol, regions []Region) (uintptr, error) {
	targets := sym.Targets(platform.Current)
	if len(targets) == 0 {
		return 0, &SymbolError{Symbol: sym.Name(), Module: m.path, Errs: []error{ErrNoTargets}}
	}

	addr, errs := m.resolveTargets(targets, regions)
	if len(errs) == len(targets) {
		return 0, &SymbolError{Symbol: sym.Name(), Module: m.path, Errs: errs}
	}
	return addr, nil
}

func (m *Module) resolveTargets(targets []symbols.Target, regions []Region) (uintptr, []error) {
	var errs []error
	for _, t := range targets {
		var addr uintptr
		var err error
		if t.Kind == symbols.BySignature {
			addr, err = Scan(t.Signature, regions)
		} else {
			addr, err = m.Lookup(t.Name)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t, err))
			continue
		}
		return addr, errs
	}
	return 0, errs
}

// Scan returns the address of the first match of p, searching regions in
// order.
func Scan(p symbols.Pattern, regions []Region) (uintptr, error) {
	if len(regions) == 0 {
		return 0, ErrNoImage
	}
	for _, r := range regions {
		if off := p.Match(r.Data); off >= 0 {
			return r.Base + uintptr(off), nil
		}
	}
	return 0, ErrSignatureNotFound
}

// Bind resolves every symbol of reg. Symbols that resolve are returned by
// logical name; the others are reported together in the error.
func (m *Module) Bind(reg *symbols.Registry) (map[string]uintptr, error) {
	bound := make(map[string]uintptr)
	var errs []error
	for _, sym := range reg.All() {
		addr, err := m.Resolve(sym)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		bound[sym.Name()] = addr
		logging.Logger().Debug("symbol bound",
			zap.String("symbol", sym.Name()),
			zap.String("role", sym.Role().String()),
			zap.Uintptr("addr", addr))
	}
	return bound, errors.Join(errs...)
}

// Close unloads the module.
func (m *Module) Close() error {
	if m.handle == 0 {
		return nil
	}
	err := dlclose(m.handle)
	m.handle = 0
	m.regions = nil
	return err
}
