// Package symbols declares the functions and globals the host process
// exports for extension modules to bind against at load time.
//
// Descriptors only say what must be resolved and for which role; resolving
// them to live addresses is the loader's job.
package symbols

import (
	"fmt"

	"github.com/yousuf/hookbridge/internal/platform"
)

// Role partitions symbols by the host process role that provides them.
type Role uint8

const (
	// Universal symbols exist in every host process.
	Universal Role = iota
	// Server symbols exist only when the host runs in the server role.
	Server
)

func (r Role) String() string {
	switch r {
	case Universal:
		return "universal"
	case Server:
		return "server"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// Capabilities is the set of roles the running host provides. It is decided
// once at startup.
type Capabilities uint8

// CapServer marks a host running in the server role.
const CapServer Capabilities = 1 << iota

// CapabilitiesFor maps a configured role name to its capability set.
func CapabilitiesFor(role string) (Capabilities, error) {
	switch role {
	case "", "client":
		return 0, nil
	case "server":
		return CapServer, nil
	default:
		return 0, fmt.Errorf("unknown host role %q (must be client or server)", role)
	}
}

// Provides reports whether a host with these capabilities exports symbols
// of role r.
func (c Capabilities) Provides(r Role) bool {
	switch r {
	case Universal:
		return true
	case Server:
		return c&CapServer != 0
	default:
		return false
	}
}

// Kind says how a Target is located in a loaded image.
type Kind uint8

const (
	ByName Kind = iota
	BySignature
)

func (k Kind) String() string {
	if k == BySignature {
		return "signature"
	}
	return "name"
}

// Target is one way of locating a symbol on one platform family.
type Target struct {
	Kind      Kind
	Name      string  // exported name, for ByName
	Signature Pattern // byte pattern, for BySignature
}

func (t Target) String() string {
	if t.Kind == BySignature {
		return "sig:" + t.Signature.String()
	}
	return t.Name
}

// FromName returns a target located by exported name.
func FromName(name string) Target {
	return Target{Kind: ByName, Name: name}
}

// FromSignature returns a target located by byte signature. It panics on a
// malformed pattern, so it is only meant for package-level tables.
func FromSignature(sig string) Target {
	return Target{Kind: BySignature, Signature: MustParsePattern(sig)}
}

// Symbol is an immutable descriptor: a logical name plus the candidate
// targets to try on each platform family, in order.
type Symbol struct {
	name    string
	role    Role
	targets map[platform.Family][]Target
}

func newSymbol(name string, role Role, targets map[platform.Family][]Target) Symbol {
	return Symbol{name: name, role: role, targets: targets}
}

// Name returns the logical name.
func (s Symbol) Name() string { return s.name }

// Role returns the host role that provides the symbol.
func (s Symbol) Role() Role { return s.role }

// Targets returns a copy of the candidates for family f.
func (s Symbol) Targets(f platform.Family) []Target {
	src := s.targets[f]
	out := make([]Target, len(src))
	copy(out, src)
	return out
}
