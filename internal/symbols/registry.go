package symbols

// Registry is the read-only set of symbols a host with a given capability
// set exports. It is built once and never mutated.
type Registry struct {
	caps    Capabilities
	symbols []Symbol
	byName  map[string]Symbol
}

// NewRegistry returns the registry for a host with capabilities caps.
func NewRegistry(caps Capabilities) *Registry {
	r := &Registry{
		caps:   caps,
		byName: make(map[string]Symbol),
	}
	for _, set := range [][]Symbol{universalSymbols, serverSymbols} {
		for _, s := range set {
			if !caps.Provides(s.Role()) {
				continue
			}
			r.symbols = append(r.symbols, s)
			r.byName[s.Name()] = s
		}
	}
	return r
}

// Capabilities returns the capability set the registry was built for.
func (r *Registry) Capabilities() Capabilities { return r.caps }

// All returns every symbol, universal ones first.
func (r *Registry) All() []Symbol {
	out := make([]Symbol, len(r.symbols))
	copy(out, r.symbols)
	return out
}

// Universal returns the symbols present regardless of host role.
func (r *Registry) Universal() []Symbol { return r.filter(Universal) }

// ServerOnly returns the server-role symbols, empty unless the registry was
// built with CapServer.
func (r *Registry) ServerOnly() []Symbol { return r.filter(Server) }

// Lookup finds a symbol by logical name.
func (r *Registry) Lookup(name string) (Symbol, bool) {
	s, ok := r.byName[name]
	return s, ok
}

func (r *Registry) filter(role Role) []Symbol {
	var out []Symbol
	for _, s := range r.symbols {
		if s.Role() == role {
			out = append(out, s)
		}
	}
	return out
}
