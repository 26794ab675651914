package climate

// route maps one capability to its providers. hasAlternate is false for
// capabilities with a single provider (fan control exists only on the
// full-feature source).
type route struct {
	preferred    SourceKind
	alternate    SourceKind
	hasAlternate bool
}

// Router is the static mapping from capability to preferred and alternate
// source. The table is fixed for the lifetime of an aggregator instance:
// temperature capabilities prefer the fast local source, everything else
// prefers the full-feature source.
type Router struct {
	table map[Capability]route
}

// NewRouter creates the default capability routing table.
func NewRouter() *Router {
	return &Router{
		table: map[Capability]route{
			CapTemperatureRead:  {preferred: SourceMatter, alternate: SourceGoogle, hasAlternate: true},
			CapTemperatureWrite: {preferred: SourceMatter, alternate: SourceGoogle, hasAlternate: true},
			CapHVACMode:         {preferred: SourceGoogle, alternate: SourceMatter, hasAlternate: true},
			CapFanMode:          {preferred: SourceGoogle, hasAlternate: false},
			CapHumidityRead:     {preferred: SourceGoogle, alternate: SourceMatter, hasAlternate: true},
			CapPower:            {preferred: SourceGoogle, alternate: SourceMatter, hasAlternate: true},
		},
	}
}

// Resolve returns the routing entry for a capability. A pure lookup with no
// side effects; fails only on an unrecognised capability, which is a
// programming error.
func (r *Router) Resolve(c Capability) (route, error) {
	rt, ok := r.table[c]
	if !ok {
		return route{}, ErrUnknownCapability
	}
	return rt, nil
}
