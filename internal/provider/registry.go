package provider

// Registry holds the fixed, ordered fallback chain for each capability.
// Chains are assembled once at startup from configuration; the only runtime
// reordering is moving the caller's preferred provider to the front.
type Registry struct {
	chains    map[Capability][]Adapter
	streamers []ChatStreamer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		chains: make(map[Capability][]Adapter),
	}
}

// Register appends an adapter to the end of the capability's chain.
// Registration order defines fallback order.
func (r *Registry) Register(cap Capability, a Adapter) {
	r.chains[cap] = append(r.chains[cap], a)
}

// RegisterStreamer appends a token-streaming source for the text capability.
func (r *Registry) RegisterStreamer(s ChatStreamer) {
	r.streamers = append(r.streamers, s)
}

// Chain returns the adapter list for a capability. When preferred names a
// registered adapter it is moved to the front; the relative order of the
// remaining adapters is preserved so the fixed secondary stays last.
func (r *Registry) Chain(cap Capability, preferred string) []Adapter {
	base := r.chains[cap]
	if len(base) == 0 {
		return nil
	}

	out := make([]Adapter, 0, len(base))
	if preferred != "" {
		for _, a := range base {
			if a.ID() == preferred {
				out = append(out, a)
				break
			}
		}
	}
	for _, a := range base {
		if len(out) > 0 && a.ID() == out[0].ID() {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Streamers returns the ordered live token sources for text delivery, with
// the preferred one (if registered) moved to the front.
func (r *Registry) Streamers(preferred string) []ChatStreamer {
	if len(r.streamers) == 0 {
		return nil
	}

	out := make([]ChatStreamer, 0, len(r.streamers))
	if preferred != "" {
		for _, s := range r.streamers {
			if s.ID() == preferred {
				out = append(out, s)
				break
			}
		}
	}
	for _, s := range r.streamers {
		if len(out) > 0 && s.ID() == out[0].ID() {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Providers returns the IDs of every registered adapter keyed by capability.
// Used by the health endpoint to report configured/unconfigured providers.
func (r *Registry) Providers() map[Capability][]string {
	out := make(map[Capability][]string, len(r.chains))
	for cap, chain := range r.chains {
		ids := make([]string, 0, len(chain))
		for _, a := range chain {
			ids = append(ids, a.ID())
		}
		out[cap] = ids
	}
	return out
}

// Lookup returns the first registered adapter with the given ID, or nil.
func (r *Registry) Lookup(id string) Adapter {
	for _, chain := range r.chains {
		for _, a := range chain {
			if a.ID() == id {
				return a
			}
		}
	}
	return nil
}
