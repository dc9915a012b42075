package mic

import "sync"

// registry is the process-wide provider registry (spec §4.7, §5: "the
// provider registry is process-wide state with init/teardown via
// registerProvider/resetProviderRegistry; writes to it are rare
// (configuration time) and must be serialized by the implementer").
var registry = struct {
	mu        sync.RWMutex
	providers map[string]Provider
}{providers: make(map[string]Provider)}

// RegisterProvider installs p under its own ID(), replacing any provider
// previously registered for that id.
func RegisterProvider(p Provider) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.providers[p.ID()] = p
}

// ResetProviderRegistry clears every registered provider. Intended for
// test teardown between cases that register fakes.
func ResetProviderRegistry() {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.providers = make(map[string]Provider)
}

// resolveProvider looks up the Provider registered for a ModelID's
// provider segment.
func resolveProvider(id ModelID) (Provider, error) {
	providerID, _, _, err := id.Parse()
	if err != nil {
		return nil, err
	}
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	p, ok := registry.providers[providerID]
	if !ok {
		return nil, &NoRegisteredProviderError{ProviderID: providerID}
	}
	return p, nil
}
