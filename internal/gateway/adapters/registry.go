package adapters

import (
	"strings"

	gatewaydomain "github.com/smallbiznis/escrow/internal/gateway/domain"
)

// Registry resolves provider names to adapter factories.
type Registry struct {
	factories map[string]gatewaydomain.AdapterFactory
}

func NewRegistry(factories ...gatewaydomain.AdapterFactory) *Registry {
	r := &Registry{factories: make(map[string]gatewaydomain.AdapterFactory, len(factories))}
	for _, factory := range factories {
		if factory == nil {
			continue
		}
		r.factories[normalize(factory.Provider())] = factory
	}
	return r
}

func (r *Registry) ProviderExists(provider string) bool {
	if r == nil {
		return false
	}
	_, ok := r.factories[normalize(provider)]
	return ok
}

func (r *Registry) NewAdapter(provider string, cfg gatewaydomain.AdapterConfig) (gatewaydomain.Adapter, error) {
	if r == nil {
		return nil, gatewaydomain.ErrProviderNotFound
	}
	factory, ok := r.factories[normalize(provider)]
	if !ok {
		return nil, gatewaydomain.ErrProviderNotFound
	}
	cfg.Provider = normalize(provider)
	return factory.NewAdapter(cfg)
}

func normalize(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}
