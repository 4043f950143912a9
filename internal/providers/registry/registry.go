// Package registry resolves a ports.ProviderAdapter by currency or name.
package registry

import (
	"fmt"

	"github.com/proptech-ledger/ledgerd/internal/apperrors"
	"github.com/proptech-ledger/ledgerd/internal/core/domain"
	"github.com/proptech-ledger/ledgerd/internal/core/ports"
)

// Registry is a static, read-mostly ports.ProviderRegistry built once at
// startup from configuration.
type Registry struct {
	byName     map[string]ports.ProviderAdapter
	byCurrency map[domain.CurrencyCode]ports.ProviderAdapter
	defaultP   ports.ProviderAdapter
}

// New builds a Registry from adapters, indexing each by name and by every
// currency it declares support for. defaultProvider is returned by Resolve
// when a currency has no dedicated adapter.
func New(adapters []ports.ProviderAdapter, defaultProvider ports.ProviderAdapter) *Registry {
	r := &Registry{
		byName:     make(map[string]ports.ProviderAdapter, len(adapters)),
		byCurrency: make(map[domain.CurrencyCode]ports.ProviderAdapter),
		defaultP:   defaultProvider,
	}
	for _, adapter := range adapters {
		r.byName[adapter.Name()] = adapter
		for _, currency := range adapter.SupportedCurrencies() {
			r.byCurrency[currency] = adapter
		}
	}
	return r
}

func (r *Registry) Resolve(currency domain.CurrencyCode) (ports.ProviderAdapter, error) {
	if adapter, ok := r.byCurrency[currency]; ok {
		return adapter, nil
	}
	if r.defaultP != nil {
		return r.defaultP, nil
	}
	return nil, fmt.Errorf("%w: no provider configured for currency %q", apperrors.ErrUnsupported, currency)
}

func (r *Registry) ByName(name string) (ports.ProviderAdapter, error) {
	adapter, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: no provider named %q", apperrors.ErrNotFound, name)
	}
	return adapter, nil
}

var _ ports.ProviderRegistry = (*Registry)(nil)
