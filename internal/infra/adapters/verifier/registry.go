package verifier

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"vpn-key-subscription/internal/config"
	"vpn-key-subscription/internal/domain"
	"vpn-key-subscription/internal/domain/ports/adapter"
)

var _ adapter.VerifierRegistry = (*Registry)(nil)

// Registry maps a currency code to its settlement address and verifier.
type Registry struct {
	mu     sync.RWMutex
	routes map[string]adapter.SettlementRoute
}

func NewRegistry() *Registry {
	return &Registry{routes: make(map[string]adapter.SettlementRoute)}
}

// Register adds or replaces the route for currency.
func (r *Registry) Register(currency, address string, v adapter.SettlementVerifier) {
	code := normalize(currency)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[code] = adapter.SettlementRoute{Currency: code, Address: address, Verifier: v}
}

func (r *Registry) Lookup(currency string) (adapter.SettlementRoute, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	route, ok := r.routes[normalize(currency)]
	if !ok {
		return adapter.SettlementRoute{}, fmt.Errorf("%w: %q", domain.ErrUnknownCurrency, currency)
	}
	return route, nil
}

func (r *Registry) Currencies() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.routes))
	for code := range r.routes {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

func normalize(code string) string { return strings.ToLower(strings.TrimSpace(code)) }

// Factory builds a verifier for one configured currency.
type Factory func(code string, cfg config.CurrencyConfig, client *http.Client) (adapter.SettlementVerifier, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[string]Factory{}
)

// RegisterKind makes a verifier kind available to FromConfig. Each
// explorer file registers itself in init().
func RegisterKind(kind string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[kind] = f
}

// FromConfig builds a registry with one route per configured currency.
func FromConfig(currencies map[string]config.CurrencyConfig, client *http.Client) (*Registry, error) {
	reg := NewRegistry()
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	for code, cur := range currencies {
		f, ok := factories[cur.Kind]
		if !ok {
			return nil, fmt.Errorf("currency %s: unknown verifier kind %q", code, cur.Kind)
		}
		v, err := f(code, cur, client)
		if err != nil {
			return nil, fmt.Errorf("currency %s: %w", code, err)
		}
		reg.Register(code, cur.Address, v)
	}
	return reg, nil
}
