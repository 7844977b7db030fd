package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"vpn-key-subscription/internal/domain/ports/adapter"
)

var _ adapter.RateSource = (*CoinGecko)(nil)

// CoinGecko reads USD prices from a /simple/price compatible endpoint.
// ids maps a settlement currency code to the provider's coin id.
type CoinGecko struct {
	baseURL string
	ids     map[string]string
	client  *http.Client
}

func NewCoinGecko(baseURL string, ids map[string]string, client *http.Client) *CoinGecko {
	return &CoinGecko{baseURL: strings.TrimRight(baseURL, "/"), ids: ids, client: client}
}

func (c *CoinGecko) USDPrice(ctx context.Context, currency string) (float64, error) {
	id, ok := c.ids[currency]
	if !ok || id == "" {
		return 0, fmt.Errorf("no rate id for %q", currency)
	}
	u := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd", c.baseURL, url.QueryEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("rate provider: status %d", resp.StatusCode)
	}

	var out map[string]struct {
		USD float64 `json:"usd"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("rate provider: decode: %w", err)
	}
	price := out[id].USD
	if price <= 0 {
		return 0, fmt.Errorf("rate provider: no usd price for %s", id)
	}
	return price, nil
}
