package verifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/big"
	"net/http"

	"vpn-key-subscription/internal/domain/ports/adapter"
)

// amountTolerance absorbs float rounding when comparing settled amounts.
const amountTolerance = 1e-9

// getJSON performs a GET and decodes the body into out. Every failure is
// reported as transient.
func getJSON(ctx context.Context, client *http.Client, source, url string, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return adapter.Transient(source, err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}
	resp, err := client.Do(req)
	if err != nil {
		return adapter.Transient(source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return adapter.Transient(source, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(out); err != nil {
		return adapter.Transient(source, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// fromBaseUnits converts an integer string in the smallest unit to a
// decimal amount, e.g. ("1500000", 6) -> 1.5.
func fromBaseUnits(value string, decimals int) (float64, error) {
	n, ok := new(big.Float).SetPrec(128).SetString(value)
	if !ok {
		return 0, fmt.Errorf("malformed amount %q", value)
	}
	scale := new(big.Float).SetPrec(128).SetFloat64(math.Pow10(decimals))
	f, _ := new(big.Float).Quo(n, scale).Float64()
	return f, nil
}

func enough(observed, min float64) bool {
	return observed+amountTolerance >= min
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
