package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"vpn-key-subscription/internal/domain"
)

var periodAliases = map[string]int{
	"monthly":   1,
	"quarterly": 3,
	"yearly":    12,
}

// ParsePeriod normalizes a period given as an alias ("monthly", "quarterly",
// "yearly") or a month count into periodMonths.
func ParsePeriod(raw string) (int, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if m, ok := periodAliases[s]; ok {
		return m, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", domain.ErrInvalidPeriod, raw)
	}
	return n, nil
}

// Period is a month count decoded from either a JSON number or string.
type Period int

func (p *Period) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return fmt.Errorf("%w: period is required", domain.ErrInvalidPeriod)
	}
	var raw string
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
	} else {
		raw = string(b)
	}
	m, err := ParsePeriod(raw)
	if err != nil {
		return err
	}
	*p = Period(m)
	return nil
}

func (p Period) Months() int { return int(p) }
