//go:build !integration

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"

	"vpn-key-subscription/internal/config"
)

func TestWithCarriesContextIDs(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := WithTraceID(context.Background(), "trace-1")
	ctx = WithPaymentID(ctx, "pay_1")
	ctx = WithOperator(ctx, "ops")

	With(ctx, &base).Info().Msg("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected a json line, but got %q: %v", buf.String(), err)
	}
	for k, want := range map[string]string{"trace_id": "trace-1", "payment_id": "pay_1", "operator": "ops"} {
		if line[k] != want {
			t.Errorf("%s: expected %q, but got %v", k, want, line[k])
		}
	}
	if _, ok := line["owner_id"]; ok {
		t.Error("expected owner_id to be omitted when not set")
	}
	if TraceID(ctx) != "trace-1" || Operator(ctx) != "ops" {
		t.Error("expected accessors to return stored values")
	}
}

func TestRedact(t *testing.T) {
	cases := map[string]string{
		"":                          "***",
		"short":                     "***",
		"TQ1walletAddressXYZ":       "TQ1w...YZ",
		"vless://uuid@host:443#Tag": "vles...ag",
	}
	for in, want := range cases {
		if got := Redact(in); got != want {
			t.Errorf("Redact(%q): expected %q, but got %q", in, want, got)
		}
	}
}

func TestNewFallsBackToInfo(t *testing.T) {
	prev := zerolog.GlobalLevel()
	defer zerolog.SetGlobalLevel(prev)

	l := New(config.LogConfig{Level: "nonsense", Format: "json"}, false)
	if l == nil {
		t.Fatal("expected a logger, but got nil")
	}
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Errorf("expected info level, but got %s", zerolog.GlobalLevel())
	}
}
