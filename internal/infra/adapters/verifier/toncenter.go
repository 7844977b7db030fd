package verifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"vpn-key-subscription/internal/config"
	"vpn-key-subscription/internal/domain/ports/adapter"
)

func init() {
	RegisterKind("toncenter", func(code string, cfg config.CurrencyConfig, client *http.Client) (adapter.SettlementVerifier, error) {
		return &TonCenter{
			baseURL: orDefault(cfg.APIURL, "https://toncenter.com/api/v2"),
			apiKey:  cfg.APIKey,
			client:  client,
		}, nil
	})
}

var _ adapter.SettlementVerifier = (*TonCenter)(nil)

// TonCenter checks incoming TON messages; amounts are in nanotons.
type TonCenter struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func (t *TonCenter) Check(ctx context.Context, req adapter.CheckRequest) (adapter.ConfirmationResult, error) {
	q := url.Values{}
	q.Set("address", req.Address)
	q.Set("limit", "100")
	q.Set("archival", "false")
	u := fmt.Sprintf("%s/getTransactions?%s", t.baseURL, q.Encode())

	var out struct {
		OK     bool   `json:"ok"`
		Error  string `json:"error"`
		Result []struct {
			Utime         int64 `json:"utime"`
			TransactionID struct {
				Hash string `json:"hash"`
			} `json:"transaction_id"`
			InMsg *struct {
				Source string `json:"source"`
				Value  string `json:"value"`
			} `json:"in_msg"`
		} `json:"result"`
	}
	headers := map[string]string{"X-API-Key": t.apiKey}
	if err := getJSON(ctx, t.client, "toncenter", u, headers, &out); err != nil {
		return adapter.ConfirmationResult{}, err
	}
	if !out.OK {
		return adapter.ConfirmationResult{}, adapter.Transient("toncenter", errors.New(out.Error))
	}

	since := req.Since.Unix()
	for _, tx := range out.Result {
		// outgoing and external messages carry no source
		if tx.Utime < since || tx.InMsg == nil || tx.InMsg.Source == "" || tx.InMsg.Value == "" || req.Excluded(tx.TransactionID.Hash) {
			continue
		}
		amount, err := fromBaseUnits(tx.InMsg.Value, 9)
		if err != nil {
			return adapter.ConfirmationResult{}, adapter.Transient("toncenter", err)
		}
		if enough(amount, req.MinAmount) {
			return adapter.ConfirmationResult{Confirmed: true, TxID: tx.TransactionID.Hash, ObservedAmount: amount}, nil
		}
	}
	return adapter.ConfirmationResult{}, nil
}
