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
	RegisterKind("trongrid", func(code string, cfg config.CurrencyConfig, client *http.Client) (adapter.SettlementVerifier, error) {
		if cfg.Contract == "" {
			return nil, errors.New("trongrid requires a contract")
		}
		decimals := cfg.Decimals
		if decimals == 0 {
			decimals = 6
		}
		return &TronGrid{
			baseURL:  orDefault(cfg.APIURL, "https://api.trongrid.io"),
			apiKey:   cfg.APIKey,
			contract: cfg.Contract,
			decimals: decimals,
			client:   client,
		}, nil
	})
}

var _ adapter.SettlementVerifier = (*TronGrid)(nil)

// TronGrid checks TRC-20 transfers of one token contract.
type TronGrid struct {
	baseURL  string
	apiKey   string
	contract string
	decimals int
	client   *http.Client
}

func (t *TronGrid) Check(ctx context.Context, req adapter.CheckRequest) (adapter.ConfirmationResult, error) {
	q := url.Values{}
	q.Set("limit", "100")
	q.Set("only_to", "true")
	q.Set("contract_address", t.contract)
	q.Set("min_timestamp", fmt.Sprint(req.Since.UnixMilli()))
	u := fmt.Sprintf("%s/v1/accounts/%s/transactions/trc20?%s", t.baseURL, url.PathEscape(req.Address), q.Encode())

	var out struct {
		Success bool `json:"success"`
		Data    []struct {
			TransactionID  string `json:"transaction_id"`
			BlockTimestamp int64  `json:"block_timestamp"`
			To             string `json:"to"`
			Value          string `json:"value"`
		} `json:"data"`
	}
	headers := map[string]string{"TRON-PRO-API-KEY": t.apiKey}
	if err := getJSON(ctx, t.client, "trongrid", u, headers, &out); err != nil {
		return adapter.ConfirmationResult{}, err
	}
	if !out.Success {
		return adapter.ConfirmationResult{}, adapter.Transient("trongrid", errors.New("api reported failure"))
	}

	since := req.Since.UnixMilli()
	for _, tx := range out.Data {
		if tx.BlockTimestamp < since || tx.To != req.Address || req.Excluded(tx.TransactionID) {
			continue
		}
		amount, err := fromBaseUnits(tx.Value, t.decimals)
		if err != nil {
			return adapter.ConfirmationResult{}, adapter.Transient("trongrid", err)
		}
		if enough(amount, req.MinAmount) {
			return adapter.ConfirmationResult{Confirmed: true, TxID: tx.TransactionID, ObservedAmount: amount}, nil
		}
	}
	return adapter.ConfirmationResult{}, nil
}
