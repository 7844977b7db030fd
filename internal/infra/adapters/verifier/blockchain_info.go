package verifier

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"vpn-key-subscription/internal/config"
	"vpn-key-subscription/internal/domain/ports/adapter"
)

func init() {
	RegisterKind("blockchain_info", func(code string, cfg config.CurrencyConfig, client *http.Client) (adapter.SettlementVerifier, error) {
		return &BlockchainInfo{baseURL: orDefault(cfg.APIURL, "https://blockchain.info"), client: client}, nil
	})
}

var _ adapter.SettlementVerifier = (*BlockchainInfo)(nil)

// BlockchainInfo checks BTC outputs to an address; amounts are in satoshi.
type BlockchainInfo struct {
	baseURL string
	client  *http.Client
}

func (b *BlockchainInfo) Check(ctx context.Context, req adapter.CheckRequest) (adapter.ConfirmationResult, error) {
	var out struct {
		Txs []struct {
			Hash string `json:"hash"`
			Time int64  `json:"time"`
			Out  []struct {
				Addr  string `json:"addr"`
				Value int64  `json:"value"`
			} `json:"out"`
		} `json:"txs"`
	}
	u := fmt.Sprintf("%s/address/%s?format=json", b.baseURL, url.PathEscape(req.Address))
	if err := getJSON(ctx, b.client, "blockchain_info", u, nil, &out); err != nil {
		return adapter.ConfirmationResult{}, err
	}

	since := req.Since.Unix()
	for _, tx := range out.Txs {
		if tx.Time < since || req.Excluded(tx.Hash) {
			continue
		}
		for _, o := range tx.Out {
			amount := float64(o.Value) / 1e8
			if o.Addr == req.Address && enough(amount, req.MinAmount) {
				return adapter.ConfirmationResult{Confirmed: true, TxID: tx.Hash, ObservedAmount: amount}, nil
			}
		}
	}
	return adapter.ConfirmationResult{}, nil
}
