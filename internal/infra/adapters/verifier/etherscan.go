package verifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"vpn-key-subscription/internal/config"
	"vpn-key-subscription/internal/domain/ports/adapter"
)

func init() {
	RegisterKind("etherscan", func(code string, cfg config.CurrencyConfig, client *http.Client) (adapter.SettlementVerifier, error) {
		return newEtherscan(cfg, client, "", 18), nil
	})
	RegisterKind("etherscan_token", func(code string, cfg config.CurrencyConfig, client *http.Client) (adapter.SettlementVerifier, error) {
		if cfg.Contract == "" {
			return nil, errors.New("etherscan_token requires a contract")
		}
		decimals := cfg.Decimals
		if decimals == 0 {
			decimals = 6
		}
		return newEtherscan(cfg, client, cfg.Contract, decimals), nil
	})
}

var _ adapter.SettlementVerifier = (*Etherscan)(nil)

// Etherscan checks native ETH transfers (txlist) or, when contract is set,
// ERC-20 transfers of that token (tokentx).
type Etherscan struct {
	baseURL  string
	apiKey   string
	contract string
	decimals int
	client   *http.Client
}

func newEtherscan(cfg config.CurrencyConfig, client *http.Client, contract string, decimals int) *Etherscan {
	return &Etherscan{
		baseURL:  orDefault(cfg.APIURL, "https://api.etherscan.io/api"),
		apiKey:   cfg.APIKey,
		contract: contract,
		decimals: decimals,
		client:   client,
	}
}

func (e *Etherscan) Check(ctx context.Context, req adapter.CheckRequest) (adapter.ConfirmationResult, error) {
	q := url.Values{}
	q.Set("module", "account")
	q.Set("address", req.Address)
	q.Set("sort", "desc")
	q.Set("apikey", e.apiKey)
	if e.contract != "" {
		q.Set("action", "tokentx")
		q.Set("contractaddress", e.contract)
	} else {
		q.Set("action", "txlist")
		q.Set("startblock", "0")
		q.Set("endblock", "99999999")
	}

	var out struct {
		Status  string           `json:"status"`
		Message string           `json:"message"`
		Result  etherscanResults `json:"result"`
	}
	if err := getJSON(ctx, e.client, "etherscan", e.baseURL+"?"+q.Encode(), nil, &out); err != nil {
		return adapter.ConfirmationResult{}, err
	}
	if out.Status != "1" {
		// an address without history is reported as status 0
		if strings.HasPrefix(strings.ToLower(out.Message), "no transactions found") {
			return adapter.ConfirmationResult{}, nil
		}
		return adapter.ConfirmationResult{}, adapter.Transient("etherscan", fmt.Errorf("api error: %s", out.Message))
	}

	since := req.Since.Unix()
	for _, tx := range out.Result {
		ts, err := strconv.ParseInt(tx.TimeStamp, 10, 64)
		if err != nil || ts < since {
			continue
		}
		if !strings.EqualFold(tx.To, req.Address) || tx.IsError == "1" || req.Excluded(tx.Hash) {
			continue
		}
		amount, err := fromBaseUnits(tx.Value, e.decimals)
		if err != nil {
			return adapter.ConfirmationResult{}, adapter.Transient("etherscan", err)
		}
		if enough(amount, req.MinAmount) {
			return adapter.ConfirmationResult{Confirmed: true, TxID: tx.Hash, ObservedAmount: amount}, nil
		}
	}
	return adapter.ConfirmationResult{}, nil
}

// etherscanResults tolerates Etherscan returning a string in "result" on errors.
type etherscanResults []etherscanTx

type etherscanTx struct {
	Hash      string `json:"hash"`
	To        string `json:"to"`
	Value     string `json:"value"`
	TimeStamp string `json:"timeStamp"`
	IsError   string `json:"isError"`
}

func (r *etherscanResults) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		*r = nil
		return nil
	}
	var txs []etherscanTx
	if err := json.Unmarshal(b, &txs); err != nil {
		return err
	}
	*r = txs
	return nil
}
