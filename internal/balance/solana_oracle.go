package balance

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/mirrorbot/mirrorbot/internal/model"
)

// SolanaOracle reads a wallet's balance over a Solana JSON-RPC endpoint:
// native SOL via getBalance (lamports), any SPL mint via
// getTokenAccountsByOwner summed across token accounts.
type SolanaOracle struct {
	client *resty.Client
	rpcURL string
}

// NewSolanaOracle builds a SolanaOracle against rpcURL.
func NewSolanaOracle(rpcURL string) *SolanaOracle {
	return &SolanaOracle{client: resty.New(), rpcURL: rpcURL}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type getBalanceResponse struct {
	Result struct {
		Value uint64 `json:"value"`
	} `json:"result"`
	Error *rpcError `json:"error"`
}

type getTokenAccountsResponse struct {
	Result struct {
		Value []struct {
			Account struct {
				Data struct {
					Parsed struct {
						Info struct {
							TokenAmount struct {
								Amount string `json:"amount"`
							} `json:"tokenAmount"`
						} `json:"info"`
					} `json:"parsed"`
				} `json:"data"`
			} `json:"account"`
		} `json:"value"`
	} `json:"result"`
	Error *rpcError `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (o *SolanaOracle) WalletBalance(ctx context.Context, wallet, token string) (decimal.Decimal, error) {
	if strings.EqualFold(token, model.NativeQuoteAsset(model.ChainSolana)) {
		return o.nativeBalance(ctx, wallet)
	}
	return o.tokenBalance(ctx, wallet, token)
}

func (o *SolanaOracle) nativeBalance(ctx context.Context, wallet string) (decimal.Decimal, error) {
	var out getBalanceResponse
	resp, err := o.client.R().
		SetContext(ctx).
		SetBody(rpcRequest{JSONRPC: "2.0", ID: 1, Method: "getBalance", Params: []any{wallet}}).
		SetResult(&out).
		Post(o.rpcURL)
	if err != nil {
		return decimal.Zero, fmt.Errorf("balance: getBalance request: %w", err)
	}
	if resp.IsError() || out.Error != nil {
		return decimal.Zero, fmt.Errorf("balance: getBalance failed: %s", resp.String())
	}
	return decimal.NewFromInt(int64(out.Result.Value)), nil
}

func (o *SolanaOracle) tokenBalance(ctx context.Context, wallet, mint string) (decimal.Decimal, error) {
	params := []any{
		wallet,
		map[string]string{"mint": mint},
		map[string]string{"encoding": "jsonParsed"},
	}

	var out getTokenAccountsResponse
	resp, err := o.client.R().
		SetContext(ctx).
		SetBody(rpcRequest{JSONRPC: "2.0", ID: 1, Method: "getTokenAccountsByOwner", Params: params}).
		SetResult(&out).
		Post(o.rpcURL)
	if err != nil {
		return decimal.Zero, fmt.Errorf("balance: getTokenAccountsByOwner request: %w", err)
	}
	if resp.IsError() || out.Error != nil {
		return decimal.Zero, fmt.Errorf("balance: getTokenAccountsByOwner failed: %s", resp.String())
	}

	total := decimal.Zero
	for _, acct := range out.Result.Value {
		amount := acct.Account.Data.Parsed.Info.TokenAmount.Amount
		if amount == "" {
			continue
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			continue
		}
		total = total.Add(d)
	}
	return total, nil
}
