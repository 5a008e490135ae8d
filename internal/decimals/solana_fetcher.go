package decimals

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// mintDecimalsOffset is the byte offset of the `decimals` field within an
// SPL Token Mint account's raw data, per the fixed Mint layout.
const mintDecimalsOffset = 44

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type getAccountInfoResponse struct {
	Result struct {
		Value *struct {
			Data []string `json:"data"` // [base64, "base64"]
		} `json:"value"`
	} `json:"result"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// solanaMintFetcher reads a token's decimal exponent straight off its
// SPL Token Mint account via getAccountInfo, the same JSON-RPC surface
// the rest of the Solana side already queries.
type solanaMintFetcher struct {
	client *resty.Client
	rpcURL string
}

// NewSolanaMintFetcher builds a Fetcher against a Solana JSON-RPC endpoint.
func NewSolanaMintFetcher(rpcURL string) Fetcher {
	return &solanaMintFetcher{client: resty.New(), rpcURL: rpcURL}
}

func (f *solanaMintFetcher) FetchDecimals(ctx context.Context, token string) (int32, error) {
	params := []any{token, map[string]string{"encoding": "base64"}}

	var out getAccountInfoResponse
	resp, err := f.client.R().
		SetContext(ctx).
		SetBody(rpcRequest{JSONRPC: "2.0", ID: 1, Method: "getAccountInfo", Params: params}).
		SetResult(&out).
		Post(f.rpcURL)
	if err != nil {
		return 0, fmt.Errorf("decimals: getAccountInfo request: %w", err)
	}
	if resp.IsError() || out.Error != nil {
		return 0, fmt.Errorf("decimals: getAccountInfo failed: %s", resp.String())
	}
	if out.Result.Value == nil || len(out.Result.Value.Data) == 0 {
		return 0, fmt.Errorf("decimals: mint account %s not found", token)
	}

	raw, err := base64.StdEncoding.DecodeString(out.Result.Value.Data[0])
	if err != nil {
		return 0, fmt.Errorf("decimals: decode mint data: %w", err)
	}
	if len(raw) <= mintDecimalsOffset {
		return 0, fmt.Errorf("decimals: mint account %s too short", token)
	}
	return int32(raw[mintDecimalsOffset]), nil
}
