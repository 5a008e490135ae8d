package quote

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// ZeroExOracle queries a 0x-Swap-API-shaped endpoint, as the original
// exec/eth.py did with `/swap/v1/quote`. The exact base URL and API key
// are supplied by configuration; this type only knows the request/response
// shape.
type ZeroExOracle struct {
	client  *resty.Client
	baseURL string
	apiKey  string
}

// NewZeroExOracle builds an oracle against baseURL (e.g.
// "https://api.0x.org"), authenticating with apiKey if non-empty.
func NewZeroExOracle(baseURL, apiKey string) *ZeroExOracle {
	return &ZeroExOracle{
		client:  resty.New().SetTimeout(Timeout),
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

type zeroExQuoteResponse struct {
	Price           string `json:"price"`
	GuaranteedPrice string `json:"guaranteedPrice"`
	BuyAmount       string `json:"buyAmount"`
	EstimatedGas    string `json:"estimatedGas"`
}

// GetQuote fetches a swap quote for a fixed sell amount. The execution
// engine's slippage check compares GuaranteedOut against the scaled
// leader minimum, so GuaranteedOut (guaranteedPrice times the sell amount,
// when the API provides a guaranteed price) is surfaced separately rather
// than collapsed into AmountOut.
func (o *ZeroExOracle) GetQuote(ctx context.Context, tokenIn, tokenOut string, amountIn decimal.Decimal) (Quote, error) {
	var out zeroExQuoteResponse
	resp, err := o.client.R().
		SetContext(ctx).
		SetHeader("0x-api-key", o.apiKey).
		SetQueryParams(map[string]string{
			"sellToken": tokenIn,
			"buyToken":  tokenOut,
			"sellAmount": amountIn.String(),
		}).
		SetResult(&out).
		Get(o.baseURL + "/swap/v1/quote")
	if err != nil {
		return Quote{}, fmt.Errorf("quote: 0x request: %w", err)
	}
	if resp.IsError() {
		return Quote{}, fmt.Errorf("quote: 0x returned %s: %s", resp.Status(), resp.String())
	}

	buyAmount, err := decimal.NewFromString(out.BuyAmount)
	if err != nil {
		return Quote{}, fmt.Errorf("quote: parse buyAmount: %w", err)
	}

	guaranteed := buyAmount
	if out.GuaranteedPrice != "" {
		if g, err := decimal.NewFromString(out.GuaranteedPrice); err == nil {
			guaranteed = g.Mul(amountIn)
		}
	}

	return Quote{
		AmountOut:     buyAmount,
		GuaranteedOut: guaranteed,
		Raw:           out,
	}, nil
}
