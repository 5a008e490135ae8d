package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/net/http2"
)

// SOLMint is the native-SOL pseudo-mint address used by Jupiter-shaped
// quote APIs.
const SOLMint = "So11111111111111111111111111111111111111112"

// httpClientPool hands out round-robin HTTP/2-tuned clients, the same
// pooling shape as the teacher's internal/jupiter.HTTPClientPool.
type httpClientPool struct {
	clients []*http.Client
	mu      sync.Mutex
	idx     uint32
}

func newHTTPClientPool(size int, timeout time.Duration) *httpClientPool {
	pool := &httpClientPool{clients: make([]*http.Client, size)}
	for i := 0; i < size; i++ {
		transport := &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 20,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   5 * time.Second,
			ExpectContinueTimeout: time.Second,
		}
		http2.ConfigureTransport(transport)
		pool.clients[i] = &http.Client{Transport: transport, Timeout: timeout}
	}
	return pool
}

func (p *httpClientPool) get() *http.Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.clients[p.idx%uint32(len(p.clients))]
	p.idx++
	return c
}

// JupiterOracle queries a Jupiter-Metis-shaped quote API, adapted from the
// teacher's internal/jupiter.Client: same pooled HTTP/2 transport and
// round-robin API key rotation, stripped of the teacher's simulation-mode
// interceptor (out of scope here) and ported from float64/uint64 lamports
// to decimal.Decimal base units.
type JupiterOracle struct {
	baseURL     string
	slippageBps int
	pool        *httpClientPool
	apiKeys     []string
	keyIdx      uint32
	keyMu       sync.Mutex
}

// NewJupiterOracle builds a quote client against baseURL with the given
// slippage tolerance (basis points) and API keys for rotation.
func NewJupiterOracle(baseURL string, slippageBps int, apiKeys []string) *JupiterOracle {
	if len(apiKeys) == 0 {
		apiKeys = []string{""}
	}
	return &JupiterOracle{
		baseURL:     baseURL,
		slippageBps: slippageBps,
		pool:        newHTTPClientPool(4, Timeout),
		apiKeys:     apiKeys,
	}
}

func (o *JupiterOracle) nextAPIKey() string {
	o.keyMu.Lock()
	defer o.keyMu.Unlock()
	k := o.apiKeys[o.keyIdx%uint32(len(o.apiKeys))]
	o.keyIdx++
	return k
}

type jupiterQuoteResponse struct {
	InAmount             string `json:"inAmount"`
	OutAmount            string `json:"outAmount"`
	OtherAmountThreshold string `json:"otherAmountThreshold"`
	PriceImpactPct       string `json:"priceImpactPct"`
}

// GetQuote fetches a swap quote. amountIn is expected in the token's base
// units (the caller floors it to a whole base unit).
func (o *JupiterOracle) GetQuote(ctx context.Context, tokenIn, tokenOut string, amountIn decimal.Decimal) (Quote, error) {
	url := fmt.Sprintf("%s/quote?inputMint=%s&outputMint=%s&amount=%s&slippageBps=%d",
		o.baseURL, tokenIn, tokenOut, amountIn.String(), o.slippageBps)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Quote{}, fmt.Errorf("quote: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", o.nextAPIKey())

	start := time.Now()
	resp, err := o.pool.get().Do(req)
	if err != nil {
		return Quote{}, fmt.Errorf("quote: jupiter request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return Quote{}, fmt.Errorf("quote: jupiter returned %d: %s", resp.StatusCode, string(body))
	}

	var q jupiterQuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&q); err != nil {
		return Quote{}, fmt.Errorf("quote: decode jupiter response: %w", err)
	}
	log.Debug().Dur("latency", time.Since(start)).Str("outAmount", q.OutAmount).Msg("jupiter quote")

	outAmount, err := decimal.NewFromString(q.OutAmount)
	if err != nil {
		return Quote{}, fmt.Errorf("quote: parse outAmount: %w", err)
	}
	threshold := outAmount
	if q.OtherAmountThreshold != "" {
		if t, err := decimal.NewFromString(q.OtherAmountThreshold); err == nil {
			threshold = t
		}
	}
	impact, _ := decimal.NewFromString(q.PriceImpactPct)

	return Quote{
		AmountOut:      outAmount,
		GuaranteedOut:  threshold,
		PriceImpactPct: impact,
		Raw:            q,
	}, nil
}
