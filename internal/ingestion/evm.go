package ingestion

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/mirrorbot/mirrorbot/internal/model"
)

// Function selectors this decoder recognizes, per SPEC_FULL.md §4.1.
const (
	selV2SwapExactTokensForTokens = "0x38ed1739" // Uniswap V2 router
	selV3ExactInputSingle         = "0x414bf389" // Uniswap V3 router
	sel1inchSwap                  = "0x12aa3caf" // 1inch AggregationRouterV5
)

var swapLogTopic0 = crypto.Keccak256Hash([]byte("Swap(address,address,int256,int256,uint160,uint128,int24)"))

// selToken0 and selToken1 are the 4-byte selectors for the Uniswap V2/V3
// pool view functions token0() and token1(), used to resolve a pool-log's
// two legs to their real token addresses.
const (
	selToken0 = "0x0dfe1676"
	selToken1 = "0xd21220a7"
)

// PoolResolver reads a Uniswap V2/V3-shaped pool's two underlying token
// addresses. A Swap log only identifies the pool contract that emitted
// it, never the tokens traded, so every swap-log-sourced TradeEvent needs
// this lookup before it can be keyed by real token identity.
type PoolResolver interface {
	Token0(ctx context.Context, pool common.Address) (common.Address, error)
	Token1(ctx context.Context, pool common.Address) (common.Address, error)
}

// EthPoolResolver resolves pool legs over a live JSON-RPC client by
// calling the pool's token0()/token1() view functions directly, the same
// manual-calldata approach 0xtitan6-polymarket-mm uses for its own
// single-value contract reads rather than pulling in a full ABI binding.
type EthPoolResolver struct {
	Client *ethclient.Client
}

func (r *EthPoolResolver) Token0(ctx context.Context, pool common.Address) (common.Address, error) {
	return r.callAddress(ctx, pool, selToken0)
}

func (r *EthPoolResolver) Token1(ctx context.Context, pool common.Address) (common.Address, error) {
	return r.callAddress(ctx, pool, selToken1)
}

func (r *EthPoolResolver) callAddress(ctx context.Context, pool common.Address, selector string) (common.Address, error) {
	data, err := hex.DecodeString(strings.TrimPrefix(selector, "0x"))
	if err != nil {
		return common.Address{}, err
	}
	out, err := r.Client.CallContract(ctx, ethereum.CallMsg{To: &pool, Data: data}, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("ingestion: call %s on %s: %w", selector, pool.Hex(), err)
	}
	if len(out) < 32 {
		return common.Address{}, fmt.Errorf("ingestion: short return from %s on %s", selector, pool.Hex())
	}
	return common.BytesToAddress(out[12:32]), nil
}

// EVMFeed watches a set of leader wallets on an EVM chain for swap
// activity, running both ingestion variants the spec allows in parallel:
// pending-transaction calldata decoding and confirmed Swap-log decoding.
// Wallet addresses are matched case-insensitively. Swap-log legs are
// resolved to real token addresses through Pools before publishing.
type EVMFeed struct {
	Name    string
	WSURL   string
	Wallets map[string]struct{} // lowercased addresses
	Pools   PoolResolver
	Publish func(model.TradeEvent)
}

// NewEVMFeed builds an EVMFeed watching the given wallets over wsURL,
// resolving swap-log pool legs through pools.
func NewEVMFeed(name, wsURL string, wallets []WalletEntry, pools PoolResolver, publish func(model.TradeEvent)) *EVMFeed {
	set := make(map[string]struct{}, len(wallets))
	for _, w := range wallets {
		set[strings.ToLower(w.Address)] = struct{}{}
	}
	return &EVMFeed{
		Name:    name,
		WSURL:   wsURL,
		Wallets: set,
		Pools:   pools,
		Publish: publish,
	}
}

// pendingTxMessage is the shape of a `newPendingTransactions`-style
// subscription notification, as forwarded by the node's websocket
// endpoint (the exact JSON-RPC subscription wiring is an external
// collaborator per the spec's non-goals and is not implemented here).
type pendingTxMessage struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Input string `json:"input"`
	Hash  string `json:"hash"`
}

// swapLogMessage is the shape of a decoded log-subscription notification
// for a pair/pool `Swap` event.
type swapLogMessage struct {
	Address common.Address `json:"address"`
	Topics  []common.Hash  `json:"topics"`
	Data    string         `json:"data"`
	TxHash  string         `json:"transactionHash"`
}

// Run dials the feed's websocket and decodes messages until ctx is
// cancelled, reconnecting with backoff on failure.
func (f *EVMFeed) Run(ctx context.Context) {
	runWithReconnect(ctx, f.Name, f.WSURL, func(ctx context.Context, conn *websocket.Conn) error {
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return err
			}
			f.handleMessage(ctx, raw)
		}
	})
}

func (f *EVMFeed) handleMessage(ctx context.Context, raw []byte) {
	var envelope struct {
		Kind string          `json:"kind"` // "pending_tx" or "swap_log"
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		log.Debug().Err(err).Str("feed", f.Name).Msg("evm feed: unrecognized message")
		return
	}

	switch envelope.Kind {
	case "pending_tx":
		var m pendingTxMessage
		if err := json.Unmarshal(envelope.Data, &m); err != nil {
			return
		}
		f.handlePendingTx(m)
	case "swap_log":
		var m swapLogMessage
		if err := json.Unmarshal(envelope.Data, &m); err != nil {
			return
		}
		f.handleSwapLog(ctx, m)
	}
}

func (f *EVMFeed) handlePendingTx(m pendingTxMessage) {
	from := strings.ToLower(m.From)
	if _, watched := f.Wallets[from]; !watched {
		return
	}
	evt, err := decodeRouterCalldata(m.Input)
	if err != nil {
		log.Debug().Err(err).Str("tx", m.Hash).Msg("evm feed: calldata decode failed")
		return
	}
	evt.Chain = model.ChainEVM
	evt.Wallet = from
	evt.TxHash = m.Hash
	evt.ObservedAt = time.Now()
	evt.Source = f.Name + ":pending_tx"
	f.Publish(evt)
}

func (f *EVMFeed) handleSwapLog(ctx context.Context, m swapLogMessage) {
	if len(m.Topics) < 1 || m.Topics[0] != swapLogTopic0 {
		return
	}
	// indexed sender/recipient (Uniswap V3 style pool Swap event).
	if len(m.Topics) < 3 {
		return
	}
	sender := strings.ToLower(common.HexToAddress(m.Topics[1].Hex()).Hex())
	recipient := strings.ToLower(common.HexToAddress(m.Topics[2].Hex()).Hex())

	wallet := ""
	if _, ok := f.Wallets[sender]; ok {
		wallet = sender
	} else if _, ok := f.Wallets[recipient]; ok {
		wallet = recipient
	} else {
		return
	}

	amount0, amount1, err := decodeSwapLogAmounts(m.Data)
	if err != nil {
		log.Debug().Err(err).Str("tx", m.TxHash).Msg("evm feed: swap log decode failed")
		return
	}

	if f.Pools == nil {
		log.Warn().Str("pool", m.Address.Hex()).Msg("evm feed: no pool resolver configured, dropping swap log")
		return
	}
	token0, err := f.Pools.Token0(ctx, m.Address)
	if err != nil {
		log.Debug().Err(err).Str("pool", m.Address.Hex()).Msg("evm feed: token0 resolve failed")
		return
	}
	token1, err := f.Pools.Token1(ctx, m.Address)
	if err != nil {
		log.Debug().Err(err).Str("pool", m.Address.Hex()).Msg("evm feed: token1 resolve failed")
		return
	}

	// amount0 positive means the pool's balance of token0 rose, i.e. the
	// trader sold token0 for token1.
	side := model.SideBuy
	var amountIn decimal.Decimal
	var tokenIn, tokenOut common.Address
	if amount0.Sign() > 0 {
		side = model.SideSell
		amountIn = amount0
		tokenIn, tokenOut = token0, token1
	} else {
		amountIn = amount1.Abs()
		tokenIn, tokenOut = token1, token0
	}

	f.Publish(model.TradeEvent{
		Chain:        model.ChainEVM,
		Wallet:       wallet,
		TokenIn:      strings.ToLower(tokenIn.Hex()),
		TokenOut:     strings.ToLower(tokenOut.Hex()),
		AmountIn:     amountIn,
		AmountOutMin: decimal.Zero,
		Side:         side,
		TxHash:       m.TxHash,
		ObservedAt:   time.Now(),
		Source:       f.Name + ":swap_log",
	})
}

// decodeRouterCalldata dispatches on the 4-byte selector and decodes the
// router-specific calldata layout resolved in SPEC_FULL.md §4.1.
func decodeRouterCalldata(input string) (model.TradeEvent, error) {
	input = strings.TrimPrefix(input, "0x")
	if len(input) < 8 {
		return model.TradeEvent{}, fmt.Errorf("calldata too short")
	}
	selector := "0x" + input[:8]
	data, err := hex.DecodeString(input[8:])
	if err != nil {
		return model.TradeEvent{}, err
	}

	switch selector {
	case selV3ExactInputSingle:
		return decodeV3ExactInputSingle(data)
	case sel1inchSwap:
		return decode1inchSwap(data)
	case selV2SwapExactTokensForTokens:
		return decodeV2SwapExactTokensForTokens(data)
	default:
		return model.TradeEvent{}, fmt.Errorf("unknown selector %s", selector)
	}
}

// v3ExactInputSingleArgs mirrors Uniswap V3's ExactInputSingleParams tuple.
var v3ExactInputSingleArgs = mustArguments(abi.ArgumentMarshaling{
	Name: "params", Type: "tuple", Components: []abi.ArgumentMarshaling{
		{Name: "tokenIn", Type: "address"},
		{Name: "tokenOut", Type: "address"},
		{Name: "fee", Type: "uint24"},
		{Name: "recipient", Type: "address"},
		{Name: "deadline", Type: "uint256"},
		{Name: "amountIn", Type: "uint256"},
		{Name: "amountOutMinimum", Type: "uint256"},
		{Name: "sqrtPriceLimitX96", Type: "uint160"},
	},
})

func decodeV3ExactInputSingle(data []byte) (model.TradeEvent, error) {
	vals, err := v3ExactInputSingleArgs.UnpackValues(data)
	if err != nil {
		return model.TradeEvent{}, fmt.Errorf("decode v3 exactInputSingle: %w", err)
	}
	params := vals[0].(struct {
		TokenIn           common.Address `json:"tokenIn"`
		TokenOut          common.Address `json:"tokenOut"`
		Fee               *big.Int       `json:"fee"`
		Recipient         common.Address `json:"recipient"`
		Deadline          *big.Int       `json:"deadline"`
		AmountIn          *big.Int       `json:"amountIn"`
		AmountOutMinimum  *big.Int       `json:"amountOutMinimum"`
		SqrtPriceLimitX96 *big.Int       `json:"sqrtPriceLimitX96"`
	})
	return model.TradeEvent{
		TokenIn:      strings.ToLower(params.TokenIn.Hex()),
		TokenOut:     strings.ToLower(params.TokenOut.Hex()),
		AmountIn:     bigToDecimal(params.AmountIn),
		AmountOutMin: bigToDecimal(params.AmountOutMinimum),
		Side:         model.SideBuy,
	}, nil
}

// inchSwapArgs mirrors 1inch AggregationRouterV5's
// swap(address executor, SwapDescription desc, bytes data).
var inchSwapArgs = mustArguments(
	abi.ArgumentMarshaling{Name: "executor", Type: "address"},
	abi.ArgumentMarshaling{Name: "desc", Type: "tuple", Components: []abi.ArgumentMarshaling{
		{Name: "srcToken", Type: "address"},
		{Name: "dstToken", Type: "address"},
		{Name: "srcReceiver", Type: "address"},
		{Name: "dstReceiver", Type: "address"},
		{Name: "amount", Type: "uint256"},
		{Name: "minReturnAmount", Type: "uint256"},
		{Name: "flags", Type: "uint256"},
	}},
	abi.ArgumentMarshaling{Name: "data", Type: "bytes"},
)

func decode1inchSwap(data []byte) (model.TradeEvent, error) {
	vals, err := inchSwapArgs.UnpackValues(data)
	if err != nil {
		return model.TradeEvent{}, fmt.Errorf("decode 1inch swap: %w", err)
	}
	desc := vals[1].(struct {
		SrcToken        common.Address `json:"srcToken"`
		DstToken        common.Address `json:"dstToken"`
		SrcReceiver     common.Address `json:"srcReceiver"`
		DstReceiver     common.Address `json:"dstReceiver"`
		Amount          *big.Int       `json:"amount"`
		MinReturnAmount *big.Int       `json:"minReturnAmount"`
		Flags           *big.Int       `json:"flags"`
	})
	return model.TradeEvent{
		TokenIn:      strings.ToLower(desc.SrcToken.Hex()),
		TokenOut:     strings.ToLower(desc.DstToken.Hex()),
		AmountIn:     bigToDecimal(desc.Amount),
		AmountOutMin: bigToDecimal(desc.MinReturnAmount),
		Side:         model.SideBuy,
	}, nil
}

// v2SwapArgs mirrors Uniswap V2's
// swapExactTokensForTokens(amountIn, amountOutMin, path, to, deadline).
var v2SwapArgs = mustArguments(
	abi.ArgumentMarshaling{Name: "amountIn", Type: "uint256"},
	abi.ArgumentMarshaling{Name: "amountOutMin", Type: "uint256"},
	abi.ArgumentMarshaling{Name: "path", Type: "address[]"},
	abi.ArgumentMarshaling{Name: "to", Type: "address"},
	abi.ArgumentMarshaling{Name: "deadline", Type: "uint256"},
)

func decodeV2SwapExactTokensForTokens(data []byte) (model.TradeEvent, error) {
	vals, err := v2SwapArgs.UnpackValues(data)
	if err != nil {
		return model.TradeEvent{}, fmt.Errorf("decode v2 swap: %w", err)
	}
	amountIn := vals[0].(*big.Int)
	amountOutMin := vals[1].(*big.Int)
	path := vals[2].([]common.Address)
	if len(path) < 2 {
		return model.TradeEvent{}, fmt.Errorf("v2 swap path too short")
	}
	return model.TradeEvent{
		TokenIn:      strings.ToLower(path[0].Hex()),
		TokenOut:     strings.ToLower(path[len(path)-1].Hex()),
		AmountIn:     bigToDecimal(amountIn),
		AmountOutMin: bigToDecimal(amountOutMin),
		Side:         model.SideBuy,
	}, nil
}

var swapLogArgs = mustArguments(
	abi.ArgumentMarshaling{Name: "amount0", Type: "int256"},
	abi.ArgumentMarshaling{Name: "amount1", Type: "int256"},
	abi.ArgumentMarshaling{Name: "sqrtPriceX96", Type: "uint160"},
	abi.ArgumentMarshaling{Name: "liquidity", Type: "uint128"},
	abi.ArgumentMarshaling{Name: "tick", Type: "int24"},
)

func decodeSwapLogAmounts(data string) (amount0, amount1 decimal.Decimal, err error) {
	b, err := hex.DecodeString(strings.TrimPrefix(data, "0x"))
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	vals, err := swapLogArgs.UnpackValues(b)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return bigToDecimal(vals[0].(*big.Int)), bigToDecimal(vals[1].(*big.Int)), nil
}

func bigToDecimal(v *big.Int) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, 0)
}

func mustArguments(fields ...abi.ArgumentMarshaling) abi.Arguments {
	args := make(abi.Arguments, 0, len(fields))
	for _, f := range fields {
		ty, err := abi.NewType(f.Type, "", f.Components)
		if err != nil {
			panic(fmt.Sprintf("ingestion: bad abi type %q: %v", f.Type, err))
		}
		args = append(args, abi.Argument{Name: f.Name, Type: ty})
	}
	return args
}
