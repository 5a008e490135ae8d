package ingestion

import (
	"encoding/hex"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

func decimalFromInt(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

func encode(t *testing.T, args abi.Arguments, values ...interface{}) []byte {
	t.Helper()
	b, err := args.Pack(values...)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	return b
}

func TestDecodeV2SwapExactTokensForTokens(t *testing.T) {
	tokenA := common.HexToAddress("0x1111111111111111111111111111111111111111")
	tokenB := common.HexToAddress("0x2222222222222222222222222222222222222222")
	to := common.HexToAddress("0x3333333333333333333333333333333333333333")

	data := encode(t, v2SwapArgs,
		big.NewInt(1_000000),
		big.NewInt(900000),
		[]common.Address{tokenA, tokenB},
		to,
		big.NewInt(9999999999),
	)

	evt, err := decodeV2SwapExactTokensForTokens(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if evt.TokenIn != strings.ToLower(tokenA.Hex()) {
		t.Errorf("TokenIn = %s, want %s", evt.TokenIn, strings.ToLower(tokenA.Hex()))
	}
	if evt.TokenOut != strings.ToLower(tokenB.Hex()) {
		t.Errorf("TokenOut = %s, want %s", evt.TokenOut, strings.ToLower(tokenB.Hex()))
	}
	if !evt.AmountIn.Equal(decimalFromInt(1_000000)) {
		t.Errorf("AmountIn = %s, want 1000000", evt.AmountIn)
	}
}

func TestDecodeRouterCalldataDispatchesBySelector(t *testing.T) {
	tokenA := common.HexToAddress("0x1111111111111111111111111111111111111111")
	tokenB := common.HexToAddress("0x2222222222222222222222222222222222222222")
	to := common.HexToAddress("0x3333333333333333333333333333333333333333")

	body := encode(t, v2SwapArgs, big.NewInt(1), big.NewInt(1), []common.Address{tokenA, tokenB}, to, big.NewInt(1))
	input := selV2SwapExactTokensForTokens + hex.EncodeToString(body)

	evt, err := decodeRouterCalldata(input)
	if err != nil {
		t.Fatalf("decodeRouterCalldata: %v", err)
	}
	if evt.TokenOut != strings.ToLower(tokenB.Hex()) {
		t.Errorf("TokenOut = %s, want %s", evt.TokenOut, strings.ToLower(tokenB.Hex()))
	}
}

func TestDecodeRouterCalldataUnknownSelector(t *testing.T) {
	if _, err := decodeRouterCalldata("0xdeadbeef00"); err == nil {
		t.Fatal("expected error for unknown selector")
	}
}
