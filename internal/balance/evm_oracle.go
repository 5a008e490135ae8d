package balance

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"github.com/mirrorbot/mirrorbot/internal/model"
)

// selBalanceOf is the 4-byte selector for ERC20's balanceOf(address).
const selBalanceOf = "70a08231"

// EVMOracle reads a wallet's balance directly off the chain: native ETH
// via eth_getBalance, any other token via a balanceOf(address) call
// against the token contract. Built on the same ethclient.Client the
// execution engine already dials, rather than a second API surface.
type EVMOracle struct {
	Client *ethclient.Client
}

// NewEVMOracle builds an EVMOracle over client.
func NewEVMOracle(client *ethclient.Client) *EVMOracle {
	return &EVMOracle{Client: client}
}

func (o *EVMOracle) WalletBalance(ctx context.Context, wallet, token string) (decimal.Decimal, error) {
	if o.Client == nil {
		return decimal.Zero, fmt.Errorf("balance: no evm rpc client")
	}

	addr := common.HexToAddress(wallet)
	if strings.EqualFold(token, model.NativeQuoteAsset(model.ChainEVM)) {
		wei, err := o.Client.BalanceAt(ctx, addr, nil)
		if err != nil {
			return decimal.Zero, fmt.Errorf("balance: eth_getBalance: %w", err)
		}
		return decimal.NewFromBigInt(wei, 0), nil
	}

	calldata := common.FromHex(selBalanceOf)
	calldata = append(calldata, common.LeftPadBytes(addr.Bytes(), 32)...)

	tokenAddr := common.HexToAddress(token)
	out, err := o.Client.CallContract(ctx, ethereum.CallMsg{To: &tokenAddr, Data: calldata}, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("balance: balanceOf(%s) on %s: %w", wallet, token, err)
	}
	if len(out) < 32 {
		return decimal.Zero, fmt.Errorf("balance: short return from balanceOf on %s", token)
	}
	return decimal.NewFromBigInt(new(big.Int).SetBytes(out[:32]), 0), nil
}
