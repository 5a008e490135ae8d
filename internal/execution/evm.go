package execution

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/go-resty/resty/v2"

	"github.com/mirrorbot/mirrorbot/internal/quote"
)

// evmSignedTx carries the in-flight transaction plus the fee parameters
// Escalate mutates between attempts, grounded on the original exec/eth.py
// `_send_bundle` escalation: double maxFeePerGas (EIP-1559) when a base
// fee is known, otherwise double the legacy gas price.
type evmSignedTx struct {
	q            quote.Quote // the quote the tx was built from, reused on re-sign
	tx           *types.Transaction
	baseFee      *big.Int // nil if the chain doesn't report EIP-1559 base fee
	maxFeePerGas *big.Int
	gasPrice     *big.Int
	targetBlock  uint64
}

// Signer produces an EVM transaction for a quote; building and signing the
// raw transaction requires the caller's private key material, which is an
// external collaborator per spec.md's non-goals (secret/keypair loading is
// explicitly out of scope). EVMSubmitter only knows how to escalate fees
// and POST the resulting bundle.
type Signer interface {
	SignTx(ctx context.Context, q quote.Quote, maxFeePerGas, gasPrice *big.Int) (*types.Transaction, error)
}

// EVMSubmitter submits signed transactions to a private bundle relay
// (Flashbots-shaped), escalating gas between attempts.
type EVMSubmitter struct {
	Signer      Signer
	RelayClient *resty.Client
	RelayURL    string
	// CurrentBlock returns the chain's current block number, used to
	// target block_number+1 for the bundle.
	CurrentBlock func(ctx context.Context) (uint64, error)
	// BaseFee returns the chain's current EIP-1559 base fee, or nil if
	// unavailable (legacy gas pricing applies).
	BaseFee func(ctx context.Context) (*big.Int, error)
	// GasPrice returns the chain's current legacy gas price.
	GasPrice func(ctx context.Context) (*big.Int, error)
}

func (s *EVMSubmitter) Sign(ctx context.Context, q quote.Quote) (any, error) {
	baseFee, err := s.BaseFee(ctx)
	if err != nil {
		return nil, fmt.Errorf("execution: read base fee: %w", err)
	}

	var maxFeePerGas, gasPrice *big.Int
	if baseFee != nil {
		maxFeePerGas = baseFee
	} else {
		gp, err := s.GasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("execution: read gas price: %w", err)
		}
		gasPrice = gp
	}

	tx, err := s.Signer.SignTx(ctx, q, maxFeePerGas, gasPrice)
	if err != nil {
		return nil, fmt.Errorf("execution: sign tx: %w", err)
	}

	block, err := s.CurrentBlock(ctx)
	if err != nil {
		return nil, fmt.Errorf("execution: read current block: %w", err)
	}

	return &evmSignedTx{
		q:            q,
		tx:           tx,
		baseFee:      baseFee,
		maxFeePerGas: maxFeePerGas,
		gasPrice:     gasPrice,
		targetBlock:  block + 1,
	}, nil
}

type bundleSubmitRequest struct {
	Transactions []string `json:"transactions"`
	BlockNumber  string   `json:"blockNumber"`
}

type bundleSubmitResponse struct {
	BundleHash string `json:"bundleHash"`
	Confirmed  bool   `json:"confirmed"`
	Error      string `json:"error,omitempty"`
}

func (s *EVMSubmitter) Submit(ctx context.Context, signed any, attempt int) (string, bool, error) {
	st := signed.(*evmSignedTx)

	raw, err := st.tx.MarshalBinary()
	if err != nil {
		return "", false, fmt.Errorf("execution: marshal tx: %w", err)
	}

	var out bundleSubmitResponse
	resp, err := s.RelayClient.R().
		SetContext(ctx).
		SetBody(bundleSubmitRequest{
			Transactions: []string{fmt.Sprintf("0x%x", raw)},
			BlockNumber:  fmt.Sprintf("0x%x", st.targetBlock),
		}).
		SetResult(&out).
		Post(s.RelayURL)
	if err != nil {
		return "", false, fmt.Errorf("execution: relay request: %w", err)
	}
	if resp.IsError() || out.Error != "" {
		return st.tx.Hash().Hex(), false, fmt.Errorf("execution: relay rejected bundle: %s", out.Error)
	}

	return st.tx.Hash().Hex(), out.Confirmed, nil
}

// Escalate doubles maxFeePerGas when the chain reports an EIP-1559 base
// fee, otherwise doubles the legacy gas price, and re-signs.
func (s *EVMSubmitter) Escalate(ctx context.Context, signed any, attempt int) (any, error) {
	st := signed.(*evmSignedTx)

	q := st.q // re-signing reuses the original quote with new fee parameters
	var newMaxFee, newGasPrice *big.Int
	if st.baseFee != nil {
		newMaxFee = new(big.Int).Mul(st.maxFeePerGas, big.NewInt(2))
	} else {
		newGasPrice = new(big.Int).Mul(st.gasPrice, big.NewInt(2))
	}

	tx, err := s.Signer.SignTx(ctx, q, newMaxFee, newGasPrice)
	if err != nil {
		return nil, fmt.Errorf("execution: re-sign escalated tx: %w", err)
	}

	block, err := s.CurrentBlock(ctx)
	if err != nil {
		return nil, fmt.Errorf("execution: read current block: %w", err)
	}

	return &evmSignedTx{
		q:            q,
		tx:           tx,
		baseFee:      st.baseFee,
		maxFeePerGas: newMaxFee,
		gasPrice:     newGasPrice,
		targetBlock:  block + 1,
	}, nil
}

// RetryDelay is a short fixed backoff; the escalation itself (not elapsed
// time) is what improves inclusion odds block-to-block.
func (s *EVMSubmitter) RetryDelay(attempt int) time.Duration {
	return 500 * time.Millisecond
}
