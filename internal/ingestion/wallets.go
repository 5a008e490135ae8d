package ingestion

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mirrorbot/mirrorbot/internal/model"
)

// WalletEntry is one leader wallet to watch, as read from the wallet list
// file. Loading and validating the file's secrets (if any) is explicitly
// out of scope per the spec's wallet-file-parsing non-goal; LoadWallets
// only resolves which addresses to subscribe to on which chain.
type WalletEntry struct {
	Address string     `json:"address"`
	Chain   model.Chain `json:"chain"`
	Label   string      `json:"label,omitempty"`
}

// LoadWallets reads the JSON wallet list at path and returns the subset
// matching chain. EVM addresses are lowercased for stable map-key
// comparisons downstream, mirroring the original ingestion/eth.py loader.
func LoadWallets(path string, chain model.Chain) ([]WalletEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ingestion: read wallet file: %w", err)
	}

	var all []WalletEntry
	if err := json.Unmarshal(raw, &all); err != nil {
		return nil, fmt.Errorf("ingestion: parse wallet file: %w", err)
	}

	out := make([]WalletEntry, 0, len(all))
	for _, w := range all {
		if w.Chain != chain {
			continue
		}
		if chain == model.ChainEVM {
			w.Address = strings.ToLower(w.Address)
		}
		out = append(out, w)
	}
	return out, nil
}
