// Package solwallet represents the bot's own Solana-like keypair used to
// sign mirrored transactions. Adapted from the teacher's
// internal/blockchain.Wallet; loading the actual private key material is
// explicitly out of scope per spec.md's non-goals (secret/keypair loading
// is an external collaborator), so NewWallet here only wraps bytes already
// obtained by that collaborator.
package solwallet

import (
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/rs/zerolog/log"
)

// Wallet holds an ed25519 keypair for signing transactions.
//
// SECURITY WARNING: this type never reads a private key from disk, env,
// or config itself; the caller is responsible for obtaining key material
// from a secure source (HSM, secrets manager, or an OS keychain) before
// calling NewWallet.
type Wallet struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	address    string
}

// NewWallet builds a Wallet from a 32-byte seed or a 64-byte expanded
// private key.
func NewWallet(privateKeyBytes []byte) (*Wallet, error) {
	var privateKey ed25519.PrivateKey
	switch len(privateKeyBytes) {
	case 64:
		privateKey = ed25519.PrivateKey(privateKeyBytes)
	case 32:
		privateKey = ed25519.NewKeyFromSeed(privateKeyBytes)
	default:
		return nil, fmt.Errorf("solwallet: invalid private key length: %d (expected 32 or 64)", len(privateKeyBytes))
	}

	publicKey := privateKey.Public().(ed25519.PublicKey)
	address := base58.Encode(publicKey)

	log.Info().Str("address", address).Msg("solwallet: wallet loaded")

	return &Wallet{privateKey: privateKey, publicKey: publicKey, address: address}, nil
}

// Address returns the wallet's base58-encoded public key.
func (w *Wallet) Address() string {
	return w.address
}

// Sign signs message with the wallet's private key.
func (w *Wallet) Sign(message []byte) []byte {
	return ed25519.Sign(w.privateKey, message)
}
