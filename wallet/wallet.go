// Package wallet holds the faucet's hot key and builds, signs and prices
// transfer transactions with it.
package wallet

import (
	"encoding/hex"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/fuellabs/go-faucet/chain"
	"github.com/minio/sha256-simd"
	"github.com/pkg/errors"
)

// DevSecretKey is the well-known development key used when no
// WALLET_SECRET_KEY is configured. Never fund it on a public network.
const DevSecretKey = "99ad179d4f892ff3124ccd817408ff8a4452d9c16bb1b4968b8a59797e13cd7a"

// Wallet owns the faucet private key. It is read-only after construction
// and safe to share between goroutines.
type Wallet struct {
	priv    *btcec.PrivateKey
	address chain.Address
}

// FromHex loads a wallet from a 32 byte hex encoded secret key.
func FromHex(secret string) (*Wallet, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(secret, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "decode secret key")
	}
	if len(raw) != 32 {
		return nil, errors.Errorf("secret key must be 32 bytes, got %d", len(raw))
	}
	priv, pub := btcec.PrivKeyFromBytes(raw)
	return &Wallet{
		priv:    priv,
		address: chain.Address(sha256.Sum256(pub.SerializeCompressed())),
	}, nil
}

// Address returns the account derived from the wallet's public key.
func (w *Wallet) Address() chain.Address {
	return w.address
}

// BuildTransfer assembles an unsigned transfer. Every input is bound to the
// wallet's single witness.
func (w *Wallet) BuildTransfer(inputs []chain.Input, outputs []chain.Output, tip, chainID uint64) *chain.Transfer {
	for i := range inputs {
		inputs[i].WitnessIndex = 0
	}
	return &chain.Transfer{
		ChainID: chainID,
		Tip:     tip,
		Inputs:  inputs,
		Outputs: outputs,
	}
}

// Sign replaces the transfer's witnesses with a fresh signature over its
// current id. Signing is deterministic: the same transaction fields always
// produce the same witness. Call again after mutating outputs.
func (w *Wallet) Sign(tx *chain.Transfer) {
	id := tx.ID()
	sig := ecdsa.Sign(w.priv, id[:])
	witness := append(sig.Serialize(), w.priv.PubKey().SerializeCompressed()...)
	tx.Witnesses = []chain.HexBytes{witness}
}

// maxWitnessSize bounds one witness: a DER signature of at most 72 bytes
// plus a 33 byte compressed public key.
const maxWitnessSize = 105

// EstimateMaxFee bounds what the node may charge for the transfer using the
// chain's byte-gas pricing. Witnesses are priced at their maximum encoded
// size so the bound is stable across re-signing.
func (w *Wallet) EstimateMaxFee(tx *chain.Transfer, info *chain.ChainInfo) uint64 {
	witnesses := uint64(len(tx.Witnesses))
	if witnesses == 0 {
		witnesses = 1
	}
	size := uint64(len(tx.SigningBytes())) + witnesses*maxWitnessSize
	return size * info.GasPerByte * info.MinGasPrice
}

// VerifyWitness reports whether the witness is a valid signature by the
// given compressed public key over the transfer id.
func VerifyWitness(tx *chain.Transfer, witness chain.HexBytes) bool {
	if len(witness) < 34 {
		return false
	}
	pubBytes := witness[len(witness)-33:]
	pub, err := btcec.ParsePubKey(pubBytes)
	if err != nil {
		return false
	}
	sig, err := ecdsa.ParseDERSignature(witness[:len(witness)-33])
	if err != nil {
		return false
	}
	id := tx.ID()
	return sig.Verify(id[:], pub)
}
