// Package chain defines the value types shared with the node: addresses,
// asset ids, UTXO references and the transfer transaction wire format, plus
// the NodeClient used to talk to a running node.
package chain

import (
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/pkg/errors"
)

// AddressHRP is the human readable part of bech32 encoded addresses.
const AddressHRP = "fuel"

// ErrInvalidAddress is returned when an address is neither valid hex nor
// valid bech32.
var ErrInvalidAddress = errors.New("invalid address")

// Bytes32 is a 32 byte value, typically a hash.
type Bytes32 [32]byte

// HexToBytes32 parses a 32 byte value from hex, with or without a 0x prefix.
func HexToBytes32(s string) (Bytes32, error) {
	var b Bytes32
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return b, errors.Wrap(err, "decode hex")
	}
	if len(raw) != 32 {
		return b, errors.Errorf("expected 32 bytes, got %d", len(raw))
	}
	copy(b[:], raw)
	return b, nil
}

// Hex returns the 0x prefixed hex encoding.
func (b Bytes32) Hex() string {
	return "0x" + hex.EncodeToString(b[:])
}

// MarshalJSON encodes the value as a 0x prefixed hex string.
func (b Bytes32) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Hex())
}

// UnmarshalJSON decodes a 0x prefixed hex string.
func (b *Bytes32) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := HexToBytes32(s)
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// Address is a 32 byte account identifier.
type Address Bytes32

// ParseAddress accepts either raw 32 byte hex (with or without 0x) or the
// bech32 form with the network HRP.
func ParseAddress(s string) (Address, error) {
	if b, err := HexToBytes32(s); err == nil {
		return Address(b), nil
	}
	hrp, data, err := bech32.Decode(s)
	if err != nil || hrp != AddressHRP {
		return Address{}, ErrInvalidAddress
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil || len(raw) != 32 {
		return Address{}, ErrInvalidAddress
	}
	var a Address
	copy(a[:], raw)
	return a, nil
}

// Hex returns the 0x prefixed hex encoding.
func (a Address) Hex() string {
	return Bytes32(a).Hex()
}

// Bech32 returns the bech32 encoding with the network HRP.
func (a Address) Bech32() (string, error) {
	conv, err := bech32.ConvertBits(a[:], 8, 5, true)
	if err != nil {
		return "", errors.Wrap(err, "convert bits")
	}
	return bech32.Encode(AddressHRP, conv)
}

// MarshalJSON encodes the address as a 0x prefixed hex string.
func (a Address) MarshalJSON() ([]byte, error) {
	return Bytes32(a).MarshalJSON()
}

// UnmarshalJSON decodes a 0x prefixed hex string.
func (a *Address) UnmarshalJSON(data []byte) error {
	return (*Bytes32)(a).UnmarshalJSON(data)
}

// AssetId is a 32 byte asset identifier. The zero value is the base asset on
// networks that do not override it.
type AssetId Bytes32

// BaseAssetId is the default dispense asset.
var BaseAssetId = AssetId{}

// Hex returns the 0x prefixed hex encoding.
func (a AssetId) Hex() string {
	return Bytes32(a).Hex()
}

// MarshalJSON encodes the asset id as a 0x prefixed hex string.
func (a AssetId) MarshalJSON() ([]byte, error) {
	return Bytes32(a).MarshalJSON()
}

// UnmarshalJSON decodes a 0x prefixed hex string.
func (a *AssetId) UnmarshalJSON(data []byte) error {
	return (*Bytes32)(a).UnmarshalJSON(data)
}

// UtxoId identifies a single unspent output as the pair of the producing
// transaction hash and the output index within it.
type UtxoId struct {
	TxID        Bytes32 `json:"tx_id"`
	OutputIndex uint16  `json:"output_index"`
}

// CoinOutput is a spendable coin owned by an address.
type CoinOutput struct {
	UtxoID UtxoId  `json:"utxo_id"`
	Owner  Address `json:"owner"`
	Amount uint64  `json:"amount"`
}
