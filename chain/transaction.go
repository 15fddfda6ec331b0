package chain

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"

	"github.com/minio/sha256-simd"
)

// Output kinds of a transfer transaction.
const (
	// OutputCoin sends a fixed amount to an address.
	OutputCoin OutputKind = iota
	// OutputChange returns the remaining balance of an asset to an address.
	// Its amount is filled in by the node at execution time.
	OutputChange
)

// OutputKind discriminates transfer outputs.
type OutputKind uint8

// Input is a signed coin input of a transfer.
type Input struct {
	UtxoID       UtxoId  `json:"utxo_id"`
	Owner        Address `json:"owner"`
	Amount       uint64  `json:"amount"`
	AssetID      AssetId `json:"asset_id"`
	WitnessIndex uint16  `json:"witness_index"`
}

// Output is a coin or change output of a transfer.
type Output struct {
	Kind    OutputKind `json:"kind"`
	To      Address    `json:"to"`
	Amount  uint64     `json:"amount"`
	AssetID AssetId    `json:"asset_id"`
}

// HexBytes is a byte slice that travels as a 0x prefixed hex string.
type HexBytes []byte

// MarshalJSON encodes the bytes as a 0x prefixed hex string.
func (h HexBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal("0x" + hex.EncodeToString(h))
}

// UnmarshalJSON decodes a 0x prefixed hex string.
func (h *HexBytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if len(s) >= 2 && s[0:2] == "0x" {
		s = s[2:]
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	*h = raw
	return nil
}

// Transfer is a script-less value transfer transaction. The tip orders the
// transaction in the node's mempool relative to other pending transactions
// of the same dependency chain.
type Transfer struct {
	ChainID   uint64     `json:"chain_id"`
	Tip       uint64     `json:"tip"`
	Inputs    []Input    `json:"inputs"`
	Outputs   []Output   `json:"outputs"`
	Witnesses []HexBytes `json:"witnesses"`
}

// SigningBytes returns the canonical encoding of everything a witness signs:
// all fields except the witnesses themselves. The same inputs, outputs, tip
// and chain id always produce the same bytes.
func (t *Transfer) SigningBytes() []byte {
	var buf []byte
	u64 := func(v uint64) {
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], v)
		buf = append(buf, b[:]...)
	}
	u16 := func(v uint16) {
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], v)
		buf = append(buf, b[:]...)
	}

	u64(t.ChainID)
	u64(t.Tip)
	u64(uint64(len(t.Inputs)))
	for _, in := range t.Inputs {
		buf = append(buf, in.UtxoID.TxID[:]...)
		u16(in.UtxoID.OutputIndex)
		buf = append(buf, in.Owner[:]...)
		u64(in.Amount)
		buf = append(buf, in.AssetID[:]...)
		u16(in.WitnessIndex)
	}
	u64(uint64(len(t.Outputs)))
	for _, out := range t.Outputs {
		buf = append(buf, byte(out.Kind))
		buf = append(buf, out.To[:]...)
		u64(out.Amount)
		buf = append(buf, out.AssetID[:]...)
	}
	return buf
}

// ID is the transaction identifier: the sha256 digest of the signing bytes.
// Witness data does not contribute, so the id is stable across signing.
func (t *Transfer) ID() Bytes32 {
	return sha256.Sum256(t.SigningBytes())
}

// Size returns the serialized length in bytes, witnesses included, used for
// fee estimation.
func (t *Transfer) Size() uint64 {
	n := uint64(len(t.SigningBytes()))
	for _, w := range t.Witnesses {
		n += uint64(len(w))
	}
	return n
}
