package chain

import (
	"testing"

	"github.com/fuellabs/go-faucet/testing/assert"
	"github.com/fuellabs/go-faucet/testing/require"
)

func sampleTransfer() *Transfer {
	var owner, to Address
	owner[0] = 1
	to[0] = 2
	return &Transfer{
		ChainID: 7,
		Tip:     100,
		Inputs: []Input{{
			UtxoID: UtxoId{TxID: Bytes32{9}, OutputIndex: 1},
			Owner:  owner,
			Amount: 5000,
		}},
		Outputs: []Output{
			{Kind: OutputCoin, To: to, Amount: 1234},
			{Kind: OutputChange, To: to},
			{Kind: OutputCoin, To: owner, Amount: 3000},
		},
	}
}

func TestTransfer_IDDeterministic(t *testing.T) {
	a := sampleTransfer()
	b := sampleTransfer()
	assert.Equal(t, a.ID(), b.ID())
}

func TestTransfer_IDIgnoresWitnesses(t *testing.T) {
	a := sampleTransfer()
	id := a.ID()
	a.Witnesses = append(a.Witnesses, HexBytes{1, 2, 3})
	assert.Equal(t, id, a.ID())
}

func TestTransfer_IDChangesWithFields(t *testing.T) {
	a := sampleTransfer()
	b := sampleTransfer()
	b.Tip++
	assert.NotEqual(t, a.ID(), b.ID())

	c := sampleTransfer()
	c.Outputs[2].Amount = 2999
	assert.NotEqual(t, a.ID(), c.ID())
}

func TestTransfer_SizeIncludesWitnesses(t *testing.T) {
	a := sampleTransfer()
	base := a.Size()
	a.Witnesses = append(a.Witnesses, make(HexBytes, 96))
	require.Equal(t, base+96, a.Size())
}
