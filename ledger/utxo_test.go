package ledger_test

import (
	"testing"

	"github.com/TualatinX/utxo-ledger/ledger"
	"github.com/btcsuite/btcutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUTXO(b byte, index uint32) ledger.UTXO {
	var h ledger.Hash
	h[0] = b
	return ledger.UTXO{TxHash: h, Index: index}
}

func TestUTXOPoolBasics(t *testing.T) {
	pool := ledger.NewUTXOPool()
	ut := testUTXO(1, 0)

	require.False(t, pool.Contains(ut))
	_, ok := pool.GetTxOutput(ut)
	require.False(t, ok)

	pool.AddUTXO(ut, ledger.TxOutput{Value: 10, PubKey: []byte{1}})
	require.True(t, pool.Contains(ut))
	out, ok := pool.GetTxOutput(ut)
	require.True(t, ok)
	require.EqualValues(t, 10, out.Value)

	pool.AddUTXO(ut, ledger.TxOutput{Value: 7, PubKey: []byte{1}})
	out, _ = pool.GetTxOutput(ut)
	require.EqualValues(t, 7, out.Value)
	require.Equal(t, 1, pool.Len())

	require.False(t, pool.Contains(ledger.UTXO{TxHash: ut.TxHash, Index: 1}))

	pool.RemoveUTXO(ut)
	require.False(t, pool.Contains(ut))
	require.NotPanics(t, func() { pool.RemoveUTXO(ut) })
	require.Zero(t, pool.Len())
}

func TestUTXOPoolCopyIsIndependent(t *testing.T) {
	pubKey := []byte{1, 2, 3}
	pool := ledger.NewUTXOPool()
	pool.AddUTXO(testUTXO(1, 0), ledger.TxOutput{Value: 5, PubKey: pubKey})

	c := pool.Copy()
	require.True(t, c.Equal(pool))

	c.RemoveUTXO(testUTXO(1, 0))
	c.AddUTXO(testUTXO(2, 0), ledger.TxOutput{Value: 1})
	require.True(t, pool.Contains(testUTXO(1, 0)))
	require.False(t, pool.Contains(testUTXO(2, 0)))

	pubKey[0] = 9
	out, _ := pool.GetTxOutput(testUTXO(1, 0))
	require.Equal(t, []byte{1, 2, 3}, out.PubKey)
}

func TestUTXOPoolEqual(t *testing.T) {
	a := ledger.NewUTXOPool()
	b := ledger.NewUTXOPool()
	require.True(t, a.Equal(b))

	a.AddUTXO(testUTXO(1, 0), ledger.TxOutput{Value: 5, PubKey: []byte{1}})
	require.False(t, a.Equal(b))

	b.AddUTXO(testUTXO(1, 0), ledger.TxOutput{Value: 5, PubKey: []byte{2}})
	require.False(t, a.Equal(b))

	b.AddUTXO(testUTXO(1, 0), ledger.TxOutput{Value: 5, PubKey: []byte{1}})
	require.True(t, a.Equal(b))
}

func TestAllUTXOsOrder(t *testing.T) {
	pool := ledger.NewUTXOPool()
	for _, ut := range []ledger.UTXO{testUTXO(2, 0), testUTXO(1, 3), testUTXO(1, 1)} {
		pool.AddUTXO(ut, ledger.TxOutput{Value: 1})
	}
	assert.Equal(t, []ledger.UTXO{testUTXO(1, 1), testUTXO(1, 3), testUTXO(2, 0)}, pool.AllUTXOs())
	assert.EqualValues(t, 3, pool.TotalValue())
}

func TestFindSpendableOutputs(t *testing.T) {
	alice := []byte{1}
	bob := []byte{2}
	pool := ledger.NewUTXOPool()
	pool.AddUTXO(testUTXO(1, 0), ledger.TxOutput{Value: 4, PubKey: alice})
	pool.AddUTXO(testUTXO(2, 0), ledger.TxOutput{Value: 100, PubKey: bob})
	pool.AddUTXO(testUTXO(3, 0), ledger.TxOutput{Value: 6, PubKey: alice})
	pool.AddUTXO(testUTXO(4, 0), ledger.TxOutput{Value: 1, PubKey: alice})

	tests := []struct {
		name        string
		amount      btcutil.Amount
		accumulated btcutil.Amount
		utxos       []ledger.UTXO
	}{
		{"first output covers", 3, 4, []ledger.UTXO{testUTXO(1, 0)}},
		{"exact two", 10, 10, []ledger.UTXO{testUTXO(1, 0), testUTXO(3, 0)}},
		{"all", 11, 11, []ledger.UTXO{testUTXO(1, 0), testUTXO(3, 0), testUTXO(4, 0)}},
		{"not enough", 50, 11, []ledger.UTXO{testUTXO(1, 0), testUTXO(3, 0), testUTXO(4, 0)}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			accumulated, utxos := pool.FindSpendableOutputs(alice, test.amount)
			require.Equal(t, test.accumulated, accumulated)
			require.Equal(t, test.utxos, utxos)
		})
	}
}
