package ledger_test

import (
	"testing"

	"github.com/TualatinX/utxo-ledger/ledger"
	"github.com/stretchr/testify/require"
)

func TestNewTransferTx(t *testing.T) {
	alice := newWallet(t)
	bob := newWallet(t)
	pool, _ := genesisPool(t, alice, 10)
	other := ledger.CoinbaseTx(alice.PublicKey, 5, "other")
	pool.AddUTXO(other.OutputUTXO(0), other.Outputs[0])

	t.Run("with change", func(t *testing.T) {
		tx, err := ledger.NewTransferTx(pool, alice, alice.PublicKey, bob.PublicKey, 12)
		require.NoError(t, err)
		require.True(t, tx.IsFinalized())
		require.Len(t, tx.Inputs, 2)
		require.Len(t, tx.Outputs, 2)
		require.EqualValues(t, 12, tx.Outputs[0].Value)
		require.Equal(t, bob.PublicKey, tx.Outputs[0].PubKey)
		require.EqualValues(t, 3, tx.Outputs[1].Value)
		require.Equal(t, alice.PublicKey, tx.Outputs[1].PubKey)
		require.NoError(t, ledger.ValidateTransaction(tx, pool, verifier))
	})

	t.Run("exact", func(t *testing.T) {
		tx, err := ledger.NewTransferTx(pool, alice, alice.PublicKey, bob.PublicKey, 15)
		require.NoError(t, err)
		require.Len(t, tx.Outputs, 1)
		require.NoError(t, ledger.ValidateTransaction(tx, pool, verifier))
	})

	t.Run("not enough funds", func(t *testing.T) {
		_, err := ledger.NewTransferTx(pool, alice, alice.PublicKey, bob.PublicKey, 16)
		require.Error(t, err)
	})

	t.Run("nothing owned", func(t *testing.T) {
		_, err := ledger.NewTransferTx(pool, bob, bob.PublicKey, alice.PublicKey, 1)
		require.Error(t, err)
	})

	t.Run("non-positive amount", func(t *testing.T) {
		_, err := ledger.NewTransferTx(pool, alice, alice.PublicKey, bob.PublicKey, 0)
		require.Error(t, err)
	})
}
