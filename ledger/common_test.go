package ledger_test

import (
	"testing"

	"github.com/TualatinX/utxo-ledger/ledger"
	"github.com/TualatinX/utxo-ledger/wallet"
	"github.com/btcsuite/btcutil"
	"github.com/stretchr/testify/require"
)

var verifier = wallet.ECDSAVerifier{}

func newWallet(t *testing.T) *wallet.Wallet {
	w, err := wallet.MakeWallet()
	require.NoError(t, err)
	return w
}

// genesisPool returns a pool with one output of value owned by owner.
func genesisPool(t *testing.T, owner *wallet.Wallet, value btcutil.Amount) (*ledger.UTXOPool, ledger.UTXO) {
	coinbase := ledger.CoinbaseTx(owner.PublicKey, value, t.Name())
	pool := ledger.NewUTXOPool()
	ut := coinbase.OutputUTXO(0)
	pool.AddUTXO(ut, coinbase.Outputs[0])
	return pool, ut
}

func pay(value btcutil.Amount, to *wallet.Wallet) ledger.TxOutput {
	return ledger.TxOutput{Value: value, PubKey: to.PublicKey}
}

// buildTx spends ins, signing input i with signers[i], and creates outs.
func buildTx(t *testing.T, ins []ledger.UTXO, signers []*wallet.Wallet, outs ...ledger.TxOutput) *ledger.Transaction {
	require.Len(t, signers, len(ins))
	tx := ledger.NewTransaction()
	for _, in := range ins {
		tx.AddInput(in.TxHash, in.Index)
	}
	for _, out := range outs {
		tx.AddOutput(out.Value, out.PubKey)
	}
	for i, signer := range signers {
		require.NoError(t, tx.SignInput(i, signer))
	}
	tx.Finalize()
	return tx
}

func spendOne(t *testing.T, in ledger.UTXO, signer *wallet.Wallet, outs ...ledger.TxOutput) *ledger.Transaction {
	return buildTx(t, []ledger.UTXO{in}, []*wallet.Wallet{signer}, outs...)
}
