package ledger

import (
	"github.com/btcsuite/btcutil"
	"github.com/pkg/errors"
)

// NewTransferTx builds a finalized transaction paying amount from the owner
// of fromPubKey to toPubKey. Inputs are picked from pool and any change goes
// back to the sender. Every input is signed by signer.
func NewTransferTx(pool *UTXOPool, signer Signer, fromPubKey, toPubKey []byte, amount btcutil.Amount) (*Transaction, error) {
	if amount <= 0 {
		return nil, errors.Errorf("transfer amount must be positive, got %s", amount)
	}

	acc, validOutputs := pool.FindSpendableOutputs(fromPubKey, amount)
	if acc < amount {
		return nil, errors.Errorf("not enough funds: have %s, need %s", acc, amount)
	}

	tx := NewTransaction()
	for _, ut := range validOutputs {
		tx.AddInput(ut.TxHash, ut.Index)
	}
	tx.AddOutput(amount, toPubKey)
	if acc > amount {
		tx.AddOutput(acc-amount, fromPubKey)
	}

	for i := range tx.Inputs {
		if err := tx.SignInput(i, signer); err != nil {
			return nil, err
		}
	}
	tx.Finalize()
	return tx, nil
}
