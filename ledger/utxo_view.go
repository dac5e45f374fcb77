package ledger

import (
	"github.com/pkg/errors"
)

// utxoView is a disposable overlay over a pool used while validating a
// single transaction. Consumed references are tracked on the side so the
// base pool is never touched.
type utxoView struct {
	base  *UTXOPool
	spent map[UTXO]struct{}
}

func newUTXOView(base *UTXOPool) *utxoView {
	return &utxoView{base: base, spent: make(map[UTXO]struct{})}
}

// spend returns the output ut names and removes ut from the view.
func (v *utxoView) spend(ut UTXO) (TxOutput, error) {
	if _, ok := v.spent[ut]; ok {
		return TxOutput{}, errors.Wrapf(ErrDoubleSpendInTx, "%s is claimed more than once", ut)
	}
	out, ok := v.base.GetTxOutput(ut)
	if !ok {
		return TxOutput{}, errors.Wrapf(ErrMissingInput, "%s is not in the UTXO set", ut)
	}
	v.spent[ut] = struct{}{}
	return out, nil
}
