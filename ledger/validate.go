package ledger

import (
	"math"

	"github.com/btcsuite/btcutil"
	"github.com/pkg/errors"
)

// ValidateTransaction checks tx against pool and returns a RuleError
// describing the first rule it breaks, or nil when:
//   - every input claims an output present in pool,
//   - no output is claimed by more than one input,
//   - every input signature verifies against the owner of the claimed output,
//   - every output value is non-negative,
//   - the inputs are worth at least as much as the outputs.
//
// A transaction whose ID is not the hash of its content is rejected as well,
// since its outputs would be filed under somebody else's references.
//
// pool is never modified.
func ValidateTransaction(tx *Transaction, pool *UTXOPool, verifier Verifier) error {
	if tx == nil {
		return errors.Wrap(ErrUnfinalizedTx, "nil transaction")
	}
	if !tx.IsFinalized() {
		return errors.WithStack(ErrUnfinalizedTx)
	}
	if tx.ID != tx.contentHash() {
		return errors.Wrapf(ErrBadTxID, "%s does not match the transaction content", tx.ID)
	}

	view := newUTXOView(pool)
	var inputSum btcutil.Amount
	for i := range tx.Inputs {
		in := &tx.Inputs[i]
		prevOut, err := view.spend(in.UTXO())
		if err != nil {
			return errors.Wrapf(err, "input %d", i)
		}
		if !verifier.Verify(prevOut.PubKey, tx.RawDataToSign(i), in.Signature) {
			return errors.Wrapf(ErrBadSignature, "input %d spending %s", i, in.UTXO())
		}
		inputSum = saturatingAdd(inputSum, prevOut.Value)
	}

	var outputSum btcutil.Amount
	for i, out := range tx.Outputs {
		if out.Value < 0 {
			return errors.Wrapf(ErrNegativeOutput, "output %d has value %d", i, int64(out.Value))
		}
		var ok bool
		if outputSum, ok = addAmounts(outputSum, out.Value); !ok {
			return errors.Wrapf(ErrValueOverflow, "total output value at output %d", i)
		}
	}

	if inputSum < outputSum {
		return errors.Wrapf(ErrValueConservation, "inputs are worth %d, outputs %d",
			int64(inputSum), int64(outputSum))
	}
	return nil
}

// IsValidTransaction reports whether ValidateTransaction accepts tx.
func IsValidTransaction(tx *Transaction, pool *UTXOPool, verifier Verifier) bool {
	return ValidateTransaction(tx, pool, verifier) == nil
}

// saturatingAdd clamps a+b to the Amount range. An input total clamped at
// the top still covers any output total that fits in an Amount.
func saturatingAdd(a, b btcutil.Amount) btcutil.Amount {
	sum, ok := addAmounts(a, b)
	switch {
	case ok:
		return sum
	case b > 0:
		return math.MaxInt64
	default:
		return math.MinInt64
	}
}

func addAmounts(a, b btcutil.Amount) (btcutil.Amount, bool) {
	if b > 0 && a > math.MaxInt64-b {
		return 0, false
	}
	if b < 0 && a < math.MinInt64-b {
		return 0, false
	}
	return a + b, true
}
