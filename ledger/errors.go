package ledger

import (
	"github.com/pkg/errors"
)

// These constants are used to identify a specific RuleError.
var (
	// ErrMissingInput indicates an input references an output that is not
	// in the UTXO set, either because it never existed or because it has
	// already been spent.
	ErrMissingInput = newRuleError("ErrMissingInput")

	// ErrDoubleSpendInTx indicates a transaction claims the same output
	// from more than one of its inputs.
	ErrDoubleSpendInTx = newRuleError("ErrDoubleSpendInTx")

	// ErrBadSignature indicates an input signature does not verify against
	// the owner of the output it spends.
	ErrBadSignature = newRuleError("ErrBadSignature")

	// ErrNegativeOutput indicates an output carries a negative value.
	ErrNegativeOutput = newRuleError("ErrNegativeOutput")

	// ErrValueConservation indicates the outputs of a transaction are worth
	// more than its inputs.
	ErrValueConservation = newRuleError("ErrValueConservation")

	// ErrValueOverflow indicates the output values of a transaction do not
	// fit in an Amount when summed.
	ErrValueOverflow = newRuleError("ErrValueOverflow")

	// ErrUnfinalizedTx indicates the transaction has no content hash, so
	// its outputs cannot be given references.
	ErrUnfinalizedTx = newRuleError("ErrUnfinalizedTx")

	// ErrBadTxID indicates the ID a transaction carries is not the hash of
	// its content.
	ErrBadTxID = newRuleError("ErrBadTxID")
)

// RuleError identifies a rule violation. It is used to indicate that
// validation of a transaction failed due to one of the validation rules.
// The caller can use errors.Is against the exported values to determine
// which rule was violated.
type RuleError struct {
	message string
	inner   error
}

// Error satisfies the error interface and prints human-readable errors.
func (e RuleError) Error() string {
	if e.inner != nil {
		return e.message + ": " + e.inner.Error()
	}
	return e.message
}

// Unwrap satisfies the errors.Unwrap interface
func (e RuleError) Unwrap() error {
	return e.inner
}

// Cause satisfies the github.com/pkg/errors.Cause interface
func (e RuleError) Cause() error {
	return e.inner
}

func newRuleError(message string) RuleError {
	return RuleError{message: message, inner: nil}
}

// IsRuleError reports whether err, or anything it wraps, is a RuleError.
func IsRuleError(err error) bool {
	var ruleErr RuleError
	return errors.As(err, &ruleErr)
}
