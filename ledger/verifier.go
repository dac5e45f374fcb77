package ledger

// Verifier checks that signature is a valid signature of message by the
// owner of pubKey. Implementations must be pure.
type Verifier interface {
	Verify(pubKey, message, signature []byte) bool
}

// VerifierFunc adapts a plain function to the Verifier interface.
type VerifierFunc func(pubKey, message, signature []byte) bool

func (f VerifierFunc) Verify(pubKey, message, signature []byte) bool {
	return f(pubKey, message, signature)
}

// Signer produces signatures that a matching Verifier accepts.
type Signer interface {
	Sign(message []byte) ([]byte, error)
}
