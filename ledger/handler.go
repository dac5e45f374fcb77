package ledger

// TxHandler owns the current UTXO set of a ledger and applies batches of
// transactions to it. It is not safe for concurrent use; callers serialise
// access to a handler.
type TxHandler struct {
	utxoPool *UTXOPool
	verifier Verifier
}

// Rejection records why a candidate was left out of a batch.
type Rejection struct {
	// Index is the position of the transaction in the candidate list.
	Index int
	Tx    *Transaction
	Err   error
}

// BatchResult is the outcome of HandleBatch.
type BatchResult struct {
	// Accepted holds the committed transactions in the order they were
	// accepted.
	Accepted []*Transaction

	// Rejected holds every other candidate, with the rule it broke against
	// the final UTXO set.
	Rejected []Rejection
}

// NewTxHandler creates a ledger whose current UTXO set is a copy of
// utxoPool. Later changes to utxoPool do not affect the handler.
func NewTxHandler(utxoPool *UTXOPool, verifier Verifier) *TxHandler {
	return &TxHandler{
		utxoPool: utxoPool.Copy(),
		verifier: verifier,
	}
}

// UTXOPool returns a copy of the current UTXO set.
func (h *TxHandler) UTXOPool() *UTXOPool {
	return h.utxoPool.Copy()
}

// ValidateTx validates tx against the current UTXO set.
func (h *TxHandler) ValidateTx(tx *Transaction) error {
	return ValidateTransaction(tx, h.utxoPool, h.verifier)
}

func (h *TxHandler) IsValidTx(tx *Transaction) bool {
	return h.ValidateTx(tx) == nil
}

// HandleTxs receives an unordered list of proposed transactions, commits a
// mutually valid subset of them to the UTXO set and returns that subset in
// the order it was committed.
func (h *TxHandler) HandleTxs(possibleTxs []*Transaction) []*Transaction {
	return h.HandleBatch(possibleTxs).Accepted
}

// HandleBatch sweeps the candidates in order and commits the first one that
// is valid against the current UTXO set, then starts over from the top.
// It stops once a full sweep commits nothing. Committing one transaction
// can enable a later one, so a single pass is not enough.
func (h *TxHandler) HandleBatch(possibleTxs []*Transaction) *BatchResult {
	result := &BatchResult{}
	accepted := make([]bool, len(possibleTxs))
	lastErr := make([]error, len(possibleTxs))

	for {
		found := false
		for i, tx := range possibleTxs {
			if accepted[i] {
				continue
			}
			if err := h.ValidateTx(tx); err != nil {
				lastErr[i] = err
				continue
			}
			h.utxoPool.apply(tx)
			accepted[i] = true
			result.Accepted = append(result.Accepted, tx)
			log.Debug().Str("tx", tx.ID.String()).Int("candidate", i).Msg("Transaction accepted")
			found = true
			break
		}
		if !found {
			break
		}
	}

	for i, tx := range possibleTxs {
		if accepted[i] {
			continue
		}
		result.Rejected = append(result.Rejected, Rejection{Index: i, Tx: tx, Err: lastErr[i]})
		log.Debug().Int("candidate", i).Err(lastErr[i]).Msg("Transaction rejected")
	}
	log.Debug().Int("candidates", len(possibleTxs)).Int("accepted", len(result.Accepted)).
		Int("utxos", h.utxoPool.Len()).Msg("Batch handled")

	return result
}
