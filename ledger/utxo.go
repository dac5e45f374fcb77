package ledger

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/btcsuite/btcutil"
)

// UTXO names an unspent output by the transaction that produced it and the
// output's position in that transaction.
type UTXO struct {
	TxHash Hash
	Index  uint32
}

func (ut UTXO) String() string {
	return fmt.Sprintf("%s:%d", ut.TxHash, ut.Index)
}

// Less orders references by hash, then index.
func (ut UTXO) Less(other UTXO) bool {
	if c := bytes.Compare(ut.TxHash[:], other.TxHash[:]); c != 0 {
		return c < 0
	}
	return ut.Index < other.Index
}

// UTXOPool maps every unspent output reference to the output it names.
// It is not safe for concurrent mutation.
type UTXOPool struct {
	pool map[UTXO]TxOutput
}

func NewUTXOPool() *UTXOPool {
	return &UTXOPool{pool: make(map[UTXO]TxOutput)}
}

// Copy returns a deep copy that shares nothing with p.
func (p *UTXOPool) Copy() *UTXOPool {
	c := &UTXOPool{pool: make(map[UTXO]TxOutput, len(p.pool))}
	for ut, out := range p.pool {
		c.pool[ut] = out.clone()
	}
	return c
}

// AddUTXO inserts out under ut, overwriting any previous entry.
func (p *UTXOPool) AddUTXO(ut UTXO, out TxOutput) {
	p.pool[ut] = out.clone()
}

// RemoveUTXO is a no-op when ut is absent.
func (p *UTXOPool) RemoveUTXO(ut UTXO) {
	delete(p.pool, ut)
}

func (p *UTXOPool) Contains(ut UTXO) bool {
	_, ok := p.pool[ut]
	return ok
}

// GetTxOutput returns the output ut refers to; ok is false when the pool
// does not contain ut.
func (p *UTXOPool) GetTxOutput(ut UTXO) (out TxOutput, ok bool) {
	out, ok = p.pool[ut]
	return out, ok
}

func (p *UTXOPool) Len() int {
	return len(p.pool)
}

// apply removes the outputs tx spends and adds the ones it creates.
func (p *UTXOPool) apply(tx *Transaction) {
	if !tx.IsCoinbase() {
		for _, in := range tx.Inputs {
			p.RemoveUTXO(in.UTXO())
		}
	}
	for i, out := range tx.Outputs {
		p.AddUTXO(tx.OutputUTXO(i), out)
	}
}

// AllUTXOs returns every reference in the pool in a stable order.
func (p *UTXOPool) AllUTXOs() []UTXO {
	all := make([]UTXO, 0, len(p.pool))
	for ut := range p.pool {
		all = append(all, ut)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Less(all[j]) })
	return all
}

// Equal reports whether both pools hold the same references to the same
// outputs.
func (p *UTXOPool) Equal(other *UTXOPool) bool {
	if len(p.pool) != len(other.pool) {
		return false
	}
	for ut, out := range p.pool {
		o, ok := other.pool[ut]
		if !ok || o.Value != out.Value || !bytes.Equal(o.PubKey, out.PubKey) {
			return false
		}
	}
	return true
}

// TotalValue sums the value of every output in the pool.
func (p *UTXOPool) TotalValue() btcutil.Amount {
	var total btcutil.Amount
	for _, out := range p.pool {
		total += out.Value
	}
	return total
}

// FindSpendableOutputs collects outputs owned by pubKey, in AllUTXOs order,
// until they are worth at least amount. The total falls short of amount
// when the owner cannot afford it.
func (p *UTXOPool) FindSpendableOutputs(pubKey []byte, amount btcutil.Amount) (btcutil.Amount, []UTXO) {
	var accumulated btcutil.Amount
	var unspent []UTXO
	for _, ut := range p.AllUTXOs() {
		if accumulated >= amount {
			break
		}
		out := p.pool[ut]
		if bytes.Equal(out.PubKey, pubKey) {
			accumulated += out.Value
			unspent = append(unspent, ut)
		}
	}
	return accumulated, unspent
}
