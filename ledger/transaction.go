package ledger

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"math"
	"strings"

	"github.com/btcsuite/btcutil"
	"github.com/pkg/errors"
)

// HashSize is the size of a transaction ID in bytes.
const HashSize = sha256.Size

// coinbaseIndex marks the single input of a coinbase transaction.
const coinbaseIndex = math.MaxUint32

// Hash is the content hash of a finalized transaction.
type Hash [HashSize]byte

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether the hash is all zeros.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// NewHashFromString decodes a hex-encoded transaction ID.
func NewHashFromString(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, errors.Wrapf(err, "decoding hash %q", s)
	}
	if len(b) != HashSize {
		return h, errors.Errorf("hash %q has length %d, expected %d", s, len(b), HashSize)
	}
	copy(h[:], b)
	return h, nil
}

// TxInput is a reference to a previous TxOutput plus the proof that its
// owner authorised spending it.
type TxInput struct {
	// PrevTxHash is the ID of the transaction that produced the output.
	PrevTxHash Hash

	// OutputIndex is the position of the output inside that transaction.
	OutputIndex uint32

	// Signature covers RawDataToSign for the position of this input.
	Signature []byte
}

// UTXO returns the output reference this input claims.
func (in *TxInput) UTXO() UTXO {
	return UTXO{TxHash: in.PrevTxHash, Index: in.OutputIndex}
}

type TxOutput struct {
	// Value is counted in the smallest unit, so sums are exact.
	Value btcutil.Amount

	// PubKey of the owner. Only a signature that verifies against it can
	// unlock the output.
	PubKey []byte
}

func (out TxOutput) clone() TxOutput {
	return TxOutput{Value: out.Value, PubKey: append([]byte(nil), out.PubKey...)}
}

// Transaction spends a list of existing outputs and creates new ones.
// ID is only meaningful after Finalize; every mutator clears it.
type Transaction struct {
	ID      Hash
	Inputs  []TxInput
	Outputs []TxOutput
}

func NewTransaction() *Transaction {
	return &Transaction{}
}

// CoinbaseTx mints value to pubKey out of nothing. It is never validated by
// the handler and is only used to seed a UTXO set.
func CoinbaseTx(pubKey []byte, value btcutil.Amount, data string) *Transaction {
	if data == "" {
		data = fmt.Sprintf("Coins to %x", pubKey)
	}
	tx := &Transaction{
		Inputs:  []TxInput{{OutputIndex: coinbaseIndex, Signature: []byte(data)}},
		Outputs: []TxOutput{{Value: value, PubKey: append([]byte(nil), pubKey...)}},
	}
	tx.Finalize()
	return tx
}

func (tx *Transaction) IsCoinbase() bool {
	return len(tx.Inputs) == 1 && tx.Inputs[0].PrevTxHash.IsZero() && tx.Inputs[0].OutputIndex == coinbaseIndex
}

func (tx *Transaction) AddInput(prevTxHash Hash, outputIndex uint32) {
	tx.Inputs = append(tx.Inputs, TxInput{PrevTxHash: prevTxHash, OutputIndex: outputIndex})
	tx.ID = Hash{}
}

func (tx *Transaction) AddOutput(value btcutil.Amount, pubKey []byte) {
	tx.Outputs = append(tx.Outputs, TxOutput{Value: value, PubKey: append([]byte(nil), pubKey...)})
	tx.ID = Hash{}
}

func (tx *Transaction) AddSignature(signature []byte, index int) error {
	if index < 0 || index >= len(tx.Inputs) {
		return errors.Errorf("input index %d out of range [0, %d)", index, len(tx.Inputs))
	}
	tx.Inputs[index].Signature = append([]byte(nil), signature...)
	tx.ID = Hash{}
	return nil
}

// SignInput signs the data committed to by the input at index and stores the
// signature in place. The transaction must be finalized again afterwards.
func (tx *Transaction) SignInput(index int, signer Signer) error {
	if index < 0 || index >= len(tx.Inputs) {
		return errors.Errorf("input index %d out of range [0, %d)", index, len(tx.Inputs))
	}
	signature, err := signer.Sign(tx.RawDataToSign(index))
	if err != nil {
		return errors.Wrapf(err, "signing input %d", index)
	}
	return tx.AddSignature(signature, index)
}

// RawDataToSign returns the bytes the signature of input index must cover:
// every outpoint, the index itself and every output. Signatures are never
// included. Returns nil for an index out of range.
func (tx *Transaction) RawDataToSign(index int) []byte {
	if index < 0 || index >= len(tx.Inputs) {
		return nil
	}
	var buf bytes.Buffer
	writeUint32(&buf, uint32(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		buf.Write(in.PrevTxHash[:])
		writeUint32(&buf, in.OutputIndex)
	}
	writeUint32(&buf, uint32(index))
	tx.writeOutputs(&buf)
	return buf.Bytes()
}

// RawTx returns the canonical encoding of the whole transaction, signatures
// included. The ID is the sha256 of these bytes.
func (tx *Transaction) RawTx() []byte {
	var buf bytes.Buffer
	writeUint32(&buf, uint32(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		buf.Write(in.PrevTxHash[:])
		writeUint32(&buf, in.OutputIndex)
		writeBytes(&buf, in.Signature)
	}
	tx.writeOutputs(&buf)
	return buf.Bytes()
}

func (tx *Transaction) writeOutputs(buf *bytes.Buffer) {
	writeUint32(buf, uint32(len(tx.Outputs)))
	for _, out := range tx.Outputs {
		var value [8]byte
		binary.BigEndian.PutUint64(value[:], uint64(out.Value))
		buf.Write(value[:])
		writeBytes(buf, out.PubKey)
	}
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeBytes(buf *bytes.Buffer, data []byte) {
	writeUint32(buf, uint32(len(data)))
	buf.Write(data)
}

// Finalize computes and memoizes the transaction ID.
func (tx *Transaction) Finalize() {
	tx.ID = tx.contentHash()
}

func (tx *Transaction) contentHash() Hash {
	return sha256.Sum256(tx.RawTx())
}

func (tx *Transaction) IsFinalized() bool {
	return !tx.ID.IsZero()
}

// OutputUTXO returns the reference that output index will be known by once
// the transaction is committed.
func (tx *Transaction) OutputUTXO(index int) UTXO {
	return UTXO{TxHash: tx.ID, Index: uint32(index)}
}

func (tx *Transaction) Serialize() ([]byte, error) {
	var res bytes.Buffer
	if err := gob.NewEncoder(&res).Encode(tx); err != nil {
		return nil, errors.Wrap(err, "encoding transaction")
	}
	return res.Bytes(), nil
}

func DeserializeTransaction(data []byte) (*Transaction, error) {
	var tx Transaction
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&tx); err != nil {
		return nil, errors.Wrap(err, "decoding transaction")
	}
	tx.Finalize()
	return &tx, nil
}

// SerializeBatch encodes a candidate batch, preserving its order.
func SerializeBatch(txs []*Transaction) ([]byte, error) {
	var res bytes.Buffer
	if err := gob.NewEncoder(&res).Encode(txs); err != nil {
		return nil, errors.Wrap(err, "encoding batch")
	}
	return res.Bytes(), nil
}

func DeserializeBatch(data []byte) ([]*Transaction, error) {
	var txs []*Transaction
	if len(data) == 0 {
		return txs, nil
	}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&txs); err != nil {
		return nil, errors.Wrap(err, "decoding batch")
	}
	// IDs are never taken on trust from the encoding.
	for i, tx := range txs {
		if tx == nil {
			return nil, errors.Errorf("decoding batch: transaction %d is empty", i)
		}
		tx.Finalize()
	}
	return txs, nil
}

func (tx *Transaction) String() string {
	var lines []string

	lines = append(lines, fmt.Sprintf("--- Transaction %s:", tx.ID))
	for i, input := range tx.Inputs {
		lines = append(lines, fmt.Sprintf("     Input %d:", i))
		lines = append(lines, fmt.Sprintf("       TXID:      %s", input.PrevTxHash))
		lines = append(lines, fmt.Sprintf("       Out:       %d", input.OutputIndex))
		lines = append(lines, fmt.Sprintf("       Signature: %x", input.Signature))
	}
	for i, output := range tx.Outputs {
		lines = append(lines, fmt.Sprintf("     Output %d:", i))
		lines = append(lines, fmt.Sprintf("       Value:  %s", output.Value))
		lines = append(lines, fmt.Sprintf("       PubKey: %x", output.PubKey))
	}

	return strings.Join(lines, "\n")
}
