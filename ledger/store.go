package ledger

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgraph-io/badger"
	"github.com/pkg/errors"
)

const (
	utxoKeyPrefix    = "utxo-"
	historyKeyPrefix = "tx-"

	// collectSize bounds how many keys go into one badger transaction.
	collectSize   = 100000
	prefixLength  = len(utxoKeyPrefix)
	utxoKeySize   = prefixLength + HashSize + 4
	historyKeyLen = len(historyKeyPrefix) + 8
)

var (
	utxoPrefix    = []byte(utxoKeyPrefix)
	historyPrefix = []byte(historyKeyPrefix)

	// historyLenKey holds how many transactions have been committed.
	historyLenKey = []byte("lh")
)

// UTXOStore persists a UTXO set between runs. Every unspent output is stored
// under its own key so the set can be updated without rewriting it. Every
// committed transaction is also logged in commit order so the set can be
// rebuilt from scratch.
type UTXOStore struct {
	Database *badger.DB
}

// StoreExists checks whether a store has been initialized in dir.
func StoreExists(dir string) bool {
	if _, err := os.Stat(filepath.Join(dir, "MANIFEST")); os.IsNotExist(err) {
		return false
	}
	return true
}

// OpenUTXOStore opens the store in dir, creating it when missing.
func OpenUTXOStore(dir string) (*UTXOStore, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := openDB(dir, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "opening UTXO store in %s", dir)
	}
	return &UTXOStore{Database: db}, nil
}

func (s *UTXOStore) Close() error {
	return s.Database.Close()
}

func utxoKey(ut UTXO) []byte {
	key := make([]byte, utxoKeySize)
	copy(key, utxoPrefix)
	copy(key[prefixLength:], ut.TxHash[:])
	binary.BigEndian.PutUint32(key[prefixLength+HashSize:], ut.Index)
	return key
}

func utxoFromKey(key []byte) (UTXO, error) {
	var ut UTXO
	if len(key) != utxoKeySize || !bytes.HasPrefix(key, utxoPrefix) {
		return ut, errors.Errorf("malformed UTXO key %x", key)
	}
	copy(ut.TxHash[:], key[prefixLength:])
	ut.Index = binary.BigEndian.Uint32(key[prefixLength+HashSize:])
	return ut, nil
}

func serializeOutput(out TxOutput) ([]byte, error) {
	var res bytes.Buffer
	if err := gob.NewEncoder(&res).Encode(out); err != nil {
		return nil, errors.Wrap(err, "encoding output")
	}
	return res.Bytes(), nil
}

func deserializeOutput(data []byte) (TxOutput, error) {
	var out TxOutput
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&out); err != nil {
		return out, errors.Wrap(err, "decoding output")
	}
	return out, nil
}

// forEach calls fn for every stored output in key order until fn returns
// false or an error.
func (s *UTXOStore) forEach(fn func(ut UTXO, out TxOutput) (bool, error)) error {
	return s.Database.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(utxoPrefix); it.ValidForPrefix(utxoPrefix); it.Next() {
			item := it.Item()
			ut, err := utxoFromKey(item.KeyCopy(nil))
			if err != nil {
				return err
			}
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			out, err := deserializeOutput(v)
			if err != nil {
				return errors.Wrapf(err, "output %s", ut)
			}
			more, err := fn(ut, out)
			if err != nil || !more {
				return err
			}
		}
		return nil
	})
}

// Load reads the whole stored set into memory.
func (s *UTXOStore) Load() (*UTXOPool, error) {
	pool := NewUTXOPool()
	err := s.forEach(func(ut UTXO, out TxOutput) (bool, error) {
		pool.AddUTXO(ut, out)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return pool, nil
}

// Update applies committed transactions in order: spent outputs are deleted
// and created ones inserted. All of txs land in one badger transaction,
// together with their entries in the transaction history.
func (s *UTXOStore) Update(txs []*Transaction) error {
	return s.Database.Update(func(txn *badger.Txn) error {
		seq, err := historyLen(txn)
		if err != nil {
			return err
		}
		for _, tx := range txs {
			data, err := tx.Serialize()
			if err != nil {
				return err
			}
			if err := txn.Set(historyKey(seq), data); err != nil {
				return errors.Wrapf(err, "logging %s", tx.ID)
			}
			seq++

			if !tx.IsCoinbase() {
				for _, in := range tx.Inputs {
					if err := txn.Delete(utxoKey(in.UTXO())); err != nil {
						return errors.Wrapf(err, "deleting %s", in.UTXO())
					}
				}
			}
			for i, out := range tx.Outputs {
				data, err := serializeOutput(out)
				if err != nil {
					return err
				}
				if err := txn.Set(utxoKey(tx.OutputUTXO(i)), data); err != nil {
					return errors.Wrapf(err, "storing %s", tx.OutputUTXO(i))
				}
			}
		}
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], seq)
		return txn.Set(historyLenKey, n[:])
	})
}

func historyKey(seq uint64) []byte {
	key := make([]byte, historyKeyLen)
	copy(key, historyPrefix)
	binary.BigEndian.PutUint64(key[len(historyPrefix):], seq)
	return key
}

func historyLen(txn *badger.Txn) (uint64, error) {
	item, err := txn.Get(historyLenKey)
	if err == badger.ErrKeyNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "reading history length")
	}
	v, err := item.ValueCopy(nil)
	if err != nil {
		return 0, errors.Wrap(err, "reading history length")
	}
	if len(v) != 8 {
		return 0, errors.Errorf("malformed history length %x", v)
	}
	return binary.BigEndian.Uint64(v), nil
}

// History returns every committed transaction in commit order.
func (s *UTXOStore) History() ([]*Transaction, error) {
	var txs []*Transaction
	err := s.Database.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(historyPrefix); it.ValidForPrefix(historyPrefix); it.Next() {
			v, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			tx, err := DeserializeTransaction(v)
			if err != nil {
				return errors.Wrapf(err, "history entry %x", it.Item().Key())
			}
			txs = append(txs, tx)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return txs, nil
}

// ReIndex drops the stored UTXO set and rebuilds it by replaying the
// transaction history.
func (s *UTXOStore) ReIndex() error {
	history, err := s.History()
	if err != nil {
		return err
	}
	pool := NewUTXOPool()
	for _, tx := range history {
		pool.apply(tx)
	}

	if err := s.DeleteByPrefix(utxoPrefix); err != nil {
		return err
	}

	all := pool.AllUTXOs()
	for start := 0; start < len(all); start += collectSize {
		end := start + collectSize
		if end > len(all) {
			end = len(all)
		}
		err := s.Database.Update(func(txn *badger.Txn) error {
			for _, ut := range all[start:end] {
				out, _ := pool.GetTxOutput(ut)
				data, err := serializeOutput(out)
				if err != nil {
					return err
				}
				if err := txn.Set(utxoKey(ut), data); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return errors.Wrap(err, "reindexing UTXO set")
		}
	}
	log.Info().Int("transactions", len(history)).Int("utxos", pool.Len()).Msg("UTXO set reindexed")
	return nil
}

// DeleteByPrefix removes every key starting with prefix.
func (s *UTXOStore) DeleteByPrefix(prefix []byte) error {
	deleteKeys := func(keysForDelete [][]byte) error {
		return s.Database.Update(func(txn *badger.Txn) error {
			for _, key := range keysForDelete {
				if err := txn.Delete(key); err != nil {
					return err
				}
			}
			return nil
		})
	}

	var keysForDelete [][]byte
	err := s.Database.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keysForDelete = append(keysForDelete, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "collecting keys")
	}

	for start := 0; start < len(keysForDelete); start += collectSize {
		end := start + collectSize
		if end > len(keysForDelete) {
			end = len(keysForDelete)
		}
		if err := deleteKeys(keysForDelete[start:end]); err != nil {
			return errors.Wrap(err, "deleting keys")
		}
	}
	return nil
}

// CountUTXOs returns how many outputs are stored.
func (s *UTXOStore) CountUTXOs() (int, error) {
	counter := 0
	err := s.forEach(func(UTXO, TxOutput) (bool, error) {
		counter++
		return true, nil
	})
	return counter, err
}

// FindUnspentOutputs returns every stored output owned by pubKey.
func (s *UTXOStore) FindUnspentOutputs(pubKey []byte) ([]TxOutput, error) {
	var outs []TxOutput
	err := s.forEach(func(_ UTXO, out TxOutput) (bool, error) {
		if bytes.Equal(out.PubKey, pubKey) {
			outs = append(outs, out)
		}
		return true, nil
	})
	return outs, err
}

func retry(dir string, originalOpts badger.Options) (*badger.DB, error) {
	lockPath := filepath.Join(dir, "LOCK")
	if err := os.Remove(lockPath); err != nil {
		return nil, errors.Errorf(`removing "LOCK": %s`, err)
	}
	retryOpts := originalOpts
	retryOpts.Truncate = true
	return badger.Open(retryOpts)
}

func openDB(dir string, opts badger.Options) (*badger.DB, error) {
	db, err := badger.Open(opts)
	if err == nil {
		return db, nil
	}
	if strings.Contains(err.Error(), "LOCK") {
		db, retryErr := retry(dir, opts)
		if retryErr == nil {
			log.Info().Str("dir", dir).Msg("Database unlocked, value log truncated")
			return db, nil
		}
		log.Error().Err(retryErr).Str("dir", dir).Msg("Could not unlock database")
	}
	return nil, err
}
