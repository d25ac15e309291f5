package state

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"vaultauction/storage"
)

var (
	// ErrConflict is returned by Commit when a value read by the transaction
	// changed before it could commit. Nothing is written; the caller should
	// resubmit against fresh state.
	ErrConflict = errors.New("state: concurrent modification")
	// ErrTxClosed is returned when a committed or discarded transaction is
	// used again.
	ErrTxClosed = errors.New("state: transaction closed")
)

// absentVersion marks a key that did not exist when it was read.
var absentVersion [32]byte

// Store hands out optimistic transactions over a key-value database. Reads
// are unsynchronised; Commit validates the read set under a single commit
// lock and writes the write set as one batch.
type Store struct {
	db       storage.Database
	commitMu sync.Mutex
}

// NewStore wraps the supplied database.
func NewStore(db storage.Database) *Store {
	return &Store{db: db}
}

// Begin opens a new transaction.
func (s *Store) Begin() *Tx {
	return &Tx{
		store:  s,
		reads:  make(map[string][32]byte),
		writes: make(map[string][]byte),
	}
}

// View runs fn against a transaction that is always discarded.
func (s *Store) View(fn func(tx *Tx) error) error {
	tx := s.Begin()
	defer tx.Discard()
	return fn(tx)
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func versionOf(value []byte) [32]byte {
	var v [32]byte
	copy(v[:], ethcrypto.Keccak256(value))
	return v
}

func (s *Store) load(hashed []byte) ([]byte, bool, error) {
	value, err := s.db.Get(hashed)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Tx buffers writes and remembers what it read so Commit can detect
// interleaved modifications. A Tx is not safe for concurrent use.
type Tx struct {
	store  *Store
	reads  map[string][32]byte
	writes map[string][]byte // nil value marks a deletion
	closed bool
}

func (tx *Tx) get(key []byte) ([]byte, bool, error) {
	if tx.closed {
		return nil, false, ErrTxClosed
	}
	if len(key) == 0 {
		return nil, false, fmt.Errorf("kv: key must not be empty")
	}
	hashed := kvKey(key)
	if value, ok := tx.writes[string(hashed)]; ok {
		if value == nil {
			return nil, false, nil
		}
		return value, true, nil
	}
	value, ok, err := tx.store.load(hashed)
	if err != nil {
		return nil, false, err
	}
	if _, seen := tx.reads[string(hashed)]; !seen {
		if ok {
			tx.reads[string(hashed)] = versionOf(value)
		} else {
			tx.reads[string(hashed)] = absentVersion
		}
	}
	return value, ok, nil
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (tx *Tx) KVGet(key []byte, out interface{}) (bool, error) {
	data, ok, err := tx.get(key)
	if err != nil || !ok {
		return false, err
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVPut RLP-encodes value and stages it under key.
func (tx *Tx) KVPut(key []byte, value interface{}) error {
	if tx.closed {
		return ErrTxClosed
	}
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	if encoded == nil {
		encoded = []byte{}
	}
	tx.writes[string(kvKey(key))] = encoded
	return nil
}

// KVDelete stages the removal of key.
func (tx *Tx) KVDelete(key []byte) error {
	if tx.closed {
		return ErrTxClosed
	}
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	tx.writes[string(kvKey(key))] = nil
	return nil
}

// Commit validates the read set and applies the write set atomically. On
// ErrConflict the transaction is closed with no effect. Each onCommit hook
// runs after a successful write while the commit lock is still held, so
// hooks observe commits in the order they were applied.
func (tx *Tx) Commit(onCommit ...func()) error {
	if tx.closed {
		return ErrTxClosed
	}
	tx.closed = true
	s := tx.store
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	for hashed, version := range tx.reads {
		current, ok, err := s.load([]byte(hashed))
		if err != nil {
			return err
		}
		var now [32]byte
		if ok {
			now = versionOf(current)
		}
		if !bytes.Equal(now[:], version[:]) {
			return ErrConflict
		}
	}
	if len(tx.writes) > 0 {
		batch := storage.NewBatch()
		for hashed, value := range tx.writes {
			if value == nil {
				batch.Delete([]byte(hashed))
				continue
			}
			batch.Put([]byte(hashed), value)
		}
		if err := s.db.Write(batch); err != nil {
			return err
		}
	}
	for _, hook := range onCommit {
		if hook != nil {
			hook()
		}
	}
	return nil
}

// Discard drops every staged write.
func (tx *Tx) Discard() {
	tx.closed = true
	tx.writes = nil
	tx.reads = nil
}
