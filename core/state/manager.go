package state

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"

	"pcnchain/storage"
)

var errReadOnly = errors.New("state: write attempted in read-only transaction")

// Manager serialises every state mutation through a single writer. Each
// Update runs against a staged overlay that is committed as one storage batch,
// so a failing operation leaves no partial effects behind.
type Manager struct {
	mu sync.RWMutex
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Update runs fn inside an exclusive read-write transaction. The staged
// writes are discarded when fn returns an error.
func (m *Manager) Update(fn func(*Tx) error) error {
	if m == nil || m.db == nil {
		return fmt.Errorf("state: manager not configured")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := newTx(m.db, false)
	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit()
}

// View runs fn inside a read-only transaction. Concurrent views are allowed;
// they never observe a partially applied Update.
func (m *Manager) View(fn func(*Tx) error) error {
	if m == nil || m.db == nil {
		return fmt.Errorf("state: manager not configured")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(newTx(m.db, true))
}

// Tx is a staged view over the database. Reads observe the transaction's own
// pending writes.
type Tx struct {
	db       storage.Database
	readOnly bool
	writes   map[string][]byte
	deletes  map[string]struct{}
}

func newTx(db storage.Database, readOnly bool) *Tx {
	return &Tx{
		db:       db,
		readOnly: readOnly,
		writes:   make(map[string][]byte),
		deletes:  make(map[string]struct{}),
	}
}

func (tx *Tx) get(key []byte) ([]byte, bool, error) {
	k := string(key)
	if v, ok := tx.writes[k]; ok {
		return v, true, nil
	}
	if _, ok := tx.deletes[k]; ok {
		return nil, false, nil
	}
	v, err := tx.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (tx *Tx) put(key, value []byte) error {
	if tx.readOnly {
		return errReadOnly
	}
	k := string(key)
	delete(tx.deletes, k)
	tx.writes[k] = value
	return nil
}

func (tx *Tx) del(key []byte) error {
	if tx.readOnly {
		return errReadOnly
	}
	k := string(key)
	delete(tx.writes, k)
	tx.deletes[k] = struct{}{}
	return nil
}

func (tx *Tx) load(key []byte, out interface{}) (bool, error) {
	data, ok, err := tx.get(key)
	if err != nil || !ok {
		return false, err
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("state: decode: %w", err)
	}
	return true, nil
}

func (tx *Tx) store(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode: %w", err)
	}
	return tx.put(key, encoded)
}

func (tx *Tx) commit() error {
	if tx.readOnly || (len(tx.writes) == 0 && len(tx.deletes) == 0) {
		return nil
	}
	batch := tx.db.NewBatch()
	for k, v := range tx.writes {
		batch.Put([]byte(k), v)
	}
	for k := range tx.deletes {
		batch.Delete([]byte(k))
	}
	return batch.Write()
}
