package storage

import (
	"errors"
	"path/filepath"
	"testing"
)

func exerciseDatabase(t *testing.T, db Database) {
	t.Helper()
	if _, err := db.Get([]byte("missing")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := db.Put([]byte("a"), []byte("1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := db.Get([]byte("a"))
	if err != nil || string(got) != "1" {
		t.Fatalf("get a: %q %v", got, err)
	}

	batch := db.NewBatch()
	batch.Put([]byte("b"), []byte("2"))
	batch.Delete([]byte("a"))
	if batch.Len() != 2 {
		t.Fatalf("expected 2 buffered ops, got %d", batch.Len())
	}
	if _, err := db.Get([]byte("b")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("batch must not apply before Write")
	}
	if err := batch.Write(); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := db.Get([]byte("a")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected a deleted, got %v", err)
	}
	got, err = db.Get([]byte("b"))
	if err != nil || string(got) != "2" {
		t.Fatalf("get b: %q %v", got, err)
	}
	if err := db.Delete([]byte("b")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := db.Get([]byte("b")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected b deleted, got %v", err)
	}
}

func TestMemDB(t *testing.T) {
	db := NewMemDB()
	defer db.Close()
	exerciseDatabase(t, db)
}

func TestMemDBGetReturnsCopy(t *testing.T) {
	db := NewMemDB()
	if err := db.Put([]byte("k"), []byte("value")); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, _ := db.Get([]byte("k"))
	got[0] = 'X'
	again, _ := db.Get([]byte("k"))
	if string(again) != "value" {
		t.Fatalf("stored value mutated through returned slice: %q", again)
	}
}

func TestLevelDB(t *testing.T) {
	db, err := NewLevelDB(filepath.Join(t.TempDir(), "ldb"))
	if err != nil {
		t.Fatalf("open leveldb: %v", err)
	}
	defer db.Close()
	exerciseDatabase(t, db)
}

func TestBoltDB(t *testing.T) {
	db, err := NewBoltDB(filepath.Join(t.TempDir(), "state.db"), nil)
	if err != nil {
		t.Fatalf("open bolt: %v", err)
	}
	defer db.Close()
	exerciseDatabase(t, db)
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	if _, err := Open("rocksdb", t.TempDir()); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
	db, err := Open("", "")
	if err != nil {
		t.Fatalf("default backend: %v", err)
	}
	if _, ok := db.(*MemDB); !ok {
		t.Fatalf("expected memory backend, got %T", db)
	}
}
