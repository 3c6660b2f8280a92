package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	BackendMemory  = "memory"
	BackendLevelDB = "leveldb"
	BackendBolt    = "bolt"
)

// Open constructs the configured backend rooted at path.
func Open(backend, path string) (Database, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendMemory:
		return NewMemDB(), nil
	case BackendLevelDB:
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("storage: leveldb path required")
		}
		return NewLevelDB(path)
	case BackendBolt:
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("storage: bolt path required")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		return NewBoltDB(path, nil)
	default:
		return nil, fmt.Errorf("storage: unsupported backend %q", backend)
	}
}
