package crypto

import (
	"fmt"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"lukechampine.com/blake3"
)

// Hasher produces the fixed-width digests used for hashlocks and signed
// messages.
type Hasher interface {
	Sum(data []byte) [32]byte
	Name() string
}

const (
	HashKeccak256 = "keccak256"
	HashBlake3    = "blake3"
)

type keccakHasher struct{}

func (keccakHasher) Sum(data []byte) [32]byte { return ethcrypto.Keccak256Hash(data) }
func (keccakHasher) Name() string             { return HashKeccak256 }

type blake3Hasher struct{}

func (blake3Hasher) Sum(data []byte) [32]byte { return blake3.Sum256(data) }
func (blake3Hasher) Name() string             { return HashBlake3 }

// Keccak256 is the default hasher.
var Keccak256 Hasher = keccakHasher{}

// Blake3 hashes with BLAKE3-256.
var Blake3 Hasher = blake3Hasher{}

// HasherByName resolves a configured algorithm name. An empty name selects
// keccak256.
func HasherByName(name string) (Hasher, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", HashKeccak256:
		return Keccak256, nil
	case HashBlake3:
		return Blake3, nil
	default:
		return nil, fmt.Errorf("crypto: unsupported hash algorithm %q", name)
	}
}
