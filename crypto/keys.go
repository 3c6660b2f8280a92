package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// AddressPrefix is the human-readable part used when rendering addresses.
const AddressPrefix = "pcn"

// Address is a 20-byte participant identity rendered in bech32.
type Address [20]byte

// String renders the address as a bech32 string with the pcn prefix.
func (a Address) String() string {
	conv, err := bech32.ConvertBits(a[:], 8, 5, true)
	if err != nil {
		return "0x" + hex.EncodeToString(a[:])
	}
	encoded, err := bech32.Encode(AddressPrefix, conv)
	if err != nil {
		return "0x" + hex.EncodeToString(a[:])
	}
	return encoded
}

// Hex renders the address as a checksummed 0x-prefixed string.
func (a Address) Hex() string {
	return common.Address(a).Hex()
}

// ParseAddress accepts either a bech32 pcn address or a 0x-prefixed hex
// address.
func ParseAddress(raw string) (Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Address{}, fmt.Errorf("crypto: empty address")
	}
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		if !common.IsHexAddress(trimmed) {
			return Address{}, fmt.Errorf("crypto: invalid hex address %q", raw)
		}
		return Address(common.HexToAddress(trimmed)), nil
	}
	prefix, decoded, err := bech32.Decode(trimmed)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	if prefix != AddressPrefix {
		return Address{}, fmt.Errorf("crypto: unexpected address prefix %q", prefix)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	if len(conv) != 20 {
		return Address{}, fmt.Errorf("crypto: address must be 20 bytes, got %d", len(conv))
	}
	var addr Address
	copy(addr[:], conv)
	return addr, nil
}

// --- Key Management ---

type PrivateKey struct {
	*ecdsa.PrivateKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(ethcrypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// Bytes returns the byte representation of the private key.
func (k *PrivateKey) Bytes() []byte {
	return ethcrypto.FromECDSA(k.PrivateKey)
}

// Address derives the participant identity controlled by the key.
func (k *PrivateKey) Address() Address {
	return Address(ethcrypto.PubkeyToAddress(k.PrivateKey.PublicKey))
}

// Sign produces a 65-byte recoverable signature over the keccak256 digest of
// message.
func (k *PrivateKey) Sign(message []byte) ([]byte, error) {
	if k == nil || k.PrivateKey == nil {
		return nil, fmt.Errorf("crypto: nil private key")
	}
	return ethcrypto.Sign(ethcrypto.Keccak256(message), k.PrivateKey)
}

func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	key, err := ethcrypto.ToECDSA(b)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}
