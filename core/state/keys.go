package state

import (
	"encoding/binary"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var (
	channelPrefix     = []byte("channel:")
	pairPrefix        = []byte("pair:")
	edgePrefix        = []byte("edge:")
	proofPrefix       = []byte("proof:")
	htlcPrefix        = []byte("htlc:")
	participantPrefix = []byte("participant:")
	accountPrefix     = []byte("account:")
	sequencePrefix    = []byte("seq:")

	participantListKey = ethcrypto.Keccak256([]byte("participant-list"))
	pendingHTLCKey     = ethcrypto.Keccak256([]byte("htlc-pending"))
	countersKey        = ethcrypto.Keccak256([]byte("network-counters"))
)

// CustodyAddress is the ledger account holding every channel deposit.
var CustodyAddress = func() [20]byte {
	var addr [20]byte
	copy(addr[:], ethcrypto.Keccak256([]byte("pcn/custody"))[12:])
	return addr
}()

func prefixedKey(prefix []byte, parts ...[]byte) []byte {
	size := len(prefix)
	for _, p := range parts {
		size += len(p)
	}
	buf := make([]byte, 0, size)
	buf = append(buf, prefix...)
	for _, p := range parts {
		buf = append(buf, p...)
	}
	return ethcrypto.Keccak256(buf)
}

func uint64Bytes(v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return buf[:]
}

func channelKey(id uint64) []byte { return prefixedKey(channelPrefix, uint64Bytes(id)) }

func pairKey(a, b [20]byte) []byte { return prefixedKey(pairPrefix, a[:], b[:]) }

func edgeKey(from, to [20]byte) []byte { return prefixedKey(edgePrefix, from[:], to[:]) }

func proofKey(channelID uint64, participant [20]byte) []byte {
	return prefixedKey(proofPrefix, uint64Bytes(channelID), participant[:])
}

func htlcKey(id uint64) []byte { return prefixedKey(htlcPrefix, uint64Bytes(id)) }

func participantKey(addr [20]byte) []byte { return prefixedKey(participantPrefix, addr[:]) }

func accountKey(addr [20]byte) []byte { return prefixedKey(accountPrefix, addr[:]) }

func sequenceKey(name string) []byte { return prefixedKey(sequencePrefix, []byte(name)) }
