package channels

import (
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	balanceProofDomain = []byte("pcn/balance-proof/v1")
	closeDomain        = []byte("pcn/cooperative-close/v1")
)

// BalanceProofMessage is the payload a counterparty signs to attest that
// participant's side of the channel holds balance at nonce.
func BalanceProofMessage(channelID uint64, participant [20]byte, balance *big.Int, nonce uint64) []byte {
	msg := make([]byte, 0, len(balanceProofDomain)+8+20+32+8)
	msg = append(msg, balanceProofDomain...)
	msg = binary.BigEndian.AppendUint64(msg, channelID)
	msg = append(msg, participant[:]...)
	msg = append(msg, amountWord(balance)...)
	msg = binary.BigEndian.AppendUint64(msg, nonce)
	return msg
}

// CloseMessage is the payload both participants sign to agree on a
// cooperative close split.
func CloseMessage(channelID uint64, balance1, balance2 *big.Int) []byte {
	msg := make([]byte, 0, len(closeDomain)+8+64)
	msg = append(msg, closeDomain...)
	msg = binary.BigEndian.AppendUint64(msg, channelID)
	msg = append(msg, amountWord(balance1)...)
	msg = append(msg, amountWord(balance2)...)
	return msg
}

func amountWord(v *big.Int) []byte {
	if v == nil || v.Sign() <= 0 {
		return make([]byte, 32)
	}
	return common.LeftPadBytes(v.Bytes(), 32)
}
