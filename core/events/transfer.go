package events

import (
	"math/big"

	"pcnchain/core/types"
	"pcnchain/crypto"
)

const (
	// TypeCustodyTransfer is emitted whenever funds cross the channel custody
	// boundary on the external ledger.
	TypeCustodyTransfer = "ledger.custody_transfer"
)

// CustodyTransfer records a ledger movement into or out of channel custody.
type CustodyTransfer struct {
	ChannelID uint64
	From      [20]byte
	To        [20]byte
	Amount    *big.Int
	Reason    string
}

func (CustodyTransfer) EventType() string { return TypeCustodyTransfer }

func (e CustodyTransfer) Event() *types.Event {
	return types.NewEvent(TypeCustodyTransfer).
		With("channelId", new(big.Int).SetUint64(e.ChannelID).String()).
		With("from", crypto.Address(e.From).String()).
		With("to", crypto.Address(e.To).String()).
		With("amount", formatAmount(e.Amount)).
		With("reason", e.Reason)
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
