package types

import "math/big"

// HTLC is a hashed time-locked transfer escrowed inside a single channel.
// Exactly one of Claimed and Refunded becomes true, exactly once.
type HTLC struct {
	ID        uint64
	ChannelID uint64
	Sender    [20]byte
	Receiver  [20]byte
	Amount    *big.Int
	Hashlock  [32]byte
	Timelock  uint64
	Preimage  []byte
	Claimed   bool
	Refunded  bool
	CreatedAt uint64
}

// Clone returns a deep copy of the HTLC.
func (h *HTLC) Clone() *HTLC {
	if h == nil {
		return nil
	}
	clone := *h
	clone.Amount = CloneAmount(h.Amount)
	clone.Preimage = append([]byte(nil), h.Preimage...)
	return &clone
}

// Pending reports whether the HTLC has not reached a terminal state.
func (h *HTLC) Pending() bool {
	return h != nil && !h.Claimed && !h.Refunded
}

// Status returns a human readable label for the HTLC phase.
func (h *HTLC) Status() string {
	switch {
	case h == nil:
		return "unknown"
	case h.Claimed:
		return "claimed"
	case h.Refunded:
		return "refunded"
	default:
		return "pending"
	}
}
