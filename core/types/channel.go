package types

import "math/big"

// ChannelState enumerates the lifecycle phases of a bilateral channel.
type ChannelState uint8

const (
	ChannelOpen ChannelState = iota + 1
	ChannelClosing
	ChannelSettled
)

// String returns the status label exposed through the query API.
func (s ChannelState) String() string {
	switch s {
	case ChannelOpen:
		return "open"
	case ChannelClosing:
		return "closing"
	case ChannelSettled:
		return "settled"
	default:
		return "unknown"
	}
}

// Valid reports whether the state value is within the supported range.
func (s ChannelState) Valid() bool {
	return s >= ChannelOpen && s <= ChannelSettled
}

// Channel is the persisted record of a two-party channel. While the channel
// is open Balance1+Balance2 plus the amount escrowed by pending HTLCs equals
// Capacity.
type Channel struct {
	ID           uint64
	Participant1 [20]byte
	Participant2 [20]byte
	Capacity     *big.Int
	Balance1     *big.Int
	Balance2     *big.Int
	Nonce1       uint64
	Nonce2       uint64
	State        ChannelState
	Joined       bool
	OpenedAt     uint64

	ClosingInitiatedAt uint64
	ClosingInitiator   [20]byte
	SettleDeadline     uint64

	// Unallocated is the capacity left in custody when the channel settled
	// with final balances summing below capacity.
	Unallocated *big.Int
}

// Clone returns a deep copy of the channel.
func (c *Channel) Clone() *Channel {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Capacity = CloneAmount(c.Capacity)
	clone.Balance1 = CloneAmount(c.Balance1)
	clone.Balance2 = CloneAmount(c.Balance2)
	clone.Unallocated = CloneAmount(c.Unallocated)
	return &clone
}

// HasParticipant reports whether addr is one of the two channel parties.
func (c *Channel) HasParticipant(addr [20]byte) bool {
	return c != nil && (c.Participant1 == addr || c.Participant2 == addr)
}

// Counterparty returns the other participant of the channel.
func (c *Channel) Counterparty(addr [20]byte) ([20]byte, bool) {
	switch {
	case c == nil:
		return [20]byte{}, false
	case c.Participant1 == addr:
		return c.Participant2, true
	case c.Participant2 == addr:
		return c.Participant1, true
	default:
		return [20]byte{}, false
	}
}

// BalanceOf returns a copy of addr's side balance.
func (c *Channel) BalanceOf(addr [20]byte) *big.Int {
	switch {
	case c == nil:
		return big.NewInt(0)
	case c.Participant1 == addr:
		return CloneAmount(c.Balance1)
	case c.Participant2 == addr:
		return CloneAmount(c.Balance2)
	default:
		return big.NewInt(0)
	}
}

// SetBalanceOf overwrites addr's side balance. It returns false when addr is
// not a participant.
func (c *Channel) SetBalanceOf(addr [20]byte, v *big.Int) bool {
	switch {
	case c == nil:
		return false
	case c.Participant1 == addr:
		c.Balance1 = CloneAmount(v)
	case c.Participant2 == addr:
		c.Balance2 = CloneAmount(v)
	default:
		return false
	}
	return true
}

// NonceOf returns the latest accepted proof nonce for addr's side.
func (c *Channel) NonceOf(addr [20]byte) uint64 {
	switch {
	case c == nil:
		return 0
	case c.Participant1 == addr:
		return c.Nonce1
	case c.Participant2 == addr:
		return c.Nonce2
	default:
		return 0
	}
}

// SetNonceOf records the latest accepted proof nonce for addr's side.
func (c *Channel) SetNonceOf(addr [20]byte, nonce uint64) {
	switch {
	case c == nil:
	case c.Participant1 == addr:
		c.Nonce1 = nonce
	case c.Participant2 == addr:
		c.Nonce2 = nonce
	}
}

// BalanceProof is the latest counterparty-signed attestation of one side's
// balance. It is superseded only by a strictly higher nonce.
type BalanceProof struct {
	ChannelID   uint64
	Participant [20]byte
	Balance     *big.Int
	Nonce       uint64
	Signature   []byte
	SubmittedBy [20]byte
	SubmittedAt uint64
}

// Clone returns a deep copy of the proof.
func (p *BalanceProof) Clone() *BalanceProof {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Balance = CloneAmount(p.Balance)
	clone.Signature = append([]byte(nil), p.Signature...)
	return &clone
}

// RoutingEdge mirrors the spendable balance of From inside a channel towards To.
type RoutingEdge struct {
	From        [20]byte
	To          [20]byte
	ChannelID   uint64
	Capacity    *big.Int
	FeeRateBps  uint32
	LastUpdated uint64
}

// Clone returns a deep copy of the edge.
func (e *RoutingEdge) Clone() *RoutingEdge {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Capacity = CloneAmount(e.Capacity)
	return &clone
}
