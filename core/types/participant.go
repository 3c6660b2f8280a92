package types

import "math/big"

// Participant is the registry record of a network member. Records are never
// deleted; deregistration only clears Active.
type Participant struct {
	Address      [20]byte
	Seq          uint64
	Active       bool
	ChannelCount uint64
	Capacity     *big.Int
	Reputation   uint32
	LastActivity uint64
	RegisteredAt uint64
}

// Clone returns a deep copy of the participant.
func (p *Participant) Clone() *Participant {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Capacity = CloneAmount(p.Capacity)
	return &clone
}
