package state

import (
	"fmt"
	"math/big"

	"pcnchain/core/types"
)

// Sequence names issued through NextSequence.
const (
	SeqChannel     = "channel"
	SeqHTLC        = "htlc"
	SeqParticipant = "participant"
	SeqGenesis     = "genesis"
)

// NextSequence increments the named counter and returns the new value. The
// first issued value is 1.
func (tx *Tx) NextSequence(name string) (uint64, error) {
	current, err := tx.LastSequence(name)
	if err != nil {
		return 0, err
	}
	next := current + 1
	if err := tx.store(sequenceKey(name), next); err != nil {
		return 0, err
	}
	return next, nil
}

// LastSequence returns the most recently issued value of the named counter.
func (tx *Tx) LastSequence(name string) (uint64, error) {
	var current uint64
	if _, err := tx.load(sequenceKey(name), &current); err != nil {
		return 0, err
	}
	return current, nil
}

// ChannelGet loads a channel by id.
func (tx *Tx) ChannelGet(id uint64) (*types.Channel, bool, error) {
	ch := new(types.Channel)
	ok, err := tx.load(channelKey(id), ch)
	if err != nil || !ok {
		return nil, false, err
	}
	return ch, true, nil
}

// ChannelPut persists a channel record.
func (tx *Tx) ChannelPut(ch *types.Channel) error {
	if ch == nil {
		return fmt.Errorf("state: nil channel")
	}
	if ch.ID == 0 {
		return fmt.Errorf("state: channel id required")
	}
	if !ch.State.Valid() {
		return fmt.Errorf("state: invalid channel state %d", ch.State)
	}
	return tx.store(channelKey(ch.ID), ch.Clone())
}

// PairGet resolves the channel id registered for the ordered pair (a, b).
func (tx *Tx) PairGet(a, b [20]byte) (uint64, bool, error) {
	var id uint64
	ok, err := tx.load(pairKey(a, b), &id)
	if err != nil || !ok {
		return 0, false, err
	}
	return id, true, nil
}

// PairPut records the channel id under both directions of the pair.
func (tx *Tx) PairPut(a, b [20]byte, id uint64) error {
	if err := tx.store(pairKey(a, b), id); err != nil {
		return err
	}
	return tx.store(pairKey(b, a), id)
}

// PairDelete removes both directions of the pair index.
func (tx *Tx) PairDelete(a, b [20]byte) error {
	if err := tx.del(pairKey(a, b)); err != nil {
		return err
	}
	return tx.del(pairKey(b, a))
}

// EdgeGet loads the directed routing edge from -> to.
func (tx *Tx) EdgeGet(from, to [20]byte) (*types.RoutingEdge, bool, error) {
	edge := new(types.RoutingEdge)
	ok, err := tx.load(edgeKey(from, to), edge)
	if err != nil || !ok {
		return nil, false, err
	}
	return edge, true, nil
}

// EdgePut persists a routing edge.
func (tx *Tx) EdgePut(edge *types.RoutingEdge) error {
	if edge == nil {
		return fmt.Errorf("state: nil routing edge")
	}
	return tx.store(edgeKey(edge.From, edge.To), edge.Clone())
}

// EdgeDelete removes the directed routing edge from -> to.
func (tx *Tx) EdgeDelete(from, to [20]byte) error {
	return tx.del(edgeKey(from, to))
}

// ProofGet loads the latest balance proof recorded for participant's side of
// the channel.
func (tx *Tx) ProofGet(channelID uint64, participant [20]byte) (*types.BalanceProof, bool, error) {
	proof := new(types.BalanceProof)
	ok, err := tx.load(proofKey(channelID, participant), proof)
	if err != nil || !ok {
		return nil, false, err
	}
	return proof, true, nil
}

// ProofPut persists a balance proof keyed by (channel, participant).
func (tx *Tx) ProofPut(proof *types.BalanceProof) error {
	if proof == nil {
		return fmt.Errorf("state: nil balance proof")
	}
	return tx.store(proofKey(proof.ChannelID, proof.Participant), proof.Clone())
}

// NetworkCounters aggregates network-wide statistics.
type NetworkCounters struct {
	OpenChannels    uint64
	ClosingChannels uint64
	SettledChannels uint64
	// Unallocated totals the custody stranded by settled channels.
	Unallocated *big.Int
}

// Counters loads the network counters.
func (tx *Tx) Counters() (*NetworkCounters, error) {
	counters := new(NetworkCounters)
	if _, err := tx.load(countersKey, counters); err != nil {
		return nil, err
	}
	return counters, nil
}

// PutCounters persists the network counters.
func (tx *Tx) PutCounters(counters *NetworkCounters) error {
	if counters == nil {
		return fmt.Errorf("state: nil counters")
	}
	return tx.store(countersKey, counters)
}
