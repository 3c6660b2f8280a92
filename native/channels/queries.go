package channels

import (
	"math/big"

	pcnerrors "pcnchain/core/errors"
	"pcnchain/core/state"
	"pcnchain/core/types"
)

// Stats summarises the network for the query API.
type Stats struct {
	OpenChannels      uint64
	ClosingChannels   uint64
	SettledChannels   uint64
	TotalChannels     uint64
	Unallocated       *big.Int
	Participants      int
	PendingHTLCs      int
	MinDeposit        *big.Int
	DisputeTimeout    uint64
	ProtocolFeeBps    uint32
	DefaultFeeRateBps uint32
}

// Channel returns the channel record for id.
func (e *Engine) Channel(id uint64) (*types.Channel, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	var out *types.Channel
	err := e.state.View(func(tx *state.Tx) error {
		ch, err := LoadChannel(tx, id)
		out = ch
		return err
	})
	return out, err
}

// ChannelBetween resolves the channel registered for the pair (a, b).
func (e *Engine) ChannelBetween(a, b [20]byte) (*types.Channel, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	var out *types.Channel
	err := e.state.View(func(tx *state.Tx) error {
		id, ok, err := tx.PairGet(a, b)
		if err != nil {
			return err
		}
		if !ok {
			return pcnerrors.ErrChannelNotFound
		}
		out, err = LoadChannel(tx, id)
		return err
	})
	return out, err
}

// StatusLabel returns the lifecycle label of the channel.
func (e *Engine) StatusLabel(id uint64) (string, error) {
	ch, err := e.Channel(id)
	if err != nil {
		return "", err
	}
	return ch.State.String(), nil
}

// Proof returns the latest balance proof recorded for side of the channel.
func (e *Engine) Proof(id uint64, side [20]byte) (*types.BalanceProof, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	var out *types.BalanceProof
	err := e.state.View(func(tx *state.Tx) error {
		proof, ok, err := tx.ProofGet(id, side)
		if err != nil {
			return err
		}
		if !ok {
			return pcnerrors.ErrProofNotFound
		}
		out = proof
		return nil
	})
	return out, err
}

// Edge returns the directed routing edge from -> to.
func (e *Engine) Edge(from, to [20]byte) (*types.RoutingEdge, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	var out *types.RoutingEdge
	err := e.state.View(func(tx *state.Tx) error {
		edge, ok, err := tx.EdgeGet(from, to)
		if err != nil {
			return err
		}
		if !ok {
			return pcnerrors.ErrEdgeNotFound
		}
		out = edge
		return nil
	})
	return out, err
}

// Stats returns the network aggregates and fee settings.
func (e *Engine) Stats() (*Stats, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	stats := &Stats{
		MinDeposit:        e.minDeposit(),
		DisputeTimeout:    e.cfg.DisputeTimeout,
		ProtocolFeeBps:    e.cfg.ProtocolFeeBps,
		DefaultFeeRateBps: e.cfg.DefaultFeeRateBps,
	}
	err := e.state.View(func(tx *state.Tx) error {
		counters, err := tx.Counters()
		if err != nil {
			return err
		}
		stats.OpenChannels = counters.OpenChannels
		stats.ClosingChannels = counters.ClosingChannels
		stats.SettledChannels = counters.SettledChannels
		stats.Unallocated = types.CloneAmount(counters.Unallocated)
		if stats.TotalChannels, err = tx.LastSequence(state.SeqChannel); err != nil {
			return err
		}
		participants, err := tx.ParticipantList()
		if err != nil {
			return err
		}
		stats.Participants = len(participants)
		pending, err := tx.PendingHTLCs()
		if err != nil {
			return err
		}
		stats.PendingHTLCs = len(pending)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}
