package registry

import (
	"math/big"

	pcnerrors "pcnchain/core/errors"
	"pcnchain/core/state"
	"pcnchain/core/types"
)

// RequireActive fails with ErrNotRegistered unless addr is an active
// participant.
func (r *Registry) RequireActive(tx *state.Tx, addr [20]byte) error {
	p, ok, err := tx.ParticipantGet(addr)
	if err != nil {
		return err
	}
	if !ok || !p.Active {
		return pcnerrors.ErrNotRegistered
	}
	return nil
}

// RecordChannelOpened counts a new channel for addr and adds capacity to its
// aggregate.
func (r *Registry) RecordChannelOpened(tx *state.Tx, addr [20]byte, capacity *big.Int, now uint64) error {
	return r.mutate(tx, addr, now, func(p *types.Participant) {
		p.ChannelCount++
		p.Capacity = new(big.Int).Add(p.Capacity, types.CloneAmount(capacity))
	})
}

// RecordDeposit adds amount to addr's aggregate capacity.
func (r *Registry) RecordDeposit(tx *state.Tx, addr [20]byte, amount *big.Int, now uint64) error {
	return r.mutate(tx, addr, now, func(p *types.Participant) {
		p.Capacity = new(big.Int).Add(p.Capacity, types.CloneAmount(amount))
	})
}

// RecordChannelClosed removes a channel and its capacity from addr's
// aggregates. Both counters saturate at zero.
func (r *Registry) RecordChannelClosed(tx *state.Tx, addr [20]byte, capacity *big.Int, now uint64) error {
	return r.mutate(tx, addr, now, func(p *types.Participant) {
		if p.ChannelCount > 0 {
			p.ChannelCount--
		}
		next := new(big.Int).Sub(p.Capacity, types.CloneAmount(capacity))
		if next.Sign() < 0 {
			next.SetInt64(0)
		}
		p.Capacity = next
	})
}

// Touch records activity for addr without changing its aggregates.
func (r *Registry) Touch(tx *state.Tx, addr [20]byte, now uint64) error {
	return r.mutate(tx, addr, now, func(*types.Participant) {})
}

func (r *Registry) mutate(tx *state.Tx, addr [20]byte, now uint64, fn func(*types.Participant)) error {
	p, ok, err := tx.ParticipantGet(addr)
	if err != nil {
		return err
	}
	if !ok {
		return pcnerrors.ErrParticipantNotFound
	}
	if p.Capacity == nil {
		p.Capacity = big.NewInt(0)
	}
	fn(p)
	if now > p.LastActivity {
		p.LastActivity = now
	}
	return tx.ParticipantPut(p)
}
