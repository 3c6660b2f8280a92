package channels

import (
	"fmt"
	"math/big"

	pcnerrors "pcnchain/core/errors"
	"pcnchain/core/state"
	"pcnchain/core/types"
)

// LoadChannel fetches a channel inside tx, failing with ErrChannelNotFound.
func LoadChannel(tx *state.Tx, id uint64) (*types.Channel, error) {
	ch, ok, err := tx.ChannelGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("channel %d: %w", id, pcnerrors.ErrChannelNotFound)
	}
	return ch, nil
}

// Debit removes amount from addr's side of ch and persists the channel. The
// funds stay in custody; callers account for them elsewhere (HTLC escrow or
// the credited side of another adjustment).
func (e *Engine) Debit(tx *state.Tx, ch *types.Channel, addr [20]byte, amount *big.Int, now uint64) error {
	if !types.IsPositive(amount) {
		return pcnerrors.ErrInvalidAmount
	}
	if !ch.HasParticipant(addr) {
		return pcnerrors.ErrNotParticipant
	}
	balance := ch.BalanceOf(addr)
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("channel %d side balance %s below %s: %w", ch.ID, balance, amount, pcnerrors.ErrInsufficientFunds)
	}
	ch.SetBalanceOf(addr, new(big.Int).Sub(balance, amount))
	return e.storeBalances(tx, ch, now)
}

// Credit adds amount to addr's side of ch and persists the channel. A side
// balance never exceeds the channel capacity.
func (e *Engine) Credit(tx *state.Tx, ch *types.Channel, addr [20]byte, amount *big.Int, now uint64) error {
	if !types.IsPositive(amount) {
		return pcnerrors.ErrInvalidAmount
	}
	if !ch.HasParticipant(addr) {
		return pcnerrors.ErrNotParticipant
	}
	next := new(big.Int).Add(ch.BalanceOf(addr), amount)
	if next.Cmp(types.CloneAmount(ch.Capacity)) > 0 {
		return pcnerrors.ErrBalanceExceedsCap
	}
	ch.SetBalanceOf(addr, next)
	return e.storeBalances(tx, ch, now)
}

func (e *Engine) storeBalances(tx *state.Tx, ch *types.Channel, now uint64) error {
	if err := tx.ChannelPut(ch); err != nil {
		return err
	}
	return e.refreshEdges(tx, ch, now)
}

// ensureEdge creates or refreshes the edge leaving from. The capacity always
// mirrors from's spendable side balance.
func (e *Engine) ensureEdge(tx *state.Tx, ch *types.Channel, from [20]byte, now uint64) error {
	to, ok := ch.Counterparty(from)
	if !ok {
		return pcnerrors.ErrNotParticipant
	}
	edge, exists, err := tx.EdgeGet(from, to)
	if err != nil {
		return err
	}
	if !exists || edge.ChannelID != ch.ID {
		edge = &types.RoutingEdge{From: from, To: to, ChannelID: ch.ID, FeeRateBps: e.cfg.DefaultFeeRateBps}
	}
	edge.Capacity = ch.BalanceOf(from)
	edge.LastUpdated = now
	return tx.EdgePut(edge)
}

// refreshEdges updates the existing edges of ch in both directions.
func (e *Engine) refreshEdges(tx *state.Tx, ch *types.Channel, now uint64) error {
	for _, from := range [][20]byte{ch.Participant1, ch.Participant2} {
		to, _ := ch.Counterparty(from)
		edge, exists, err := tx.EdgeGet(from, to)
		if err != nil {
			return err
		}
		if !exists || edge.ChannelID != ch.ID {
			continue
		}
		edge.Capacity = ch.BalanceOf(from)
		edge.LastUpdated = now
		if err := tx.EdgePut(edge); err != nil {
			return err
		}
	}
	return nil
}

func removeEdges(tx *state.Tx, ch *types.Channel) error {
	if err := tx.EdgeDelete(ch.Participant1, ch.Participant2); err != nil {
		return err
	}
	return tx.EdgeDelete(ch.Participant2, ch.Participant1)
}

// pendingOnChannel returns the unresolved HTLCs escrowed inside channelID.
func pendingOnChannel(tx *state.Tx, channelID uint64) ([]*types.HTLC, error) {
	ids, err := tx.PendingHTLCs()
	if err != nil {
		return nil, err
	}
	var out []*types.HTLC
	for _, id := range ids {
		h, ok, err := tx.HTLCGet(id)
		if err != nil {
			return nil, err
		}
		if ok && h.ChannelID == channelID && h.Pending() {
			out = append(out, h)
		}
	}
	return out, nil
}

// protocolFee returns the fee withheld from amount at the configured rate.
func (e *Engine) protocolFee(amount *big.Int) *big.Int {
	if e.cfg.ProtocolFeeBps == 0 || !types.IsPositive(amount) {
		return big.NewInt(0)
	}
	fee := new(big.Int).Mul(amount, new(big.Int).SetUint64(uint64(e.cfg.ProtocolFeeBps)))
	return fee.Quo(fee, big.NewInt(BasisPoints))
}

// payout releases amount from custody to addr, withholding the protocol fee
// for the treasury. It returns the fee withheld and the transfers made.
func (e *Engine) payout(tx *state.Tx, addr [20]byte, amount *big.Int, reason string) (*big.Int, []payoutTransfer, error) {
	if !types.IsPositive(amount) {
		return big.NewInt(0), nil, nil
	}
	fee := e.protocolFee(amount)
	net := new(big.Int).Sub(amount, fee)
	var transfers []payoutTransfer
	if net.Sign() > 0 {
		if err := tx.Transfer(state.CustodyAddress, addr, net); err != nil {
			return nil, nil, err
		}
		transfers = append(transfers, payoutTransfer{to: addr, amount: net, reason: reason})
	}
	if fee.Sign() > 0 {
		if err := tx.Transfer(state.CustodyAddress, e.cfg.Treasury, fee); err != nil {
			return nil, nil, err
		}
		transfers = append(transfers, payoutTransfer{to: e.cfg.Treasury, amount: fee, reason: "protocol_fee"})
	}
	return fee, transfers, nil
}

type payoutTransfer struct {
	to     [20]byte
	amount *big.Int
	reason string
}
