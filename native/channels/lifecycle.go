package channels

import (
	"fmt"
	"math/big"

	"pcnchain/core/events"
	pcnerrors "pcnchain/core/errors"
	"pcnchain/core/state"
	"pcnchain/core/types"
	"pcnchain/crypto"
	"pcnchain/observability"
)

// SettleResult reports how custody was released when a channel closed.
// Payouts are gross amounts before the protocol fee is withheld.
type SettleResult struct {
	ChannelID   uint64
	Payout1     *big.Int
	Payout2     *big.Int
	ProtocolFee *big.Int
	// Unallocated is capacity not claimed by either final balance. It stays
	// in custody.
	Unallocated *big.Int
	Scaled      bool
}

// Open creates a channel funded by deposit from p1 and returns its id.
func (e *Engine) Open(p1, p2 [20]byte, deposit *big.Int) (id uint64, err error) {
	defer func() { e.observe("open", err) }()
	if err := e.ready(); err != nil {
		return 0, err
	}
	if p1 == p2 {
		return 0, pcnerrors.ErrSelfPayment
	}
	if !types.IsPositive(deposit) {
		return 0, pcnerrors.ErrInvalidAmount
	}
	if deposit.Cmp(e.minDeposit()) < 0 {
		return 0, pcnerrors.ErrBelowMinimumDeposit
	}
	now := e.Now()
	var (
		opened   *types.Channel
		counters *state.NetworkCounters
	)
	err = e.state.Update(func(tx *state.Tx) error {
		balance, err := tx.BalanceOf(p1)
		if err != nil {
			return err
		}
		if balance.Cmp(deposit) < 0 {
			return fmt.Errorf("open deposit %s exceeds balance %s: %w", deposit, balance, pcnerrors.ErrInsufficientFunds)
		}
		if _, exists, err := tx.PairGet(p1, p2); err != nil {
			return err
		} else if exists {
			return pcnerrors.ErrChannelAlreadyExists
		}
		if err := e.registry.RequireActive(tx, p1); err != nil {
			return err
		}
		if err := e.registry.RequireActive(tx, p2); err != nil {
			return err
		}
		channelID, err := tx.NextSequence(state.SeqChannel)
		if err != nil {
			return err
		}
		if err := tx.Transfer(p1, state.CustodyAddress, deposit); err != nil {
			return err
		}
		ch := &types.Channel{
			ID:           channelID,
			Participant1: p1,
			Participant2: p2,
			Capacity:     types.CloneAmount(deposit),
			Balance1:     types.CloneAmount(deposit),
			Balance2:     big.NewInt(0),
			State:        types.ChannelOpen,
			OpenedAt:     now,
		}
		if err := tx.ChannelPut(ch); err != nil {
			return err
		}
		if err := tx.PairPut(p1, p2, channelID); err != nil {
			return err
		}
		if err := e.ensureEdge(tx, ch, p1, now); err != nil {
			return err
		}
		if err := e.registry.RecordChannelOpened(tx, p1, deposit, now); err != nil {
			return err
		}
		counters, err = adjustCounters(tx, func(c *state.NetworkCounters) { c.OpenChannels++ })
		if err != nil {
			return err
		}
		opened = ch
		return nil
	})
	if err != nil {
		return 0, err
	}
	e.publishCounters(counters)
	e.emit(NewOpenedEvent(opened))
	e.emitPayload(events.CustodyTransfer{ChannelID: opened.ID, From: p1, To: state.CustodyAddress, Amount: deposit, Reason: "open"})
	e.notifyOpened(opened)
	e.logger.Info("channel opened",
		"channel", opened.ID,
		"participant1", crypto.Address(p1).String(),
		"participant2", crypto.Address(p2).String(),
		"deposit", deposit.String())
	return opened.ID, nil
}

// Join funds the second side of a channel. Only the designated second
// participant may join, and only once.
func (e *Engine) Join(caller [20]byte, channelID uint64, deposit *big.Int) (err error) {
	defer func() { e.observe("join", err) }()
	if err := e.ready(); err != nil {
		return err
	}
	if !types.IsPositive(deposit) {
		return pcnerrors.ErrInvalidAmount
	}
	now := e.Now()
	var joined *types.Channel
	err = e.state.Update(func(tx *state.Tx) error {
		ch, err := LoadChannel(tx, channelID)
		if err != nil {
			return err
		}
		if ch.Participant2 != caller {
			return pcnerrors.ErrUnauthorized
		}
		if ch.State != types.ChannelOpen {
			return pcnerrors.ErrChannelClosed
		}
		if ch.Joined || types.CloneAmount(ch.Balance2).Sign() != 0 {
			return pcnerrors.ErrInvalidState
		}
		if deposit.Cmp(e.minDeposit()) < 0 {
			return pcnerrors.ErrBelowMinimumDeposit
		}
		balance, err := tx.BalanceOf(caller)
		if err != nil {
			return err
		}
		if balance.Cmp(deposit) < 0 {
			return fmt.Errorf("join deposit %s exceeds balance %s: %w", deposit, balance, pcnerrors.ErrInsufficientFunds)
		}
		if err := e.registry.RequireActive(tx, caller); err != nil {
			return err
		}
		if err := tx.Transfer(caller, state.CustodyAddress, deposit); err != nil {
			return err
		}
		ch.Capacity = new(big.Int).Add(types.CloneAmount(ch.Capacity), deposit)
		ch.Balance2 = types.CloneAmount(deposit)
		ch.Joined = true
		if err := tx.ChannelPut(ch); err != nil {
			return err
		}
		if err := e.ensureEdge(tx, ch, caller, now); err != nil {
			return err
		}
		if err := e.registry.RecordDeposit(tx, ch.Participant1, deposit, now); err != nil {
			return err
		}
		if err := e.registry.RecordChannelOpened(tx, caller, ch.Capacity, now); err != nil {
			return err
		}
		joined = ch
		return nil
	})
	if err != nil {
		return err
	}
	e.emit(NewJoinedEvent(joined, deposit))
	e.emitPayload(events.CustodyTransfer{ChannelID: channelID, From: caller, To: state.CustodyAddress, Amount: deposit, Reason: "join"})
	e.logger.Info("channel joined", "channel", channelID, "capacity", joined.Capacity.String())
	return nil
}

// AddFunds tops up caller's side of an open channel.
func (e *Engine) AddFunds(caller [20]byte, channelID uint64, amount *big.Int) (err error) {
	defer func() { e.observe("add_funds", err) }()
	if err := e.ready(); err != nil {
		return err
	}
	if !types.IsPositive(amount) {
		return pcnerrors.ErrInvalidAmount
	}
	now := e.Now()
	var funded *types.Channel
	err = e.state.Update(func(tx *state.Tx) error {
		ch, err := LoadChannel(tx, channelID)
		if err != nil {
			return err
		}
		if !ch.HasParticipant(caller) {
			return pcnerrors.ErrNotParticipant
		}
		if ch.State != types.ChannelOpen {
			return pcnerrors.ErrChannelClosed
		}
		// The second participant funds through Join first.
		if caller == ch.Participant2 && !ch.Joined {
			return pcnerrors.ErrInvalidState
		}
		if err := tx.Transfer(caller, state.CustodyAddress, amount); err != nil {
			return err
		}
		ch.Capacity = new(big.Int).Add(types.CloneAmount(ch.Capacity), amount)
		ch.SetBalanceOf(caller, new(big.Int).Add(ch.BalanceOf(caller), amount))
		if err := tx.ChannelPut(ch); err != nil {
			return err
		}
		if err := e.ensureEdge(tx, ch, caller, now); err != nil {
			return err
		}
		if err := e.registry.RecordDeposit(tx, ch.Participant1, amount, now); err != nil {
			return err
		}
		if ch.Joined {
			if err := e.registry.RecordDeposit(tx, ch.Participant2, amount, now); err != nil {
				return err
			}
		}
		funded = ch
		return nil
	})
	if err != nil {
		return err
	}
	e.emit(NewFundedEvent(funded, caller, amount))
	e.emitPayload(events.CustodyTransfer{ChannelID: channelID, From: caller, To: state.CustodyAddress, Amount: amount, Reason: "add_funds"})
	e.logger.Info("channel funded", "channel", channelID, "amount", amount.String(), "capacity", funded.Capacity.String())
	return nil
}

// InitiateClose starts a unilateral close. The channel can be settled once
// the dispute window has elapsed.
func (e *Engine) InitiateClose(caller [20]byte, channelID uint64) (err error) {
	defer func() { e.observe("initiate_close", err) }()
	if err := e.ready(); err != nil {
		return err
	}
	now := e.Now()
	var (
		closing  *types.Channel
		counters *state.NetworkCounters
	)
	err = e.state.Update(func(tx *state.Tx) error {
		ch, err := LoadChannel(tx, channelID)
		if err != nil {
			return err
		}
		if !ch.HasParticipant(caller) {
			return pcnerrors.ErrNotParticipant
		}
		if ch.State != types.ChannelOpen {
			return pcnerrors.ErrChannelClosed
		}
		ch.State = types.ChannelClosing
		ch.ClosingInitiator = caller
		ch.ClosingInitiatedAt = now
		ch.SettleDeadline = now + e.cfg.DisputeTimeout
		if err := tx.ChannelPut(ch); err != nil {
			return err
		}
		counters, err = adjustCounters(tx, func(c *state.NetworkCounters) {
			c.OpenChannels = decrement(c.OpenChannels)
			c.ClosingChannels++
		})
		if err != nil {
			return err
		}
		closing = ch
		return nil
	})
	if err != nil {
		return err
	}
	e.publishCounters(counters)
	e.emit(NewCloseInitiatedEvent(closing))
	e.notifyClosed(closing)
	e.logger.Info("channel close initiated",
		"channel", channelID,
		"initiator", crypto.Address(caller).String(),
		"settleDeadline", closing.SettleDeadline)
	return nil
}

// CooperativeClose settles an open channel immediately on a split both
// participants signed.
func (e *Engine) CooperativeClose(caller [20]byte, channelID uint64, balance1, balance2 *big.Int, sig1, sig2 []byte) (result *SettleResult, err error) {
	defer func() { e.observe("cooperative_close", err) }()
	if err := e.ready(); err != nil {
		return nil, err
	}
	if balance1 == nil || balance2 == nil || balance1.Sign() < 0 || balance2.Sign() < 0 {
		return nil, pcnerrors.ErrInvalidAmount
	}
	now := e.Now()
	var (
		closed    *types.Channel
		counters  *state.NetworkCounters
		transfers []payoutTransfer
	)
	err = e.state.Update(func(tx *state.Tx) error {
		ch, err := LoadChannel(tx, channelID)
		if err != nil {
			return err
		}
		if !ch.HasParticipant(caller) {
			return pcnerrors.ErrNotParticipant
		}
		if ch.State != types.ChannelOpen {
			return pcnerrors.ErrChannelClosed
		}
		pending, err := pendingOnChannel(tx, channelID)
		if err != nil {
			return err
		}
		if len(pending) > 0 {
			return fmt.Errorf("%d pending htlcs: %w", len(pending), pcnerrors.ErrInvalidState)
		}
		if new(big.Int).Add(balance1, balance2).Cmp(types.CloneAmount(ch.Capacity)) != 0 {
			return pcnerrors.ErrBalanceMismatch
		}
		msg := CloseMessage(channelID, balance1, balance2)
		if !e.verifier.Verify(ch.Participant1, msg, sig1) || !e.verifier.Verify(ch.Participant2, msg, sig2) {
			return pcnerrors.ErrBadSignature
		}
		result = &SettleResult{
			ChannelID:   channelID,
			Payout1:     types.CloneAmount(balance1),
			Payout2:     types.CloneAmount(balance2),
			Unallocated: big.NewInt(0),
		}
		transfers, err = e.release(tx, ch, result)
		if err != nil {
			return err
		}
		if err := e.closeOut(tx, ch, result.Unallocated, now); err != nil {
			return err
		}
		counters, err = adjustCounters(tx, func(c *state.NetworkCounters) {
			c.OpenChannels = decrement(c.OpenChannels)
			c.SettledChannels++
		})
		if err != nil {
			return err
		}
		closed = ch
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.finishClose(closed, counters, transfers, result, EventTypeCooperativeClose, "cooperative")
	return result, nil
}

// Settle releases the funds of a closing channel once its dispute window has
// elapsed. Pending HTLCs are returned to their senders first. Final balances
// come from the latest proof for each side, falling back to the recorded
// balance, and are scaled down when together they exceed capacity.
func (e *Engine) Settle(channelID uint64) (result *SettleResult, err error) {
	defer func() { e.observe("settle", err) }()
	if err := e.ready(); err != nil {
		return nil, err
	}
	now := e.Now()
	var (
		settled   *types.Channel
		counters  *state.NetworkCounters
		transfers []payoutTransfer
		released  []*types.HTLC
	)
	err = e.state.Update(func(tx *state.Tx) error {
		ch, err := LoadChannel(tx, channelID)
		if err != nil {
			return err
		}
		switch ch.State {
		case types.ChannelSettled:
			return pcnerrors.ErrChannelClosed
		case types.ChannelOpen:
			return pcnerrors.ErrNotClosing
		}
		if now < ch.SettleDeadline {
			return pcnerrors.ErrDisputeWindowOpen
		}
		released, err = releasePending(tx, ch)
		if err != nil {
			return err
		}
		final1, err := finalBalance(tx, ch, ch.Participant1)
		if err != nil {
			return err
		}
		final2, err := finalBalance(tx, ch, ch.Participant2)
		if err != nil {
			return err
		}
		result = computeSettlement(channelID, types.CloneAmount(ch.Capacity), final1, final2)
		transfers, err = e.release(tx, ch, result)
		if err != nil {
			return err
		}
		if err := e.closeOut(tx, ch, result.Unallocated, now); err != nil {
			return err
		}
		counters, err = adjustCounters(tx, func(c *state.NetworkCounters) {
			c.ClosingChannels = decrement(c.ClosingChannels)
			c.SettledChannels++
			c.Unallocated = new(big.Int).Add(types.CloneAmount(c.Unallocated), result.Unallocated)
		})
		if err != nil {
			return err
		}
		settled = ch
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, h := range released {
		e.emit(newHTLCReleasedEvent(h))
	}
	if len(released) > 0 {
		observability.Network().SetPendingHTLCs(e.pendingCount())
	}
	e.finishClose(settled, counters, transfers, result, EventTypeChannelSettled, "settle")
	return result, nil
}

// computeSettlement splits capacity between the two final balances. When the
// balances overstate capacity, participant1 receives b1*capacity/(b1+b2) and
// participant2 the remainder.
func computeSettlement(channelID uint64, capacity, final1, final2 *big.Int) *SettleResult {
	result := &SettleResult{ChannelID: channelID, Unallocated: big.NewInt(0)}
	sum := new(big.Int).Add(final1, final2)
	if sum.Cmp(capacity) > 0 {
		share := new(big.Int).Mul(final1, capacity)
		share.Quo(share, sum)
		result.Payout1 = share
		result.Payout2 = new(big.Int).Sub(capacity, share)
		result.Scaled = true
		return result
	}
	result.Payout1 = types.CloneAmount(final1)
	result.Payout2 = types.CloneAmount(final2)
	result.Unallocated = new(big.Int).Sub(capacity, sum)
	return result
}

func finalBalance(tx *state.Tx, ch *types.Channel, side [20]byte) (*big.Int, error) {
	proof, ok, err := tx.ProofGet(ch.ID, side)
	if err != nil {
		return nil, err
	}
	if ok {
		return types.CloneAmount(proof.Balance), nil
	}
	return ch.BalanceOf(side), nil
}

// releasePending returns every unresolved HTLC of ch to its sender's side.
func releasePending(tx *state.Tx, ch *types.Channel) ([]*types.HTLC, error) {
	pending, err := pendingOnChannel(tx, ch.ID)
	if err != nil {
		return nil, err
	}
	for _, h := range pending {
		ch.SetBalanceOf(h.Sender, new(big.Int).Add(ch.BalanceOf(h.Sender), types.CloneAmount(h.Amount)))
		h.Refunded = true
		if err := tx.HTLCPut(h); err != nil {
			return nil, err
		}
	}
	return pending, nil
}

// release pays both sides of result out of custody and records the fee.
func (e *Engine) release(tx *state.Tx, ch *types.Channel, result *SettleResult) ([]payoutTransfer, error) {
	fee1, out1, err := e.payout(tx, ch.Participant1, result.Payout1, "payout")
	if err != nil {
		return nil, err
	}
	fee2, out2, err := e.payout(tx, ch.Participant2, result.Payout2, "payout")
	if err != nil {
		return nil, err
	}
	result.ProtocolFee = new(big.Int).Add(fee1, fee2)
	return append(out1, out2...), nil
}

// closeOut zeroes ch, marks it settled and removes it from the pair and
// routing indexes. unallocated is kept on the record.
func (e *Engine) closeOut(tx *state.Tx, ch *types.Channel, unallocated *big.Int, now uint64) error {
	capacity := types.CloneAmount(ch.Capacity)
	ch.Capacity = big.NewInt(0)
	ch.Balance1 = big.NewInt(0)
	ch.Balance2 = big.NewInt(0)
	ch.Unallocated = types.CloneAmount(unallocated)
	ch.State = types.ChannelSettled
	if err := tx.ChannelPut(ch); err != nil {
		return err
	}
	if err := tx.PairDelete(ch.Participant1, ch.Participant2); err != nil {
		return err
	}
	if err := removeEdges(tx, ch); err != nil {
		return err
	}
	if err := e.registry.RecordChannelClosed(tx, ch.Participant1, capacity, now); err != nil {
		return err
	}
	if ch.Joined {
		return e.registry.RecordChannelClosed(tx, ch.Participant2, capacity, now)
	}
	return nil
}

func (e *Engine) finishClose(ch *types.Channel, counters *state.NetworkCounters, transfers []payoutTransfer, result *SettleResult, eventType, path string) {
	e.publishCounters(counters)
	total := new(big.Int).Add(result.Payout1, result.Payout2)
	observability.Network().RecordPayout(path, total)
	e.emit(NewSettledEvent(eventType, ch, result))
	for _, t := range transfers {
		e.emitPayload(events.CustodyTransfer{ChannelID: ch.ID, From: state.CustodyAddress, To: t.to, Amount: t.amount, Reason: t.reason})
	}
	e.notifyClosed(ch)
	e.logger.Info("channel settled",
		"channel", ch.ID,
		"path", path,
		"payout1", result.Payout1.String(),
		"payout2", result.Payout2.String(),
		"protocolFee", result.ProtocolFee.String(),
		"unallocated", result.Unallocated.String(),
		"scaled", result.Scaled)
}

func adjustCounters(tx *state.Tx, fn func(*state.NetworkCounters)) (*state.NetworkCounters, error) {
	counters, err := tx.Counters()
	if err != nil {
		return nil, err
	}
	fn(counters)
	if err := tx.PutCounters(counters); err != nil {
		return nil, err
	}
	return counters, nil
}

func decrement(v uint64) uint64 {
	if v == 0 {
		return 0
	}
	return v - 1
}

func (e *Engine) pendingCount() int {
	var n int
	err := e.state.View(func(tx *state.Tx) error {
		ids, err := tx.PendingHTLCs()
		n = len(ids)
		return err
	})
	if err != nil {
		e.logger.Debug("pending htlc count unavailable", "error", err)
	}
	return n
}
