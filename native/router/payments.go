package router

import (
	"fmt"
	"math/big"

	pcnerrors "pcnchain/core/errors"
	"pcnchain/core/state"
	"pcnchain/core/types"
	"pcnchain/crypto"
	"pcnchain/native/channels"
	"pcnchain/native/htlc"
)

// Payment describes the hop an operation created and who continues the
// relay. NextChannel is zero when Next is the final receiver.
type Payment struct {
	Hashlock    [32]byte
	Timelock    uint64
	HTLCID      uint64
	Next        [20]byte
	NextChannel uint64
}

// StartMultiHop locks the first hop of a payment to receiver along route.
// The hashlock is derived from secret and the timelock is the current tick
// plus the default window.
func (r *Router) StartMultiHop(sender, receiver [20]byte, amount *big.Int, route []uint64, secret []byte) (payment *Payment, err error) {
	defer func() { r.observe("start_multi_hop", err) }()
	if err := r.ready(); err != nil {
		return nil, err
	}
	if len(route) == 0 || len(route) > 2 || len(secret) == 0 {
		return nil, pcnerrors.ErrInvalidRoute
	}
	if !types.IsPositive(amount) {
		return nil, pcnerrors.ErrInvalidAmount
	}
	now := r.now()
	hashlock := r.htlcs.Hashlock(secret)
	timelock := now + r.cfg.DefaultWindow
	var created *types.HTLC
	err = r.state.Update(func(tx *state.Tx) error {
		next, nextChannel, err := firstHop(tx, sender, receiver, route)
		if err != nil {
			return err
		}
		created, err = r.htlcs.CreateTx(tx, htlc.Request{
			ChannelID: route[0],
			Sender:    sender,
			Receiver:  next,
			Amount:    amount,
			Hashlock:  hashlock,
			Timelock:  timelock,
		}, now)
		if err != nil {
			return err
		}
		payment = &Payment{Hashlock: hashlock, Timelock: timelock, HTLCID: created.ID, Next: next, NextChannel: nextChannel}
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.htlcs.Announce(created)
	r.emit(newPaymentEvent(EventTypePaymentStarted, payment, amount).
		With("sender", crypto.Address(sender).String()).
		With("receiver", crypto.Address(receiver).String()).
		With("hops", fmt.Sprintf("%d", len(route))))
	r.logger.Info("multi-hop payment started",
		"htlc", created.ID,
		"hops", len(route),
		"timelock", timelock)
	return payment, nil
}

// firstHop resolves the participant the first HTLC pays and, for a two-hop
// route, the channel that participant relays over.
func firstHop(tx *state.Tx, sender, receiver [20]byte, route []uint64) ([20]byte, uint64, error) {
	first, err := channels.LoadChannel(tx, route[0])
	if err != nil {
		return [20]byte{}, 0, err
	}
	if len(route) == 1 {
		if counterparty, ok := first.Counterparty(sender); !ok || counterparty != receiver {
			return [20]byte{}, 0, pcnerrors.ErrInvalidRoute
		}
		return receiver, 0, nil
	}
	second, err := channels.LoadChannel(tx, route[1])
	if err != nil {
		return [20]byte{}, 0, err
	}
	via, ok := first.Counterparty(sender)
	if !ok {
		return [20]byte{}, 0, pcnerrors.ErrInvalidRoute
	}
	tail, ok := second.Counterparty(receiver)
	if !ok || tail != via || via == receiver || via == sender {
		return [20]byte{}, 0, pcnerrors.ErrInvalidRoute
	}
	return via, second.ID, nil
}

// ContinueRelay forwards a payment the caller received on prevChannel. It
// requires a pending inbound HTLC paying the caller at least amount under the
// same hashlock, and locks the outbound hop with the inbound timelock minus
// the relay margin so the caller can still claim upstream after revealing.
func (r *Router) ContinueRelay(caller [20]byte, prevChannel, nextChannel uint64, receiver [20]byte, amount *big.Int, hashlock [32]byte, timelock uint64) (payment *Payment, err error) {
	defer func() { r.observe("continue_relay", err) }()
	if err := r.ready(); err != nil {
		return nil, err
	}
	if !types.IsPositive(amount) {
		return nil, pcnerrors.ErrInvalidAmount
	}
	if prevChannel == nextChannel {
		return nil, pcnerrors.ErrInvalidRoute
	}
	now := r.now()
	var created *types.HTLC
	err = r.state.Update(func(tx *state.Tx) error {
		inbound, err := findInbound(tx, prevChannel, caller, hashlock, amount)
		if err != nil {
			return err
		}
		if timelock > inbound.Timelock {
			return pcnerrors.ErrInvalidTimelock
		}
		if timelock <= r.cfg.RelayMargin || timelock-r.cfg.RelayMargin <= now {
			return fmt.Errorf("relay timelock %d leaves no margin: %w", timelock, pcnerrors.ErrInvalidTimelock)
		}
		outbound := timelock - r.cfg.RelayMargin
		created, err = r.htlcs.CreateTx(tx, htlc.Request{
			ChannelID: nextChannel,
			Sender:    caller,
			Receiver:  receiver,
			Amount:    amount,
			Hashlock:  hashlock,
			Timelock:  outbound,
		}, now)
		if err != nil {
			return err
		}
		payment = &Payment{Hashlock: hashlock, Timelock: outbound, HTLCID: created.ID, Next: receiver}
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.htlcs.Announce(created)
	r.emit(newPaymentEvent(EventTypeRelayContinued, payment, amount).
		With("relay", crypto.Address(caller).String()).
		With("prevChannel", fmt.Sprintf("%d", prevChannel)))
	r.logger.Info("payment relayed", "htlc", created.ID, "channel", nextChannel, "timelock", payment.Timelock)
	return payment, nil
}

func findInbound(tx *state.Tx, channelID uint64, receiver [20]byte, hashlock [32]byte, amount *big.Int) (*types.HTLC, error) {
	ids, err := tx.PendingHTLCs()
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		h, ok, err := tx.HTLCGet(id)
		if err != nil {
			return nil, err
		}
		if !ok || !h.Pending() || h.ChannelID != channelID || h.Receiver != receiver || h.Hashlock != hashlock {
			continue
		}
		if types.CloneAmount(h.Amount).Cmp(amount) < 0 {
			continue
		}
		return h, nil
	}
	return nil, pcnerrors.ErrInboundNotFound
}

// Complete claims the final-hop HTLC. Upstream hops are claimed separately
// with the same preimage.
func (r *Router) Complete(caller [20]byte, htlcID uint64, preimage []byte) (err error) {
	defer func() { r.observe("complete", err) }()
	if err := r.ready(); err != nil {
		return err
	}
	if err := r.htlcs.Fulfill(caller, htlcID, preimage); err != nil {
		return err
	}
	r.emit(types.NewEvent(EventTypePaymentCompleted).
		With("htlcId", fmt.Sprintf("%d", htlcID)).
		With("receiver", crypto.Address(caller).String()))
	return nil
}
