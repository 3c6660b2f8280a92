package liquidity

import (
	"math/big"
	"strconv"

	pcnerrors "pcnchain/core/errors"
	"pcnchain/core/state"
	"pcnchain/core/types"
	"pcnchain/crypto"
	"pcnchain/native/channels"
)

// RebalanceResult lists the channels a rebalance shifted value around. Cycle
// is zero when both channels share the same counterparty.
type RebalanceResult struct {
	From   uint64
	To     uint64
	Cycle  uint64
	Amount *big.Int
}

// Rebalance moves amount from caller's side of channelA to caller's side of
// channelB. The two channels must lie on a liquidity cycle: their other
// participants are either the same party or share an open channel, which
// carries the compensating shift. No value crosses custody.
func (e *Engine) Rebalance(caller [20]byte, channelA, channelB uint64, amount *big.Int) (result *RebalanceResult, err error) {
	defer func() { e.observe("rebalance", err) }()
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.channels == nil {
		return nil, errNilChannels
	}
	if !types.IsPositive(amount) {
		return nil, pcnerrors.ErrInvalidAmount
	}
	if channelA == channelB {
		return nil, pcnerrors.ErrInvalidRoute
	}
	now := e.now()
	err = e.state.Update(func(tx *state.Tx) error {
		a, err := openChannel(tx, channelA)
		if err != nil {
			return err
		}
		b, err := openChannel(tx, channelB)
		if err != nil {
			return err
		}
		otherA, okA := a.Counterparty(caller)
		otherB, okB := b.Counterparty(caller)
		if !okA || !okB {
			return pcnerrors.ErrNotParticipant
		}
		var cycle *types.Channel
		if otherA != otherB {
			id, ok, err := tx.PairGet(otherA, otherB)
			if err != nil {
				return err
			}
			if !ok {
				return pcnerrors.ErrNoLiquidityCycle
			}
			cycle, err = channels.LoadChannel(tx, id)
			if err != nil {
				return err
			}
			if cycle.State != types.ChannelOpen {
				return pcnerrors.ErrNoLiquidityCycle
			}
		}
		if err := e.shift(tx, a, caller, otherA, amount, now); err != nil {
			return err
		}
		if err := e.shift(tx, b, otherB, caller, amount, now); err != nil {
			return err
		}
		result = &RebalanceResult{From: channelA, To: channelB, Amount: types.CloneAmount(amount)}
		if cycle != nil {
			if err := e.shift(tx, cycle, otherA, otherB, amount, now); err != nil {
				return err
			}
			result.Cycle = cycle.ID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	evt := types.NewEvent(EventTypeRebalanced).
		With("participant", crypto.Address(caller).String()).
		With("from", strconv.FormatUint(channelA, 10)).
		With("to", strconv.FormatUint(channelB, 10)).
		With("amount", amount.String())
	if result.Cycle != 0 {
		evt = evt.With("cycle", strconv.FormatUint(result.Cycle, 10))
	}
	e.emit(evt)
	e.logger.Info("liquidity rebalanced",
		"participant", crypto.Address(caller).String(),
		"from", channelA,
		"to", channelB,
		"amount", amount.String())
	return result, nil
}

func (e *Engine) shift(tx *state.Tx, ch *types.Channel, from, to [20]byte, amount *big.Int, now uint64) error {
	if err := e.channels.Debit(tx, ch, from, amount, now); err != nil {
		return err
	}
	return e.channels.Credit(tx, ch, to, amount, now)
}

func openChannel(tx *state.Tx, id uint64) (*types.Channel, error) {
	ch, err := channels.LoadChannel(tx, id)
	if err != nil {
		return nil, err
	}
	if ch.State != types.ChannelOpen {
		return nil, pcnerrors.ErrChannelClosed
	}
	return ch, nil
}
