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

// SetFeeRate sets the fee rate caller charges for forwarding over its
// outbound edge of the channel.
func (e *Engine) SetFeeRate(caller [20]byte, channelID uint64, bps uint32) (err error) {
	defer func() { e.observe("set_fee_rate", err) }()
	if e == nil || e.state == nil {
		return errNilState
	}
	if bps > e.maxFeeRateBps {
		return pcnerrors.ErrFeeRateOutOfRange
	}
	now := e.now()
	var to [20]byte
	err = e.state.Update(func(tx *state.Tx) error {
		ch, err := openChannel(tx, channelID)
		if err != nil {
			return err
		}
		counterparty, ok := ch.Counterparty(caller)
		if !ok {
			return pcnerrors.ErrNotParticipant
		}
		edge, ok, err := tx.EdgeGet(caller, counterparty)
		if err != nil {
			return err
		}
		if !ok || edge.ChannelID != channelID {
			return pcnerrors.ErrEdgeNotFound
		}
		edge.FeeRateBps = bps
		edge.LastUpdated = now
		to = counterparty
		return tx.EdgePut(edge)
	})
	if err != nil {
		return err
	}
	e.emit(types.NewEvent(EventTypeFeeRateUpdated).
		With("from", crypto.Address(caller).String()).
		With("to", crypto.Address(to).String()).
		With("channelId", strconv.FormatUint(channelID, 10)).
		With("feeRateBps", strconv.FormatUint(uint64(bps), 10)))
	return nil
}

// FeeRate returns the fee rate advertised on the edge from -> to.
func (e *Engine) FeeRate(from, to [20]byte) (uint32, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	var rate uint32
	err := e.state.View(func(tx *state.Tx) error {
		edge, ok, err := tx.EdgeGet(from, to)
		if err != nil {
			return err
		}
		if !ok {
			return pcnerrors.ErrEdgeNotFound
		}
		rate = edge.FeeRateBps
		return nil
	})
	return rate, err
}

// QuoteFee returns the total forwarding fee charged by the intermediaries of
// hops (sender first, receiver last) for amount.
func (e *Engine) QuoteFee(hops [][20]byte, amount *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if !types.IsPositive(amount) {
		return nil, pcnerrors.ErrInvalidAmount
	}
	if len(hops) < 2 {
		return nil, pcnerrors.ErrInvalidRoute
	}
	total := big.NewInt(0)
	err := e.state.View(func(tx *state.Tx) error {
		for i := 1; i < len(hops)-1; i++ {
			edge, ok, err := tx.EdgeGet(hops[i], hops[i+1])
			if err != nil {
				return err
			}
			if !ok {
				return pcnerrors.ErrEdgeNotFound
			}
			fee := new(big.Int).Mul(amount, new(big.Int).SetUint64(uint64(edge.FeeRateBps)))
			total.Add(total, fee.Quo(fee, big.NewInt(channels.BasisPoints)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return total, nil
}
