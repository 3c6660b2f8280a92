package router

import (
	"errors"
	"math/big"

	pcnerrors "pcnchain/core/errors"
	"pcnchain/core/state"
	"pcnchain/core/types"
	"pcnchain/native/channels"
)

// Route is a path of one or two channels. Hops lists the participants from
// sender to receiver. Fee is the quote charged by the intermediary's
// outbound edge; hop amounts are not adjusted by it.
type Route struct {
	Channels []uint64
	Hops     [][20]byte
	Fee      *big.Int
}

// Intermediary returns the relaying participant of a two-hop route.
func (r *Route) Intermediary() ([20]byte, bool) {
	if r == nil || len(r.Hops) != 3 {
		return [20]byte{}, false
	}
	return r.Hops[1], true
}

// FindRoute returns a direct channel when one exists, failing with
// ErrInsufficientFunds when the sender's side cannot cover amount. Without a
// direct channel it returns the two-hop route through the earliest
// registered active intermediary whose channels cover amount on both hops.
func (r *Router) FindRoute(sender, receiver [20]byte, amount *big.Int) (route *Route, err error) {
	defer func() { r.observe("find_route", err) }()
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	if sender == receiver {
		return nil, pcnerrors.ErrSelfPayment
	}
	if !types.IsPositive(amount) {
		return nil, pcnerrors.ErrInvalidAmount
	}
	candidates := r.Neighbours(sender)
	err = r.state.View(func(tx *state.Tx) error {
		var err error
		route, err = findRoute(tx, candidates, sender, receiver, amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return route, nil
}

// RouteExists reports whether FindRoute would succeed.
func (r *Router) RouteExists(sender, receiver [20]byte, amount *big.Int) (bool, error) {
	_, err := r.FindRoute(sender, receiver, amount)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, pcnerrors.ErrRoute), errors.Is(err, pcnerrors.ErrFunds):
		return false, nil
	default:
		return false, err
	}
}

func findRoute(tx *state.Tx, candidates []uint64, sender, receiver [20]byte, amount *big.Int) (*Route, error) {
	direct, err := openChannelBetween(tx, sender, receiver)
	if err != nil {
		return nil, err
	}
	if direct != nil {
		if direct.BalanceOf(sender).Cmp(amount) < 0 {
			return nil, pcnerrors.ErrInsufficientFunds
		}
		return &Route{Channels: []uint64{direct.ID}, Hops: [][20]byte{sender, receiver}, Fee: big.NewInt(0)}, nil
	}

	var (
		best    *Route
		bestSeq uint64
	)
	for _, id := range candidates {
		first, ok, err := tx.ChannelGet(id)
		if err != nil {
			return nil, err
		}
		if !ok || first.State != types.ChannelOpen || first.BalanceOf(sender).Cmp(amount) < 0 {
			continue
		}
		via, _ := first.Counterparty(sender)
		if via == receiver {
			continue
		}
		participant, ok, err := tx.ParticipantGet(via)
		if err != nil {
			return nil, err
		}
		if !ok || !participant.Active {
			continue
		}
		if best != nil && participant.Seq >= bestSeq {
			continue
		}
		second, err := openChannelBetween(tx, via, receiver)
		if err != nil {
			return nil, err
		}
		if second == nil || second.BalanceOf(via).Cmp(amount) < 0 {
			continue
		}
		fee, err := edgeFee(tx, via, receiver, amount)
		if err != nil {
			return nil, err
		}
		best = &Route{
			Channels: []uint64{first.ID, second.ID},
			Hops:     [][20]byte{sender, via, receiver},
			Fee:      fee,
		}
		bestSeq = participant.Seq
	}
	if best == nil {
		return nil, pcnerrors.ErrRouteNotFound
	}
	return best, nil
}

func openChannelBetween(tx *state.Tx, a, b [20]byte) (*types.Channel, error) {
	id, ok, err := tx.PairGet(a, b)
	if err != nil || !ok {
		return nil, err
	}
	ch, err := channels.LoadChannel(tx, id)
	if err != nil {
		return nil, err
	}
	if ch.State != types.ChannelOpen {
		return nil, nil
	}
	return ch, nil
}

// edgeFee quotes the fee charged by the edge from -> to for amount.
func edgeFee(tx *state.Tx, from, to [20]byte, amount *big.Int) (*big.Int, error) {
	edge, ok, err := tx.EdgeGet(from, to)
	if err != nil {
		return nil, err
	}
	if !ok || edge.FeeRateBps == 0 {
		return big.NewInt(0), nil
	}
	fee := new(big.Int).Mul(amount, new(big.Int).SetUint64(uint64(edge.FeeRateBps)))
	return fee.Quo(fee, big.NewInt(channels.BasisPoints)), nil
}
