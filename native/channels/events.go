package channels

import (
	"math/big"
	"strconv"

	"pcnchain/core/types"
	"pcnchain/crypto"
)

const (
	EventTypeChannelOpened      = "channels.opened"
	EventTypeChannelJoined      = "channels.joined"
	EventTypeChannelFunded      = "channels.funded"
	EventTypeBalanceProof       = "channels.balance_proof"
	EventTypeDisputeUpdate      = "channels.dispute_update"
	EventTypeCloseInitiated     = "channels.close_initiated"
	EventTypeCooperativeClose   = "channels.cooperative_close"
	EventTypeChannelSettled     = "channels.settled"
	EventTypeHTLCReleasedOnExit = "channels.htlc_released"
)

func newChannelEvent(eventType string, ch *types.Channel) *types.Event {
	evt := types.NewEvent(eventType)
	if ch == nil {
		return evt
	}
	return evt.
		With("channelId", strconv.FormatUint(ch.ID, 10)).
		With("participant1", crypto.Address(ch.Participant1).String()).
		With("participant2", crypto.Address(ch.Participant2).String()).
		With("capacity", formatAmount(ch.Capacity)).
		With("balance1", formatAmount(ch.Balance1)).
		With("balance2", formatAmount(ch.Balance2)).
		With("state", ch.State.String())
}

// NewOpenedEvent returns the payload emitted when a channel is opened.
func NewOpenedEvent(ch *types.Channel) *types.Event {
	return newChannelEvent(EventTypeChannelOpened, ch).With("openedAt", strconv.FormatUint(ch.OpenedAt, 10))
}

// NewJoinedEvent returns the payload emitted when the second participant joins.
func NewJoinedEvent(ch *types.Channel, deposit *big.Int) *types.Event {
	return newChannelEvent(EventTypeChannelJoined, ch).With("deposit", formatAmount(deposit))
}

// NewFundedEvent returns the payload emitted when a participant tops up.
func NewFundedEvent(ch *types.Channel, by [20]byte, amount *big.Int) *types.Event {
	return newChannelEvent(EventTypeChannelFunded, ch).
		With("by", crypto.Address(by).String()).
		With("amount", formatAmount(amount))
}

func newProofEvent(eventType string, ch *types.Channel, proof *types.BalanceProof) *types.Event {
	return newChannelEvent(eventType, ch).
		With("side", crypto.Address(proof.Participant).String()).
		With("submittedBy", crypto.Address(proof.SubmittedBy).String()).
		With("provenBalance", formatAmount(proof.Balance)).
		With("nonce", strconv.FormatUint(proof.Nonce, 10))
}

// NewCloseInitiatedEvent returns the payload emitted on a unilateral close.
func NewCloseInitiatedEvent(ch *types.Channel) *types.Event {
	return newChannelEvent(EventTypeCloseInitiated, ch).
		With("initiator", crypto.Address(ch.ClosingInitiator).String()).
		With("settleDeadline", strconv.FormatUint(ch.SettleDeadline, 10))
}

// NewSettledEvent returns the payload emitted when custody is released for a
// channel. eventType distinguishes the cooperative and disputed paths.
func NewSettledEvent(eventType string, ch *types.Channel, result *SettleResult) *types.Event {
	evt := newChannelEvent(eventType, ch)
	if result == nil {
		return evt
	}
	return evt.
		With("payout1", formatAmount(result.Payout1)).
		With("payout2", formatAmount(result.Payout2)).
		With("protocolFee", formatAmount(result.ProtocolFee)).
		With("unallocated", formatAmount(result.Unallocated)).
		With("scaled", strconv.FormatBool(result.Scaled))
}

func newHTLCReleasedEvent(h *types.HTLC) *types.Event {
	return types.NewEvent(EventTypeHTLCReleasedOnExit).
		With("htlcId", strconv.FormatUint(h.ID, 10)).
		With("channelId", strconv.FormatUint(h.ChannelID, 10)).
		With("sender", crypto.Address(h.Sender).String()).
		With("amount", formatAmount(h.Amount))
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
