package htlc

import (
	"encoding/hex"
	"strconv"

	"pcnchain/core/types"
	"pcnchain/crypto"
)

const (
	EventTypeHTLCCreated  = "htlc.created"
	EventTypeHTLCClaimed  = "htlc.claimed"
	EventTypeHTLCRefunded = "htlc.refunded"
)

// NewCreatedEvent returns the payload emitted when an HTLC escrows funds.
func NewCreatedEvent(h *types.HTLC) *types.Event { return newHTLCEvent(EventTypeHTLCCreated, h) }

// NewClaimedEvent returns the payload emitted when the receiver claims an
// HTLC. The preimage is not included; it is readable from the record.
func NewClaimedEvent(h *types.HTLC) *types.Event { return newHTLCEvent(EventTypeHTLCClaimed, h) }

// NewRefundedEvent returns the payload emitted when an HTLC is refunded.
func NewRefundedEvent(h *types.HTLC) *types.Event { return newHTLCEvent(EventTypeHTLCRefunded, h) }

func newHTLCEvent(eventType string, h *types.HTLC) *types.Event {
	evt := types.NewEvent(eventType)
	if h == nil {
		return evt
	}
	amount := "0"
	if h.Amount != nil {
		amount = h.Amount.String()
	}
	return evt.
		With("htlcId", strconv.FormatUint(h.ID, 10)).
		With("channelId", strconv.FormatUint(h.ChannelID, 10)).
		With("sender", crypto.Address(h.Sender).String()).
		With("receiver", crypto.Address(h.Receiver).String()).
		With("amount", amount).
		With("hashlock", "0x"+hex.EncodeToString(h.Hashlock[:])).
		With("timelock", strconv.FormatUint(h.Timelock, 10)).
		With("status", h.Status())
}
