package router

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"pcnchain/core/types"
	"pcnchain/crypto"
)

const (
	EventTypePaymentStarted   = "router.payment_started"
	EventTypeRelayContinued   = "router.relay_continued"
	EventTypePaymentCompleted = "router.payment_completed"
)

func newPaymentEvent(eventType string, p *Payment, amount *big.Int) *types.Event {
	evt := types.NewEvent(eventType)
	if p == nil {
		return evt
	}
	evt = evt.
		With("htlcId", strconv.FormatUint(p.HTLCID, 10)).
		With("hashlock", "0x"+hex.EncodeToString(p.Hashlock[:])).
		With("timelock", strconv.FormatUint(p.Timelock, 10)).
		With("next", crypto.Address(p.Next).String())
	if amount != nil {
		evt = evt.With("amount", amount.String())
	}
	return evt
}
