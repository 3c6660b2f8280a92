package rpc

import (
	"encoding/hex"
	"math/big"

	"pcnchain/core/types"
	"pcnchain/crypto"
	"pcnchain/native/channels"
	"pcnchain/native/router"
)

type ChannelResponse struct {
	ID                 uint64 `json:"id"`
	Participant1       string `json:"participant1"`
	Participant2       string `json:"participant2"`
	Capacity           string `json:"capacity"`
	Balance1           string `json:"balance1"`
	Balance2           string `json:"balance2"`
	Nonce1             uint64 `json:"nonce1"`
	Nonce2             uint64 `json:"nonce2"`
	State              string `json:"state"`
	Joined             bool   `json:"joined"`
	OpenedAt           uint64 `json:"openedAt"`
	ClosingInitiatedAt uint64 `json:"closingInitiatedAt,omitempty"`
	ClosingInitiator   string `json:"closingInitiator,omitempty"`
	SettleDeadline     uint64 `json:"settleDeadline,omitempty"`
	Unallocated        string `json:"unallocated,omitempty"`
}

type StatusResponse struct {
	ID    uint64 `json:"id"`
	State string `json:"state"`
}

type ProofResponse struct {
	ChannelID   uint64 `json:"channelId"`
	Participant string `json:"participant"`
	Balance     string `json:"balance"`
	Nonce       uint64 `json:"nonce"`
	Signature   string `json:"signature"`
	SubmittedBy string `json:"submittedBy"`
	SubmittedAt uint64 `json:"submittedAt"`
}

type HTLCResponse struct {
	ID        uint64 `json:"id"`
	ChannelID uint64 `json:"channelId"`
	Sender    string `json:"sender"`
	Receiver  string `json:"receiver"`
	Amount    string `json:"amount"`
	Hashlock  string `json:"hashlock"`
	Timelock  uint64 `json:"timelock"`
	Status    string `json:"status"`
	CreatedAt uint64 `json:"createdAt"`
}

type ParticipantResponse struct {
	Address      string `json:"address"`
	Seq          uint64 `json:"seq"`
	Active       bool   `json:"active"`
	ChannelCount uint64 `json:"channelCount"`
	Capacity     string `json:"capacity"`
	Reputation   uint32 `json:"reputation"`
	LastActivity uint64 `json:"lastActivity"`
	RegisteredAt uint64 `json:"registeredAt"`
}

type StatsResponse struct {
	OpenChannels      uint64 `json:"openChannels"`
	ClosingChannels   uint64 `json:"closingChannels"`
	SettledChannels   uint64 `json:"settledChannels"`
	TotalChannels     uint64 `json:"totalChannels"`
	Unallocated       string `json:"unallocated"`
	Participants      int    `json:"participants"`
	PendingHTLCs      int    `json:"pendingHtlcs"`
	MinDeposit        string `json:"minDeposit"`
	DisputeTimeout    uint64 `json:"disputeTimeout"`
	ProtocolFeeBps    uint32 `json:"protocolFeeBps"`
	DefaultFeeRateBps uint32 `json:"defaultFeeRateBps"`
}

type RouteResponse struct {
	Exists   bool     `json:"exists"`
	Channels []uint64 `json:"channels,omitempty"`
	Hops     []string `json:"hops,omitempty"`
	Fee      string   `json:"fee,omitempty"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func addressString(addr [20]byte) string {
	return crypto.Address(addr).String()
}

func newChannelResponse(ch *types.Channel) ChannelResponse {
	resp := ChannelResponse{
		ID:           ch.ID,
		Participant1: addressString(ch.Participant1),
		Participant2: addressString(ch.Participant2),
		Capacity:     amountString(ch.Capacity),
		Balance1:     amountString(ch.Balance1),
		Balance2:     amountString(ch.Balance2),
		Nonce1:       ch.Nonce1,
		Nonce2:       ch.Nonce2,
		State:        ch.State.String(),
		Joined:       ch.Joined,
		OpenedAt:     ch.OpenedAt,
	}
	if ch.ClosingInitiatedAt != 0 {
		resp.ClosingInitiatedAt = ch.ClosingInitiatedAt
		resp.ClosingInitiator = addressString(ch.ClosingInitiator)
		resp.SettleDeadline = ch.SettleDeadline
	}
	if ch.Unallocated != nil && ch.Unallocated.Sign() > 0 {
		resp.Unallocated = ch.Unallocated.String()
	}
	return resp
}

func newProofResponse(p *types.BalanceProof) ProofResponse {
	return ProofResponse{
		ChannelID:   p.ChannelID,
		Participant: addressString(p.Participant),
		Balance:     amountString(p.Balance),
		Nonce:       p.Nonce,
		Signature:   "0x" + hex.EncodeToString(p.Signature),
		SubmittedBy: addressString(p.SubmittedBy),
		SubmittedAt: p.SubmittedAt,
	}
}

func newHTLCResponse(h *types.HTLC) HTLCResponse {
	status := "pending"
	switch {
	case h.Claimed:
		status = "claimed"
	case h.Refunded:
		status = "refunded"
	}
	return HTLCResponse{
		ID:        h.ID,
		ChannelID: h.ChannelID,
		Sender:    addressString(h.Sender),
		Receiver:  addressString(h.Receiver),
		Amount:    amountString(h.Amount),
		Hashlock:  "0x" + hex.EncodeToString(h.Hashlock[:]),
		Timelock:  h.Timelock,
		Status:    status,
		CreatedAt: h.CreatedAt,
	}
}

func newParticipantResponse(p *types.Participant) ParticipantResponse {
	return ParticipantResponse{
		Address:      addressString(p.Address),
		Seq:          p.Seq,
		Active:       p.Active,
		ChannelCount: p.ChannelCount,
		Capacity:     amountString(p.Capacity),
		Reputation:   p.Reputation,
		LastActivity: p.LastActivity,
		RegisteredAt: p.RegisteredAt,
	}
}

func newStatsResponse(s *channels.Stats) StatsResponse {
	return StatsResponse{
		OpenChannels:      s.OpenChannels,
		ClosingChannels:   s.ClosingChannels,
		SettledChannels:   s.SettledChannels,
		TotalChannels:     s.TotalChannels,
		Unallocated:       amountString(s.Unallocated),
		Participants:      s.Participants,
		PendingHTLCs:      s.PendingHTLCs,
		MinDeposit:        amountString(s.MinDeposit),
		DisputeTimeout:    s.DisputeTimeout,
		ProtocolFeeBps:    s.ProtocolFeeBps,
		DefaultFeeRateBps: s.DefaultFeeRateBps,
	}
}

func newRouteResponse(route *router.Route) RouteResponse {
	resp := RouteResponse{Exists: true, Channels: route.Channels, Fee: amountString(route.Fee)}
	for _, hop := range route.Hops {
		resp.Hops = append(resp.Hops, addressString(hop))
	}
	return resp
}
