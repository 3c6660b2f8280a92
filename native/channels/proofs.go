package channels

import (
	"math/big"

	pcnerrors "pcnchain/core/errors"
	"pcnchain/core/state"
	"pcnchain/core/types"
	"pcnchain/crypto"
)

// SubmitBalanceProof records a counterparty-signed attestation of the
// counterparty's side balance. The proof nonce must exceed the nonce already
// stored for that side.
func (e *Engine) SubmitBalanceProof(caller [20]byte, channelID uint64, balance *big.Int, nonce uint64, signature []byte) (err error) {
	defer func() { e.observe("submit_balance_proof", err) }()
	return e.recordProof(caller, channelID, balance, nonce, signature, false)
}

// UpdateInDispute records a fresher balance proof while the channel is
// closing. It is rejected once the settle deadline is reached.
func (e *Engine) UpdateInDispute(caller [20]byte, channelID uint64, balance *big.Int, nonce uint64, signature []byte) (err error) {
	defer func() { e.observe("update_in_dispute", err) }()
	return e.recordProof(caller, channelID, balance, nonce, signature, true)
}

func (e *Engine) recordProof(caller [20]byte, channelID uint64, balance *big.Int, nonce uint64, signature []byte, dispute bool) error {
	if err := e.ready(); err != nil {
		return err
	}
	if balance == nil || balance.Sign() < 0 {
		return pcnerrors.ErrInvalidAmount
	}
	now := e.Now()
	var (
		updated *types.Channel
		proof   *types.BalanceProof
	)
	err := e.state.Update(func(tx *state.Tx) error {
		ch, err := LoadChannel(tx, channelID)
		if err != nil {
			return err
		}
		counterparty, ok := ch.Counterparty(caller)
		if !ok {
			return pcnerrors.ErrNotParticipant
		}
		if dispute {
			if ch.State != types.ChannelClosing {
				return pcnerrors.ErrNotClosing
			}
			if now >= ch.SettleDeadline {
				return pcnerrors.ErrDisputeWindowClosed
			}
		} else if ch.State != types.ChannelOpen {
			return pcnerrors.ErrChannelClosed
		}
		if nonce <= ch.NonceOf(counterparty) {
			return pcnerrors.ErrStaleNonce
		}
		if balance.Cmp(types.CloneAmount(ch.Capacity)) > 0 {
			return pcnerrors.ErrBalanceExceedsCap
		}
		if !e.verifier.Verify(counterparty, BalanceProofMessage(channelID, counterparty, balance, nonce), signature) {
			return pcnerrors.ErrBadSignature
		}
		proof = &types.BalanceProof{
			ChannelID:   channelID,
			Participant: counterparty,
			Balance:     types.CloneAmount(balance),
			Nonce:       nonce,
			Signature:   append([]byte(nil), signature...),
			SubmittedBy: caller,
			SubmittedAt: now,
		}
		if err := tx.ProofPut(proof); err != nil {
			return err
		}
		ch.SetNonceOf(counterparty, nonce)
		if err := tx.ChannelPut(ch); err != nil {
			return err
		}
		if err := e.registry.Touch(tx, caller, now); err != nil {
			return err
		}
		updated = ch
		return nil
	})
	if err != nil {
		return err
	}
	eventType := EventTypeBalanceProof
	if dispute {
		eventType = EventTypeDisputeUpdate
	}
	e.emit(newProofEvent(eventType, updated, proof))
	e.logger.Info("balance proof accepted",
		"channel", channelID,
		"side", crypto.Address(proof.Participant).String(),
		"nonce", nonce,
		"dispute", dispute)
	return nil
}
