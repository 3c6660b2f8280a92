package state

import (
	"fmt"

	"pcnchain/core/types"
)

// HTLCGet loads an HTLC by id.
func (tx *Tx) HTLCGet(id uint64) (*types.HTLC, bool, error) {
	h := new(types.HTLC)
	ok, err := tx.load(htlcKey(id), h)
	if err != nil || !ok {
		return nil, false, err
	}
	return h, true, nil
}

// HTLCPut persists an HTLC and keeps the pending index in sync with its
// terminal flags.
func (tx *Tx) HTLCPut(h *types.HTLC) error {
	if h == nil {
		return fmt.Errorf("state: nil htlc")
	}
	if h.ID == 0 {
		return fmt.Errorf("state: htlc id required")
	}
	if h.Claimed && h.Refunded {
		return fmt.Errorf("state: htlc %d cannot be both claimed and refunded", h.ID)
	}
	if err := tx.store(htlcKey(h.ID), h.Clone()); err != nil {
		return err
	}
	pending, err := tx.PendingHTLCs()
	if err != nil {
		return err
	}
	idx := -1
	for i, id := range pending {
		if id == h.ID {
			idx = i
			break
		}
	}
	switch {
	case h.Pending() && idx < 0:
		pending = append(pending, h.ID)
	case !h.Pending() && idx >= 0:
		pending = append(pending[:idx], pending[idx+1:]...)
	default:
		return nil
	}
	return tx.store(pendingHTLCKey, pending)
}

// PendingHTLCs returns the ids of unresolved HTLCs in creation order.
func (tx *Tx) PendingHTLCs() ([]uint64, error) {
	var ids []uint64
	if _, err := tx.load(pendingHTLCKey, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}
