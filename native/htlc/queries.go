package htlc

import (
	"pcnchain/core/state"
	"pcnchain/core/types"
)

// Get returns the HTLC record for id.
func (e *Engine) Get(id uint64) (*types.HTLC, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	var out *types.HTLC
	err := e.state.View(func(tx *state.Tx) error {
		h, err := loadHTLC(tx, id)
		out = h
		return err
	})
	return out, err
}

// Pending returns every unresolved HTLC in creation order.
func (e *Engine) Pending() ([]*types.HTLC, error) {
	return e.filterPending(func(*types.HTLC) bool { return true })
}

// Expiring returns the unresolved HTLCs whose timelock is at or before tick.
// Watchers use it to refund or claim before funds are stranded.
func (e *Engine) Expiring(tick uint64) ([]*types.HTLC, error) {
	return e.filterPending(func(h *types.HTLC) bool { return h.Timelock <= tick })
}

func (e *Engine) filterPending(keep func(*types.HTLC) bool) ([]*types.HTLC, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	var out []*types.HTLC
	err := e.state.View(func(tx *state.Tx) error {
		ids, err := tx.PendingHTLCs()
		if err != nil {
			return err
		}
		for _, id := range ids {
			h, ok, err := tx.HTLCGet(id)
			if err != nil {
				return err
			}
			if ok && h.Pending() && keep(h) {
				out = append(out, h)
			}
		}
		return nil
	})
	return out, err
}
