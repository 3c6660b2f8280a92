package state

import (
	"fmt"

	"pcnchain/core/types"
)

// ParticipantGet loads a participant record.
func (tx *Tx) ParticipantGet(addr [20]byte) (*types.Participant, bool, error) {
	p := new(types.Participant)
	ok, err := tx.load(participantKey(addr), p)
	if err != nil || !ok {
		return nil, false, err
	}
	return p, true, nil
}

// ParticipantPut persists a participant record. New participants are
// appended to the registration list.
func (tx *Tx) ParticipantPut(p *types.Participant) error {
	if p == nil {
		return fmt.Errorf("state: nil participant")
	}
	if p.Address == ([20]byte{}) {
		return fmt.Errorf("state: participant address required")
	}
	_, exists, err := tx.ParticipantGet(p.Address)
	if err != nil {
		return err
	}
	if err := tx.store(participantKey(p.Address), p.Clone()); err != nil {
		return err
	}
	if exists {
		return nil
	}
	list, err := tx.ParticipantList()
	if err != nil {
		return err
	}
	list = append(list, p.Address)
	return tx.store(participantListKey, list)
}

// ParticipantList returns every registered address in registration order.
func (tx *Tx) ParticipantList() ([][20]byte, error) {
	var list [][20]byte
	if _, err := tx.load(participantListKey, &list); err != nil {
		return nil, err
	}
	return list, nil
}
