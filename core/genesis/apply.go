package genesis

import (
	"errors"
	"fmt"

	pcnerrors "pcnchain/core/errors"
	"pcnchain/core/state"
	"pcnchain/core/types"
)

// Registrar registers participants listed in the genesis file.
type Registrar interface {
	Participant(addr [20]byte) (*types.Participant, error)
	Register(addr [20]byte) (*types.Participant, error)
}

// Apply credits the allocations and registers the participants of spec. The
// ledger credit runs once per store: a marker sequence records that genesis
// has been applied. Participants missing from the registry are registered
// on every call; deregistered ones stay inactive.
func Apply(manager *state.Manager, registrar Registrar, spec *Spec) (applied bool, err error) {
	if manager == nil {
		return false, fmt.Errorf("genesis: state manager required")
	}
	if spec == nil {
		return false, nil
	}
	err = manager.Update(func(tx *state.Tx) error {
		marker, err := tx.LastSequence(state.SeqGenesis)
		if err != nil {
			return err
		}
		if marker > 0 {
			return nil
		}
		for _, alloc := range spec.Allocations() {
			if err := tx.Credit(alloc.Address, alloc.Amount); err != nil {
				return fmt.Errorf("genesis: credit: %w", err)
			}
		}
		if _, err := tx.NextSequence(state.SeqGenesis); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if registrar == nil {
		return applied, nil
	}
	for _, addr := range spec.ParticipantAddresses() {
		_, err := registrar.Participant(addr)
		if err == nil {
			continue
		}
		if !errors.Is(err, pcnerrors.ErrParticipantNotFound) {
			return applied, err
		}
		if _, err := registrar.Register(addr); err != nil {
			return applied, fmt.Errorf("genesis: register: %w", err)
		}
	}
	return applied, nil
}
