package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"pcnchain/core/events"
	pcnerrors "pcnchain/core/errors"
	"pcnchain/core/state"
	"pcnchain/core/types"
	"pcnchain/crypto"
	"pcnchain/observability"
)

// MaxReputation bounds the reputation score of a participant.
const MaxReputation uint32 = 10_000

const moduleName = "registry"

var errNilState = fmt.Errorf("registry: state not configured")

type registryEvent struct {
	evt *types.Event
}

func (e registryEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e registryEvent) Event() *types.Event { return e.evt }

// Registry keeps the participant records consulted by the channel engines.
// Write helpers taking a *state.Tx run inside the caller's transaction.
type Registry struct {
	state   *state.Manager
	emitter events.Emitter
	logger  *slog.Logger
	nowFn   func() uint64
}

// NewRegistry returns a registry with a no-op emitter and wall-clock ticks.
func NewRegistry() *Registry {
	return &Registry{
		emitter: events.NoopEmitter{},
		logger:  slog.Default(),
		nowFn:   defaultNow,
	}
}

func defaultNow() uint64 { return uint64(time.Now().Unix()) }

func (r *Registry) SetState(manager *state.Manager) { r.state = manager }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

func (r *Registry) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	r.logger = logger
}

// SetNowFunc overrides the tick source. Primarily intended for tests.
func (r *Registry) SetNowFunc(now func() uint64) {
	if now == nil {
		now = defaultNow
	}
	r.nowFn = now
}

func (r *Registry) now() uint64 {
	if r == nil || r.nowFn == nil {
		return defaultNow()
	}
	return r.nowFn()
}

func (r *Registry) emit(evt *types.Event) {
	if r == nil || r.emitter == nil || evt == nil {
		return
	}
	r.emitter.Emit(registryEvent{evt: evt})
}

func (r *Registry) observe(operation string, err error) {
	observability.Network().ObserveOperation(moduleName, operation, err)
	if err != nil && r.logger != nil {
		r.logger.Debug("registry operation rejected", "operation", operation, "error", err)
	}
}

// Register creates an active participant record. A previously deregistered
// participant is reactivated and keeps its registration sequence.
func (r *Registry) Register(addr [20]byte) (participant *types.Participant, err error) {
	defer func() { r.observe("register", err) }()
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	if addr == ([20]byte{}) {
		return nil, pcnerrors.ErrInvalidParticipant
	}
	now := r.now()
	err = r.state.Update(func(tx *state.Tx) error {
		existing, ok, err := tx.ParticipantGet(addr)
		if err != nil {
			return err
		}
		if ok {
			if existing.Active {
				return pcnerrors.ErrAlreadyRegistered
			}
			existing.Active = true
			existing.LastActivity = now
			participant = existing
			return tx.ParticipantPut(existing)
		}
		seq, err := tx.NextSequence(state.SeqParticipant)
		if err != nil {
			return err
		}
		participant = &types.Participant{
			Address:      addr,
			Seq:          seq,
			Active:       true,
			Capacity:     big.NewInt(0),
			LastActivity: now,
			RegisteredAt: now,
		}
		return tx.ParticipantPut(participant)
	})
	if err != nil {
		return nil, err
	}
	r.emit(types.NewEvent(EventTypeRegistered).
		With("participant", crypto.Address(addr).String()).
		With("seq", fmt.Sprintf("%d", participant.Seq)))
	r.logger.Info("participant registered", "participant", crypto.Address(addr).String(), "seq", participant.Seq)
	return participant.Clone(), nil
}

// Deregister flips the participant inactive. Existing channels are untouched
// but the participant can no longer open or join channels.
func (r *Registry) Deregister(addr [20]byte) (err error) {
	defer func() { r.observe("deregister", err) }()
	if r == nil || r.state == nil {
		return errNilState
	}
	err = r.state.Update(func(tx *state.Tx) error {
		p, ok, err := tx.ParticipantGet(addr)
		if err != nil {
			return err
		}
		if !ok {
			return pcnerrors.ErrParticipantNotFound
		}
		if !p.Active {
			return pcnerrors.ErrInvalidState
		}
		p.Active = false
		p.LastActivity = r.now()
		return tx.ParticipantPut(p)
	})
	if err != nil {
		return err
	}
	r.emit(types.NewEvent(EventTypeDeregistered).With("participant", crypto.Address(addr).String()))
	return nil
}

// SetReputation overwrites the participant's reputation score.
func (r *Registry) SetReputation(addr [20]byte, score uint32) (err error) {
	defer func() { r.observe("set_reputation", err) }()
	if r == nil || r.state == nil {
		return errNilState
	}
	if score > MaxReputation {
		return pcnerrors.ErrReputationOutOfRange
	}
	err = r.state.Update(func(tx *state.Tx) error {
		p, ok, err := tx.ParticipantGet(addr)
		if err != nil {
			return err
		}
		if !ok {
			return pcnerrors.ErrParticipantNotFound
		}
		p.Reputation = score
		return tx.ParticipantPut(p)
	})
	if err != nil {
		return err
	}
	r.emit(types.NewEvent(EventTypeReputationUpdated).
		With("participant", crypto.Address(addr).String()).
		With("reputation", fmt.Sprintf("%d", score)))
	return nil
}

// Participant returns the participant record for addr.
func (r *Registry) Participant(addr [20]byte) (*types.Participant, error) {
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	var out *types.Participant
	err := r.state.View(func(tx *state.Tx) error {
		p, ok, err := tx.ParticipantGet(addr)
		if err != nil {
			return err
		}
		if !ok {
			return pcnerrors.ErrParticipantNotFound
		}
		out = p
		return nil
	})
	return out, err
}

// IsActive reports whether addr is registered and active.
func (r *Registry) IsActive(addr [20]byte) (bool, error) {
	p, err := r.Participant(addr)
	if err != nil {
		if errors.Is(err, pcnerrors.ErrParticipantNotFound) {
			return false, nil
		}
		return false, err
	}
	return p.Active, nil
}

// Participants returns every participant in registration order.
func (r *Registry) Participants() ([]*types.Participant, error) {
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	var out []*types.Participant
	err := r.state.View(func(tx *state.Tx) error {
		list, err := tx.ParticipantList()
		if err != nil {
			return err
		}
		out = make([]*types.Participant, 0, len(list))
		for _, addr := range list {
			p, ok, err := tx.ParticipantGet(addr)
			if err != nil {
				return err
			}
			if ok {
				out = append(out, p)
			}
		}
		return nil
	})
	return out, err
}

// Count returns the number of registered participants, active or not.
func (r *Registry) Count() (int, error) {
	if r == nil || r.state == nil {
		return 0, errNilState
	}
	var n int
	err := r.state.View(func(tx *state.Tx) error {
		list, err := tx.ParticipantList()
		n = len(list)
		return err
	})
	return n, err
}
