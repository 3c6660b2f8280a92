package router

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"pcnchain/core/events"
	"pcnchain/core/state"
	"pcnchain/core/types"
	"pcnchain/native/htlc"
	"pcnchain/observability"
)

const moduleName = "router"

var (
	errNilState = errors.New("router: state not configured")
	errNilHTLC  = errors.New("router: htlc engine not configured")
)

// htlcEngine is the HTLC surface the router composes payments from.
type htlcEngine interface {
	CreateTx(tx *state.Tx, req htlc.Request, now uint64) (*types.HTLC, error)
	Announce(h *types.HTLC)
	Fulfill(caller [20]byte, id uint64, preimage []byte) error
	Hashlock(preimage []byte) [32]byte
}

type routerEvent struct {
	evt *types.Event
}

func (e routerEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e routerEvent) Event() *types.Event { return e.evt }

// Config carries the timelock parameters of multi-hop payments.
type Config struct {
	// DefaultWindow is added to the current tick to form the first-hop
	// timelock.
	DefaultWindow uint64
	// RelayMargin is subtracted from the inbound timelock at every relay.
	RelayMargin uint64
}

// Router discovers direct and single-intermediary routes and composes
// multi-hop payments out of one HTLC per hop.
type Router struct {
	state   *state.Manager
	htlcs   htlcEngine
	emitter events.Emitter
	logger  *slog.Logger
	nowFn   func() uint64
	cfg     Config

	mu        sync.RWMutex
	adjacency map[[20]byte][]uint64
}

// New returns a router with an empty adjacency index.
func New() *Router {
	return &Router{
		emitter:   events.NoopEmitter{},
		logger:    slog.Default(),
		nowFn:     defaultNow,
		cfg:       Config{DefaultWindow: 144, RelayMargin: 12},
		adjacency: make(map[[20]byte][]uint64),
	}
}

func defaultNow() uint64 { return uint64(time.Now().Unix()) }

func (r *Router) SetState(manager *state.Manager) { r.state = manager }

func (r *Router) SetHTLC(engine htlcEngine) { r.htlcs = engine }

func (r *Router) SetConfig(cfg Config) { r.cfg = cfg }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (r *Router) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

func (r *Router) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	r.logger = logger
}

// SetNowFunc overrides the tick source.
func (r *Router) SetNowFunc(now func() uint64) {
	if now == nil {
		now = defaultNow
	}
	r.nowFn = now
}

func (r *Router) now() uint64 {
	if r == nil || r.nowFn == nil {
		return defaultNow()
	}
	return r.nowFn()
}

func (r *Router) emit(evt *types.Event) {
	if r == nil || r.emitter == nil || evt == nil {
		return
	}
	r.emitter.Emit(routerEvent{evt: evt})
}

func (r *Router) observe(operation string, err error) {
	observability.Network().ObserveOperation(moduleName, operation, err)
	if err != nil && r.logger != nil {
		r.logger.Debug("router operation rejected", "operation", operation, "error", err)
	}
}

// ChannelOpened adds ch to the adjacency of both participants.
func (r *Router) ChannelOpened(ch *types.Channel) {
	if ch == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.link(ch.Participant1, ch.ID)
	r.link(ch.Participant2, ch.ID)
}

// ChannelClosed removes ch from the adjacency of both participants. It is
// safe to call more than once.
func (r *Router) ChannelClosed(ch *types.Channel) {
	if ch == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unlink(ch.Participant1, ch.ID)
	r.unlink(ch.Participant2, ch.ID)
}

func (r *Router) link(addr [20]byte, id uint64) {
	for _, existing := range r.adjacency[addr] {
		if existing == id {
			return
		}
	}
	r.adjacency[addr] = append(r.adjacency[addr], id)
}

func (r *Router) unlink(addr [20]byte, id uint64) {
	ids := r.adjacency[addr]
	for i, existing := range ids {
		if existing == id {
			ids = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(r.adjacency, addr)
		return
	}
	r.adjacency[addr] = ids
}

// Rebuild reloads the adjacency index from every open channel in the store.
func (r *Router) Rebuild() error {
	if r == nil || r.state == nil {
		return errNilState
	}
	adjacency := make(map[[20]byte][]uint64)
	err := r.state.View(func(tx *state.Tx) error {
		last, err := tx.LastSequence(state.SeqChannel)
		if err != nil {
			return err
		}
		for id := uint64(1); id <= last; id++ {
			ch, ok, err := tx.ChannelGet(id)
			if err != nil {
				return err
			}
			if !ok || ch.State != types.ChannelOpen {
				continue
			}
			adjacency[ch.Participant1] = append(adjacency[ch.Participant1], id)
			adjacency[ch.Participant2] = append(adjacency[ch.Participant2], id)
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.adjacency = adjacency
	r.mu.Unlock()
	r.logger.Info("router adjacency rebuilt", "participants", len(adjacency))
	return nil
}

// Neighbours returns the ids of the open channels addr participates in.
func (r *Router) Neighbours(addr [20]byte) []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]uint64(nil), r.adjacency[addr]...)
}

func (r *Router) ready() error {
	switch {
	case r == nil || r.state == nil:
		return errNilState
	case r.htlcs == nil:
		return errNilHTLC
	}
	return nil
}
