package channels

import (
	"errors"
	"log/slog"
	"math/big"
	"time"

	"pcnchain/core/events"
	"pcnchain/core/state"
	"pcnchain/core/types"
	"pcnchain/crypto"
	"pcnchain/observability"
)

const moduleName = "channels"

// BasisPoints is the denominator of every fee rate.
const BasisPoints = 10_000

var (
	errNilState    = errors.New("channels engine: state not configured")
	errNilRegistry = errors.New("channels engine: registry not configured")
	errNilVerifier = errors.New("channels engine: signature verifier not configured")
)

// participantRegistry is the registry surface consulted inside a channel
// transaction.
type participantRegistry interface {
	RequireActive(tx *state.Tx, addr [20]byte) error
	RecordChannelOpened(tx *state.Tx, addr [20]byte, capacity *big.Int, now uint64) error
	RecordDeposit(tx *state.Tx, addr [20]byte, amount *big.Int, now uint64) error
	RecordChannelClosed(tx *state.Tx, addr [20]byte, capacity *big.Int, now uint64) error
	Touch(tx *state.Tx, addr [20]byte, now uint64) error
}

// TopologyListener observes committed changes to the set of open channels.
type TopologyListener interface {
	ChannelOpened(ch *types.Channel)
	ChannelClosed(ch *types.Channel)
}

// Config carries the lifecycle parameters of the engine.
type Config struct {
	MinDeposit        *big.Int
	DisputeTimeout    uint64
	ProtocolFeeBps    uint32
	Treasury          [20]byte
	DefaultFeeRateBps uint32
}

type channelEvent struct {
	evt *types.Event
}

func (e channelEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e channelEvent) Event() *types.Event { return e.evt }

// Engine implements the channel lifecycle state machine. Every mutating
// operation runs as one state.Manager transaction: validation happens first
// and no write becomes visible unless the whole operation succeeds.
type Engine struct {
	state    *state.Manager
	registry participantRegistry
	verifier crypto.Verifier
	topology TopologyListener
	emitter  events.Emitter
	logger   *slog.Logger
	nowFn    func() uint64
	cfg      Config
}

// NewEngine creates a channel engine with a no-op emitter and the ECDSA
// verifier.
func NewEngine() *Engine {
	return &Engine{
		verifier: crypto.ECDSAVerifier{},
		emitter:  events.NoopEmitter{},
		logger:   slog.Default(),
		nowFn:    defaultNow,
		cfg: Config{
			MinDeposit:     big.NewInt(0),
			DisputeTimeout: 1,
		},
	}
}

func defaultNow() uint64 { return uint64(time.Now().Unix()) }

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(manager *state.Manager) { e.state = manager }

// SetRegistry configures the participant registry.
func (e *Engine) SetRegistry(registry participantRegistry) { e.registry = registry }

// SetVerifier configures the signature verifier for balance proofs and close
// agreements.
func (e *Engine) SetVerifier(verifier crypto.Verifier) { e.verifier = verifier }

// SetTopology registers the listener notified after channels open or close.
func (e *Engine) SetTopology(listener TopologyListener) { e.topology = listener }

// SetConfig replaces the lifecycle parameters.
func (e *Engine) SetConfig(cfg Config) {
	cfg.MinDeposit = types.CloneAmount(cfg.MinDeposit)
	e.cfg = cfg
}

// Config returns a copy of the lifecycle parameters.
func (e *Engine) Config() Config {
	cfg := e.cfg
	cfg.MinDeposit = types.CloneAmount(e.cfg.MinDeposit)
	return cfg
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	e.logger = logger
}

// SetNowFunc overrides the tick source used by the engine. Primarily intended
// for tests to provide deterministic ticks.
func (e *Engine) SetNowFunc(now func() uint64) {
	if now == nil {
		now = defaultNow
	}
	e.nowFn = now
}

// Now returns the current tick.
func (e *Engine) Now() uint64 {
	if e == nil || e.nowFn == nil {
		return defaultNow()
	}
	return e.nowFn()
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(channelEvent{evt: evt})
}

func (e *Engine) emitPayload(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) observe(operation string, err error) {
	observability.Network().ObserveOperation(moduleName, operation, err)
	if err != nil && e.logger != nil {
		e.logger.Debug("channel operation rejected", "operation", operation, "error", err)
	}
}

func (e *Engine) ready() error {
	switch {
	case e == nil || e.state == nil:
		return errNilState
	case e.registry == nil:
		return errNilRegistry
	case e.verifier == nil:
		return errNilVerifier
	}
	return nil
}

func (e *Engine) publishCounters(counters *state.NetworkCounters) {
	if counters == nil {
		return
	}
	observability.Network().SetOpenChannels(counters.OpenChannels)
}

func (e *Engine) notifyOpened(ch *types.Channel) {
	if e.topology != nil && ch != nil {
		e.topology.ChannelOpened(ch.Clone())
	}
}

func (e *Engine) notifyClosed(ch *types.Channel) {
	if e.topology != nil && ch != nil {
		e.topology.ChannelClosed(ch.Clone())
	}
}

func (e *Engine) minDeposit() *big.Int {
	return types.CloneAmount(e.cfg.MinDeposit)
}
