package liquidity

import (
	"errors"
	"log/slog"
	"math/big"
	"time"

	"pcnchain/core/events"
	"pcnchain/core/state"
	"pcnchain/core/types"
	"pcnchain/observability"
)

const moduleName = "liquidity"

var (
	errNilState    = errors.New("liquidity engine: state not configured")
	errNilChannels = errors.New("liquidity engine: channel engine not configured")
)

// balanceAdjuster moves value between the sides of a channel inside a
// transaction.
type balanceAdjuster interface {
	Debit(tx *state.Tx, ch *types.Channel, addr [20]byte, amount *big.Int, now uint64) error
	Credit(tx *state.Tx, ch *types.Channel, addr [20]byte, amount *big.Int, now uint64) error
}

type liquidityEvent struct {
	evt *types.Event
}

func (e liquidityEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e liquidityEvent) Event() *types.Event { return e.evt }

// Engine rebalances liquidity around channel cycles and keeps the fee rates
// advertised on routing edges.
type Engine struct {
	state         *state.Manager
	channels      balanceAdjuster
	emitter       events.Emitter
	logger        *slog.Logger
	nowFn         func() uint64
	maxFeeRateBps uint32
}

func NewEngine() *Engine {
	return &Engine{
		emitter:       events.NoopEmitter{},
		logger:        slog.Default(),
		nowFn:         defaultNow,
		maxFeeRateBps: 1_000,
	}
}

func defaultNow() uint64 { return uint64(time.Now().Unix()) }

func (e *Engine) SetState(manager *state.Manager) { e.state = manager }

func (e *Engine) SetChannels(adjuster balanceAdjuster) { e.channels = adjuster }

// SetMaxFeeRate bounds the fee rate a participant may advertise.
func (e *Engine) SetMaxFeeRate(bps uint32) { e.maxFeeRateBps = bps }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
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

func (e *Engine) SetNowFunc(now func() uint64) {
	if now == nil {
		now = defaultNow
	}
	e.nowFn = now
}

func (e *Engine) now() uint64 {
	if e == nil || e.nowFn == nil {
		return defaultNow()
	}
	return e.nowFn()
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(liquidityEvent{evt: evt})
}

func (e *Engine) observe(operation string, err error) {
	observability.Network().ObserveOperation(moduleName, operation, err)
	if err != nil && e.logger != nil {
		e.logger.Debug("liquidity operation rejected", "operation", operation, "error", err)
	}
}
