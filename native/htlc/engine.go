package htlc

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
	"pcnchain/native/channels"
	"pcnchain/observability"
)

const moduleName = "htlc"

var (
	errNilState    = errors.New("htlc engine: state not configured")
	errNilChannels = errors.New("htlc engine: channel engine not configured")
)

// channelLedger adjusts channel side balances inside a transaction. It is
// implemented by the channel lifecycle engine.
type channelLedger interface {
	Debit(tx *state.Tx, ch *types.Channel, addr [20]byte, amount *big.Int, now uint64) error
	Credit(tx *state.Tx, ch *types.Channel, addr [20]byte, amount *big.Int, now uint64) error
}

type htlcEvent struct {
	evt *types.Event
}

func (e htlcEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e htlcEvent) Event() *types.Event { return e.evt }

// Request describes a single-hop HTLC.
type Request struct {
	ChannelID uint64
	Sender    [20]byte
	Receiver  [20]byte
	Amount    *big.Int
	Hashlock  [32]byte
	Timelock  uint64
}

// Engine escrows hashed time-locked transfers inside channels. The amount
// leaves the sender's side at creation and lands on the receiver's side on
// fulfilment or back on the sender's side on refund.
type Engine struct {
	state    *state.Manager
	channels channelLedger
	hasher   crypto.Hasher
	emitter  events.Emitter
	logger   *slog.Logger
	nowFn    func() uint64
}

// NewEngine creates an HTLC engine hashing with keccak256.
func NewEngine() *Engine {
	return &Engine{
		hasher:  crypto.Keccak256,
		emitter: events.NoopEmitter{},
		logger:  slog.Default(),
		nowFn:   defaultNow,
	}
}

func defaultNow() uint64 { return uint64(time.Now().Unix()) }

func (e *Engine) SetState(manager *state.Manager) { e.state = manager }

func (e *Engine) SetChannels(ledger channelLedger) { e.channels = ledger }

// SetHasher selects the hashlock digest. Passing nil restores keccak256.
func (e *Engine) SetHasher(hasher crypto.Hasher) {
	if hasher == nil {
		hasher = crypto.Keccak256
	}
	e.hasher = hasher
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

// SetNowFunc overrides the tick source used by the engine.
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

// Hashlock returns the digest a preimage must match.
func (e *Engine) Hashlock(preimage []byte) [32]byte {
	return e.hasher.Sum(preimage)
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(htlcEvent{evt: evt})
}

func (e *Engine) observe(operation string, err error) {
	observability.Network().ObserveOperation(moduleName, operation, err)
	if err != nil && e.logger != nil {
		e.logger.Debug("htlc operation rejected", "operation", operation, "error", err)
	}
}

func (e *Engine) ready() error {
	switch {
	case e == nil || e.state == nil:
		return errNilState
	case e.channels == nil:
		return errNilChannels
	}
	return nil
}

// publishPending refreshes the pending gauge from committed state.
func (e *Engine) publishPending() {
	var n int
	err := e.state.View(func(tx *state.Tx) error {
		ids, err := tx.PendingHTLCs()
		n = len(ids)
		return err
	})
	if err != nil {
		e.logger.Debug("pending htlc count unavailable", "error", err)
		return
	}
	observability.Network().SetPendingHTLCs(n)
}

// Create escrows req.Amount from the sender's side of the channel and returns
// the new HTLC id.
func (e *Engine) Create(req Request) (id uint64, err error) {
	defer func() { e.observe("create", err) }()
	if err := e.ready(); err != nil {
		return 0, err
	}
	now := e.Now()
	var created *types.HTLC
	err = e.state.Update(func(tx *state.Tx) error {
		h, err := e.CreateTx(tx, req, now)
		created = h
		return err
	})
	if err != nil {
		return 0, err
	}
	e.Announce(created)
	return created.ID, nil
}

// CreateTx validates and escrows an HTLC inside tx. Callers composing larger
// operations must call Announce once tx commits.
func (e *Engine) CreateTx(tx *state.Tx, req Request, now uint64) (*types.HTLC, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if !types.IsPositive(req.Amount) {
		return nil, pcnerrors.ErrInvalidAmount
	}
	ch, err := channels.LoadChannel(tx, req.ChannelID)
	if err != nil {
		return nil, err
	}
	if ch.State != types.ChannelOpen {
		return nil, pcnerrors.ErrChannelClosed
	}
	counterparty, ok := ch.Counterparty(req.Sender)
	if !ok {
		return nil, pcnerrors.ErrNotParticipant
	}
	if req.Receiver != counterparty {
		return nil, pcnerrors.ErrInvalidReceiver
	}
	if req.Timelock <= now {
		return nil, pcnerrors.ErrInvalidTimelock
	}
	if err := e.channels.Debit(tx, ch, req.Sender, req.Amount, now); err != nil {
		return nil, err
	}
	id, err := tx.NextSequence(state.SeqHTLC)
	if err != nil {
		return nil, err
	}
	h := &types.HTLC{
		ID:        id,
		ChannelID: req.ChannelID,
		Sender:    req.Sender,
		Receiver:  req.Receiver,
		Amount:    types.CloneAmount(req.Amount),
		Hashlock:  req.Hashlock,
		Timelock:  req.Timelock,
		CreatedAt: now,
	}
	if err := tx.HTLCPut(h); err != nil {
		return nil, err
	}
	return h, nil
}

// Announce emits the creation event for an HTLC committed through CreateTx.
func (e *Engine) Announce(h *types.HTLC) {
	if h == nil {
		return
	}
	e.publishPending()
	e.emit(NewCreatedEvent(h))
	e.logger.Info("htlc created",
		"htlc", h.ID,
		"channel", h.ChannelID,
		"amount", h.Amount.String(),
		"timelock", h.Timelock)
}

// Fulfill claims the HTLC for its receiver by revealing the preimage of the
// hashlock before the timelock.
func (e *Engine) Fulfill(caller [20]byte, id uint64, preimage []byte) (err error) {
	defer func() { e.observe("fulfill", err) }()
	if err := e.ready(); err != nil {
		return err
	}
	now := e.Now()
	var claimed *types.HTLC
	err = e.state.Update(func(tx *state.Tx) error {
		h, err := loadHTLC(tx, id)
		if err != nil {
			return err
		}
		if !h.Pending() {
			return pcnerrors.ErrHTLCResolved
		}
		if now >= h.Timelock {
			return pcnerrors.ErrTimelockExpired
		}
		if caller != h.Receiver {
			return pcnerrors.ErrUnauthorized
		}
		if e.hasher.Sum(preimage) != h.Hashlock {
			return pcnerrors.ErrWrongPreimage
		}
		if err := e.resolve(tx, h, h.Receiver, now); err != nil {
			return err
		}
		h.Preimage = append([]byte(nil), preimage...)
		h.Claimed = true
		if err := tx.HTLCPut(h); err != nil {
			return err
		}
		claimed = h
		return nil
	})
	if err != nil {
		return err
	}
	e.publishPending()
	e.emit(NewClaimedEvent(claimed))
	e.logger.Info("htlc claimed", "htlc", id, "channel", claimed.ChannelID)
	return nil
}

// Refund returns an expired HTLC to its sender.
func (e *Engine) Refund(caller [20]byte, id uint64) (err error) {
	defer func() { e.observe("refund", err) }()
	if err := e.ready(); err != nil {
		return err
	}
	now := e.Now()
	var refunded *types.HTLC
	err = e.state.Update(func(tx *state.Tx) error {
		h, err := loadHTLC(tx, id)
		if err != nil {
			return err
		}
		if !h.Pending() {
			return pcnerrors.ErrHTLCResolved
		}
		if now < h.Timelock {
			return pcnerrors.ErrTimelockNotExpired
		}
		if caller != h.Sender {
			return pcnerrors.ErrUnauthorized
		}
		if err := e.resolve(tx, h, h.Sender, now); err != nil {
			return err
		}
		h.Refunded = true
		if err := tx.HTLCPut(h); err != nil {
			return err
		}
		refunded = h
		return nil
	})
	if err != nil {
		return err
	}
	e.publishPending()
	e.emit(NewRefundedEvent(refunded))
	e.logger.Info("htlc refunded", "htlc", id, "channel", refunded.ChannelID)
	return nil
}

// resolve credits the escrowed amount to beneficiary. HTLCs resolve while the
// channel is open or closing; settlement returns anything still pending.
func (e *Engine) resolve(tx *state.Tx, h *types.HTLC, beneficiary [20]byte, now uint64) error {
	ch, err := channels.LoadChannel(tx, h.ChannelID)
	if err != nil {
		return err
	}
	if ch.State == types.ChannelSettled {
		return pcnerrors.ErrChannelClosed
	}
	return e.channels.Credit(tx, ch, beneficiary, h.Amount, now)
}

func loadHTLC(tx *state.Tx, id uint64) (*types.HTLC, error) {
	h, ok, err := tx.HTLCGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("htlc %d: %w", id, pcnerrors.ErrHTLCNotFound)
	}
	return h, nil
}
