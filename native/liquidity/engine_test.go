package liquidity

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"pcnchain/core/events"
	pcnerrors "pcnchain/core/errors"
	"pcnchain/core/state"
	"pcnchain/core/types"
	"pcnchain/crypto"
	"pcnchain/native/channels"
	"pcnchain/native/registry"
	"pcnchain/storage"
)

type fixture struct {
	t        *testing.T
	manager  *state.Manager
	registry *registry.Registry
	channels *channels.Engine
	engine   *Engine
	events   *events.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{t: t, events: &events.Recorder{}}
	now := func() uint64 { return 7 }
	f.manager = state.NewManager(storage.NewMemDB())
	f.registry = registry.NewRegistry()
	f.registry.SetState(f.manager)
	f.registry.SetNowFunc(now)

	f.channels = channels.NewEngine()
	f.channels.SetState(f.manager)
	f.channels.SetRegistry(f.registry)
	f.channels.SetVerifier(crypto.AcceptAll{})
	f.channels.SetNowFunc(now)
	f.channels.SetConfig(channels.Config{MinDeposit: big.NewInt(1), DisputeTimeout: 3, DefaultFeeRateBps: 10})

	f.engine = NewEngine()
	f.engine.SetState(f.manager)
	f.engine.SetChannels(f.channels)
	f.engine.SetEmitter(f.events)
	f.engine.SetNowFunc(now)
	f.engine.SetMaxFeeRate(500)
	return f
}

func (f *fixture) participant(fill byte) [20]byte {
	f.t.Helper()
	addr := [20]byte{fill}
	_, err := f.registry.Register(addr)
	require.NoError(f.t, err)
	require.NoError(f.t, f.manager.Update(func(tx *state.Tx) error {
		return tx.Credit(addr, big.NewInt(1_000))
	}))
	return addr
}

func (f *fixture) connect(a, b [20]byte, da, db int64) uint64 {
	f.t.Helper()
	id, err := f.channels.Open(a, b, big.NewInt(da))
	require.NoError(f.t, err)
	require.NoError(f.t, f.channels.Join(b, id, big.NewInt(db)))
	return id
}

func (f *fixture) channel(id uint64) *types.Channel {
	f.t.Helper()
	ch, err := f.channels.Channel(id)
	require.NoError(f.t, err)
	sum := new(big.Int).Add(ch.Balance1, ch.Balance2)
	require.Zero(f.t, sum.Cmp(ch.Capacity))
	return ch
}

func (f *fixture) edgeCapacity(from, to [20]byte) int64 {
	f.t.Helper()
	edge, err := f.channels.Edge(from, to)
	require.NoError(f.t, err)
	return edge.Capacity.Int64()
}

func TestRebalanceAroundTriangle(t *testing.T) {
	f := newFixture(t)
	me, x, y := f.participant(0x01), f.participant(0x02), f.participant(0x03)
	a := f.connect(me, x, 80, 20)
	b := f.connect(me, y, 20, 80)
	c := f.connect(x, y, 50, 50)

	result, err := f.engine.Rebalance(me, a, b, big.NewInt(30))
	require.NoError(t, err)
	require.Equal(t, c, result.Cycle)

	chA, chB, chC := f.channel(a), f.channel(b), f.channel(c)
	require.Equal(t, int64(50), chA.BalanceOf(me).Int64())
	require.Equal(t, int64(50), chA.BalanceOf(x).Int64())
	require.Equal(t, int64(50), chB.BalanceOf(me).Int64())
	require.Equal(t, int64(50), chB.BalanceOf(y).Int64())
	require.Equal(t, int64(20), chC.BalanceOf(x).Int64())
	require.Equal(t, int64(80), chC.BalanceOf(y).Int64())

	require.Equal(t, int64(50), f.edgeCapacity(me, x))
	require.Equal(t, int64(50), f.edgeCapacity(me, y))
	require.Equal(t, int64(20), f.edgeCapacity(x, y))

	require.Equal(t, []string{EventTypeRebalanced}, f.events.Types())
}

func TestRebalanceRequiresCycle(t *testing.T) {
	f := newFixture(t)
	me, x, y := f.participant(0x01), f.participant(0x02), f.participant(0x03)
	a := f.connect(me, x, 60, 10)
	b := f.connect(y, me, 40, 10)

	_, err := f.engine.Rebalance(me, a, b, big.NewInt(10))
	require.ErrorIs(t, err, pcnerrors.ErrNoLiquidityCycle)
	require.ErrorIs(t, err, pcnerrors.ErrRoute)
	require.Equal(t, int64(60), f.channel(a).BalanceOf(me).Int64())
	require.Equal(t, int64(10), f.channel(b).BalanceOf(me).Int64())

	c := f.connect(x, y, 10, 10)
	require.NoError(t, f.channels.InitiateClose(x, c))
	_, err = f.engine.Rebalance(me, a, b, big.NewInt(10))
	require.ErrorIs(t, err, pcnerrors.ErrNoLiquidityCycle)
	require.Empty(t, f.events.Types())
}

func TestRebalanceValidation(t *testing.T) {
	f := newFixture(t)
	me, x, y := f.participant(0x01), f.participant(0x02), f.participant(0x03)
	a := f.connect(me, x, 30, 30)
	b := f.connect(me, y, 30, 30)
	f.connect(x, y, 5, 5)

	_, err := f.engine.Rebalance(me, a, a, big.NewInt(1))
	require.ErrorIs(t, err, pcnerrors.ErrInvalidRoute)
	_, err = f.engine.Rebalance(me, a, b, big.NewInt(0))
	require.ErrorIs(t, err, pcnerrors.ErrInvalidAmount)
	_, err = f.engine.Rebalance(x, a, b, big.NewInt(1))
	require.ErrorIs(t, err, pcnerrors.ErrNotParticipant)
	_, err = f.engine.Rebalance(me, a, b, big.NewInt(31))
	require.ErrorIs(t, err, pcnerrors.ErrInsufficientFunds)
	// The cycle channel cannot carry the compensating shift.
	_, err = f.engine.Rebalance(me, a, b, big.NewInt(6))
	require.ErrorIs(t, err, pcnerrors.ErrInsufficientFunds)
	require.Equal(t, int64(30), f.channel(a).BalanceOf(me).Int64())
	require.Equal(t, int64(30), f.channel(b).BalanceOf(me).Int64())

	require.NoError(t, f.channels.InitiateClose(me, b))
	_, err = f.engine.Rebalance(me, a, b, big.NewInt(1))
	require.ErrorIs(t, err, pcnerrors.ErrChannelClosed)
}

func TestFeeRates(t *testing.T) {
	f := newFixture(t)
	s, via, r := f.participant(0x01), f.participant(0x02), f.participant(0x03)
	f.connect(s, via, 100, 100)
	second := f.connect(via, r, 100, 100)

	rate, err := f.engine.FeeRate(via, r)
	require.NoError(t, err)
	require.Equal(t, uint32(10), rate)

	require.ErrorIs(t, f.engine.SetFeeRate(via, second, 501), pcnerrors.ErrFeeRateOutOfRange)
	require.ErrorIs(t, f.engine.SetFeeRate(s, second, 50), pcnerrors.ErrNotParticipant)
	require.NoError(t, f.engine.SetFeeRate(via, second, 250))

	rate, err = f.engine.FeeRate(via, r)
	require.NoError(t, err)
	require.Equal(t, uint32(250), rate)
	reverse, err := f.engine.FeeRate(r, via)
	require.NoError(t, err)
	require.Equal(t, uint32(10), reverse)

	fee, err := f.engine.QuoteFee([][20]byte{s, via, r}, big.NewInt(1_000))
	require.NoError(t, err)
	require.Equal(t, int64(25), fee.Int64())

	direct, err := f.engine.QuoteFee([][20]byte{s, via}, big.NewInt(1_000))
	require.NoError(t, err)
	require.Zero(t, direct.Sign())

	_, err = f.engine.QuoteFee([][20]byte{s, r, {0x09}}, big.NewInt(1_000))
	require.ErrorIs(t, err, pcnerrors.ErrEdgeNotFound)
	_, err = f.engine.FeeRate(s, r)
	require.ErrorIs(t, err, pcnerrors.ErrEdgeNotFound)
	require.Equal(t, []string{EventTypeFeeRateUpdated}, f.events.Types())

	// Balance updates keep the advertised rate.
	require.NoError(t, f.channels.AddFunds(via, second, big.NewInt(5)))
	rate, err = f.engine.FeeRate(via, r)
	require.NoError(t, err)
	require.Equal(t, uint32(250), rate)
}
