package router

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"pcnchain/core/events"
	pcnerrors "pcnchain/core/errors"
	"pcnchain/core/state"
	"pcnchain/crypto"
	"pcnchain/native/channels"
	"pcnchain/native/htlc"
	"pcnchain/native/registry"
	"pcnchain/storage"
)

type network struct {
	t        *testing.T
	tick     uint64
	manager  *state.Manager
	registry *registry.Registry
	channels *channels.Engine
	htlcs    *htlc.Engine
	router   *Router
	events   *events.Recorder
}

func newNetwork(t *testing.T) *network {
	t.Helper()
	n := &network{t: t, tick: 1_000, events: &events.Recorder{}}
	now := func() uint64 { return n.tick }
	n.manager = state.NewManager(storage.NewMemDB())

	n.registry = registry.NewRegistry()
	n.registry.SetState(n.manager)
	n.registry.SetNowFunc(now)

	n.router = New()
	n.router.SetState(n.manager)
	n.router.SetEmitter(n.events)
	n.router.SetNowFunc(now)
	n.router.SetConfig(Config{DefaultWindow: 100, RelayMargin: 10})

	n.channels = channels.NewEngine()
	n.channels.SetState(n.manager)
	n.channels.SetRegistry(n.registry)
	n.channels.SetVerifier(crypto.AcceptAll{})
	n.channels.SetTopology(n.router)
	n.channels.SetNowFunc(now)
	n.channels.SetConfig(channels.Config{MinDeposit: big.NewInt(1), DisputeTimeout: 5, DefaultFeeRateBps: 100})

	n.htlcs = htlc.NewEngine()
	n.htlcs.SetState(n.manager)
	n.htlcs.SetChannels(n.channels)
	n.htlcs.SetNowFunc(now)
	n.router.SetHTLC(n.htlcs)
	return n
}

func (n *network) participant(fill byte) [20]byte {
	n.t.Helper()
	addr := [20]byte{fill}
	_, err := n.registry.Register(addr)
	require.NoError(n.t, err)
	require.NoError(n.t, n.manager.Update(func(tx *state.Tx) error {
		return tx.Credit(addr, big.NewInt(1_000))
	}))
	return addr
}

func (n *network) connect(a, b [20]byte, da, db int64) uint64 {
	n.t.Helper()
	id, err := n.channels.Open(a, b, big.NewInt(da))
	require.NoError(n.t, err)
	if db > 0 {
		require.NoError(n.t, n.channels.Join(b, id, big.NewInt(db)))
	}
	return id
}

func (n *network) side(id uint64, addr [20]byte) int64 {
	n.t.Helper()
	ch, err := n.channels.Channel(id)
	require.NoError(n.t, err)
	return ch.BalanceOf(addr).Int64()
}

func TestFindRouteDirect(t *testing.T) {
	n := newNetwork(t)
	a, b := n.participant(0x0a), n.participant(0x0b)
	id := n.connect(a, b, 50, 10)

	route, err := n.router.FindRoute(a, b, big.NewInt(50))
	require.NoError(t, err)
	require.Equal(t, []uint64{id}, route.Channels)
	require.Zero(t, route.Fee.Sign())

	_, err = n.router.FindRoute(b, a, big.NewInt(11))
	require.ErrorIs(t, err, pcnerrors.ErrInsufficientFunds)

	exists, err := n.router.RouteExists(b, a, big.NewInt(11))
	require.NoError(t, err)
	require.False(t, exists)

	_, err = n.router.FindRoute(a, a, big.NewInt(1))
	require.ErrorIs(t, err, pcnerrors.ErrSelfPayment)
}

func TestFindRouteTwoHopPrefersEarliestRegistration(t *testing.T) {
	n := newNetwork(t)
	s := n.participant(0x01)
	early := n.participant(0x02)
	late := n.participant(0x03)
	r := n.participant(0x04)

	// Channels through the later-registered intermediary are opened first so
	// registration order, not adjacency order, decides.
	n.connect(s, late, 500, 0)
	n.connect(late, r, 500, 0)
	n.connect(s, early, 500, 0)
	n.connect(early, r, 500, 0)

	route, err := n.router.FindRoute(s, r, big.NewInt(400))
	require.NoError(t, err)
	intermediary, ok := route.Intermediary()
	require.True(t, ok)
	require.Equal(t, early, intermediary)
	require.Equal(t, [][20]byte{s, early, r}, route.Hops)
	// 100 bps on the early -> r edge.
	require.Equal(t, int64(4), route.Fee.Int64())

	require.NoError(t, n.registry.Deregister(early))
	route, err = n.router.FindRoute(s, r, big.NewInt(400))
	require.NoError(t, err)
	require.Equal(t, late, route.Hops[1])
}

func TestFindRouteSkipsIlliquidHops(t *testing.T) {
	n := newNetwork(t)
	s, via1, via2, r := n.participant(0x01), n.participant(0x02), n.participant(0x03), n.participant(0x04)
	n.connect(s, via1, 100, 0)
	n.connect(via1, r, 5, 0) // too small on the second hop
	n.connect(s, via2, 100, 0)
	n.connect(via2, r, 100, 0)

	route, err := n.router.FindRoute(s, r, big.NewInt(50))
	require.NoError(t, err)
	require.Equal(t, via2, route.Hops[1])

	_, err = n.router.FindRoute(s, r, big.NewInt(500))
	require.ErrorIs(t, err, pcnerrors.ErrRouteNotFound)
	require.ErrorIs(t, err, pcnerrors.ErrRoute)

	lonely := n.participant(0x09)
	exists, err := n.router.RouteExists(s, lonely, big.NewInt(1))
	require.NoError(t, err)
	require.False(t, exists)
}

func TestMultiHopPayment(t *testing.T) {
	n := newNetwork(t)
	a, b, c := n.participant(0x0a), n.participant(0x0b), n.participant(0x0c)
	ab := n.connect(a, b, 100, 0)
	bc := n.connect(b, c, 100, 0)
	secret := []byte("route secret")

	route, err := n.router.FindRoute(a, c, big.NewInt(30))
	require.NoError(t, err)
	require.Equal(t, []uint64{ab, bc}, route.Channels)

	start, err := n.router.StartMultiHop(a, c, big.NewInt(30), route.Channels, secret)
	require.NoError(t, err)
	require.Equal(t, b, start.Next)
	require.Equal(t, bc, start.NextChannel)
	require.Equal(t, uint64(1_100), start.Timelock)
	require.Equal(t, n.htlcs.Hashlock(secret), start.Hashlock)
	require.Equal(t, int64(70), n.side(ab, a))

	// An outsider cannot relay a payment it never received.
	_, err = n.router.ContinueRelay(c, ab, bc, c, big.NewInt(30), start.Hashlock, start.Timelock)
	require.ErrorIs(t, err, pcnerrors.ErrInboundNotFound)
	_, err = n.router.ContinueRelay(b, ab, bc, c, big.NewInt(31), start.Hashlock, start.Timelock)
	require.ErrorIs(t, err, pcnerrors.ErrInboundNotFound)
	_, err = n.router.ContinueRelay(b, ab, bc, c, big.NewInt(30), start.Hashlock, start.Timelock+1)
	require.ErrorIs(t, err, pcnerrors.ErrInvalidTimelock)

	relay, err := n.router.ContinueRelay(b, ab, bc, c, big.NewInt(30), start.Hashlock, start.Timelock)
	require.NoError(t, err)
	require.Equal(t, uint64(1_090), relay.Timelock)
	require.Less(t, relay.Timelock, start.Timelock)
	require.Equal(t, int64(70), n.side(bc, b))

	require.ErrorIs(t, n.router.Complete(c, relay.HTLCID, []byte("nope")), pcnerrors.ErrWrongPreimage)
	require.NoError(t, n.router.Complete(c, relay.HTLCID, secret))
	require.Equal(t, int64(30), n.side(bc, c))

	// The intermediary reuses the revealed preimage upstream.
	outbound, err := n.htlcs.Get(relay.HTLCID)
	require.NoError(t, err)
	require.NoError(t, n.htlcs.Fulfill(b, start.HTLCID, outbound.Preimage))
	require.Equal(t, int64(30), n.side(ab, b))

	pending, err := n.htlcs.Pending()
	require.NoError(t, err)
	require.Empty(t, pending)
	require.Equal(t, []string{EventTypePaymentStarted, EventTypeRelayContinued, EventTypePaymentCompleted}, n.events.Types())
}

func TestRelayRejectsExhaustedTimelock(t *testing.T) {
	n := newNetwork(t)
	a, b, c := n.participant(0x0a), n.participant(0x0b), n.participant(0x0c)
	ab := n.connect(a, b, 100, 0)
	bc := n.connect(b, c, 100, 0)

	start, err := n.router.StartMultiHop(a, c, big.NewInt(10), []uint64{ab, bc}, []byte("s"))
	require.NoError(t, err)

	n.tick = start.Timelock - 10
	_, err = n.router.ContinueRelay(b, ab, bc, c, big.NewInt(10), start.Hashlock, start.Timelock)
	require.ErrorIs(t, err, pcnerrors.ErrInvalidTimelock)
	require.Equal(t, int64(100), n.side(bc, b))
}

func TestStartMultiHopValidatesRoute(t *testing.T) {
	n := newNetwork(t)
	a, b, c := n.participant(0x0a), n.participant(0x0b), n.participant(0x0c)
	ab := n.connect(a, b, 100, 0)
	bc := n.connect(b, c, 100, 0)

	_, err := n.router.StartMultiHop(a, c, big.NewInt(10), nil, []byte("s"))
	require.ErrorIs(t, err, pcnerrors.ErrInvalidRoute)
	_, err = n.router.StartMultiHop(a, c, big.NewInt(10), []uint64{ab}, []byte("s"))
	require.ErrorIs(t, err, pcnerrors.ErrInvalidRoute)
	_, err = n.router.StartMultiHop(a, c, big.NewInt(10), []uint64{bc, ab}, []byte("s"))
	require.ErrorIs(t, err, pcnerrors.ErrInvalidRoute)

	direct, err := n.router.StartMultiHop(a, b, big.NewInt(10), []uint64{ab}, []byte("s"))
	require.NoError(t, err)
	require.Equal(t, b, direct.Next)
	require.Zero(t, direct.NextChannel)
	require.NoError(t, n.router.Complete(b, direct.HTLCID, []byte("s")))
}

func TestAdjacencyFollowsTopology(t *testing.T) {
	n := newNetwork(t)
	a, b := n.participant(0x0a), n.participant(0x0b)
	id := n.connect(a, b, 100, 0)
	require.Equal(t, []uint64{id}, n.router.Neighbours(a))
	require.Equal(t, []uint64{id}, n.router.Neighbours(b))

	fresh := New()
	fresh.SetState(n.manager)
	require.NoError(t, fresh.Rebuild())
	require.Equal(t, []uint64{id}, fresh.Neighbours(a))

	require.NoError(t, n.channels.InitiateClose(a, id))
	require.Empty(t, n.router.Neighbours(a))
	require.NoError(t, fresh.Rebuild())
	require.Empty(t, fresh.Neighbours(b))

	_, err := n.router.FindRoute(a, b, big.NewInt(1))
	require.ErrorIs(t, err, pcnerrors.ErrRouteNotFound)
}
