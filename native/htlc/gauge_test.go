package htlc

import (
	"errors"
	"math/big"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"pcnchain/core/state"
)

func pendingGauge(t *testing.T) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "pcn_htlc_pending" {
			require.Len(t, mf.GetMetric(), 1)
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatal("pcn_htlc_pending not registered")
	return 0
}

func TestPendingGaugeFollowsCommittedState(t *testing.T) {
	f := newFixture(t)
	secret := []byte("gauge")

	claim := f.create(5, secret, 50)
	refund := f.create(5, []byte("other"), 20)
	require.Equal(t, float64(2), pendingGauge(t))

	// An HTLC escrowed inside a transaction that rolls back is never counted.
	abort := errors.New("abort")
	err := f.manager.Update(func(tx *state.Tx) error {
		_, err := f.engine.CreateTx(tx, Request{
			ChannelID: f.channel,
			Sender:    f.p1,
			Receiver:  f.p2,
			Amount:    big.NewInt(5),
			Hashlock:  f.engine.Hashlock(secret),
			Timelock:  50,
		}, f.tick)
		require.NoError(t, err)
		return abort
	})
	require.ErrorIs(t, err, abort)
	require.Equal(t, float64(2), pendingGauge(t))
	pending, err := f.engine.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 2)

	require.NoError(t, f.engine.Fulfill(f.p2, claim, secret))
	require.Equal(t, float64(1), pendingGauge(t))

	f.tick = 20
	require.NoError(t, f.engine.Refund(f.p1, refund))
	require.Zero(t, pendingGauge(t))
}
