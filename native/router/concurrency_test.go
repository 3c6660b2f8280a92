package router

import (
	"math/big"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"pcnchain/native/htlc"
	"pcnchain/native/liquidity"
)

// TestConcurrentEscrowRebalanceAndTopology runs HTLC creation, rebalancing
// around a triangle and channel opens in parallel against one store.
func TestConcurrentEscrowRebalanceAndTopology(t *testing.T) {
	n := newNetwork(t)
	a, b, c := n.participant(0x0a), n.participant(0x0b), n.participant(0x0c)
	ab := n.connect(a, b, 500, 500)
	ac := n.connect(a, c, 500, 500)
	bc := n.connect(b, c, 500, 500)

	pool := liquidity.NewEngine()
	pool.SetState(n.manager)
	pool.SetChannels(n.channels)
	pool.SetNowFunc(func() uint64 { return n.tick })

	const (
		creators   = 4
		perCreator = 20
		rebalances = 25
		openers    = 8
	)
	joiners := make([][20]byte, openers)
	for i := range joiners {
		joiners[i] = n.participant(byte(0x20 + i))
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		ids  []uint64
		errs = make(chan error, creators*perCreator*2+rebalances*2+openers*3)
	)
	escrow := func(channelID uint64, sender, receiver [20]byte, worker int) {
		defer wg.Done()
		for i := 0; i < perCreator; i++ {
			secret := []byte(strconv.Itoa(worker) + "/" + strconv.Itoa(i))
			id, err := n.htlcs.Create(htlc.Request{
				ChannelID: channelID,
				Sender:    sender,
				Receiver:  receiver,
				Amount:    big.NewInt(1),
				Hashlock:  n.htlcs.Hashlock(secret),
				Timelock:  n.tick + 50,
			})
			if err != nil {
				errs <- err
				continue
			}
			mu.Lock()
			ids = append(ids, id)
			mu.Unlock()
		}
	}
	for w := 0; w < creators; w++ {
		wg.Add(2)
		go escrow(ab, a, b, w)
		go escrow(bc, b, c, creators+w)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < rebalances; i++ {
			if _, err := pool.Rebalance(a, ab, ac, big.NewInt(3)); err != nil {
				errs <- err
			}
			if _, err := pool.Rebalance(a, ac, ab, big.NewInt(3)); err != nil {
				errs <- err
			}
		}
	}()

	for _, joiner := range joiners {
		wg.Add(1)
		go func(joiner [20]byte) {
			defer wg.Done()
			if _, err := n.channels.Open(joiner, a, big.NewInt(10)); err != nil {
				errs <- err
			}
			_ = n.router.Neighbours(a)
			if _, err := n.router.FindRoute(a, b, big.NewInt(1)); err != nil {
				errs <- err
			}
			if _, err := n.router.RouteExists(joiner, a, big.NewInt(1)); err != nil {
				errs <- err
			}
		}(joiner)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.Len(t, ids, creators*perCreator*2)
	seen := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		_, dup := seen[id]
		require.False(t, dup, "htlc id %d issued twice", id)
		seen[id] = struct{}{}
	}

	pending, err := n.htlcs.Pending()
	require.NoError(t, err)
	require.Len(t, pending, len(ids))
	escrowed := make(map[uint64]*big.Int)
	for _, h := range pending {
		if escrowed[h.ChannelID] == nil {
			escrowed[h.ChannelID] = big.NewInt(0)
		}
		escrowed[h.ChannelID].Add(escrowed[h.ChannelID], h.Amount)
	}
	for _, id := range []uint64{ab, ac, bc} {
		ch, err := n.channels.Channel(id)
		require.NoError(t, err)
		held := new(big.Int).Add(ch.Balance1, ch.Balance2)
		if e := escrowed[id]; e != nil {
			held.Add(held, e)
		}
		require.Zero(t, held.Cmp(ch.Capacity), "channel %d holds %s of %s", id, held, ch.Capacity)
	}

	// Rebalances ran in matched pairs, so only escrow moved the sides.
	require.Equal(t, int64(500-creators*perCreator), n.side(ab, a))
	require.Equal(t, int64(500), n.side(ab, b))
	require.Equal(t, int64(500), n.side(ac, a))
	require.Equal(t, int64(500-creators*perCreator), n.side(bc, b))
	require.Equal(t, int64(500), n.side(bc, c))

	require.Len(t, n.router.Neighbours(a), 2+openers)
	for _, joiner := range joiners {
		require.Len(t, n.router.Neighbours(joiner), 1)
	}
}
