package registry

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"pcnchain/core/events"
	pcnerrors "pcnchain/core/errors"
	"pcnchain/core/state"
	"pcnchain/storage"
)

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func newTestRegistry(t *testing.T) (*Registry, *state.Manager, *events.Recorder) {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	rec := &events.Recorder{}
	r := NewRegistry()
	r.SetState(manager)
	r.SetEmitter(rec)
	r.SetNowFunc(func() uint64 { return 42 })
	return r, manager, rec
}

func TestRegisterAssignsSequence(t *testing.T) {
	r, _, rec := newTestRegistry(t)

	first, err := r.Register(newTestAddress(0x01))
	require.NoError(t, err)
	second, err := r.Register(newTestAddress(0x02))
	require.NoError(t, err)

	require.Equal(t, uint64(1), first.Seq)
	require.Equal(t, uint64(2), second.Seq)
	require.True(t, first.Active)
	require.Equal(t, uint64(42), first.RegisteredAt)
	require.Equal(t, []string{EventTypeRegistered, EventTypeRegistered}, rec.Types())

	_, err = r.Register(newTestAddress(0x01))
	require.ErrorIs(t, err, pcnerrors.ErrAlreadyRegistered)
	require.ErrorIs(t, err, pcnerrors.ErrState)

	_, err = r.Register([20]byte{})
	require.ErrorIs(t, err, pcnerrors.ErrInvalidParticipant)

	count, err := r.Count()
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestDeregisterKeepsRecord(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	addr := newTestAddress(0x03)
	_, err := r.Register(addr)
	require.NoError(t, err)

	require.NoError(t, r.Deregister(addr))
	active, err := r.IsActive(addr)
	require.NoError(t, err)
	require.False(t, active)
	require.ErrorIs(t, r.Deregister(addr), pcnerrors.ErrInvalidState)

	p, err := r.Participant(addr)
	require.NoError(t, err)
	require.Equal(t, uint64(1), p.Seq)

	again, err := r.Register(addr)
	require.NoError(t, err)
	require.Equal(t, uint64(1), again.Seq)
	require.True(t, again.Active)

	unknown, err := r.IsActive(newTestAddress(0x09))
	require.NoError(t, err)
	require.False(t, unknown)
	require.ErrorIs(t, r.Deregister(newTestAddress(0x09)), pcnerrors.ErrParticipantNotFound)
}

func TestSetReputationBounds(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	addr := newTestAddress(0x04)
	_, err := r.Register(addr)
	require.NoError(t, err)

	require.NoError(t, r.SetReputation(addr, 750))
	require.ErrorIs(t, r.SetReputation(addr, MaxReputation+1), pcnerrors.ErrReputationOutOfRange)
	require.ErrorIs(t, r.SetReputation(newTestAddress(0x05), 1), pcnerrors.ErrNotFound)

	p, err := r.Participant(addr)
	require.NoError(t, err)
	require.Equal(t, uint32(750), p.Reputation)
}

func TestBookkeepingSaturates(t *testing.T) {
	r, manager, _ := newTestRegistry(t)
	addr := newTestAddress(0x06)
	_, err := r.Register(addr)
	require.NoError(t, err)

	require.NoError(t, manager.Update(func(tx *state.Tx) error {
		require.NoError(t, r.RequireActive(tx, addr))
		require.ErrorIs(t, r.RequireActive(tx, newTestAddress(0x07)), pcnerrors.ErrNotRegistered)
		require.NoError(t, r.RecordChannelOpened(tx, addr, big.NewInt(50), 50))
		require.NoError(t, r.RecordDeposit(tx, addr, big.NewInt(5), 51))
		return r.RecordChannelClosed(tx, addr, big.NewInt(80), 52)
	}))

	p, err := r.Participant(addr)
	require.NoError(t, err)
	require.Equal(t, uint64(0), p.ChannelCount)
	require.Equal(t, int64(0), p.Capacity.Int64())
	require.Equal(t, uint64(52), p.LastActivity)

	require.NoError(t, manager.Update(func(tx *state.Tx) error {
		return r.RecordChannelClosed(tx, addr, big.NewInt(1), 53)
	}))
	p, err = r.Participant(addr)
	require.NoError(t, err)
	require.Equal(t, uint64(0), p.ChannelCount)
}

func TestTouchOnlyAdvancesActivity(t *testing.T) {
	r, manager, _ := newTestRegistry(t)
	addr := newTestAddress(0x08)
	_, err := r.Register(addr)
	require.NoError(t, err)

	require.NoError(t, manager.Update(func(tx *state.Tx) error {
		require.NoError(t, r.RecordChannelOpened(tx, addr, big.NewInt(40), 60))
		require.NoError(t, r.Touch(tx, addr, 70))
		require.ErrorIs(t, r.Touch(tx, newTestAddress(0x09), 70), pcnerrors.ErrParticipantNotFound)
		return r.Touch(tx, addr, 65)
	}))

	p, err := r.Participant(addr)
	require.NoError(t, err)
	require.Equal(t, uint64(70), p.LastActivity)
	require.Equal(t, uint64(1), p.ChannelCount)
	require.Equal(t, int64(40), p.Capacity.Int64())
}

func TestParticipantsInRegistrationOrder(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	for _, fill := range []byte{0x0c, 0x0a, 0x0b} {
		_, err := r.Register(newTestAddress(fill))
		require.NoError(t, err)
	}
	list, err := r.Participants()
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, newTestAddress(0x0c), list[0].Address)
	require.Equal(t, newTestAddress(0x0b), list[2].Address)
}
