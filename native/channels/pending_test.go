package channels

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"pcnchain/core/state"
	"pcnchain/storage"
)

type unreadableDB struct {
	storage.Database
}

func (unreadableDB) Get([]byte) ([]byte, error) { return nil, errors.New("disk offline") }

func TestPendingCountLogsReadFailure(t *testing.T) {
	var buf bytes.Buffer
	e := NewEngine()
	e.SetState(state.NewManager(unreadableDB{Database: storage.NewMemDB()}))
	e.SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	require.Zero(t, e.pendingCount())
	require.Contains(t, buf.String(), "pending htlc count unavailable")
	require.Contains(t, buf.String(), "disk offline")
}
