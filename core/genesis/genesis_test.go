package genesis

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"pcnchain/core/state"
	"pcnchain/crypto"
	"pcnchain/native/registry"
	"pcnchain/storage"
)

func writeSpec(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "genesis.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadSpecValidates(t *testing.T) {
	alice := crypto.Address([20]byte{0x0a}).String()
	bob := crypto.Address([20]byte{0x0b}).Hex()

	path := writeSpec(t, `{"networkName":"pcn-test","alloc":{"`+alice+`":"500","`+bob+`":"25"},"participants":["`+alice+`"]}`)
	spec, err := LoadSpec(path)
	require.NoError(t, err)
	allocs := spec.Allocations()
	require.Len(t, allocs, 2)
	require.Equal(t, [20]byte{0x0a}, allocs[0].Address)
	require.Equal(t, int64(500), allocs[0].Amount.Int64())
	require.Equal(t, [][20]byte{{0x0a}}, spec.ParticipantAddresses())

	cases := map[string]string{
		"unknown field":   `{"chainId":1}`,
		"bad address":     `{"alloc":{"nope":"1"}}`,
		"zero amount":     `{"alloc":{"` + alice + `":"0"}}`,
		"bad amount":      `{"alloc":{"` + alice + `":"ten"}}`,
		"dup participant": `{"participants":["` + alice + `","` + alice + `"]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadSpec(writeSpec(t, body))
			require.Error(t, err)
		})
	}
}

func TestApplyCreditsOnce(t *testing.T) {
	manager := state.NewManager(storage.NewMemDB())
	reg := registry.NewRegistry()
	reg.SetState(manager)
	alice := crypto.Address([20]byte{0x0a}).String()
	spec := &Spec{Alloc: map[string]string{alice: "500"}, Participants: []string{alice}}
	require.NoError(t, spec.Validate())

	applied, err := Apply(manager, reg, spec)
	require.NoError(t, err)
	require.True(t, applied)

	require.NoError(t, reg.Deregister([20]byte{0x0a}))

	applied, err = Apply(manager, reg, spec)
	require.NoError(t, err)
	require.False(t, applied)

	require.NoError(t, manager.View(func(tx *state.Tx) error {
		balance, err := tx.BalanceOf([20]byte{0x0a})
		require.NoError(t, err)
		require.Zero(t, balance.Cmp(big.NewInt(500)))
		return nil
	}))
	active, err := reg.IsActive([20]byte{0x0a})
	require.NoError(t, err)
	require.False(t, active)
}
