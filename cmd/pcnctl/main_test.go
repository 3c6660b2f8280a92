package main

import (
	"bytes"
	"encoding/hex"
	"math/big"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"pcnchain/core/state"
	"pcnchain/crypto"
	"pcnchain/native/channels"
	"pcnchain/native/registry"
	"pcnchain/storage"
)

func TestKeygenAndSignProof(t *testing.T) {
	t.Setenv(defaultPassEnv, "correct horse")
	keystore := filepath.Join(t.TempDir(), "alice.keystore")

	var out bytes.Buffer
	require.NoError(t, dispatch("keygen", []string{"-keystore", keystore}, &out))
	signer, err := crypto.ParseAddress(strings.TrimSpace(out.String()))
	require.NoError(t, err)

	require.Error(t, dispatch("keygen", []string{"-keystore", keystore}, &out))

	manager := state.NewManager(storage.NewMemDB())
	reg := registry.NewRegistry()
	reg.SetState(manager)
	engine := channels.NewEngine()
	engine.SetState(manager)
	engine.SetRegistry(reg)
	engine.SetVerifier(crypto.ECDSAVerifier{})
	engine.SetConfig(channels.Config{MinDeposit: big.NewInt(1), DisputeTimeout: 10})

	counterparty := crypto.Address([20]byte{0x0b})
	for _, addr := range []crypto.Address{signer, counterparty} {
		_, err := reg.Register(addr)
		require.NoError(t, err)
		require.NoError(t, manager.Update(func(tx *state.Tx) error {
			return tx.Credit(addr, big.NewInt(100))
		}))
	}
	id, err := engine.Open(signer, counterparty, big.NewInt(80))
	require.NoError(t, err)
	require.NoError(t, engine.Join(counterparty, id, big.NewInt(20)))

	out.Reset()
	require.NoError(t, dispatch("sign-proof", []string{
		"-keystore", keystore,
		"-channel", strconv.FormatUint(id, 10),
		"-balance", "75",
		"-nonce", "1",
	}, &out))
	sig, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(out.String()), "0x"))
	require.NoError(t, err)

	// The counterparty submits the signer's attestation of its own side.
	require.NoError(t, engine.SubmitBalanceProof(counterparty, id, big.NewInt(75), 1, sig))
	proof, err := engine.Proof(id, signer)
	require.NoError(t, err)
	require.Equal(t, int64(75), proof.Balance.Int64())
	require.Equal(t, [20]byte(counterparty), proof.SubmittedBy)

	out.Reset()
	require.NoError(t, dispatch("sign-proof", []string{
		"-keystore", keystore,
		"-channel", strconv.FormatUint(id, 10),
		"-participant", signer.String(),
		"-balance", "70",
		"-nonce", "2",
	}, &out))
	sig, err = hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(out.String()), "0x"))
	require.NoError(t, err)
	require.NoError(t, engine.SubmitBalanceProof(counterparty, id, big.NewInt(70), 2, sig))

	err = dispatch("sign-proof", []string{
		"-keystore", keystore,
		"-channel", strconv.FormatUint(id, 10),
		"-participant", counterparty.String(),
		"-balance", "10",
		"-nonce", "3",
	}, &out)
	require.ErrorContains(t, err, "does not match keystore address")
}

func TestHashlockMatchesHasher(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, dispatch("hashlock", []string{"-preimage", "0x0102", "-hash", "blake3"}, &out))
	want := crypto.Blake3.Sum([]byte{0x01, 0x02})
	require.Equal(t, "0x"+hex.EncodeToString(want[:]), strings.TrimSpace(out.String()))

	require.Error(t, dispatch("hashlock", nil, &out))
	require.Error(t, dispatch("bogus", nil, &out))
}

func TestSignCloseValidatesAmounts(t *testing.T) {
	err := dispatch("sign-close", []string{"-channel", "1", "-balance1", "x", "-balance2", "1"}, &bytes.Buffer{})
	require.ErrorContains(t, err, "balance1")
}
