package crypto

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)
	other, err := GeneratePrivateKey()
	require.NoError(t, err)

	msg := []byte("balance proof")
	sig, err := key.Sign(msg)
	require.NoError(t, err)

	v := ECDSAVerifier{}
	require.True(t, v.Verify(key.Address(), msg, sig))
	require.False(t, v.Verify(other.Address(), msg, sig))
	require.False(t, v.Verify(key.Address(), []byte("tampered"), sig))
	require.False(t, v.Verify(key.Address(), msg, sig[:10]))

	legacy := append([]byte(nil), sig...)
	legacy[64] += 27
	require.True(t, v.Verify(key.Address(), msg, legacy))
}

func TestAcceptAllVerifier(t *testing.T) {
	require.True(t, AcceptAll{}.Verify([20]byte{}, nil, nil))
	require.IsType(t, AcceptAll{}, VerifierFor(false))
	require.IsType(t, ECDSAVerifier{}, VerifierFor(true))
}

func TestAddressRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)
	addr := key.Address()

	parsed, err := ParseAddress(addr.String())
	require.NoError(t, err)
	require.Equal(t, addr, parsed)

	parsed, err = ParseAddress(addr.Hex())
	require.NoError(t, err)
	require.Equal(t, addr, parsed)

	_, err = ParseAddress("")
	require.Error(t, err)
	_, err = ParseAddress("0x1234")
	require.Error(t, err)
}

func TestHasherByName(t *testing.T) {
	h, err := HasherByName("")
	require.NoError(t, err)
	require.Equal(t, HashKeccak256, h.Name())

	h, err = HasherByName("BLAKE3")
	require.NoError(t, err)
	require.Equal(t, HashBlake3, h.Name())
	require.NotEqual(t, Keccak256.Sum([]byte("x")), h.Sum([]byte("x")))

	_, err = HasherByName("md5")
	require.Error(t, err)
}

func TestKeystoreRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "keys", "operator.json")
	require.NoError(t, SaveToKeystore(path, key, "secret"))

	loaded, err := LoadFromKeystore(path, "secret")
	require.NoError(t, err)
	require.Equal(t, key.Address(), loaded.Address())

	_, err = LoadFromKeystore(path, "wrong")
	require.Error(t, err)
}
