package crypto

import (
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Verifier checks that signature over message was produced by signer.
type Verifier interface {
	Verify(signer [20]byte, message, signature []byte) bool
}

// ECDSAVerifier recovers the secp256k1 public key from a 65-byte signature
// over keccak256(message) and compares the derived address.
type ECDSAVerifier struct{}

// Verify implements Verifier.
func (ECDSAVerifier) Verify(signer [20]byte, message, signature []byte) bool {
	if len(signature) != ethcrypto.SignatureLength {
		return false
	}
	sig := append([]byte(nil), signature...)
	if sig[ethcrypto.RecoveryIDOffset] >= 27 {
		sig[ethcrypto.RecoveryIDOffset] -= 27
	}
	pub, err := ethcrypto.SigToPub(ethcrypto.Keccak256(message), sig)
	if err != nil {
		return false
	}
	return ethcrypto.PubkeyToAddress(*pub) == signer
}

// AcceptAll accepts every signature. It exists for fixtures that carry
// placeholder signatures and must never be enabled on a live network.
type AcceptAll struct{}

// Verify implements Verifier.
func (AcceptAll) Verify([20]byte, []byte, []byte) bool { return true }

// VerifierFor returns the ECDSA verifier when enforce is true and AcceptAll
// otherwise.
func VerifierFor(enforce bool) Verifier {
	if enforce {
		return ECDSAVerifier{}
	}
	return AcceptAll{}
}
