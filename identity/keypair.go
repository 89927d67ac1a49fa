package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/curve25519"
)

// PublicKeySize is the size, in bytes, of a communication public key: a
// Curve25519 Diffie-Hellman public key used for Noise_K handshakes followed
// by an Ed25519 verification key used for relay login challenges. Both are
// derived from one 32-byte seed and travel together as a single opaque
// identity: the public half is the stable identity of a user.
const PublicKeySize = 64

// KeyPair is a communication key pair: a Curve25519 key pair used for Noise_K
// handshakes, plus an Ed25519 signer derived from the same private seed and
// used to authenticate relay login challenges (see Sign/Verify).
type KeyPair struct {
	// Public is the 64-byte combined public identity: bytes [0:32] are the
	// Curve25519 DH public key, bytes [32:64] are the Ed25519 verification key.
	Public [PublicKeySize]byte
	// Private is the 32-byte seed both halves of Public are derived from.
	Private [32]byte
}

// DHPublicKey returns the Curve25519 half of the public identity, used to
// build a cipher.Cipher.
func (kp *KeyPair) DHPublicKey() []byte {
	return append([]byte(nil), kp.Public[:32]...)
}

// VerifyingKey returns the Ed25519 half of the public identity, used to
// verify Sign.
func (kp *KeyPair) VerifyingKey() []byte {
	return append([]byte(nil), kp.Public[32:]...)
}

// GenerateKeyPair creates a new random communication key pair.
func GenerateKeyPair() (*KeyPair, error) {
	logger := logrus.WithFields(logrus.Fields{"function": "GenerateKeyPair", "package": "identity"})

	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		logger.WithError(err).Error("failed to read random seed")
		return nil, fmt.Errorf("generate key pair: %w", err)
	}

	kp, err := FromSecretKey(seed)
	ZeroBytes(seed[:])
	if err != nil {
		return nil, err
	}

	logger.WithField("public_key_preview", fmt.Sprintf("%x", kp.Public[:8])).Debug("generated communication key pair")
	return kp, nil
}

// FromSecretKey derives a key pair from an existing 32-byte seed: the
// Curve25519 public half is derived via clamped scalar multiplication (RFC
// 7748), the Ed25519 public half via ed25519.NewKeyFromSeed on the same
// unclamped seed.
func FromSecretKey(seed [32]byte) (*KeyPair, error) {
	if isZeroKey(seed) {
		return nil, errors.New("identity: secret key is all zeros")
	}

	var clamped [32]byte
	copy(clamped[:], seed[:])
	clamped[0] &= 248
	clamped[31] &= 127
	clamped[31] |= 64

	var dhPublic [32]byte
	curve25519.ScalarBaseMult(&dhPublic, &clamped)
	ZeroBytes(clamped[:])

	signer := ed25519.NewKeyFromSeed(seed[:])
	edPublic := signer.Public().(ed25519.PublicKey)

	var kp KeyPair
	copy(kp.Public[:32], dhPublic[:])
	copy(kp.Public[32:], edPublic)
	kp.Private = seed

	return &kp, nil
}

// Sign signs msg (typically a relay login challenge) using the Ed25519
// signer derived from the key pair's private seed.
func (kp *KeyPair) Sign(msg []byte) []byte {
	signer := ed25519.NewKeyFromSeed(kp.Private[:])
	return ed25519.Sign(signer, msg)
}

// Verify checks a signature produced by KeyPair.Sign against the Ed25519
// half of a communication public key.
func Verify(verifyingKey, msg, signature []byte) bool {
	if len(verifyingKey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(verifyingKey, msg, signature)
}

// DHPublicKey extracts the 32-byte Curve25519 half from a 64-byte combined
// communication public key, as carried over the wire by relay.PublicKey and
// config address-book entries. It fails if pub isn't PublicKeySize bytes.
func DHPublicKey(pub []byte) ([]byte, error) {
	if len(pub) != PublicKeySize {
		return nil, fmt.Errorf("identity: public key must be %d bytes, got %d", PublicKeySize, len(pub))
	}
	return append([]byte(nil), pub[:32]...), nil
}

func isZeroKey(key [32]byte) bool {
	for _, b := range key {
		if b != 0 {
			return false
		}
	}
	return true
}
