package cipher

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/flynn/noise"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/curve25519"
)

// MaxMessageSize is the largest plaintext this package will encrypt in one
// call. It bounds the size of any single FROST wire message (commitments,
// signing packages, signature shares) that crosses the relay.
const MaxMessageSize = 65535

var (
	// ErrUnknownRecipient is returned by Encrypt when no peer matching the
	// requested recipient was registered with NewCipher.
	ErrUnknownRecipient = errors.New("cipher: unknown recipient")
	// ErrUnknownSender is returned by Decrypt when the claimed sender was not
	// registered with NewCipher.
	ErrUnknownSender = errors.New("cipher: unknown sender")
	// ErrAmbiguousRecipient is returned by Encrypt when no recipient is given
	// and more than one peer is registered.
	ErrAmbiguousRecipient = errors.New("cipher: recipient required, more than one peer registered")
	// ErrMessageTooLarge is returned when a plaintext exceeds MaxMessageSize.
	ErrMessageTooLarge = errors.New("cipher: message exceeds maximum size")
)

var cipherSuite = noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashBLAKE2s)

// halfCipher wraps one one-way Noise_K handshake, used for traffic in a
// single direction with a single peer. The first WriteMessage/ReadMessage
// call performs the handshake and derives the transport cipher state; every
// call after that just encrypts or decrypts under that state, with Noise
// incrementing the nonce internally.
type halfCipher struct {
	mu    sync.Mutex
	hs    *noise.HandshakeState
	state *noise.CipherState
}

func newHalfCipher(staticKeypair noise.DHKey, remoteStatic []byte, initiator bool) (*halfCipher, error) {
	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite:   cipherSuite,
		Random:        rand.Reader,
		Pattern:       noise.HandshakeK,
		Initiator:     initiator,
		StaticKeypair: staticKeypair,
		PeerStatic:    remoteStatic,
	})
	if err != nil {
		return nil, fmt.Errorf("cipher: build handshake state: %w", err)
	}
	return &halfCipher{hs: hs}, nil
}

// clampedKeypair derives a Noise-ready Curve25519 key pair from a raw 32-byte
// seed, applying the RFC 7748 clamping flynn/noise's dh25519 implementation
// expects its caller to have already done (it mirrors GenerateKeypair's
// clamping but for a caller-supplied scalar instead of a random one). This
// must produce the same public key as identity.KeyPair.DHPublicKey for the
// same seed.
func clampedKeypair(seed []byte) noise.DHKey {
	var priv [32]byte
	copy(priv[:], seed)
	priv[0] &= 248
	priv[31] &= 127
	priv[31] |= 64

	var pub [32]byte
	curve25519.ScalarBaseMult(&pub, &priv)

	return noise.DHKey{Private: priv[:], Public: pub[:]}
}

// seal encrypts plaintext, performing the handshake on the first call.
func (h *halfCipher) seal(plaintext []byte) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == nil {
		out, cs, _, err := h.hs.WriteMessage(nil, plaintext)
		if err != nil {
			return nil, fmt.Errorf("cipher: handshake write: %w", err)
		}
		h.state = cs
		return out, nil
	}
	return h.state.Encrypt(nil, nil, plaintext)
}

// open decrypts ciphertext, performing the handshake on the first call.
func (h *halfCipher) open(ciphertext []byte) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == nil {
		// ReadMessage returns (payload, recvCipher, sendCipher, err): the first
		// cipher state covers the direction just read, which for a one-way
		// Noise_K handshake is the only direction this half ever uses.
		out, cs, _, err := h.hs.ReadMessage(nil, ciphertext)
		if err != nil {
			return nil, fmt.Errorf("cipher: handshake read: %w", err)
		}
		h.state = cs
		return out, nil
	}
	return h.state.Decrypt(nil, nil, ciphertext)
}

// Cipher holds one send half-cipher and one receive half-cipher per peer,
// keyed by the peer's 32-byte Curve25519 public key. Traffic to a peer and
// traffic from a peer never share handshake state, since Noise_K is a
// one-way pattern and each direction is its own session.
type Cipher struct {
	myPrivate []byte

	mu    sync.RWMutex
	sends map[string]*halfCipher
	recvs map[string]*halfCipher
	only  string // set when exactly one peer is registered, for recipient elision
}

// NewCipher builds a Cipher for myPrivateKey (the 32-byte communication seed,
// see identity.KeyPair.Private) talking to the given set of peer public keys
// (each a 32-byte Curve25519 point, see identity.KeyPair.DHPublicKey).
func NewCipher(myPrivateKey []byte, peerPublicKeys [][]byte) (*Cipher, error) {
	if len(myPrivateKey) != 32 {
		return nil, errors.New("cipher: private key must be 32 bytes")
	}
	if len(peerPublicKeys) == 0 {
		return nil, errors.New("cipher: at least one peer public key is required")
	}

	myKeypair := clampedKeypair(myPrivateKey)

	c := &Cipher{
		myPrivate: append([]byte(nil), myPrivateKey...),
		sends:     make(map[string]*halfCipher, len(peerPublicKeys)),
		recvs:     make(map[string]*halfCipher, len(peerPublicKeys)),
	}

	for _, peer := range peerPublicKeys {
		if len(peer) != 32 {
			return nil, errors.New("cipher: peer public key must be 32 bytes")
		}
		key := hex.EncodeToString(peer)

		send, err := newHalfCipher(myKeypair, peer, true)
		if err != nil {
			return nil, err
		}
		recv, err := newHalfCipher(myKeypair, peer, false)
		if err != nil {
			return nil, err
		}
		c.sends[key] = send
		c.recvs[key] = recv
	}

	if len(peerPublicKeys) == 1 {
		c.only = hex.EncodeToString(peerPublicKeys[0])
	}

	logrus.WithFields(logrus.Fields{
		"package": "cipher",
		"peers":   len(peerPublicKeys),
	}).Debug("initialized pairwise cipher")

	return c, nil
}

// Encrypt encrypts plaintext for recipient. If recipient is nil or empty and
// exactly one peer was registered with NewCipher, that peer is used;
// otherwise ErrAmbiguousRecipient is returned.
func (c *Cipher) Encrypt(recipient []byte, plaintext []byte) ([]byte, error) {
	if len(plaintext) > MaxMessageSize {
		return nil, ErrMessageTooLarge
	}

	key := hex.EncodeToString(recipient)
	if len(recipient) == 0 {
		if c.only == "" {
			return nil, ErrAmbiguousRecipient
		}
		key = c.only
	}

	c.mu.RLock()
	h, ok := c.sends[key]
	c.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownRecipient
	}

	return h.seal(plaintext)
}

// Decrypt decrypts ciphertext claimed to be from sender. If sender is nil or
// empty and exactly one peer was registered with NewCipher, that peer is
// used.
func (c *Cipher) Decrypt(sender []byte, ciphertext []byte) ([]byte, error) {
	key := hex.EncodeToString(sender)
	if len(sender) == 0 {
		if c.only == "" {
			return nil, ErrAmbiguousRecipient
		}
		key = c.only
	}

	c.mu.RLock()
	h, ok := c.recvs[key]
	c.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownSender
	}

	return h.open(ciphertext)
}

// GenerateKeypair returns a fresh random 32-byte communication seed and its
// corresponding 32-byte Curve25519 public key, for callers that only need the
// Noise half of an identity.KeyPair (tests, standalone tools).
func GenerateKeypair() (priv, pub []byte, err error) {
	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, nil, fmt.Errorf("cipher: generate keypair: %w", err)
	}
	kp := clampedKeypair(seed[:])
	return seed[:], kp.Public, nil
}
