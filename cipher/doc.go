// Package cipher implements the pairwise authenticated encryption used
// between a coordinator and each participant of a signing or DKG session.
//
// Each ordered pair of peers is protected by a Noise_K_25519_ChaChaPoly_BLAKE2s
// handshake: both static public keys are known in advance (exchanged out of
// band as contacts, see package contact), so the handshake completes in a
// single message with no reply required. Because each direction is its own
// one-way Noise session, a Cipher holds two independent handshake states
// per peer, one used only for encrypting messages to that peer and one used
// only for decrypting messages from it, each with its own incrementing
// nonce counter once the first message has put it into transport mode.
//
// A small state machine hides github.com/flynn/noise's handshake/transport
// phase distinction behind Encrypt/Decrypt so callers never touch a
// *noise.HandshakeState directly.
package cipher
