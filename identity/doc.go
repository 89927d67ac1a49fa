// Package identity implements the long-lived communication key pair used to
// authenticate a participant to the relay and to each of its peers.
//
// A communication key pair is derived from a single 32-byte seed (KeyPair.
// Private). The seed feeds two independent derivations: a clamped Curve25519
// scalar (RFC 7748), used as the Noise_K static private key (see package
// cipher), and an Ed25519 signer (via ed25519.NewKeyFromSeed), used to sign
// relay login challenges. The two resulting public keys travel together as
// one 64-byte opaque value (KeyPair.Public, PublicKeySize) so the rest of
// the system (relay, config, contact exchange) only ever has to carry a
// single wire-format public identity per peer. Deriving both from one seed means a
// user only ever has to back up one secret.
//
// Example:
//
//	kp, err := identity.GenerateKeyPair()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer identity.WipeKeyPair(kp)
//	sig := kp.Sign(challenge)
package identity
