// Package frost defines the wire-level types FROST signing and DKG
// coordination exchange, and the Suite contract a ciphersuite implementation
// must satisfy to be driven by packages signing, dkgsession, coordinator,
// participant, and dkgdriver.
//
// The ciphersuite arithmetic itself (scalar and point operations over a
// specific curve, Shamir secret sharing, and the Schnorr challenge/response
// construction) is an external collaborator: this system coordinates rounds
// and ships opaque byte blobs between participants, it does not implement a
// particular curve's FROST math as its primary concern. Suite is the seam
// between the two: every type here is an opaque, serializable wrapper
// (Identifier, SigningCommitments, SignatureShare, ...) so coordination code
// never inspects curve-specific internals.
//
// EdSuite is the one concrete Suite this package ships: a Shamir-threshold
// Ed25519 Schnorr scheme built on filippo.io/edwards25519, included so the
// session and driver packages can be exercised end to end by a genuine
// threshold signing run instead of only by fakes. Real FROST ciphersuites
// (secp256k1, P-256, ristretto255, redpallas) would be added the same way:
// implement Suite, the rest of the system is unaffected.
package frost
