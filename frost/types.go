package frost

import (
	"encoding/hex"
	"fmt"
)

// Identifier names a participant within a signing group or DKG run. FROST
// identifiers are nonzero scalars of the ciphersuite's group, but everything
// outside package frost treats them as an opaque, comparable, serializable
// value, derived once per session from (session ID, participant public
// key) so every participant can reconstruct every peer's identifier from
// session membership alone, with no extra round trip to agree on them.
type Identifier [32]byte

// String renders the identifier as lowercase hex, for logging and map keys.
func (id Identifier) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether id is the zero value (never a valid identifier).
func (id Identifier) IsZero() bool {
	return id == Identifier{}
}

// MarshalText renders id as lowercase hex, so Identifier serializes as a
// hex string both as a JSON object field and as a JSON map key.
// encoding/json requires a map key type to implement
// encoding.TextMarshaler/TextUnmarshaler unless it is already a string or
// integer kind, which [32]byte is not.
func (id Identifier) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(id[:])), nil
}

// UnmarshalText parses the hex encoding produced by MarshalText.
func (id *Identifier) UnmarshalText(text []byte) error {
	decoded, err := hex.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("frost: decode identifier: %w", err)
	}
	if len(decoded) != len(id) {
		return fmt.Errorf("frost: identifier must be %d bytes, got %d", len(id), len(decoded))
	}
	copy(id[:], decoded)
	return nil
}

// SigningCommitments is a participant's round-1 output: a pair of hiding and
// binding commitment points, opaque outside the ciphersuite that produced
// them.
type SigningCommitments struct {
	Identifier Identifier
	Hiding     []byte
	Binding    []byte
}

// SignatureShare is a participant's round-2 output: its partial signature
// over the message described by a SigningPackage.
type SignatureShare struct {
	Identifier Identifier
	Share      []byte
}

// SigningPackage is what the coordinator assembles from round-1 commitments
// and distributes to every participant before round 2: the message to sign
// plus every participant's commitments, so each participant can independently
// recompute the binding factors.
type SigningPackage struct {
	Message     []byte
	Commitments []SigningCommitments
}

// Randomizer re-randomizes a signing package for ciphersuites that require
// it (e.g. RedPallas / Orchard shielded signing). Suite implementations that
// don't need re-randomization leave this nil throughout.
type Randomizer []byte

// KeyPackage is a participant's long-term secret share produced by DKG or a
// trusted dealer: its signing share, its identifier, and the group's public
// key package.
type KeyPackage struct {
	Identifier       Identifier
	SigningShare     []byte
	PublicKeyPackage PublicKeyPackage
}

// PublicKeyPackage is the group's public verification material: the group's
// public key plus each participant's individual verifying share.
type PublicKeyPackage struct {
	GroupPublicKey  []byte
	VerifyingShares map[Identifier][]byte
}

// Round1Package is a DKG participant's round-1 broadcast: a commitment to
// its secret polynomial plus a proof of knowledge of its constant term.
type Round1Package struct {
	Identifier       Identifier
	Commitment       [][]byte
	ProofOfKnowledge []byte
}

// Round2Package is a DKG participant's round-2 output, addressed to one
// specific recipient: an evaluation of the sender's secret polynomial at the
// recipient's identifier.
type Round2Package struct {
	Sender    Identifier
	Recipient Identifier
	Value     []byte
}

// Signature is a completed threshold signature, opaque outside the
// ciphersuite that produced it.
type Signature []byte
