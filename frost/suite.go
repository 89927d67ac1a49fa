package frost

import "context"

// SuiteByName resolves a ciphersuite id string (as recorded in a group's
// config entry) to the Suite implementation that produced it.
func SuiteByName(name string) (Suite, bool) {
	switch name {
	case EdSuite{}.Name():
		return EdSuite{}, true
	case RandomizedEdSuite{}.Name():
		return RandomizedEdSuite{}, true
	}
	return nil, false
}

// Suite is the contract a FROST ciphersuite implementation must satisfy to
// be driven by this module's session and driver packages. It covers both
// threshold signing (commit/sign/aggregate/verify) and distributed key
// generation (the three DKG rounds), plus the small amount of per-suite
// bookkeeping (identifier derivation, group-key normalization, and whether
// the suite supports re-randomized signing).
//
// Every method is pure with respect to session state: Suite implementations
// hold no session-scoped state themselves (signing shares, nonces, and
// polynomial coefficients are threaded through explicitly), so a single
// Suite value can be shared by every session a process drives concurrently.
type Suite interface {
	// Name identifies the ciphersuite, e.g. "FROST-ED25519-SHA512-v1".
	Name() string

	// SupportsRerandomization reports whether this suite's SigningPackage
	// can carry a Randomizer (required for RedPallas/Orchard shielded
	// signing, a no-op for everything else).
	SupportsRerandomization() bool

	// DeriveIdentifier derives a participant's Identifier deterministically
	// from a session ID and that participant's communication public key, so
	// every member of a session can compute every other member's identifier
	// without an extra negotiation round.
	DeriveIdentifier(sessionID []byte, publicKey []byte) (Identifier, error)

	// NormalizeGroupKey adjusts a freshly-generated group key package to the
	// suite's canonical form (e.g. even-Y normalization for suites that
	// require it). Suites without such a requirement return pkg unchanged.
	NormalizeGroupKey(pkg PublicKeyPackage) (PublicKeyPackage, error)

	// Commit produces this participant's round-1 signing commitments.
	Commit(ctx context.Context, key KeyPackage) (commitments SigningCommitments, commitmentState []byte, err error)

	// Sign produces this participant's round-2 signature share. commitmentState
	// is the opaque value returned by the matching Commit call.
	Sign(ctx context.Context, key KeyPackage, commitmentState []byte, pkg SigningPackage, rand Randomizer) (SignatureShare, error)

	// Aggregate combines signature shares from every participant into a
	// complete signature, verifying each share along the way.
	Aggregate(ctx context.Context, pubKeys PublicKeyPackage, pkg SigningPackage, shares []SignatureShare, rand Randomizer) (Signature, error)

	// Verify checks a completed signature against the group's public key.
	Verify(groupPublicKey []byte, message []byte, sig Signature) error

	// DkgRound1 produces a participant's round-1 broadcast package and the
	// opaque secret state it must retain for round 2.
	DkgRound1(ctx context.Context, id Identifier, threshold, total int) (pkg Round1Package, secretState []byte, err error)

	// DkgRound2 consumes every round-1 package (including the caller's own)
	// and produces one round-2 package per other participant.
	DkgRound2(ctx context.Context, id Identifier, secretState []byte, round1 map[Identifier]Round1Package) ([]Round2Package, []byte, error)

	// DkgRound3 consumes every round-2 package addressed to the caller
	// (keyed by sender) plus the retained round-2 secret state, and produces
	// the caller's final KeyPackage.
	DkgRound3(ctx context.Context, id Identifier, round1 map[Identifier]Round1Package, round2SecretState []byte, round2 map[Identifier]Round2Package) (KeyPackage, error)
}
