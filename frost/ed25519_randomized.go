package frost

import (
	"context"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
)

// RandomizedEdSuite is EdSuite with per-signature re-randomization: a
// Randomizer r shifts the effective signing key by r and the verifying key
// by r*G, so a completed signature verifies under the randomized key
// RandomizedGroupKey(vk, r) rather than the plain group key, and an
// observer cannot link the signature back to vk. This is the capability
// shielded-transaction signing needs from its ciphersuite; the curve here
// is still edwards25519, so real RedPallas deployments substitute their own
// Suite the same way.
//
// The wire Randomizer stays opaque bytes; it is mapped to a scalar through
// a domain-separated hash, so any caller-supplied byte string of any length
// is a valid randomizer and the coordinator can sample one with a plain
// CSPRNG read.
type RandomizedEdSuite struct {
	EdSuite
}

var _ Suite = RandomizedEdSuite{}

func (RandomizedEdSuite) Name() string { return "FROST-ED25519-SHA512-v1-randomized" }

func (RandomizedEdSuite) SupportsRerandomization() bool { return true }

// randomizerScalar maps an opaque wire randomizer to a scalar.
func randomizerScalar(rnd Randomizer) (*edwards25519.Scalar, error) {
	if len(rnd) == 0 {
		return nil, errors.New("frost: randomizer is required for re-randomized signing")
	}
	return hashToScalar("frost-randomizer-v1", rnd)
}

// RandomizedGroupKey returns the verifying key a re-randomized signature
// verifies under: groupPublicKey + r*G.
func (RandomizedEdSuite) RandomizedGroupKey(groupPublicKey []byte, rnd Randomizer) ([]byte, error) {
	r, err := randomizerScalar(rnd)
	if err != nil {
		return nil, err
	}
	Y, err := pointFromBytes(groupPublicKey)
	if err != nil {
		return nil, err
	}
	randomized := new(edwards25519.Point).Add(Y, new(edwards25519.Point).ScalarBaseMult(r))
	return randomized.Bytes(), nil
}

// Sign produces a signature share bound to the randomized group key: the
// challenge is computed over groupPublicKey + r*G, while each signing share
// itself is unchanged. The aggregator folds in the randomizer's own
// contribution once, in Aggregate.
func (s RandomizedEdSuite) Sign(ctx context.Context, key KeyPackage, commitmentState []byte, pkg SigningPackage, rnd Randomizer) (SignatureShare, error) {
	randomizedKey, err := s.RandomizedGroupKey(key.PublicKeyPackage.GroupPublicKey, rnd)
	if err != nil {
		return SignatureShare{}, err
	}
	randomizedPkg := key
	randomizedPkg.PublicKeyPackage.GroupPublicKey = randomizedKey
	return s.EdSuite.Sign(ctx, randomizedPkg, commitmentState, pkg, nil)
}

// Aggregate combines shares produced by RandomizedEdSuite.Sign and adds the
// randomizer's contribution c*r, yielding a signature that verifies under
// RandomizedGroupKey(vk, rnd) and under nothing else.
func (s RandomizedEdSuite) Aggregate(ctx context.Context, pubKeys PublicKeyPackage, pkg SigningPackage, shares []SignatureShare, rnd Randomizer) (Signature, error) {
	r, err := randomizerScalar(rnd)
	if err != nil {
		return nil, err
	}
	randomizedKey, err := s.RandomizedGroupKey(pubKeys.GroupPublicKey, rnd)
	if err != nil {
		return nil, err
	}
	randomizedPubKeys := pubKeys
	randomizedPubKeys.GroupPublicKey = randomizedKey

	sig, err := s.EdSuite.Aggregate(ctx, randomizedPubKeys, pkg, shares, nil)
	if err != nil {
		return nil, err
	}

	Rbytes, zBytes := sig[:32], sig[32:]
	z, err := scalarFromBytes(zBytes)
	if err != nil {
		return nil, fmt.Errorf("frost: aggregated scalar: %w", err)
	}
	challenge, err := challengeScalar(Rbytes, randomizedKey, pkg.Message)
	if err != nil {
		return nil, err
	}
	z = new(edwards25519.Scalar).MultiplyAdd(challenge, r, z)

	out := make([]byte, 0, 64)
	out = append(out, Rbytes...)
	out = append(out, z.Bytes()...)
	return Signature(out), nil
}
