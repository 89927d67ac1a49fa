package frost

import (
	"crypto/rand"
	"crypto/sha512"
	"fmt"

	"filippo.io/edwards25519"
)

// SequentialIdentifier derives the i-th (1-indexed) trusted-dealer
// participant identifier. Unlike DKG, a trusted-dealer split has no session
// ID to derive identifiers from; participants are instead numbered in the
// order the dealer was given their public keys.
func (EdSuite) SequentialIdentifier(i int) (Identifier, error) {
	if i < 1 {
		return Identifier{}, fmt.Errorf("frost: sequential identifier index must be >= 1, got %d", i)
	}
	for counter := uint32(0); counter < 1<<16; counter++ {
		h := sha512.New()
		h.Write([]byte("frost-trusted-dealer-identifier-v1"))
		h.Write([]byte{byte(i), byte(i >> 8), byte(i >> 16), byte(i >> 24)})
		h.Write([]byte{byte(counter), byte(counter >> 8), byte(counter >> 16), byte(counter >> 24)})
		s, err := new(edwards25519.Scalar).SetUniformBytes(h.Sum(nil))
		if err != nil {
			return Identifier{}, fmt.Errorf("frost: derive sequential identifier: %w", err)
		}
		if s.Equal(edwards25519.NewScalar()) == 1 {
			continue
		}
		var id Identifier
		copy(id[:], s.Bytes())
		return id, nil
	}
	return Identifier{}, fmt.Errorf("frost: could not derive a nonzero identifier for index %d", i)
}

// TrustedDealerSplit is the non-DKG key-setup path: a single party samples
// the group secret (or accepts one), Shamir-splits it across ids at
// threshold, and hands back one KeyPackage per identifier plus the shared
// PublicKeyPackage. Unlike DkgRound1-3, no network round trip is involved;
// the dealer holds the whole secret for the duration of this one call,
// which is why DKG is preferred for production groups.
//
// secret, if non-nil, must be a canonically-encoded scalar and is used as
// the group's signing key; a nil secret samples a fresh one. The caller is
// responsible for zeroizing the returned KeyPackage.SigningShare values
// once they've been distributed to each participant; a signing share must
// not outlive the process that owns it.
func (EdSuite) TrustedDealerSplit(ids []Identifier, threshold int, secret []byte) (map[Identifier]KeyPackage, PublicKeyPackage, error) {
	if threshold < 1 || threshold > len(ids) {
		return nil, PublicKeyPackage{}, fmt.Errorf("frost: invalid threshold %d of %d participants", threshold, len(ids))
	}
	seen := make(map[Identifier]struct{}, len(ids))
	for _, id := range ids {
		if id.IsZero() {
			return nil, PublicKeyPackage{}, fmt.Errorf("frost: zero identifier is not valid")
		}
		if _, dup := seen[id]; dup {
			return nil, PublicKeyPackage{}, fmt.Errorf("frost: duplicate identifier %s", id)
		}
		seen[id] = struct{}{}
	}

	coeffs := make([]*edwards25519.Scalar, threshold)
	if secret != nil {
		s0, err := scalarFromBytes(secret)
		if err != nil {
			return nil, PublicKeyPackage{}, fmt.Errorf("frost: decode dealer secret: %w", err)
		}
		coeffs[0] = s0
	} else {
		s0, err := randomScalar()
		if err != nil {
			return nil, PublicKeyPackage{}, err
		}
		coeffs[0] = s0
	}
	for i := 1; i < threshold; i++ {
		c, err := randomScalar()
		if err != nil {
			return nil, PublicKeyPackage{}, err
		}
		coeffs[i] = c
	}

	groupPublicKey := new(edwards25519.Point).ScalarBaseMult(coeffs[0])

	shares := make(map[Identifier]*edwards25519.Scalar, len(ids))
	verifyingShares := make(map[Identifier][]byte, len(ids))
	for _, id := range ids {
		x, err := identifierScalar(id)
		if err != nil {
			return nil, PublicKeyPackage{}, err
		}
		share := evalPolynomial(coeffs, x)
		shares[id] = share
		verifyingShares[id] = new(edwards25519.Point).ScalarBaseMult(share).Bytes()
	}

	pubPkg := PublicKeyPackage{
		GroupPublicKey:  groupPublicKey.Bytes(),
		VerifyingShares: verifyingShares,
	}

	keyPkgs := make(map[Identifier]KeyPackage, len(ids))
	for _, id := range ids {
		keyPkgs[id] = KeyPackage{
			Identifier:       id,
			SigningShare:     shares[id].Bytes(),
			PublicKeyPackage: pubPkg,
		}
	}
	return keyPkgs, pubPkg, nil
}

// RandomDealerSecret samples a fresh group secret scalar for TrustedDealerSplit,
// exposed so callers (e.g. the trusted-dealer CLI subcommand) can persist or
// display it before splitting, without reaching into edwards25519 directly.
func RandomDealerSecret() ([]byte, error) {
	var buf [64]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return nil, err
	}
	s, err := new(edwards25519.Scalar).SetUniformBytes(buf[:])
	if err != nil {
		return nil, err
	}
	return s.Bytes(), nil
}
