package frost

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha512"
	"errors"
	"fmt"
	"sort"

	"filippo.io/edwards25519"
)

// EdSuite is a Shamir-threshold Schnorr signature scheme over edwards25519,
// following the shape of draft-irtf-cfrg-frost's FROST(Ed25519, SHA-512):
// additive (Pedersen) DKG, per-participant hiding/binding nonce commitments,
// and Lagrange-weighted signature shares combined into a single Schnorr
// signature verifiable against the group's public key.
//
// It does not claim RFC 8032 Ed25519 compatibility (the challenge hash
// domain separation differs from a plain Ed25519 signer's), only internal
// consistency: a signature this Suite produces verifies under this Suite's
// own Verify, which is all the session and driver packages require of a
// Suite.
type EdSuite struct{}

var _ Suite = EdSuite{}

func (EdSuite) Name() string { return "FROST-ED25519-SHA512-v1" }

func (EdSuite) SupportsRerandomization() bool { return false }

func (EdSuite) DeriveIdentifier(sessionID []byte, publicKey []byte) (Identifier, error) {
	for counter := uint32(0); counter < 1<<16; counter++ {
		h := sha512.New()
		h.Write([]byte("frost-identifier-v1"))
		h.Write(sessionID)
		h.Write(publicKey)
		h.Write([]byte{byte(counter), byte(counter >> 8), byte(counter >> 16), byte(counter >> 24)})
		s, err := new(edwards25519.Scalar).SetUniformBytes(h.Sum(nil))
		if err != nil {
			return Identifier{}, fmt.Errorf("frost: derive identifier: %w", err)
		}
		if s.Equal(edwards25519.NewScalar()) == 1 {
			continue // vanishingly unlikely zero scalar; try the next counter
		}
		var id Identifier
		copy(id[:], s.Bytes())
		return id, nil
	}
	return Identifier{}, errors.New("frost: could not derive a nonzero identifier")
}

func (EdSuite) NormalizeGroupKey(pkg PublicKeyPackage) (PublicKeyPackage, error) {
	// edwards25519 has no even-Y requirement (unlike BIP-340/RedPallas); the
	// group key is used as-is.
	return pkg, nil
}

// --- scalar/point helpers ---

func randomScalar() (*edwards25519.Scalar, error) {
	var buf [64]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return nil, err
	}
	return new(edwards25519.Scalar).SetUniformBytes(buf[:])
}

func scalarFromBytes(b []byte) (*edwards25519.Scalar, error) {
	s, err := new(edwards25519.Scalar).SetCanonicalBytes(b)
	if err != nil {
		return nil, fmt.Errorf("frost: invalid scalar encoding: %w", err)
	}
	return s, nil
}

func pointFromBytes(b []byte) (*edwards25519.Point, error) {
	p, err := new(edwards25519.Point).SetBytes(b)
	if err != nil {
		return nil, fmt.Errorf("frost: invalid point encoding: %w", err)
	}
	return p, nil
}

func identifierScalar(id Identifier) (*edwards25519.Scalar, error) {
	return scalarFromBytes(id[:])
}

func hashToScalar(domain string, parts ...[]byte) (*edwards25519.Scalar, error) {
	h := sha512.New()
	h.Write([]byte(domain))
	for _, p := range parts {
		h.Write(p)
	}
	return new(edwards25519.Scalar).SetUniformBytes(h.Sum(nil))
}

// lagrangeCoefficient computes lambda_i for participant xi relative to the
// signer set xs, following the numerator/denominator product-then-invert
// construction used for Shamir reconstruction: lambda_i = prod_{j != i}
// x_j / (x_j - x_i).
func lagrangeCoefficient(xi Identifier, xs []Identifier) (*edwards25519.Scalar, error) {
	xiS, err := identifierScalar(xi)
	if err != nil {
		return nil, err
	}

	num := oneScalar()
	den := oneScalar()

	found := false
	for _, xj := range xs {
		if xj == xi {
			found = true
			continue
		}
		xjS, err := identifierScalar(xj)
		if err != nil {
			return nil, err
		}
		num = new(edwards25519.Scalar).Multiply(num, xjS)
		diff := new(edwards25519.Scalar).Subtract(xjS, xiS)
		den = new(edwards25519.Scalar).Multiply(den, diff)
	}
	if !found {
		return nil, errors.New("frost: identifier not present in signer set")
	}

	denInv := new(edwards25519.Scalar).Invert(den)
	return new(edwards25519.Scalar).Multiply(num, denInv), nil
}

func oneScalar() *edwards25519.Scalar {
	var buf [64]byte
	buf[0] = 1
	s, _ := new(edwards25519.Scalar).SetUniformBytes(buf[:])
	// SetUniformBytes reduces mod l; 1 is already canonical so this is exact.
	return s
}

func sortedCommitments(commitments []SigningCommitments) []SigningCommitments {
	out := append([]SigningCommitments(nil), commitments...)
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Identifier[:], out[j].Identifier[:]) < 0
	})
	return out
}

func identifiersOf(commitments []SigningCommitments) []Identifier {
	ids := make([]Identifier, len(commitments))
	for i, c := range commitments {
		ids[i] = c.Identifier
	}
	return ids
}

func encodeCommitmentList(commitments []SigningCommitments) []byte {
	var buf bytes.Buffer
	for _, c := range commitments {
		buf.Write(c.Identifier[:])
		buf.Write(c.Hiding)
		buf.Write(c.Binding)
	}
	return buf.Bytes()
}

// bindingFactors computes FROST's per-participant binding factor rho_l,
// which ties each participant's binding nonce to the specific message and
// full commitment list being signed, preventing a participant's commitment
// from being reused across different signing requests undetected.
func bindingFactors(message []byte, commitments []SigningCommitments) (map[Identifier]*edwards25519.Scalar, error) {
	encoded := encodeCommitmentList(commitments)
	out := make(map[Identifier]*edwards25519.Scalar, len(commitments))
	for _, c := range commitments {
		rho, err := hashToScalar("frost-binding-factor-v1", c.Identifier[:], message, encoded)
		if err != nil {
			return nil, err
		}
		out[c.Identifier] = rho
	}
	return out, nil
}

// groupCommitment computes R = sum_l (hiding_l + rho_l * binding_l).
func groupCommitment(commitments []SigningCommitments, rhos map[Identifier]*edwards25519.Scalar) (*edwards25519.Point, error) {
	R := edwards25519.NewIdentityPoint()
	for _, c := range commitments {
		hiding, err := pointFromBytes(c.Hiding)
		if err != nil {
			return nil, err
		}
		binding, err := pointFromBytes(c.Binding)
		if err != nil {
			return nil, err
		}
		rho, ok := rhos[c.Identifier]
		if !ok {
			return nil, fmt.Errorf("frost: missing binding factor for %s", c.Identifier)
		}
		R.Add(R, hiding)
		R.Add(R, new(edwards25519.Point).ScalarMult(rho, binding))
	}
	return R, nil
}

func challengeScalar(R, groupPublicKey, message []byte) (*edwards25519.Scalar, error) {
	return hashToScalar("frost-challenge-v1", R, groupPublicKey, message)
}

// --- signing ---

func (EdSuite) Commit(ctx context.Context, key KeyPackage) (SigningCommitments, []byte, error) {
	hidingNonce, err := randomScalar()
	if err != nil {
		return SigningCommitments{}, nil, err
	}
	bindingNonce, err := randomScalar()
	if err != nil {
		return SigningCommitments{}, nil, err
	}

	hidingPoint := new(edwards25519.Point).ScalarBaseMult(hidingNonce)
	bindingPoint := new(edwards25519.Point).ScalarBaseMult(bindingNonce)

	state := append(append([]byte(nil), hidingNonce.Bytes()...), bindingNonce.Bytes()...)

	return SigningCommitments{
		Identifier: key.Identifier,
		Hiding:     hidingPoint.Bytes(),
		Binding:    bindingPoint.Bytes(),
	}, state, nil
}

func (s EdSuite) Sign(ctx context.Context, key KeyPackage, commitmentState []byte, pkg SigningPackage, rnd Randomizer) (SignatureShare, error) {
	if len(rnd) != 0 {
		return SignatureShare{}, errors.New("frost: EdSuite does not support re-randomized signing")
	}
	if len(commitmentState) != 64 {
		return SignatureShare{}, errors.New("frost: malformed commitment state")
	}

	hidingNonce, err := scalarFromBytes(commitmentState[:32])
	if err != nil {
		return SignatureShare{}, err
	}
	bindingNonce, err := scalarFromBytes(commitmentState[32:])
	if err != nil {
		return SignatureShare{}, err
	}

	ordered := sortedCommitments(pkg.Commitments)
	rhos, err := bindingFactors(pkg.Message, ordered)
	if err != nil {
		return SignatureShare{}, err
	}
	R, err := groupCommitment(ordered, rhos)
	if err != nil {
		return SignatureShare{}, err
	}
	challenge, err := challengeScalar(R.Bytes(), key.PublicKeyPackage.GroupPublicKey, pkg.Message)
	if err != nil {
		return SignatureShare{}, err
	}

	xs := identifiersOf(ordered)
	lambda, err := lagrangeCoefficient(key.Identifier, xs)
	if err != nil {
		return SignatureShare{}, err
	}
	rhoI, ok := rhos[key.Identifier]
	if !ok {
		return SignatureShare{}, errors.New("frost: this participant's commitment is missing from the signing package")
	}
	signingShare, err := scalarFromBytes(key.SigningShare)
	if err != nil {
		return SignatureShare{}, err
	}

	// z_i = hiding_nonce + binding_nonce * rho_i + lambda_i * s_i * c
	z := new(edwards25519.Scalar).MultiplyAdd(bindingNonce, rhoI, hidingNonce)
	weighted := new(edwards25519.Scalar).Multiply(lambda, signingShare)
	z = new(edwards25519.Scalar).MultiplyAdd(weighted, challenge, z)

	return SignatureShare{Identifier: key.Identifier, Share: z.Bytes()}, nil
}

func (s EdSuite) Aggregate(ctx context.Context, pubKeys PublicKeyPackage, pkg SigningPackage, shares []SignatureShare, rnd Randomizer) (Signature, error) {
	if len(rnd) != 0 {
		return nil, errors.New("frost: EdSuite does not support re-randomized signing")
	}

	ordered := sortedCommitments(pkg.Commitments)
	rhos, err := bindingFactors(pkg.Message, ordered)
	if err != nil {
		return nil, err
	}
	R, err := groupCommitment(ordered, rhos)
	if err != nil {
		return nil, err
	}
	challenge, err := challengeScalar(R.Bytes(), pubKeys.GroupPublicKey, pkg.Message)
	if err != nil {
		return nil, err
	}
	xs := identifiersOf(ordered)

	commitmentByID := make(map[Identifier]SigningCommitments, len(ordered))
	for _, c := range ordered {
		commitmentByID[c.Identifier] = c
	}

	zTotal := edwards25519.NewScalar()

	for _, share := range shares {
		c, ok := commitmentByID[share.Identifier]
		if !ok {
			return nil, fmt.Errorf("frost: signature share from %s has no matching commitment", share.Identifier)
		}
		verifyingShare, ok := pubKeys.VerifyingShares[share.Identifier]
		if !ok {
			return nil, fmt.Errorf("frost: no verifying share for %s", share.Identifier)
		}

		z, err := scalarFromBytes(share.Share)
		if err != nil {
			return nil, err
		}
		lambda, err := lagrangeCoefficient(share.Identifier, xs)
		if err != nil {
			return nil, err
		}

		hiding, err := pointFromBytes(c.Hiding)
		if err != nil {
			return nil, err
		}
		binding, err := pointFromBytes(c.Binding)
		if err != nil {
			return nil, err
		}
		rho := rhos[share.Identifier]
		Ri := new(edwards25519.Point).Add(hiding, new(edwards25519.Point).ScalarMult(rho, binding))

		Yi, err := pointFromBytes(verifyingShare)
		if err != nil {
			return nil, err
		}
		lambdaC := new(edwards25519.Scalar).Multiply(lambda, challenge)
		rhs := new(edwards25519.Point).Add(Ri, new(edwards25519.Point).ScalarMult(lambdaC, Yi))
		lhs := new(edwards25519.Point).ScalarBaseMult(z)
		if lhs.Equal(rhs) != 1 {
			return nil, fmt.Errorf("frost: signature share from %s failed verification", share.Identifier)
		}

		zTotal.Add(zTotal, z)
	}

	sig := make([]byte, 0, 64)
	sig = append(sig, R.Bytes()...)
	sig = append(sig, zTotal.Bytes()...)
	return Signature(sig), nil
}

func (EdSuite) Verify(groupPublicKey []byte, message []byte, sig Signature) error {
	if len(sig) != 64 {
		return errors.New("frost: malformed signature")
	}
	Rbytes, zBytes := sig[:32], sig[32:]

	R, err := pointFromBytes(Rbytes)
	if err != nil {
		return err
	}
	Y, err := pointFromBytes(groupPublicKey)
	if err != nil {
		return err
	}
	z, err := scalarFromBytes(zBytes)
	if err != nil {
		return err
	}
	challenge, err := challengeScalar(Rbytes, groupPublicKey, message)
	if err != nil {
		return err
	}

	lhs := new(edwards25519.Point).ScalarBaseMult(z)
	rhs := new(edwards25519.Point).Add(R, new(edwards25519.Point).ScalarMult(challenge, Y))
	if lhs.Equal(rhs) != 1 {
		return errors.New("frost: signature verification failed")
	}
	return nil
}
