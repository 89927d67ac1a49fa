package frost

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"filippo.io/edwards25519"
)

// serializeScalars/deserializeScalars persist a participant's secret
// polynomial coefficients between round 1 and round 2: f(x) = coeffs[0] +
// coeffs[1]*x + ... + coeffs[threshold-1]*x^(threshold-1), with coeffs[0]
// this participant's contribution to the group secret.
func serializeScalars(scalars []*edwards25519.Scalar) []byte {
	out := make([]byte, 0, 32*len(scalars))
	for _, s := range scalars {
		out = append(out, s.Bytes()...)
	}
	return out
}

func deserializeScalars(data []byte) ([]*edwards25519.Scalar, error) {
	if len(data)%32 != 0 {
		return nil, errors.New("frost: malformed scalar list")
	}
	out := make([]*edwards25519.Scalar, len(data)/32)
	for i := range out {
		s, err := scalarFromBytes(data[i*32 : (i+1)*32])
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func evalPolynomial(coeffs []*edwards25519.Scalar, x *edwards25519.Scalar) *edwards25519.Scalar {
	result := edwards25519.NewScalar()
	power := oneScalar()
	for _, c := range coeffs {
		term := new(edwards25519.Scalar).Multiply(c, power)
		result = new(edwards25519.Scalar).Add(result, term)
		power = new(edwards25519.Scalar).Multiply(power, x)
	}
	return result
}

// evalCommitmentAt evaluates a Feldman VSS commitment (a list of points
// C_0..C_{t-1}) at x in the exponent: sum_l C_l * x^l. This lets every
// participant compute any other participant's verifying share directly from
// public round-1 data, without ever learning the dealer's secret polynomial.
func evalCommitmentAt(commitment [][]byte, x *edwards25519.Scalar) (*edwards25519.Point, error) {
	result := edwards25519.NewIdentityPoint()
	power := oneScalar()
	for _, cBytes := range commitment {
		c, err := pointFromBytes(cBytes)
		if err != nil {
			return nil, err
		}
		result.Add(result, new(edwards25519.Point).ScalarMult(power, c))
		power = new(edwards25519.Scalar).Multiply(power, x)
	}
	return result, nil
}

func (EdSuite) DkgRound1(ctx context.Context, id Identifier, threshold, total int) (Round1Package, []byte, error) {
	if threshold < 1 || threshold > total {
		return Round1Package{}, nil, fmt.Errorf("frost: invalid threshold %d of %d", threshold, total)
	}

	coeffs := make([]*edwards25519.Scalar, threshold)
	for i := range coeffs {
		s, err := randomScalar()
		if err != nil {
			return Round1Package{}, nil, err
		}
		coeffs[i] = s
	}

	commitment := make([][]byte, threshold)
	for i, c := range coeffs {
		commitment[i] = new(edwards25519.Point).ScalarBaseMult(c).Bytes()
	}

	// Proof of knowledge of coeffs[0], the standard FROST DKG round-1 Schnorr
	// proof binding the commitment to this participant's identifier so it
	// cannot be replayed by another participant.
	k, err := randomScalar()
	if err != nil {
		return Round1Package{}, nil, err
	}
	R := new(edwards25519.Point).ScalarBaseMult(k)
	c, err := hashToScalar("frost-dkg-pop-v1", id[:], commitment[0], R.Bytes())
	if err != nil {
		return Round1Package{}, nil, err
	}
	mu := new(edwards25519.Scalar).MultiplyAdd(coeffs[0], c, k)

	proof := append(append([]byte(nil), R.Bytes()...), mu.Bytes()...)
	secretState := serializeScalars(coeffs)

	return Round1Package{
		Identifier:       id,
		Commitment:       commitment,
		ProofOfKnowledge: proof,
	}, secretState, nil
}

func verifyProofOfKnowledge(pkg Round1Package) error {
	if len(pkg.Commitment) == 0 {
		return errors.New("frost: empty DKG commitment")
	}
	if len(pkg.ProofOfKnowledge) != 64 {
		return errors.New("frost: malformed DKG proof of knowledge")
	}

	R, err := pointFromBytes(pkg.ProofOfKnowledge[:32])
	if err != nil {
		return err
	}
	mu, err := scalarFromBytes(pkg.ProofOfKnowledge[32:])
	if err != nil {
		return err
	}
	c, err := hashToScalar("frost-dkg-pop-v1", pkg.Identifier[:], pkg.Commitment[0], R.Bytes())
	if err != nil {
		return err
	}
	Y0, err := pointFromBytes(pkg.Commitment[0])
	if err != nil {
		return err
	}

	lhs := new(edwards25519.Point).ScalarBaseMult(mu)
	rhs := new(edwards25519.Point).Add(R, new(edwards25519.Point).ScalarMult(c, Y0))
	if lhs.Equal(rhs) != 1 {
		return fmt.Errorf("frost: proof of knowledge failed for participant %s", pkg.Identifier)
	}
	return nil
}

func (EdSuite) DkgRound2(ctx context.Context, id Identifier, secretState []byte, round1 map[Identifier]Round1Package) ([]Round2Package, []byte, error) {
	coeffs, err := deserializeScalars(secretState)
	if err != nil {
		return nil, nil, err
	}

	for peer, pkg := range round1 {
		if peer == id {
			continue
		}
		if err := verifyProofOfKnowledge(pkg); err != nil {
			return nil, nil, err
		}
	}

	recipients := make([]Identifier, 0, len(round1))
	for peer := range round1 {
		if peer != id {
			recipients = append(recipients, peer)
		}
	}
	sort.Slice(recipients, func(i, j int) bool { return recipients[i].String() < recipients[j].String() })

	packages := make([]Round2Package, 0, len(recipients))
	for _, recipient := range recipients {
		x, err := identifierScalar(recipient)
		if err != nil {
			return nil, nil, err
		}
		value := evalPolynomial(coeffs, x)
		packages = append(packages, Round2Package{
			Sender:    id,
			Recipient: recipient,
			Value:     value.Bytes(),
		})
	}

	selfX, err := identifierScalar(id)
	if err != nil {
		return nil, nil, err
	}
	selfValue := evalPolynomial(coeffs, selfX)

	return packages, selfValue.Bytes(), nil
}

func (EdSuite) DkgRound3(ctx context.Context, id Identifier, round1 map[Identifier]Round1Package, round2SecretState []byte, round2 map[Identifier]Round2Package) (KeyPackage, error) {
	share, err := scalarFromBytes(round2SecretState)
	if err != nil {
		return KeyPackage{}, err
	}

	selfX, err := identifierScalar(id)
	if err != nil {
		return KeyPackage{}, err
	}

	for sender, pkg := range round2 {
		if pkg.Recipient != id {
			return KeyPackage{}, fmt.Errorf("frost: round-2 package from %s addressed to %s, not %s", sender, pkg.Recipient, id)
		}
		v, err := scalarFromBytes(pkg.Value)
		if err != nil {
			return KeyPackage{}, err
		}

		// Feldman check: the value must be the sender's committed polynomial
		// evaluated at this participant's identifier, v*G == sum C_l * x^l.
		senderRound1, ok := round1[sender]
		if !ok {
			return KeyPackage{}, fmt.Errorf("frost: round-2 package from %s with no round-1 commitment", sender)
		}
		expected, err := evalCommitmentAt(senderRound1.Commitment, selfX)
		if err != nil {
			return KeyPackage{}, err
		}
		if new(edwards25519.Point).ScalarBaseMult(v).Equal(expected) != 1 {
			return KeyPackage{}, fmt.Errorf("frost: round-2 share from %s fails its commitment check", sender)
		}

		share = new(edwards25519.Scalar).Add(share, v)
	}

	groupPublicKey := edwards25519.NewIdentityPoint()
	for _, pkg := range round1 {
		Y0, err := pointFromBytes(pkg.Commitment[0])
		if err != nil {
			return KeyPackage{}, err
		}
		groupPublicKey.Add(groupPublicKey, Y0)
	}

	verifyingShares := make(map[Identifier][]byte, len(round1))
	for peer := range round1 {
		x, err := identifierScalar(peer)
		if err != nil {
			return KeyPackage{}, err
		}
		Yk := edwards25519.NewIdentityPoint()
		for _, pkg := range round1 {
			contribution, err := evalCommitmentAt(pkg.Commitment, x)
			if err != nil {
				return KeyPackage{}, err
			}
			Yk.Add(Yk, contribution)
		}
		verifyingShares[peer] = Yk.Bytes()
	}

	return KeyPackage{
		Identifier:   id,
		SigningShare: share.Bytes(),
		PublicKeyPackage: PublicKeyPackage{
			GroupPublicKey:  groupPublicKey.Bytes(),
			VerifyingShares: verifyingShares,
		},
	}, nil
}
