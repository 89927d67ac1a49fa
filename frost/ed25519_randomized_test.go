package frost

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRandomizedSignVerifiesUnderRandomizedKeyOnly(t *testing.T) {
	base := EdSuite{}
	suite := RandomizedEdSuite{}
	ids := testIdentifiers(t, base, 3)
	keys := dkg(t, base, ids, 2)
	ctx := context.Background()

	signers := []Identifier{ids[0], ids[1]}
	message := []byte("shielded spend")
	rnd := Randomizer([]byte("per-signature randomizer seed"))

	var commitments []SigningCommitments
	states := make(map[Identifier][]byte)
	for _, id := range signers {
		c, state, err := suite.Commit(ctx, keys[id])
		require.NoError(t, err)
		commitments = append(commitments, c)
		states[id] = state
	}

	pkg := SigningPackage{Message: message, Commitments: commitments}

	var shares []SignatureShare
	for _, id := range signers {
		share, err := suite.Sign(ctx, keys[id], states[id], pkg, rnd)
		require.NoError(t, err)
		shares = append(shares, share)
	}

	sig, err := suite.Aggregate(ctx, keys[ids[0]].PublicKeyPackage, pkg, shares, rnd)
	require.NoError(t, err)

	groupKey := keys[ids[0]].PublicKeyPackage.GroupPublicKey
	randomizedKey, err := suite.RandomizedGroupKey(groupKey, rnd)
	require.NoError(t, err)

	require.NoError(t, suite.Verify(randomizedKey, message, sig))
	require.Error(t, suite.Verify(groupKey, message, sig), "signature must not verify under the plain group key")
}

func TestRandomizedAggregateRequiresRandomizer(t *testing.T) {
	suite := RandomizedEdSuite{}
	base := EdSuite{}
	ids := testIdentifiers(t, base, 3)
	keys := dkg(t, base, ids, 2)
	ctx := context.Background()

	_, err := suite.Aggregate(ctx, keys[ids[0]].PublicKeyPackage, SigningPackage{}, nil, nil)
	require.Error(t, err)
}

func TestRandomizedGroupKeyIsDeterministic(t *testing.T) {
	suite := RandomizedEdSuite{}
	base := EdSuite{}
	ids := testIdentifiers(t, base, 2)
	keys := dkg(t, base, ids, 2)

	groupKey := keys[ids[0]].PublicKeyPackage.GroupPublicKey

	k1, err := suite.RandomizedGroupKey(groupKey, Randomizer{0x01, 0x02})
	require.NoError(t, err)
	k2, err := suite.RandomizedGroupKey(groupKey, Randomizer{0x01, 0x02})
	require.NoError(t, err)
	require.Equal(t, k1, k2)

	k3, err := suite.RandomizedGroupKey(groupKey, Randomizer{0x03})
	require.NoError(t, err)
	require.NotEqual(t, k1, k3)
}
