package frost

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func dealerIdentifiers(t *testing.T, suite EdSuite, n int) []Identifier {
	t.Helper()
	ids := make([]Identifier, n)
	for i := range ids {
		id, err := suite.SequentialIdentifier(i + 1)
		require.NoError(t, err)
		ids[i] = id
	}
	return ids
}

func TestSequentialIdentifierIsDeterministicAndDistinct(t *testing.T) {
	suite := EdSuite{}
	ids := dealerIdentifiers(t, suite, 4)

	again, err := suite.SequentialIdentifier(1)
	require.NoError(t, err)
	require.Equal(t, ids[0], again)

	seen := make(map[Identifier]struct{})
	for _, id := range ids {
		require.False(t, id.IsZero())
		_, dup := seen[id]
		require.False(t, dup, "identifier %s repeated", id)
		seen[id] = struct{}{}
	}
}

func TestSequentialIdentifierRejectsNonPositiveIndex(t *testing.T) {
	suite := EdSuite{}
	_, err := suite.SequentialIdentifier(0)
	require.Error(t, err)
}

func TestTrustedDealerSplitProducesConsistentGroupKey(t *testing.T) {
	suite := EdSuite{}
	ids := dealerIdentifiers(t, suite, 3)

	keys, pubPkg, err := suite.TrustedDealerSplit(ids, 2, nil)
	require.NoError(t, err)
	require.Len(t, keys, 3)
	require.Len(t, pubPkg.VerifyingShares, 3)

	for _, id := range ids {
		kp := keys[id]
		require.Equal(t, id, kp.Identifier)
		require.Equal(t, pubPkg.GroupPublicKey, kp.PublicKeyPackage.GroupPublicKey)
		require.NotEmpty(t, kp.SigningShare)
	}
}

func TestTrustedDealerSplitAcceptsExplicitSecret(t *testing.T) {
	suite := EdSuite{}
	ids := dealerIdentifiers(t, suite, 3)

	secret, err := RandomDealerSecret()
	require.NoError(t, err)

	keysA, pubPkgA, err := suite.TrustedDealerSplit(ids, 2, secret)
	require.NoError(t, err)
	keysB, pubPkgB, err := suite.TrustedDealerSplit(ids, 2, secret)
	require.NoError(t, err)

	require.Equal(t, pubPkgA.GroupPublicKey, pubPkgB.GroupPublicKey)
	for _, id := range ids {
		require.Equal(t, keysA[id].SigningShare, keysB[id].SigningShare)
	}
}

func TestTrustedDealerSplitRejectsInvalidThreshold(t *testing.T) {
	suite := EdSuite{}
	ids := dealerIdentifiers(t, suite, 3)

	_, _, err := suite.TrustedDealerSplit(ids, 0, nil)
	require.Error(t, err)

	_, _, err = suite.TrustedDealerSplit(ids, 4, nil)
	require.Error(t, err)
}

func TestTrustedDealerSplitRejectsDuplicateIdentifiers(t *testing.T) {
	suite := EdSuite{}
	ids := dealerIdentifiers(t, suite, 2)
	ids = append(ids, ids[0])

	_, _, err := suite.TrustedDealerSplit(ids, 2, nil)
	require.Error(t, err)
}

func TestTrustedDealerSplitKeysSignAndVerify(t *testing.T) {
	suite := EdSuite{}
	ids := dealerIdentifiers(t, suite, 3)
	keys, pubPkg, err := suite.TrustedDealerSplit(ids, 2, nil)
	require.NoError(t, err)
	ctx := context.Background()

	signers := []Identifier{ids[0], ids[2]}
	message := []byte("trusted dealer threshold signature")

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
		share, err := suite.Sign(ctx, keys[id], states[id], pkg, nil)
		require.NoError(t, err)
		shares = append(shares, share)
	}

	sig, err := suite.Aggregate(ctx, pubPkg, pkg, shares, nil)
	require.NoError(t, err)
	require.NoError(t, suite.Verify(pubPkg.GroupPublicKey, message, sig))
}
