package frost

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func dkg(t *testing.T, suite EdSuite, ids []Identifier, threshold int) map[Identifier]KeyPackage {
	t.Helper()
	ctx := context.Background()

	round1 := make(map[Identifier]Round1Package, len(ids))
	round1Secrets := make(map[Identifier][]byte, len(ids))
	for _, id := range ids {
		pkg, secret, err := suite.DkgRound1(ctx, id, threshold, len(ids))
		require.NoError(t, err)
		round1[id] = pkg
		round1Secrets[id] = secret
	}

	round2Secrets := make(map[Identifier][]byte, len(ids))
	round2ByRecipient := make(map[Identifier]map[Identifier]Round2Package, len(ids))
	for _, id := range ids {
		packages, selfSecret, err := suite.DkgRound2(ctx, id, round1Secrets[id], round1)
		require.NoError(t, err)
		round2Secrets[id] = selfSecret
		for _, pkg := range packages {
			if round2ByRecipient[pkg.Recipient] == nil {
				round2ByRecipient[pkg.Recipient] = make(map[Identifier]Round2Package)
			}
			round2ByRecipient[pkg.Recipient][pkg.Sender] = pkg
		}
	}

	keys := make(map[Identifier]KeyPackage, len(ids))
	for _, id := range ids {
		kp, err := suite.DkgRound3(ctx, id, round1, round2Secrets[id], round2ByRecipient[id])
		require.NoError(t, err)
		keys[id] = kp
	}
	return keys
}

func testIdentifiers(t *testing.T, suite EdSuite, n int) []Identifier {
	t.Helper()
	ids := make([]Identifier, n)
	for i := 0; i < n; i++ {
		id, err := suite.DeriveIdentifier([]byte("session"), []byte{byte(i)})
		require.NoError(t, err)
		ids[i] = id
	}
	return ids
}

func TestDkgProducesConsistentGroupKey(t *testing.T) {
	suite := EdSuite{}
	ids := testIdentifiers(t, suite, 3)
	keys := dkg(t, suite, ids, 2)

	first := keys[ids[0]].PublicKeyPackage.GroupPublicKey
	for _, id := range ids[1:] {
		require.Equal(t, first, keys[id].PublicKeyPackage.GroupPublicKey)
	}
}

func TestSignAggregateVerifyRoundTrip(t *testing.T) {
	suite := EdSuite{}
	ids := testIdentifiers(t, suite, 3)
	keys := dkg(t, suite, ids, 2)
	ctx := context.Background()

	signers := []Identifier{ids[0], ids[1]}
	message := []byte("pay alice 5 BTC")

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

	sig, err := suite.Aggregate(ctx, keys[ids[0]].PublicKeyPackage, pkg, shares, nil)
	require.NoError(t, err)

	require.NoError(t, suite.Verify(keys[ids[0]].PublicKeyPackage.GroupPublicKey, message, sig))
}

func TestVerifyRejectsWrongMessage(t *testing.T) {
	suite := EdSuite{}
	ids := testIdentifiers(t, suite, 3)
	keys := dkg(t, suite, ids, 2)
	ctx := context.Background()

	signers := []Identifier{ids[0], ids[2]}
	message := []byte("original message")

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

	sig, err := suite.Aggregate(ctx, keys[ids[0]].PublicKeyPackage, pkg, shares, nil)
	require.NoError(t, err)

	err = suite.Verify(keys[ids[0]].PublicKeyPackage.GroupPublicKey, []byte("tampered message"), sig)
	require.Error(t, err)
}

func TestAggregateRejectsTamperedShare(t *testing.T) {
	suite := EdSuite{}
	ids := testIdentifiers(t, suite, 3)
	keys := dkg(t, suite, ids, 2)
	ctx := context.Background()

	signers := []Identifier{ids[1], ids[2]}
	message := []byte("a message")

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
	shares[0].Share[0] ^= 0xFF

	_, err := suite.Aggregate(ctx, keys[ids[0]].PublicKeyPackage, pkg, shares, nil)
	require.Error(t, err)
}

func TestSignRejectsRerandomization(t *testing.T) {
	suite := EdSuite{}
	ids := testIdentifiers(t, suite, 3)
	keys := dkg(t, suite, ids, 2)
	ctx := context.Background()

	c, state, err := suite.Commit(ctx, keys[ids[0]])
	require.NoError(t, err)
	pkg := SigningPackage{Message: []byte("m"), Commitments: []SigningCommitments{c}}

	_, err = suite.Sign(ctx, keys[ids[0]], state, pkg, Randomizer{0x01})
	require.Error(t, err)
}

func TestDeriveIdentifierIsDeterministic(t *testing.T) {
	suite := EdSuite{}
	id1, err := suite.DeriveIdentifier([]byte("session-a"), []byte("pubkey"))
	require.NoError(t, err)
	id2, err := suite.DeriveIdentifier([]byte("session-a"), []byte("pubkey"))
	require.NoError(t, err)
	require.Equal(t, id1, id2)

	id3, err := suite.DeriveIdentifier([]byte("session-b"), []byte("pubkey"))
	require.NoError(t, err)
	require.NotEqual(t, id1, id3)
}
