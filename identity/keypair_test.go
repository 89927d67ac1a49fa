package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKeyPairProducesDistinctKeys(t *testing.T) {
	kp1, err := GenerateKeyPair()
	require.NoError(t, err)
	kp2, err := GenerateKeyPair()
	require.NoError(t, err)

	assert.NotEqual(t, kp1.Public, kp2.Public)
	assert.False(t, isZeroKey(kp1.Private))
}

func TestFromSecretKeyRejectsZeroSeed(t *testing.T) {
	_, err := FromSecretKey([32]byte{})
	assert.Error(t, err)
}

func TestFromSecretKeyIsDeterministic(t *testing.T) {
	var seed [32]byte
	for i := range seed {
		seed[i] = byte(i + 1)
	}

	kp1, err := FromSecretKey(seed)
	require.NoError(t, err)
	kp2, err := FromSecretKey(seed)
	require.NoError(t, err)

	assert.Equal(t, kp1.Public, kp2.Public)
}

func TestSignVerifyRoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	challenge := []byte("challenge-bytes")
	sig := kp.Sign(challenge)

	assert.True(t, Verify(kp.VerifyingKey(), challenge, sig))
	assert.False(t, Verify(kp.VerifyingKey(), []byte("different"), sig))
}

func TestVerifyRejectsWrongKeyLength(t *testing.T) {
	assert.False(t, Verify([]byte("too-short"), []byte("msg"), []byte("sig")))
}

func TestWipeKeyPairZeroesPrivate(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	require.NoError(t, WipeKeyPair(kp))
	assert.True(t, isZeroKey(kp.Private))
}
