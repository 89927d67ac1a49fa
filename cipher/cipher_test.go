package cipher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	aPriv, aPub, err := GenerateKeypair()
	require.NoError(t, err)
	bPriv, bPub, err := GenerateKeypair()
	require.NoError(t, err)

	alice, err := NewCipher(aPriv, [][]byte{bPub})
	require.NoError(t, err)
	bob, err := NewCipher(bPriv, [][]byte{aPub})
	require.NoError(t, err)

	plaintext := []byte("round 1 commitments")
	ct, err := alice.Encrypt(nil, plaintext)
	require.NoError(t, err)

	pt, err := bob.Decrypt(nil, ct)
	require.NoError(t, err)
	assert.Equal(t, plaintext, pt)
}

func TestEncryptDecryptMultipleMessages(t *testing.T) {
	aPriv, aPub, err := GenerateKeypair()
	require.NoError(t, err)
	bPriv, bPub, err := GenerateKeypair()
	require.NoError(t, err)

	alice, err := NewCipher(aPriv, [][]byte{bPub})
	require.NoError(t, err)
	bob, err := NewCipher(bPriv, [][]byte{aPub})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		msg := []byte{byte(i), byte(i + 1), byte(i + 2)}
		ct, err := alice.Encrypt(nil, msg)
		require.NoError(t, err)
		pt, err := bob.Decrypt(nil, ct)
		require.NoError(t, err)
		assert.Equal(t, msg, pt)
	}
}

func TestEncryptRejectsAmbiguousRecipient(t *testing.T) {
	aPriv, _, err := GenerateKeypair()
	require.NoError(t, err)
	_, bPub, err := GenerateKeypair()
	require.NoError(t, err)
	_, cPub, err := GenerateKeypair()
	require.NoError(t, err)

	alice, err := NewCipher(aPriv, [][]byte{bPub, cPub})
	require.NoError(t, err)

	_, err = alice.Encrypt(nil, []byte("hello"))
	assert.ErrorIs(t, err, ErrAmbiguousRecipient)
}

func TestEncryptRejectsUnknownRecipient(t *testing.T) {
	aPriv, _, err := GenerateKeypair()
	require.NoError(t, err)
	_, bPub, err := GenerateKeypair()
	require.NoError(t, err)
	_, strangerPub, err := GenerateKeypair()
	require.NoError(t, err)

	alice, err := NewCipher(aPriv, [][]byte{bPub})
	require.NoError(t, err)

	_, err = alice.Encrypt(strangerPub, []byte("hello"))
	assert.ErrorIs(t, err, ErrUnknownRecipient)
}

func TestDecryptRejectsTamperedSender(t *testing.T) {
	aPriv, aPub, err := GenerateKeypair()
	require.NoError(t, err)
	bPriv, bPub, err := GenerateKeypair()
	require.NoError(t, err)
	_, cPub, err := GenerateKeypair()
	require.NoError(t, err)

	alice, err := NewCipher(aPriv, [][]byte{bPub})
	require.NoError(t, err)
	bob, err := NewCipher(bPriv, [][]byte{aPub, cPub})
	require.NoError(t, err)

	ct, err := alice.Encrypt(nil, []byte("hello"))
	require.NoError(t, err)

	_, err = bob.Decrypt(cPub, ct)
	assert.Error(t, err)
}

func TestEncryptAcceptsMaxSizeMessage(t *testing.T) {
	aPriv, aPub, err := GenerateKeypair()
	require.NoError(t, err)
	bPriv, bPub, err := GenerateKeypair()
	require.NoError(t, err)

	alice, err := NewCipher(aPriv, [][]byte{bPub})
	require.NoError(t, err)
	bob, err := NewCipher(bPriv, [][]byte{aPub})
	require.NoError(t, err)

	plaintext := make([]byte, MaxMessageSize)
	ct, err := alice.Encrypt(nil, plaintext)
	require.NoError(t, err)

	pt, err := bob.Decrypt(nil, ct)
	require.NoError(t, err)
	assert.Equal(t, plaintext, pt)
}

func TestEncryptRejectsOversizedMessage(t *testing.T) {
	aPriv, _, err := GenerateKeypair()
	require.NoError(t, err)
	_, bPub, err := GenerateKeypair()
	require.NoError(t, err)

	alice, err := NewCipher(aPriv, [][]byte{bPub})
	require.NoError(t, err)

	_, err = alice.Encrypt(nil, make([]byte, MaxMessageSize+1))
	assert.ErrorIs(t, err, ErrMessageTooLarge)
}
