package contact

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContact(name string) Contact {
	var c Contact
	c.DisplayName = name
	for i := range c.PublicKey {
		c.PublicKey[i] = byte(i + 1)
	}
	return c
}

func TestRoundTrip(t *testing.T) {
	original := testContact("alice")

	text, err := original.MarshalText()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(text), HRP+"1"))

	var decoded Contact
	require.NoError(t, decoded.UnmarshalText(text))
	assert.True(t, original.Equal(decoded))
}

func TestRoundTripEmptyName(t *testing.T) {
	original := testContact("")

	text, err := original.MarshalText()
	require.NoError(t, err)

	var decoded Contact
	require.NoError(t, decoded.UnmarshalText(text))
	assert.True(t, original.Equal(decoded))
}

func TestDecodeRejectsWrongHRP(t *testing.T) {
	other := testContact("bob")
	text, err := other.MarshalText()
	require.NoError(t, err)

	tampered := "bc1" + string(text)[len(HRP)+1:]
	var decoded Contact
	assert.Error(t, decoded.UnmarshalText([]byte(tampered)))
}

func TestDecodeRejectsCorruption(t *testing.T) {
	original := testContact("carol")
	text, err := original.MarshalText()
	require.NoError(t, err)

	corrupted := []byte(string(text))
	corrupted[len(corrupted)-1] ^= 0x01

	var decoded Contact
	assert.Error(t, decoded.UnmarshalText(corrupted))
}

func TestEncodeRejectsOversizedName(t *testing.T) {
	c := testContact(strings.Repeat("x", maxNameLen+1))
	_, err := c.MarshalText()
	assert.ErrorIs(t, err, ErrNameTooLong)
}
