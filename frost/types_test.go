package frost

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIdentifierMarshalTextRoundTrip(t *testing.T) {
	var id Identifier
	id[0] = 0xab
	id[31] = 0x01

	text, err := id.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "ab"+strings.Repeat("00", 30)+"01", string(text))

	var decoded Identifier
	require.NoError(t, decoded.UnmarshalText(text))
	require.Equal(t, id, decoded)
}

func TestPublicKeyPackageMarshalsWithMapKeyIdentifiers(t *testing.T) {
	var idA, idB Identifier
	idA[0] = 0x01
	idB[0] = 0x02

	pkg := PublicKeyPackage{
		GroupPublicKey: []byte{0xaa, 0xbb},
		VerifyingShares: map[Identifier][]byte{
			idA: {0x01},
			idB: {0x02},
		},
	}

	data, err := json.Marshal(pkg)
	require.NoError(t, err)

	var decoded PublicKeyPackage
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, pkg.GroupPublicKey, decoded.GroupPublicKey)
	require.Equal(t, pkg.VerifyingShares, decoded.VerifyingShares)
}

func TestKeyPackageMarshalRoundTrip(t *testing.T) {
	var id Identifier
	id[0] = 0x09

	kp := KeyPackage{
		Identifier:   id,
		SigningShare: []byte{0x01, 0x02, 0x03},
		PublicKeyPackage: PublicKeyPackage{
			GroupPublicKey:  []byte{0xaa},
			VerifyingShares: map[Identifier][]byte{id: {0x01}},
		},
	}

	data, err := json.Marshal(kp)
	require.NoError(t, err)

	var decoded KeyPackage
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, kp, decoded)
}
