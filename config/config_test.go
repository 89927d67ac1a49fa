package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestLoadMissingFileReturnsEmptyConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, CurrentVersion, cfg.Version)
	require.Empty(t, cfg.Contacts)
	require.Empty(t, cfg.Groups)
	require.Nil(t, cfg.CommunicationKey)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)

	cfg.CommunicationKey = &CommunicationKey{
		Private: HexBytes{0x01, 0x02, 0x03},
		Public:  HexBytes{0x04, 0x05, 0x06},
	}
	require.NoError(t, cfg.AddContact("alice", []byte{0xaa, 0xbb}))
	cfg.AddGroup("deadbeef", Group{
		Ciphersuite:      "ed25519",
		PublicKeyPackage: HexBytes{0x10, 0x20},
		ServerURL:        "https://relay.example:2744",
		Participants: map[string]Participant{
			"01": {Identifier: HexBytes{0x01}, PublicKey: HexBytes{0xaa, 0xbb}},
		},
	})

	require.NoError(t, cfg.Save())

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.CommunicationKey, reloaded.CommunicationKey)
	require.Equal(t, cfg.Contacts, reloaded.Contacts)
	require.Equal(t, cfg.Groups, reloaded.Groups)
}

func TestAddContactRejectsDuplicateName(t *testing.T) {
	cfg := empty(filepath.Join(t.TempDir(), "credentials.yaml"))
	require.NoError(t, cfg.AddContact("alice", []byte{0x01}))
	require.Error(t, cfg.AddContact("alice", []byte{0x02}))
}

func TestAddContactRejectsOwnKey(t *testing.T) {
	cfg := empty(filepath.Join(t.TempDir(), "credentials.yaml"))
	cfg.CommunicationKey = &CommunicationKey{Public: HexBytes{0xaa, 0xbb}}
	require.Error(t, cfg.AddContact("me", []byte{0xaa, 0xbb}))
}

func TestRemoveContactReportsWhetherRemoved(t *testing.T) {
	cfg := empty(filepath.Join(t.TempDir(), "credentials.yaml"))
	require.NoError(t, cfg.AddContact("alice", []byte{0x01}))
	require.True(t, cfg.RemoveContact("alice"))
	require.False(t, cfg.RemoveContact("alice"))
}

func TestLoadRejectsVersionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.yaml")
	cfg := empty(path)
	cfg.Version = CurrentVersion + 1
	data, err := yaml.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, writeAtomic(path, data))

	_, err = Load(path)
	require.ErrorIs(t, err, ErrVersionMismatch)
}
