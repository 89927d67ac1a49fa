package participant

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/frostsig/frostrelay/cipher"
	"github.com/frostsig/frostrelay/frost"
	"github.com/frostsig/frostrelay/identity"
	"github.com/frostsig/frostrelay/relay"
	"github.com/frostsig/frostrelay/relayclient"
	"github.com/frostsig/frostrelay/signing"
)

func startTestRelay(t *testing.T) (*httptest.Server, func()) {
	srv := relay.NewServer()
	ts := httptest.NewServer(srv.Router())
	return ts, func() {
		ts.Close()
		srv.Close()
	}
}

// openSession logs coordKP in, creates a single-participant session, and
// returns its ID, leaving coordClient authenticated for further calls.
func openSession(t *testing.T, ctx context.Context, coordClient *relayclient.Client, coordKP *identity.KeyPair, partPub relay.PublicKey, messageCount int) relay.CreateNewSessionOutput {
	t.Helper()
	require.NoError(t, coordClient.LoginWithKeyPair(ctx, coordKP))
	out, err := coordClient.CreateNewSession(ctx, relay.CreateNewSessionArgs{
		PublicKeys:   []relay.PublicKey{partPub},
		MessageCount: uint8(messageCount),
	})
	require.NoError(t, err)
	return out
}

func TestParticipantRejectsUnknownCoordinator(t *testing.T) {
	ts, closeFn := startTestRelay(t)
	defer closeFn()
	ctx := context.Background()

	coordKP, err := identity.GenerateKeyPair()
	require.NoError(t, err)
	partKP, err := identity.GenerateKeyPair()
	require.NoError(t, err)

	sessionOut := openSession(t, ctx, relayclient.New(ts.URL), coordKP, relay.PublicKey(partKP.Public[:]), 1)

	p := &Participant{
		Client:    relayclient.New(ts.URL),
		Suite:     frost.EdSuite{},
		KeyPair:   partKP,
		SessionID: &sessionOut.SessionID,
		Resolver:  func(relay.PublicKey) bool { return false },
	}
	_, err = p.Run(ctx)
	require.ErrorIs(t, err, ErrUnknownCoordinator)
}

func TestParticipantDeclinesViaPolicy(t *testing.T) {
	ts, closeFn := startTestRelay(t)
	defer closeFn()
	ctx := context.Background()

	coordKP, err := identity.GenerateKeyPair()
	require.NoError(t, err)
	partKP, err := identity.GenerateKeyPair()
	require.NoError(t, err)
	partPub := relay.PublicKey(partKP.Public[:])

	coordClient := relayclient.New(ts.URL)
	sessionOut := openSession(t, ctx, coordClient, coordKP, partPub, 1)

	partDH, err := identity.DHPublicKey(partPub)
	require.NoError(t, err)
	coordCipher, err := cipher.NewCipher(coordKP.Private[:], [][]byte{partDH})
	require.NoError(t, err)

	payload, err := json.Marshal(signing.SendSigningPackageArgs{
		Packages: []frost.SigningPackage{{Message: []byte("forbidden transaction")}},
	})
	require.NoError(t, err)
	ciphertext, err := coordCipher.Encrypt(partDH, payload)
	require.NoError(t, err)
	require.NoError(t, coordClient.Send(ctx, relay.SendArgs{
		SessionID:  sessionOut.SessionID,
		Recipients: []relay.PublicKey{partPub},
		Msg:        ciphertext,
	}))

	p := &Participant{
		Client:     relayclient.New(ts.URL),
		Suite:      frost.EdSuite{},
		KeyPair:    partKP,
		KeyPackage: frost.KeyPackage{},
		SessionID:  &sessionOut.SessionID,
		Resolver:   func(relay.PublicKey) bool { return true },
		Policy:     func(msg []byte) bool { return string(msg) != "forbidden transaction" },
	}
	_, err = p.Run(ctx)
	require.ErrorIs(t, err, ErrUserDeclined)
}

func TestParticipantDiscoversSoleSession(t *testing.T) {
	ts, closeFn := startTestRelay(t)
	defer closeFn()
	ctx := context.Background()

	coordKP, err := identity.GenerateKeyPair()
	require.NoError(t, err)
	partKP, err := identity.GenerateKeyPair()
	require.NoError(t, err)

	openSession(t, ctx, relayclient.New(ts.URL), coordKP, relay.PublicKey(partKP.Public[:]), 1)

	p := &Participant{Client: relayclient.New(ts.URL), KeyPair: partKP}
	require.NoError(t, p.Client.LoginWithKeyPair(ctx, partKP))
	sessionID, err := p.locateSession(ctx)
	require.NoError(t, err)
	require.NotEqual(t, sessionID.String(), "")
}

func TestParticipantNoSessionActive(t *testing.T) {
	ts, closeFn := startTestRelay(t)
	defer closeFn()
	ctx := context.Background()

	partKP, err := identity.GenerateKeyPair()
	require.NoError(t, err)

	p := &Participant{Client: relayclient.New(ts.URL), KeyPair: partKP}
	require.NoError(t, p.Client.LoginWithKeyPair(ctx, partKP))
	_, err = p.locateSession(ctx)
	require.ErrorIs(t, err, ErrNoSessionActive)
}
