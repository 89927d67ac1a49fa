package signing

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frostsig/frostrelay/frost"
	"github.com/frostsig/frostrelay/relay"
)

func pubkey(b byte) relay.PublicKey {
	return relay.PublicKey{b, b, b}
}

func commitmentsPayload(t *testing.T, n int) []byte {
	t.Helper()
	args := SendCommitmentsArgs{Commitments: make([]frost.SigningCommitments, n)}
	data, err := json.Marshal(args)
	require.NoError(t, err)
	return data
}

func sharesPayload(t *testing.T, n int) []byte {
	t.Helper()
	args := SendSignatureSharesArgs{Shares: make([]frost.SignatureShare, n)}
	data, err := json.Marshal(args)
	require.NoError(t, err)
	return data
}

func TestStateAdvancesThroughPhases(t *testing.T) {
	p1, p2 := pubkey(1), pubkey(2)
	s := NewState([]relay.PublicKey{p1, p2}, 2)

	assert.Equal(t, PhaseWaitingForCommitments, s.Phase())
	assert.False(t, s.HasCommitments())

	require.NoError(t, s.Recv(p1, commitmentsPayload(t, 2)))
	assert.Equal(t, PhaseWaitingForCommitments, s.Phase())

	require.NoError(t, s.Recv(p2, commitmentsPayload(t, 2)))
	assert.Equal(t, PhaseWaitingForSignatureShares, s.Phase())
	assert.True(t, s.HasCommitments())
	assert.False(t, s.HasSignatureShares())

	require.NoError(t, s.Recv(p1, sharesPayload(t, 2)))
	assert.False(t, s.HasSignatureShares())

	require.NoError(t, s.Recv(p2, sharesPayload(t, 2)))
	assert.True(t, s.HasSignatureShares())
	assert.Equal(t, PhaseSignatureSharesReady, s.Phase())
}

func TestDuplicateCommitmentsOverwriteNotDuplicate(t *testing.T) {
	p1, p2 := pubkey(1), pubkey(2)
	s := NewState([]relay.PublicKey{p1, p2}, 1)

	require.NoError(t, s.Recv(p1, commitmentsPayload(t, 1)))
	require.NoError(t, s.Recv(p1, commitmentsPayload(t, 1))) // retry
	assert.Equal(t, PhaseWaitingForCommitments, s.Phase())
	assert.Len(t, s.commitments, 1)

	require.NoError(t, s.Recv(p2, commitmentsPayload(t, 1)))
	assert.Equal(t, PhaseWaitingForSignatureShares, s.Phase())
}

func TestLateDuplicateCommitmentsIgnoredAfterRound1(t *testing.T) {
	p1, p2 := pubkey(1), pubkey(2)
	s := NewState([]relay.PublicKey{p1, p2}, 1)

	require.NoError(t, s.Recv(p1, commitmentsPayload(t, 1)))
	require.NoError(t, s.Recv(p2, commitmentsPayload(t, 1)))
	require.Equal(t, PhaseWaitingForSignatureShares, s.Phase())

	// p2's retried round-1 send lands after the phase transition; it must
	// not fail the session or disturb the phase.
	require.NoError(t, s.Recv(p2, commitmentsPayload(t, 1)))
	assert.Equal(t, PhaseWaitingForSignatureShares, s.Phase())

	require.NoError(t, s.Recv(p1, sharesPayload(t, 1)))
	require.NoError(t, s.Recv(p2, sharesPayload(t, 1)))
	assert.True(t, s.HasSignatureShares())
}

func TestRecvRejectsUnknownSender(t *testing.T) {
	s := NewState([]relay.PublicKey{pubkey(1)}, 1)
	err := s.Recv(pubkey(9), commitmentsPayload(t, 1))
	assert.ErrorIs(t, err, ErrNotInSession)
}

func TestRecvRejectsWrongBatchSize(t *testing.T) {
	s := NewState([]relay.PublicKey{pubkey(1)}, 2)
	err := s.Recv(pubkey(1), commitmentsPayload(t, 1))
	assert.ErrorIs(t, err, ErrWrongBatchSize)
}

func TestSharesFromUnexpectedSenderRejected(t *testing.T) {
	p1, p2 := pubkey(1), pubkey(2)
	s := NewState([]relay.PublicKey{p1, p2}, 1)
	require.NoError(t, s.Recv(p1, commitmentsPayload(t, 1)))
	require.NoError(t, s.Recv(p2, commitmentsPayload(t, 1)))

	// A third pubkey was never expected so it's rejected before we even get
	// to the "has committed" check.
	err := s.Recv(pubkey(3), sharesPayload(t, 1))
	assert.ErrorIs(t, err, ErrNotInSession)
}

func TestWrongPhaseRejected(t *testing.T) {
	s := NewState([]relay.PublicKey{pubkey(1)}, 1)
	require.NoError(t, s.Recv(pubkey(1), commitmentsPayload(t, 1)))
	require.NoError(t, s.Recv(pubkey(1), sharesPayload(t, 1)))
	assert.True(t, s.HasSignatureShares())

	err := s.Recv(pubkey(1), sharesPayload(t, 1))
	assert.ErrorIs(t, err, ErrWrongState)
}

func TestCommitmentsForMessageGathersAllParticipants(t *testing.T) {
	p1, p2 := pubkey(1), pubkey(2)
	s := NewState([]relay.PublicKey{p1, p2}, 2)
	require.NoError(t, s.Recv(p1, commitmentsPayload(t, 2)))
	require.NoError(t, s.Recv(p2, commitmentsPayload(t, 2)))

	commitments, err := s.CommitmentsForMessage(0)
	require.NoError(t, err)
	assert.Len(t, commitments, 2)

	_, err = s.CommitmentsForMessage(5)
	assert.Error(t, err)
}
