package dkgsession

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frostsig/frostrelay/frost"
)

func id(b byte) frost.Identifier {
	var out frost.Identifier
	out[31] = b
	return out
}

func round1Pkg(owner frost.Identifier) frost.Round1Package {
	return frost.Round1Package{
		Identifier:       owner,
		Commitment:       [][]byte{{1, 2, 3}},
		ProofOfKnowledge: []byte{4, 5, 6},
	}
}

func msgPayload(t *testing.T, m Message) []byte {
	t.Helper()
	data, err := json.Marshal(m)
	require.NoError(t, err)
	return data
}

func TestTwoPartySkipsEcho(t *testing.T) {
	a, b := id(1), id(2)
	s := NewState(a, []frost.Identifier{a, b})

	require.NoError(t, s.RecvRound1(a, round1Pkg(a)))
	assert.Equal(t, PhaseCollectingRound1, s.Phase())

	require.NoError(t, s.RecvRound1(b, round1Pkg(b)))
	assert.Equal(t, PhaseCollectingRound2, s.Phase()) // echo skipped for n<=2
	assert.True(t, s.ReadyForRound2())
}

func TestThreePartyRequiresEcho(t *testing.T) {
	a, b, c := id(1), id(2), id(3)
	s := NewState(a, []frost.Identifier{a, b, c})

	require.NoError(t, s.RecvRound1(a, round1Pkg(a)))
	require.NoError(t, s.RecvRound1(b, round1Pkg(b)))
	require.NoError(t, s.RecvRound1(c, round1Pkg(c)))
	assert.Equal(t, PhaseEchoBroadcast, s.Phase())

	// b forwards c's package, c forwards b's package: the only two pairs not
	// involving self (a).
	require.NoError(t, s.RecvEcho(b, c, round1Pkg(c)))
	assert.Equal(t, PhaseEchoBroadcast, s.Phase())
	require.NoError(t, s.RecvEcho(c, b, round1Pkg(b)))
	assert.Equal(t, PhaseCollectingRound2, s.Phase())
}

func TestEchoMismatchAborts(t *testing.T) {
	a, b, c := id(1), id(2), id(3)
	s := NewState(a, []frost.Identifier{a, b, c})
	require.NoError(t, s.RecvRound1(a, round1Pkg(a)))
	require.NoError(t, s.RecvRound1(b, round1Pkg(b)))
	require.NoError(t, s.RecvRound1(c, round1Pkg(c)))

	tampered := round1Pkg(c)
	tampered.ProofOfKnowledge = []byte{9, 9, 9}
	err := s.RecvEcho(b, c, tampered)
	assert.ErrorIs(t, err, ErrEchoMismatch)
}

func TestRound2CompletesSession(t *testing.T) {
	a, b := id(1), id(2)
	s := NewState(a, []frost.Identifier{a, b})
	require.NoError(t, s.RecvRound1(a, round1Pkg(a)))
	require.NoError(t, s.RecvRound1(b, round1Pkg(b)))

	require.NoError(t, s.RecvRound2(b, frost.Round2Package{Sender: b, Recipient: a, Value: []byte{1}}))
	assert.True(t, s.IsComplete())
	assert.Len(t, s.Round2Packages(), 1)
}

func TestRound2WrongRecipientRejected(t *testing.T) {
	a, b := id(1), id(2)
	s := NewState(a, []frost.Identifier{a, b})
	require.NoError(t, s.RecvRound1(a, round1Pkg(a)))
	require.NoError(t, s.RecvRound1(b, round1Pkg(b)))

	err := s.RecvRound2(b, frost.Round2Package{Sender: b, Recipient: b, Value: []byte{1}})
	assert.ErrorIs(t, err, ErrWrongRecipient)
}

func TestRecvDispatchesByKindAndPhase(t *testing.T) {
	a, b := id(1), id(2)
	s := NewState(a, []frost.Identifier{a, b})

	pkg := round1Pkg(b)
	err := s.Recv(b, msgPayload(t, Message{Kind: KindRound1, Round1: &pkg}))
	require.NoError(t, err)

	// Round2 arriving before round1 is complete for 'a' is the wrong phase.
	err = s.Recv(b, msgPayload(t, Message{Kind: KindRound2, Round2: &frost.Round2Package{Sender: b, Recipient: a}}))
	assert.ErrorIs(t, err, ErrWrongState)
}

func TestRecvRejectsUnknownParticipant(t *testing.T) {
	a, b := id(1), id(2)
	s := NewState(a, []frost.Identifier{a, b})
	err := s.Recv(id(99), msgPayload(t, Message{Kind: KindRound1}))
	assert.ErrorIs(t, err, ErrUnknownParticipant)
}
