package signing

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/frostsig/frostrelay/frost"
	"github.com/frostsig/frostrelay/relay"
)

// Sentinel errors returned by State.Recv.
var (
	// ErrWrongState is returned when a message arrives for a phase it
	// doesn't belong to (e.g. signature shares before all commitments are in).
	ErrWrongState = errors.New("signing: message received in the wrong phase")
	// ErrNotInSession is returned when the sender is not one of the
	// session's expected participants. The relay already enforces session
	// membership; the coordinator re-verifies on its own state.
	ErrNotInSession = errors.New("signing: sender is not an expected participant")
	// ErrWrongBatchSize is returned when a payload doesn't carry exactly
	// the session's expected message count.
	ErrWrongBatchSize = errors.New("signing: payload does not match expected message count")
	// ErrSenderNotCommitted is returned when signature shares arrive from a
	// sender who never submitted commitments in this session.
	ErrSenderNotCommitted = errors.New("signing: sender has not submitted commitments")
)

// Phase names one of the three states a signing session can be in.
type Phase int

const (
	// PhaseWaitingForCommitments is the initial phase: round-1 commitments
	// are still outstanding from at least one expected participant.
	PhaseWaitingForCommitments Phase = iota
	// PhaseWaitingForSignatureShares follows once every expected
	// participant's commitments have been received.
	PhaseWaitingForSignatureShares
	// PhaseSignatureSharesReady is the terminal phase: every expected
	// participant's signature shares have been received and aggregation may
	// proceed.
	PhaseSignatureSharesReady
)

func (p Phase) String() string {
	switch p {
	case PhaseWaitingForCommitments:
		return "waiting_for_commitments"
	case PhaseWaitingForSignatureShares:
		return "waiting_for_signature_shares"
	case PhaseSignatureSharesReady:
		return "signature_shares_ready"
	default:
		return "unknown"
	}
}

// SendCommitmentsArgs is the decrypted payload a participant posts in round
// 1: exactly MessageCount commitments, one per co-signed message, in
// ascending message-index order.
type SendCommitmentsArgs struct {
	Commitments []frost.SigningCommitments `json:"commitments"`
}

// SendSignatureSharesArgs is the decrypted payload a participant posts in
// round 2: exactly MessageCount signature shares, one per message.
type SendSignatureSharesArgs struct {
	Shares []frost.SignatureShare `json:"shares"`
}

// State is the coordinator-side signing session state machine. It is not
// safe for concurrent use; the coordinator drives it from a single
// goroutine per signing run.
type State struct {
	participants map[string]relay.PublicKey
	messageCount int

	phase Phase

	commitments map[string][]frost.SigningCommitments
	shares      map[string][]frost.SignatureShare
}

// NewState builds a State expecting commitments and shares from exactly
// participants, each carrying messageCount entries.
func NewState(participants []relay.PublicKey, messageCount int) *State {
	set := make(map[string]relay.PublicKey, len(participants))
	for _, p := range participants {
		set[p.String()] = p
	}
	return &State{
		participants: set,
		messageCount: messageCount,
		phase:        PhaseWaitingForCommitments,
		commitments:  make(map[string][]frost.SigningCommitments, len(set)),
		shares:       make(map[string][]frost.SignatureShare, len(set)),
	}
}

// Phase returns the state's current phase.
func (s *State) Phase() Phase { return s.phase }

// HasCommitments reports whether every expected participant's commitments
// have been received, i.e. whether the coordinator may move on to assembling
// signing packages.
func (s *State) HasCommitments() bool {
	return s.phase == PhaseWaitingForSignatureShares || s.phase == PhaseSignatureSharesReady
}

// HasSignatureShares reports whether every expected participant's signature
// shares have been received, i.e. whether aggregation may proceed.
func (s *State) HasSignatureShares() bool {
	return s.phase == PhaseSignatureSharesReady
}

// Recv parses and applies one decrypted envelope payload, dispatching on the
// state's current phase. sender must be one of the participants passed to
// NewState.
func (s *State) Recv(sender relay.PublicKey, payload []byte) error {
	key := sender.String()
	if _, ok := s.participants[key]; !ok {
		return ErrNotInSession
	}

	switch s.phase {
	case PhaseWaitingForCommitments:
		return s.recvCommitments(key, payload)
	case PhaseWaitingForSignatureShares:
		return s.recvShares(key, payload)
	default:
		return fmt.Errorf("%w: current phase is %s", ErrWrongState, s.phase)
	}
}

func (s *State) recvCommitments(key string, payload []byte) error {
	var args SendCommitmentsArgs
	if err := json.Unmarshal(payload, &args); err != nil {
		return fmt.Errorf("signing: decoding commitments: %w", err)
	}
	if len(args.Commitments) != s.messageCount {
		return ErrWrongBatchSize
	}

	s.commitments[key] = args.Commitments
	logrus.WithFields(logrus.Fields{
		"package":  "signing",
		"sender":   key,
		"received": len(s.commitments),
		"expected": len(s.participants),
	}).Debug("received commitments")

	if len(s.commitments) == len(s.participants) {
		s.phase = PhaseWaitingForSignatureShares
	}
	return nil
}

func (s *State) recvShares(key string, payload []byte) error {
	if _, ok := s.commitments[key]; !ok {
		return ErrSenderNotCommitted
	}

	var args SendSignatureSharesArgs
	if err := json.Unmarshal(payload, &args); err != nil {
		return fmt.Errorf("signing: decoding signature shares: %w", err)
	}
	if len(args.Shares) != s.messageCount {
		// A participant retrying its round-1 send can race the phase
		// transition. A duplicate commitments payload from a sender already
		// counted is dropped rather than failing the session; the signing
		// package was built from the copy that arrived first.
		var dup SendCommitmentsArgs
		if err := json.Unmarshal(payload, &dup); err == nil && len(dup.Commitments) == s.messageCount {
			logrus.WithFields(logrus.Fields{
				"package": "signing",
				"sender":  key,
			}).Debug("ignoring duplicate commitments received after round 1 completed")
			return nil
		}
		return ErrWrongBatchSize
	}

	s.shares[key] = args.Shares
	logrus.WithFields(logrus.Fields{
		"package":  "signing",
		"sender":   key,
		"received": len(s.shares),
		"expected": len(s.commitments),
	}).Debug("received signature shares")

	if len(s.shares) == len(s.commitments) {
		s.phase = PhaseSignatureSharesReady
	}
	return nil
}

// CommitmentsForMessage returns every participant's commitment for the j-th
// co-signed message (0-indexed), for building that message's SigningPackage.
// Valid only once HasCommitments is true.
func (s *State) CommitmentsForMessage(j int) ([]frost.SigningCommitments, error) {
	if !s.HasCommitments() {
		return nil, fmt.Errorf("%w: commitments not yet complete", ErrWrongState)
	}
	if j < 0 || j >= s.messageCount {
		return nil, fmt.Errorf("signing: message index %d out of range [0,%d)", j, s.messageCount)
	}
	out := make([]frost.SigningCommitments, 0, len(s.commitments))
	for _, list := range s.commitments {
		out = append(out, list[j])
	}
	return out, nil
}

// SharesForMessage returns every participant's signature share for the j-th
// co-signed message. Valid only once HasSignatureShares is true.
func (s *State) SharesForMessage(j int) ([]frost.SignatureShare, error) {
	if !s.HasSignatureShares() {
		return nil, fmt.Errorf("%w: signature shares not yet complete", ErrWrongState)
	}
	if j < 0 || j >= s.messageCount {
		return nil, fmt.Errorf("signing: message index %d out of range [0,%d)", j, s.messageCount)
	}
	out := make([]frost.SignatureShare, 0, len(s.shares))
	for _, list := range s.shares {
		out = append(out, list[j])
	}
	return out, nil
}

// Participants returns the session's expected participant set.
func (s *State) Participants() []relay.PublicKey {
	out := make([]relay.PublicKey, 0, len(s.participants))
	for _, p := range s.participants {
		out = append(out, p)
	}
	return out
}
