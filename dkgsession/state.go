package dkgsession

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/frostsig/frostrelay/frost"
)

// Sentinel errors returned by State's Recv* methods.
var (
	// ErrWrongState is returned when a message kind doesn't belong to the
	// session's current phase.
	ErrWrongState = errors.New("dkgsession: message received in the wrong phase")
	// ErrUnknownParticipant is returned when a sender or forwarder isn't
	// part of the session's fixed participant set.
	ErrUnknownParticipant = errors.New("dkgsession: sender is not a session participant")
	// ErrEchoMismatch is returned when two participants report different
	// round-1 packages for the same subject, indicating the subject sent
	// inconsistent data to different peers (the split-view attack the echo
	// round defends against). Fatal: the DKG run must be aborted.
	ErrEchoMismatch = errors.New("dkgsession: echoed round-1 package does not match the original")
	// ErrWrongRecipient is returned when a round-2 package is addressed to
	// someone other than this participant.
	ErrWrongRecipient = errors.New("dkgsession: round-2 package addressed to a different recipient")
)

// Phase names one of the phases a DKG session moves through.
type Phase int

const (
	// PhaseCollectingRound1 is the initial phase: round-1 packages are
	// still outstanding from at least one participant (including the local
	// one; callers insert their own via RecvRound1 like any other sender).
	PhaseCollectingRound1 Phase = iota
	// PhaseEchoBroadcast follows round 1 only when the group has more than
	// two participants; every participant rebroadcasts every peer's
	// round-1 package to every other peer and this phase collects those
	// echoes, verifying they agree with what was received directly.
	PhaseEchoBroadcast
	// PhaseCollectingRound2 collects the per-recipient round-2 packages
	// addressed to this participant.
	PhaseCollectingRound2
	// PhaseComplete is the terminal phase: every round-2 package has been
	// received and DkgRound3 may be run.
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseCollectingRound1:
		return "collecting_round1"
	case PhaseEchoBroadcast:
		return "echo_broadcast"
	case PhaseCollectingRound2:
		return "collecting_round2"
	case PhaseComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// MessageKind tags the payload carried by a Message so a single Recv
// dispatch can route round-1 broadcasts, echoes, and round-2 packages to
// the right phase handler.
type MessageKind uint8

const (
	// KindRound1 carries a participant's round-1 broadcast package.
	KindRound1 MessageKind = iota
	// KindEcho carries a peer's rebroadcast of a third participant's
	// round-1 package, for split-view detection.
	KindEcho
	// KindRound2 carries a participant's round-2 package addressed to one
	// specific recipient.
	KindRound2
)

// EchoPayload is the body of a KindEcho message: forwarder's claim about
// what subject's round-1 package actually was.
type EchoPayload struct {
	Subject frost.Identifier    `json:"subject"`
	Package frost.Round1Package `json:"package"`
}

// Message is the wire envelope for every DKG round message, broadcast or
// directed, encrypted individually per recipient by the driver.
type Message struct {
	Kind   MessageKind          `json:"kind"`
	Round1 *frost.Round1Package `json:"round1,omitempty"`
	Echo   *EchoPayload         `json:"echo,omitempty"`
	Round2 *frost.Round2Package `json:"round2,omitempty"`
}

type echoKey struct {
	Forwarder frost.Identifier
	Subject   frost.Identifier
}

// State is the participant-side DKG session state machine. It is not safe
// for concurrent use; a dkgdriver run drives it from a single goroutine.
type State struct {
	self           frost.Identifier
	participants   map[frost.Identifier]struct{}
	echoRequired   bool
	expectedEchoes int

	phase Phase

	round1 map[frost.Identifier]frost.Round1Package
	echoes map[echoKey]frost.Round1Package
	round2 map[frost.Identifier]frost.Round2Package
}

// NewState builds a State for a DKG run among participants (including self),
// identified by identifiers already derived from the session ID and each
// member's communication public key (see frost.Suite.DeriveIdentifier). The
// echo-broadcast round is skipped when there are two or fewer participants:
// with no third party there is no split view to detect.
func NewState(self frost.Identifier, participants []frost.Identifier) *State {
	set := make(map[frost.Identifier]struct{}, len(participants))
	for _, id := range participants {
		set[id] = struct{}{}
	}
	n := len(set)
	return &State{
		self:           self,
		participants:   set,
		echoRequired:   n > 2,
		expectedEchoes: (n - 1) * (n - 2),
		phase:          PhaseCollectingRound1,
		round1:         make(map[frost.Identifier]frost.Round1Package, n),
		echoes:         make(map[echoKey]frost.Round1Package),
		round2:         make(map[frost.Identifier]frost.Round2Package, n-1),
	}
}

// Phase returns the state's current phase.
func (s *State) Phase() Phase { return s.phase }

// HasAllRound1 reports whether every participant's round-1 package has been
// received (directly, or inserted locally for self).
func (s *State) HasAllRound1() bool {
	return s.phase != PhaseCollectingRound1
}

// ReadyForRound2 reports whether the session has progressed past any
// required echo-broadcast verification and round-2 packages may now be sent
// and collected.
func (s *State) ReadyForRound2() bool {
	return s.phase == PhaseCollectingRound2 || s.phase == PhaseComplete
}

// IsComplete reports whether every round-2 package addressed to this
// participant has been received.
func (s *State) IsComplete() bool {
	return s.phase == PhaseComplete
}

// Recv parses and applies one decrypted message, dispatching on both the
// message's declared Kind and the session's current phase.
func (s *State) Recv(sender frost.Identifier, payload []byte) error {
	if _, ok := s.participants[sender]; !ok {
		return ErrUnknownParticipant
	}

	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("dkgsession: decoding message: %w", err)
	}

	switch msg.Kind {
	case KindRound1:
		if s.phase != PhaseCollectingRound1 {
			return fmt.Errorf("%w: current phase is %s", ErrWrongState, s.phase)
		}
		if msg.Round1 == nil {
			return errors.New("dkgsession: round1 message missing package")
		}
		return s.RecvRound1(sender, *msg.Round1)
	case KindEcho:
		if s.phase != PhaseEchoBroadcast {
			return fmt.Errorf("%w: current phase is %s", ErrWrongState, s.phase)
		}
		if msg.Echo == nil {
			return errors.New("dkgsession: echo message missing payload")
		}
		return s.RecvEcho(sender, msg.Echo.Subject, msg.Echo.Package)
	case KindRound2:
		if s.phase != PhaseCollectingRound2 {
			return fmt.Errorf("%w: current phase is %s", ErrWrongState, s.phase)
		}
		if msg.Round2 == nil {
			return errors.New("dkgsession: round2 message missing package")
		}
		return s.RecvRound2(sender, *msg.Round2)
	default:
		return fmt.Errorf("dkgsession: unknown message kind %d", msg.Kind)
	}
}

// RecvRound1 records sender's round-1 package. Callers insert their own
// package through this same method (sender == self), keeping the completion
// check uniform across every participant including the local one.
func (s *State) RecvRound1(sender frost.Identifier, pkg frost.Round1Package) error {
	if _, ok := s.participants[sender]; !ok {
		return ErrUnknownParticipant
	}
	s.round1[sender] = pkg

	if len(s.round1) == len(s.participants) {
		if s.echoRequired {
			s.phase = PhaseEchoBroadcast
		} else {
			s.phase = PhaseCollectingRound2
		}
		logrus.WithFields(logrus.Fields{
			"package":       "dkgsession",
			"participants":  len(s.participants),
			"echo_required": s.echoRequired,
		}).Debug("round-1 packages complete")
	}
	return nil
}

// RecvEcho records forwarder's claim about subject's round-1 package,
// verifying it against whatever this participant received directly from
// subject. Any mismatch is fatal to the run.
func (s *State) RecvEcho(forwarder, subject frost.Identifier, pkg frost.Round1Package) error {
	if _, ok := s.participants[forwarder]; !ok {
		return ErrUnknownParticipant
	}
	if _, ok := s.participants[subject]; !ok {
		return ErrUnknownParticipant
	}
	if subject == s.self || forwarder == s.self || forwarder == subject {
		// Not a pair this participant needs to verify; ignore harmlessly.
		return nil
	}

	if original, ok := s.round1[subject]; ok {
		if !round1PackagesEqual(original, pkg) {
			return fmt.Errorf("%w: %s via %s", ErrEchoMismatch, subject, forwarder)
		}
	}

	key := echoKey{Forwarder: forwarder, Subject: subject}
	s.echoes[key] = pkg

	if len(s.echoes) == s.expectedEchoes {
		s.phase = PhaseCollectingRound2
		logrus.WithFields(logrus.Fields{
			"package": "dkgsession",
			"echoes":  len(s.echoes),
		}).Debug("echo-broadcast round verified")
	}
	return nil
}

// RecvRound2 records sender's round-2 package, which must be addressed to
// this participant.
func (s *State) RecvRound2(sender frost.Identifier, pkg frost.Round2Package) error {
	if _, ok := s.participants[sender]; !ok {
		return ErrUnknownParticipant
	}
	if pkg.Recipient != s.self {
		return ErrWrongRecipient
	}

	s.round2[sender] = pkg
	if len(s.round2) == len(s.participants)-1 {
		s.phase = PhaseComplete
		logrus.WithFields(logrus.Fields{
			"package": "dkgsession",
		}).Debug("round-2 packages complete")
	}
	return nil
}

// Round1Packages returns a copy of every participant's round-1 package,
// keyed by identifier, for passing to frost.Suite.DkgRound2/DkgRound3.
func (s *State) Round1Packages() map[frost.Identifier]frost.Round1Package {
	out := make(map[frost.Identifier]frost.Round1Package, len(s.round1))
	for k, v := range s.round1 {
		out[k] = v
	}
	return out
}

// Round2Packages returns a copy of every round-2 package addressed to this
// participant, keyed by sender, for passing to frost.Suite.DkgRound3.
func (s *State) Round2Packages() map[frost.Identifier]frost.Round2Package {
	out := make(map[frost.Identifier]frost.Round2Package, len(s.round2))
	for k, v := range s.round2 {
		out[k] = v
	}
	return out
}

func round1PackagesEqual(a, b frost.Round1Package) bool {
	if a.Identifier != b.Identifier {
		return false
	}
	if string(a.ProofOfKnowledge) != string(b.ProofOfKnowledge) {
		return false
	}
	if len(a.Commitment) != len(b.Commitment) {
		return false
	}
	for i := range a.Commitment {
		if string(a.Commitment[i]) != string(b.Commitment[i]) {
			return false
		}
	}
	return true
}
