package relay

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ChallengeTTL is how long an issued challenge remains valid for login.
const ChallengeTTL = 10 * time.Minute

// SessionTTL is how long an idle session (no send/receive activity) is kept
// before the reaper removes it.
const SessionTTL = 30 * time.Minute

const reapInterval = time.Minute

// session is the relay's internal record of a signing or DKG session.
// Queue is keyed by participantKey: "" for the coordinator's own slot, the
// hex-encoded public key for everyone else. The empty-string key is what
// distinguishes "message to the coordinator" from "message to the
// coordinator acting as a participant".
type session struct {
	publicKeys        []PublicKey
	coordinatorPubkey PublicKey
	messageCount      uint8
	queue             map[string][]Msg
	lastActivity      time.Time
}

func participantKey(pub PublicKey) string {
	return pub.String()
}

const coordinatorKey = ""

// State holds all relay-wide mutable state. Two RWMutexes guard disjoint
// concerns, tokensMu for challenges/access tokens and sessionsMu for
// session membership/queues, and are always acquired in that order
// (tokensMu before sessionsMu) on the rare call path that needs both. No
// lock is held across a sleep. The get_session_info, send, receive and
// close_session handlers release sessionsMu by defer, so they still hold it
// while writing their JSON response.
type State struct {
	tokensMu     sync.RWMutex
	challenges   map[uuid.UUID]time.Time
	accessTokens map[uuid.UUID]PublicKey

	sessionsMu       sync.RWMutex
	sessions         map[uuid.UUID]*session
	sessionsByPubkey map[string]map[uuid.UUID]struct{}

	stop chan struct{}
	done chan struct{}
}

// NewState builds an empty relay state and starts its TTL reaper goroutine.
// Call Close to stop the reaper.
func NewState() *State {
	s := &State{
		challenges:       make(map[uuid.UUID]time.Time),
		accessTokens:     make(map[uuid.UUID]PublicKey),
		sessions:         make(map[uuid.UUID]*session),
		sessionsByPubkey: make(map[string]map[uuid.UUID]struct{}),
		stop:             make(chan struct{}),
		done:             make(chan struct{}),
	}
	go s.reapLoop()
	return s
}

// Close stops the background reaper. It does not invalidate any existing
// challenges, tokens, or sessions.
func (s *State) Close() {
	close(s.stop)
	<-s.done
}

func (s *State) reapLoop() {
	defer close(s.done)
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.reap(time.Now())
		}
	}
}

func (s *State) reap(now time.Time) {
	s.tokensMu.Lock()
	removedChallenges := 0
	for ch, issued := range s.challenges {
		if now.Sub(issued) > ChallengeTTL {
			delete(s.challenges, ch)
			removedChallenges++
		}
	}
	s.tokensMu.Unlock()

	s.sessionsMu.Lock()
	removedSessions := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.lastActivity) > SessionTTL {
			delete(s.sessions, id)
			for _, pub := range sess.publicKeys {
				s.removeSessionFromIndexLocked(pub, id)
			}
			s.removeSessionFromIndexLocked(sess.coordinatorPubkey, id)
			removedSessions++
		}
	}
	s.sessionsMu.Unlock()

	if removedChallenges > 0 || removedSessions > 0 {
		logrus.WithFields(logrus.Fields{
			"package":            "relay",
			"expired_challenges": removedChallenges,
			"expired_sessions":   removedSessions,
		}).Debug("reaped expired relay state")
	}
}

// removeSessionFromIndexLocked must be called with sessionsMu held.
func (s *State) removeSessionFromIndexLocked(pub PublicKey, id uuid.UUID) {
	key := participantKey(pub)
	if set, ok := s.sessionsByPubkey[key]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(s.sessionsByPubkey, key)
		}
	}
}
