package relay

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/frostsig/frostrelay/identity"
)

// Server wraps a State with the HTTP handlers that implement the relay's
// wire protocol. Build one with NewServer and mount its Router.
type Server struct {
	state *State
}

// NewServer builds a relay Server backed by a fresh State.
func NewServer() *Server {
	return &Server{state: NewState()}
}

// Close releases the server's background resources (the TTL reaper).
func (s *Server) Close() { s.state.Close() }

// Router builds the gorilla/mux router exposing the relay's endpoints.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/challenge", s.handleChallenge).Methods(http.MethodPost)
	r.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
	r.HandleFunc("/create_new_session", s.handleCreateNewSession).Methods(http.MethodPost)
	r.HandleFunc("/list_sessions", s.handleListSessions).Methods(http.MethodPost)
	r.HandleFunc("/get_session_info", s.handleGetSessionInfo).Methods(http.MethodPost)
	r.HandleFunc("/send", s.handleSend).Methods(http.MethodPost)
	r.HandleFunc("/receive", s.handleReceive).Methods(http.MethodPost)
	r.HandleFunc("/close_session", s.handleCloseSession).Methods(http.MethodPost)
	return r
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err *Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.HTTPStatus())
	_ = json.NewEncoder(w).Encode(toWireError(err))
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, errInvalidArgument("malformed request body"))
		return false
	}
	return true
}

func (s *Server) handleChallenge(w http.ResponseWriter, r *http.Request) {
	challenge := uuid.New()

	s.state.tokensMu.Lock()
	s.state.challenges[challenge] = time.Now()
	s.state.tokensMu.Unlock()

	writeJSON(w, ChallengeOutput{Challenge: challenge})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var args LoginArgs
	if !decodeBody(w, r, &args) {
		return
	}

	if len(args.Signature) == 0 || len(args.PublicKey) == 0 {
		writeError(w, errInvalidArgument("signature or pubkey"))
		return
	}
	if len(args.PublicKey) != identity.PublicKeySize {
		writeError(w, errInvalidArgument("pubkey"))
		return
	}

	verifyingKey := []byte(args.PublicKey)[32:]
	challengeBytes := args.Challenge[:]
	if !identity.Verify(verifyingKey, challengeBytes, args.Signature) {
		writeError(w, errUnauthorized())
		return
	}

	s.state.tokensMu.Lock()
	issued, ok := s.state.challenges[args.Challenge]
	if !ok || time.Now().Sub(issued) > ChallengeTTL {
		s.state.tokensMu.Unlock()
		writeError(w, errUnauthorized())
		return
	}
	delete(s.state.challenges, args.Challenge)

	accessToken := uuid.New()
	s.state.accessTokens[accessToken] = args.PublicKey
	s.state.tokensMu.Unlock()

	logrus.WithFields(logrus.Fields{"package": "relay", "pubkey": args.PublicKey.String()[:16]}).Debug("user logged in")
	writeJSON(w, LoginOutput{AccessToken: accessToken})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	user, authErr := s.state.authenticate(r)
	if authErr != nil {
		writeError(w, authErr)
		return
	}

	s.state.tokensMu.Lock()
	delete(s.state.accessTokens, user.currentToken)
	s.state.tokensMu.Unlock()

	writeJSON(w, struct{}{})
}

func (s *Server) handleCreateNewSession(w http.ResponseWriter, r *http.Request) {
	user, authErr := s.state.authenticate(r)
	if authErr != nil {
		writeError(w, authErr)
		return
	}

	var args CreateNewSessionArgs
	if !decodeBody(w, r, &args) {
		return
	}
	if args.MessageCount == 0 {
		writeError(w, errInvalidArgument("message_count"))
		return
	}

	id := uuid.New()

	s.state.sessionsMu.Lock()
	for _, pub := range args.PublicKeys {
		s.addSessionToIndexLocked(pub, id)
	}
	s.addSessionToIndexLocked(user.pubkey, id)

	s.state.sessions[id] = &session{
		publicKeys:        args.PublicKeys,
		coordinatorPubkey: user.pubkey,
		messageCount:      args.MessageCount,
		queue:             make(map[string][]Msg),
		lastActivity:      time.Now(),
	}
	s.state.sessionsMu.Unlock()

	writeJSON(w, CreateNewSessionOutput{SessionID: id})
}

func (s *Server) addSessionToIndexLocked(pub PublicKey, id uuid.UUID) {
	key := participantKey(pub)
	if s.state.sessionsByPubkey[key] == nil {
		s.state.sessionsByPubkey[key] = make(map[uuid.UUID]struct{})
	}
	s.state.sessionsByPubkey[key][id] = struct{}{}
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	user, authErr := s.state.authenticate(r)
	if authErr != nil {
		writeError(w, authErr)
		return
	}

	s.state.sessionsMu.RLock()
	ids := make([]uuid.UUID, 0, len(s.state.sessionsByPubkey[participantKey(user.pubkey)]))
	for id := range s.state.sessionsByPubkey[participantKey(user.pubkey)] {
		ids = append(ids, id)
	}
	s.state.sessionsMu.RUnlock()

	writeJSON(w, ListSessionsOutput{SessionIDs: ids})
}

func (s *Server) handleGetSessionInfo(w http.ResponseWriter, r *http.Request) {
	user, authErr := s.state.authenticate(r)
	if authErr != nil {
		writeError(w, authErr)
		return
	}

	var args GetSessionInfoArgs
	if !decodeBody(w, r, &args) {
		return
	}

	s.state.sessionsMu.RLock()
	defer s.state.sessionsMu.RUnlock()

	if _, ok := s.state.sessionsByPubkey[participantKey(user.pubkey)][args.SessionID]; !ok {
		writeError(w, errSessionNotFound())
		return
	}
	sess, ok := s.state.sessions[args.SessionID]
	if !ok {
		writeError(w, errSessionNotFound())
		return
	}

	writeJSON(w, GetSessionInfoOutput{
		MessageCount:      sess.messageCount,
		PublicKeys:        sess.publicKeys,
		CoordinatorPubkey: sess.coordinatorPubkey,
	})
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	user, authErr := s.state.authenticate(r)
	if authErr != nil {
		writeError(w, authErr)
		return
	}

	var args SendArgs
	if !decodeBody(w, r, &args) {
		return
	}
	if len(args.Msg) > MaxMessageSize {
		writeError(w, errInvalidArgument("msg is too big"))
		return
	}

	recipients := args.Recipients
	useCoordinatorSlot := len(recipients) == 0

	s.state.sessionsMu.Lock()
	defer s.state.sessionsMu.Unlock()

	sess, ok := s.state.sessions[args.SessionID]
	if !ok {
		writeError(w, errSessionNotFound())
		return
	}

	inSession := contains(sess.publicKeys, user.pubkey) || equalKeys(sess.coordinatorPubkey, user.pubkey)
	if inSession && !useCoordinatorSlot {
		for _, recipient := range recipients {
			if !contains(sess.publicKeys, recipient) {
				inSession = false
				break
			}
		}
	}
	if !inSession {
		writeError(w, errNotInSession())
		return
	}

	msg := Msg{Sender: user.pubkey, Msg: args.Msg}
	if useCoordinatorSlot {
		sess.queue[coordinatorKey] = append(sess.queue[coordinatorKey], msg)
	} else {
		for _, recipient := range recipients {
			key := participantKey(recipient)
			sess.queue[key] = append(sess.queue[key], msg)
		}
	}
	sess.lastActivity = time.Now()

	writeJSON(w, struct{}{})
}

func (s *Server) handleReceive(w http.ResponseWriter, r *http.Request) {
	user, authErr := s.state.authenticate(r)
	if authErr != nil {
		writeError(w, authErr)
		return
	}

	var args ReceiveArgs
	if !decodeBody(w, r, &args) {
		return
	}

	s.state.sessionsMu.Lock()
	defer s.state.sessionsMu.Unlock()

	sess, ok := s.state.sessions[args.SessionID]
	if !ok {
		writeError(w, errSessionNotFound())
		return
	}
	if !contains(sess.publicKeys, user.pubkey) && !equalKeys(sess.coordinatorPubkey, user.pubkey) {
		writeError(w, errNotInSession())
		return
	}

	key := participantKey(user.pubkey)
	if equalKeys(sess.coordinatorPubkey, user.pubkey) && args.AsCoordinator {
		key = coordinatorKey
	}

	msgs := sess.queue[key]
	delete(sess.queue, key)
	if len(msgs) > 0 {
		sess.lastActivity = time.Now()
	}

	writeJSON(w, ReceiveOutput{Msgs: msgs})
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	user, authErr := s.state.authenticate(r)
	if authErr != nil {
		writeError(w, authErr)
		return
	}

	var args CloseSessionArgs
	if !decodeBody(w, r, &args) {
		return
	}

	s.state.sessionsMu.Lock()
	defer s.state.sessionsMu.Unlock()

	if _, ok := s.state.sessionsByPubkey[participantKey(user.pubkey)][args.SessionID]; !ok {
		writeError(w, errSessionNotFound())
		return
	}
	sess, ok := s.state.sessions[args.SessionID]
	if !ok {
		writeError(w, errSessionNotFound())
		return
	}
	if !equalKeys(sess.coordinatorPubkey, user.pubkey) {
		writeError(w, errNotCoordinator())
		return
	}

	for _, pub := range sess.publicKeys {
		s.state.removeSessionFromIndexLocked(pub, args.SessionID)
	}
	s.state.removeSessionFromIndexLocked(sess.coordinatorPubkey, args.SessionID)
	delete(s.state.sessions, args.SessionID)

	writeJSON(w, struct{}{})
}

func contains(keys []PublicKey, target PublicKey) bool {
	for _, k := range keys {
		if equalKeys(k, target) {
			return true
		}
	}
	return false
}

func equalKeys(a, b PublicKey) bool {
	return a.String() == b.String()
}
