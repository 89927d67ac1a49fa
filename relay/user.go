package relay

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// authUser identifies the caller of an authenticated endpoint.
type authUser struct {
	pubkey       PublicKey
	currentToken uuid.UUID
}

// authenticate extracts and validates the bearer access token from an HTTP
// request, resolving it to the public key bound at login.
func (s *State) authenticate(r *http.Request) (authUser, *Error) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return authUser{}, errUnauthorized()
	}

	token, err := uuid.Parse(strings.TrimPrefix(header, prefix))
	if err != nil {
		return authUser{}, errUnauthorized()
	}

	s.tokensMu.RLock()
	pubkey, ok := s.accessTokens[token]
	s.tokensMu.RUnlock()
	if !ok {
		return authUser{}, errUnauthorized()
	}

	return authUser{pubkey: pubkey, currentToken: token}, nil
}
