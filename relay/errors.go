package relay

import "net/http"

// Kind classifies a relay error for clients that want to branch on it
// without parsing message text.
type Kind int

const (
	// KindUnknown is the zero value; never returned by this package.
	KindUnknown Kind = iota
	// KindInvalidArgument means a request field was missing or malformed.
	KindInvalidArgument
	// KindUnauthorized means the caller's credentials were missing or invalid.
	KindUnauthorized
	// KindSessionNotFound means the session ID doesn't exist or the caller
	// isn't a member of it.
	KindSessionNotFound
	// KindNotCoordinator means the call requires the session's coordinator.
	KindNotCoordinator
	// KindNotInSession means the caller or a named recipient isn't a member
	// of the session.
	KindNotInSession
)

// codes are the stable numeric wire codes for each Kind; clients branch on
// these rather than on message text.
var codes = map[Kind]int{
	KindInvalidArgument: 1,
	KindUnauthorized:    2,
	KindSessionNotFound: 3,
	KindNotCoordinator:  4,
	KindNotInSession:    5,
}

const unknownCode = 255

// Code returns the numeric wire code for k.
func (k Kind) Code() int {
	if c, ok := codes[k]; ok {
		return c
	}
	return unknownCode
}

// Error is a relay-level error: a classification plus a human-readable
// message. It implements error and is what handlers return; the HTTP layer
// translates it to a wire Error/LowError pair.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// HTTPStatus returns the status code this error is reported under. Errors
// are always reported as 500 with the real classification carried in the
// JSON body, so clients must branch on WireError.Code rather than the HTTP
// status.
func (e *Error) HTTPStatus() int { return http.StatusInternalServerError }

func errInvalidArgument(msg string) *Error { return &Error{KindInvalidArgument, msg} }

func errUnauthorized() *Error {
	return &Error{KindUnauthorized, "client did not provide proper authorization credentials"}
}

func errSessionNotFound() *Error { return &Error{KindSessionNotFound, "session was not found"} }

func errNotCoordinator() *Error { return &Error{KindNotCoordinator, "user is not the coordinator"} }

func errNotInSession() *Error {
	return &Error{KindNotInSession, "user is not part of the given session"}
}

// WireError is the body of every error response: a numeric code, a message,
// and the structured Kind for programmatic handling.
type WireError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Kind Kind   `json:"error"`
}

func toWireError(err error) WireError {
	if re, ok := err.(*Error); ok {
		return WireError{Code: re.Kind.Code(), Msg: re.Msg, Kind: re.Kind}
	}
	return WireError{Code: unknownCode, Msg: err.Error(), Kind: KindUnknown}
}
