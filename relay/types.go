package relay

import (
	"encoding/hex"
	"encoding/json"

	"github.com/google/uuid"
)

// MaxMessageSize bounds the body of a single Send call.
const MaxMessageSize = 65535

// PublicKey is a communication public key as carried over the wire: hex
// encoded in JSON, compared and hashed by its raw bytes. The relay never
// interprets its contents; it only uses it as an opaque session-membership
// and message-routing key (see identity.KeyPair for what the bytes mean).
type PublicKey []byte

// MarshalJSON encodes the key as a lowercase hex string.
func (k PublicKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(k))
}

// UnmarshalJSON decodes a lowercase (or any-case) hex string.
func (k *PublicKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	*k = b
	return nil
}

// String renders the key as lowercase hex, used as a map key internally.
func (k PublicKey) String() string {
	return hex.EncodeToString(k)
}

// HexBytes is any other binary wire field the protocol hex-encodes in JSON:
// login signatures and message bodies. Every binary wire field is a hex
// string. PublicKey keeps its own type above since it also needs a String
// method for use as a map key; every other []byte-shaped field uses this
// shared type instead of repeating the MarshalJSON/UnmarshalJSON pair.
type HexBytes []byte

// MarshalJSON encodes b as a lowercase hex string.
func (b HexBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(b))
}

// UnmarshalJSON decodes a lowercase (or any-case) hex string.
func (b *HexBytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	*b = decoded
	return nil
}

// ChallengeOutput is the response to POST /challenge.
type ChallengeOutput struct {
	Challenge uuid.UUID `json:"challenge"`
}

// LoginArgs is the request body for POST /login: a signature over a
// previously issued challenge, proving control of the private half of
// PublicKey.
type LoginArgs struct {
	Challenge uuid.UUID `json:"challenge"`
	PublicKey PublicKey `json:"pubkey"`
	Signature HexBytes  `json:"signature"`
}

// LoginOutput is the response to a successful login: a bearer token to use
// on every subsequent call.
type LoginOutput struct {
	AccessToken uuid.UUID `json:"access_token"`
}

// CreateNewSessionArgs is the request body for POST /create_new_session.
type CreateNewSessionArgs struct {
	PublicKeys   []PublicKey `json:"pubkeys"`
	MessageCount uint8       `json:"message_count"`
}

// CreateNewSessionOutput is the response to a successful session creation.
type CreateNewSessionOutput struct {
	SessionID uuid.UUID `json:"session_id"`
}

// ListSessionsOutput is the response to POST /list_sessions: every session
// the caller is a member of, as coordinator or participant.
type ListSessionsOutput struct {
	SessionIDs []uuid.UUID `json:"session_ids"`
}

// GetSessionInfoArgs is the request body for POST /get_session_info.
type GetSessionInfoArgs struct {
	SessionID uuid.UUID `json:"session_id"`
}

// GetSessionInfoOutput describes a session's membership.
type GetSessionInfoOutput struct {
	MessageCount      uint8       `json:"message_count"`
	PublicKeys        []PublicKey `json:"pubkeys"`
	CoordinatorPubkey PublicKey   `json:"coordinator_pubkey"`
}

// SendArgs is the request body for POST /send. An empty Recipients list
// means "the session's coordinator".
type SendArgs struct {
	SessionID  uuid.UUID   `json:"session_id"`
	Recipients []PublicKey `json:"recipients"`
	Msg        HexBytes    `json:"msg"`
}

// Msg is one queued message as returned by /receive.
type Msg struct {
	Sender PublicKey `json:"sender"`
	Msg    HexBytes  `json:"msg"`
}

// ReceiveArgs is the request body for POST /receive. AsCoordinator
// disambiguates the coordinator's own queue from a participant queue when
// the caller is also a listed participant of the session.
type ReceiveArgs struct {
	SessionID     uuid.UUID `json:"session_id"`
	AsCoordinator bool      `json:"as_coordinator"`
}

// ReceiveOutput holds every message queued for the caller since their last
// receive call.
type ReceiveOutput struct {
	Msgs []Msg `json:"msgs"`
}

// CloseSessionArgs is the request body for POST /close_session.
type CloseSessionArgs struct {
	SessionID uuid.UUID `json:"session_id"`
}
