package relayclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/frostsig/frostrelay/identity"
	"github.com/frostsig/frostrelay/relay"
)

// ErrConnection wraps a transport-level failure (dial, timeout, non-JSON
// body on a non-500 status) as opposed to a classified relay.Error returned
// by the server itself.
var ErrConnection = errors.New("relayclient: connection error")

// maxAttempts bounds how many times a single call is tried when the
// transport itself fails (connection reset, 503). Classified relay errors
// are never retried: a failed login or a poisoned session must surface to
// the caller, not be replayed.
const maxAttempts = 3

// retryBaseDelay is the first retry's back-off; each subsequent retry
// doubles it.
const retryBaseDelay = 250 * time.Millisecond

// Client calls a relay server's HTTP API. Create one with New, call Login
// to authenticate, then call the remaining methods; Client caches the
// resulting access token and attaches it to every subsequent request.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	accessToken *uuid.UUID
}

// New builds a Client against a relay server listening at baseURL, e.g.
// "https://relay.example.org:2744". It does not dial until the first call.
func New(baseURL string) *Client {
	return &Client{baseURL: baseURL, httpClient: http.DefaultClient}
}

// WithHTTPClient overrides the underlying *http.Client, e.g. to set a
// custom TLS config or timeout.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

func (c *Client) call(ctx context.Context, name string, args, out interface{}) error {
	body, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("%w: encoding request: %v", ErrConnection, err)
	}

	delay := retryBaseDelay
	for attempt := 1; ; attempt++ {
		err := c.callOnce(ctx, name, body, out)
		if err == nil || !retryable(err) || attempt == maxAttempts {
			return err
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrConnection, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}
}

// retryable reports whether err is a transient transport fault worth
// retrying. Classified relay errors and malformed-response errors are not.
func retryable(err error) bool {
	var transient *transientError
	return errors.As(err, &transient)
}

// transientError marks a transport fault (dial failure, connection reset,
// 503) that call may retry.
type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func (c *Client) callOnce(ctx context.Context, name string, body []byte, out interface{}) error {
	url := fmt.Sprintf("%s/%s", c.baseURL, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: building request: %v", ErrConnection, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.accessToken != nil {
		req.Header.Set("Authorization", "Bearer "+c.accessToken.String())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &transientError{fmt.Errorf("%w: %v", ErrConnection, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusInternalServerError {
			var wireErr relay.WireError
			if decodeErr := json.NewDecoder(resp.Body).Decode(&wireErr); decodeErr != nil {
				return fmt.Errorf("%w: decoding error body: %v", ErrConnection, decodeErr)
			}
			return &relay.Error{Kind: wireErr.Kind, Msg: wireErr.Msg}
		}
		data, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("%w: unexpected status %d: %s", ErrConnection, resp.StatusCode, data)
		if resp.StatusCode == http.StatusServiceUnavailable {
			return &transientError{err}
		}
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", ErrConnection, err)
	}
	return nil
}

// Challenge requests a fresh login challenge from the server.
func (c *Client) Challenge(ctx context.Context) (relay.ChallengeOutput, error) {
	var out relay.ChallengeOutput
	err := c.call(ctx, "challenge", struct{}{}, &out)
	return out, err
}

// Login authenticates with the server, signing args.Challenge must already
// carry a valid Signature. On success the returned access token is cached
// on c for use by every subsequent authenticated call.
func (c *Client) Login(ctx context.Context, args relay.LoginArgs) (relay.LoginOutput, error) {
	var out relay.LoginOutput
	if err := c.call(ctx, "login", args, &out); err != nil {
		return relay.LoginOutput{}, err
	}
	c.accessToken = &out.AccessToken
	return out, nil
}

// LoginWithKeyPair performs the full challenge/sign/login sequence shared
// by every driver that authenticates to a relay: request a fresh challenge,
// sign it with kp's Ed25519 half, and log in.
func (c *Client) LoginWithKeyPair(ctx context.Context, kp *identity.KeyPair) error {
	challenge, err := c.Challenge(ctx)
	if err != nil {
		return fmt.Errorf("relayclient: requesting login challenge: %w", err)
	}

	signature := kp.Sign(challenge.Challenge[:])
	_, err = c.Login(ctx, relay.LoginArgs{
		Challenge: challenge.Challenge,
		PublicKey: relay.PublicKey(kp.Public[:]),
		Signature: signature,
	})
	if err != nil {
		return fmt.Errorf("relayclient: login: %w", err)
	}
	return nil
}

// Logout invalidates the cached access token on the server and clears it
// locally.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.call(ctx, "logout", struct{}{}, nil); err != nil {
		return err
	}
	c.accessToken = nil
	return nil
}

// CreateNewSession opens a new signing or DKG session with the caller as
// coordinator.
func (c *Client) CreateNewSession(ctx context.Context, args relay.CreateNewSessionArgs) (relay.CreateNewSessionOutput, error) {
	var out relay.CreateNewSessionOutput
	err := c.call(ctx, "create_new_session", args, &out)
	return out, err
}

// ListSessions lists every session the caller is a member of.
func (c *Client) ListSessions(ctx context.Context) (relay.ListSessionsOutput, error) {
	var out relay.ListSessionsOutput
	err := c.call(ctx, "list_sessions", struct{}{}, &out)
	return out, err
}

// GetSessionInfo returns session membership and coordinator information.
func (c *Client) GetSessionInfo(ctx context.Context, args relay.GetSessionInfoArgs) (relay.GetSessionInfoOutput, error) {
	var out relay.GetSessionInfoOutput
	err := c.call(ctx, "get_session_info", args, &out)
	return out, err
}

// Send enqueues a message for one or more recipients, or for the
// coordinator's own slot if args.Recipients is empty.
func (c *Client) Send(ctx context.Context, args relay.SendArgs) error {
	return c.call(ctx, "send", args, nil)
}

// Receive drains and returns the caller's pending message queue for a
// session.
func (c *Client) Receive(ctx context.Context, args relay.ReceiveArgs) (relay.ReceiveOutput, error) {
	var out relay.ReceiveOutput
	err := c.call(ctx, "receive", args, &out)
	return out, err
}

// CloseSession tears down a session. Only the session's coordinator may
// call this successfully.
func (c *Client) CloseSession(ctx context.Context, args relay.CloseSessionArgs) error {
	return c.call(ctx, "close_session", args, nil)
}
