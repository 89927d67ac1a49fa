package coordinator

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/frostsig/frostrelay/cipher"
	"github.com/frostsig/frostrelay/frost"
	"github.com/frostsig/frostrelay/identity"
	"github.com/frostsig/frostrelay/relay"
	"github.com/frostsig/frostrelay/relayclient"
	"github.com/frostsig/frostrelay/signing"
)

// PollInterval is how often the coordinator polls the relay for new
// messages while waiting on commitments or signature shares.
const PollInterval = 2 * time.Second

// RandomizerSize is the byte length of a freshly sampled Randomizer, when
// the coordinator must supply its own rather than use a caller-provided one.
const RandomizerSize = 32

// Participant describes one expected signer the coordinator will collect
// commitments and signature shares from. frost.Identifier isn't tracked here:
// every commitment and signature share already carries its own, and the
// coordinator never needs to map one to a public key.
type Participant struct {
	PublicKey relay.PublicKey
}

// Coordinator drives one signing run to completion. Build one per run; it
// holds no state across calls to Run.
type Coordinator struct {
	Client  *relayclient.Client
	Suite   frost.Suite
	KeyPair *identity.KeyPair

	// Participants is the full set of expected signers. The coordinator
	// itself may or may not also be one of them.
	Participants []Participant
	PublicKeys   frost.PublicKeyPackage

	// SessionID, when non-nil, is used directly instead of calling
	// create_new_session, for a coordinator attaching to a session it (or a
	// prior process) already created.
	SessionID *uuid.UUID

	// Ephemeral, when true, logs out on completion or failure, revoking
	// the access token.
	Ephemeral bool

	// PollInterval overrides PollInterval for this run; zero uses the
	// package default.
	PollInterval time.Duration
}

// Result pairs one co-signed message with its completed signature.
// Randomizer is set only on re-randomizable suites; the signature then
// verifies under the randomized verifying key derived from it, and the
// caller needs it to hand the signature to whatever consumes it.
type Result struct {
	Message    []byte
	Signature  frost.Signature
	Randomizer frost.Randomizer
}

// Run drives a complete signing run over messages, optionally supplying a
// Randomizer per message for re-randomizable ciphersuites. An empty
// randomizers slice on a re-randomizable suite samples fresh randomizers
// internally; a non-empty slice whose length doesn't match len(messages)
// fails before any network I/O.
func (c *Coordinator) Run(ctx context.Context, messages [][]byte, randomizers []frost.Randomizer) ([]Result, error) {
	if len(messages) == 0 {
		return nil, errors.New("coordinator: at least one message is required")
	}
	if len(randomizers) != 0 {
		if !c.Suite.SupportsRerandomization() {
			return nil, errors.New("coordinator: suite does not support re-randomized signing")
		}
		if len(randomizers) != len(messages) {
			return nil, fmt.Errorf("coordinator: %d randomizers for %d messages", len(randomizers), len(messages))
		}
	}

	if err := c.Client.LoginWithKeyPair(ctx, c.KeyPair); err != nil {
		return nil, fmt.Errorf("coordinator: login: %w", err)
	}

	sessionID, err := c.createSession(ctx, len(messages))
	if err != nil {
		if c.Ephemeral {
			_ = c.Client.Logout(ctx)
		}
		return nil, err
	}

	results, runErr := c.runSession(ctx, sessionID, messages, randomizers)

	// Teardown happens regardless of runErr: close_session runs even on
	// errors after session creation so the relay doesn't wait for the TTL.
	if closeErr := c.Client.CloseSession(ctx, relay.CloseSessionArgs{SessionID: sessionID}); closeErr != nil {
		logrus.WithFields(logrus.Fields{"package": "coordinator", "session_id": sessionID}).
			WithError(closeErr).Warn("failed to close session during teardown")
	}
	if c.Ephemeral {
		if logoutErr := c.Client.Logout(ctx); logoutErr != nil {
			logrus.WithField("package", "coordinator").WithError(logoutErr).Warn("failed to log out during teardown")
		}
	}

	return results, runErr
}

func (c *Coordinator) createSession(ctx context.Context, messageCount int) (uuid.UUID, error) {
	if c.SessionID != nil {
		return *c.SessionID, nil
	}

	pubkeys := make([]relay.PublicKey, len(c.Participants))
	for i, p := range c.Participants {
		pubkeys[i] = p.PublicKey
	}
	out, err := c.Client.CreateNewSession(ctx, relay.CreateNewSessionArgs{
		PublicKeys:   pubkeys,
		MessageCount: uint8(messageCount),
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("coordinator: create session: %w", err)
	}
	return out.SessionID, nil
}

func (c *Coordinator) runSession(ctx context.Context, sessionID uuid.UUID, messages [][]byte, randomizers []frost.Randomizer) ([]Result, error) {
	peerKeys := make([][]byte, 0, len(c.Participants))
	expected := make([]relay.PublicKey, len(c.Participants))
	for i, p := range c.Participants {
		dh, err := identity.DHPublicKey(p.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("coordinator: participant public key: %w", err)
		}
		peerKeys = append(peerKeys, dh)
		expected[i] = p.PublicKey
	}
	cph, err := cipher.NewCipher(c.KeyPair.Private[:], peerKeys)
	if err != nil {
		return nil, fmt.Errorf("coordinator: build cipher: %w", err)
	}

	state := signing.NewState(expected, len(messages))

	if err := c.pollUntil(ctx, sessionID, cph, state, state.HasCommitments); err != nil {
		return nil, fmt.Errorf("coordinator: collecting commitments: %w", err)
	}

	packages := make([]frost.SigningPackage, len(messages))
	for j, msg := range messages {
		commitments, err := state.CommitmentsForMessage(j)
		if err != nil {
			return nil, err
		}
		packages[j] = frost.SigningPackage{Message: msg, Commitments: commitments}
	}

	effective := randomizers
	if len(effective) == 0 && c.Suite.SupportsRerandomization() {
		sampled := make([]frost.Randomizer, len(messages))
		for j := range sampled {
			r, err := sampleRandomizer()
			if err != nil {
				return nil, fmt.Errorf("coordinator: sampling randomizer: %w", err)
			}
			sampled[j] = r
		}
		effective = sampled
	}

	if err := c.distributeSigningPackages(ctx, sessionID, cph, packages, effective); err != nil {
		return nil, err
	}

	if err := c.pollUntil(ctx, sessionID, cph, state, state.HasSignatureShares); err != nil {
		return nil, fmt.Errorf("coordinator: collecting signature shares: %w", err)
	}

	results := make([]Result, len(messages))
	for j, msg := range messages {
		shares, err := state.SharesForMessage(j)
		if err != nil {
			return nil, err
		}
		var rnd frost.Randomizer
		if len(effective) != 0 {
			rnd = effective[j]
		}
		sig, err := c.Suite.Aggregate(ctx, c.PublicKeys, packages[j], shares, rnd)
		if err != nil {
			return nil, fmt.Errorf("coordinator: aggregate message %d: %w", j, err)
		}
		results[j] = Result{Message: msg, Signature: sig, Randomizer: rnd}
	}
	return results, nil
}

func (c *Coordinator) distributeSigningPackages(ctx context.Context, sessionID uuid.UUID, cph *cipher.Cipher, packages []frost.SigningPackage, randomizers []frost.Randomizer) error {
	args := signing.SendSigningPackageArgs{Packages: packages, Randomizers: randomizers}
	payload, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("coordinator: encode signing packages: %w", err)
	}

	// The same payload is re-encrypted individually per recipient; the
	// relay cannot deduplicate pairwise ciphertext.
	for _, p := range c.Participants {
		dh, err := identity.DHPublicKey(p.PublicKey)
		if err != nil {
			return err
		}
		ciphertext, err := cph.Encrypt(dh, payload)
		if err != nil {
			return fmt.Errorf("coordinator: encrypt signing package for %s: %w", p.PublicKey, err)
		}
		if err := c.Client.Send(ctx, relay.SendArgs{
			SessionID:  sessionID,
			Recipients: []relay.PublicKey{p.PublicKey},
			Msg:        ciphertext,
		}); err != nil {
			return fmt.Errorf("coordinator: send signing package to %s: %w", p.PublicKey, err)
		}
	}
	return nil
}

// pollUntil drains the coordinator's queue into state until done reports
// true, sleeping PollInterval between empty polls. One logical protocol run
// per driver; the only suspension points are the HTTP calls and this sleep.
func (c *Coordinator) pollUntil(ctx context.Context, sessionID uuid.UUID, cph *cipher.Cipher, state *signing.State, done func() bool) error {
	interval := c.PollInterval
	if interval == 0 {
		interval = PollInterval
	}

	for {
		if done() {
			return nil
		}

		out, err := c.Client.Receive(ctx, relay.ReceiveArgs{SessionID: sessionID, AsCoordinator: true})
		if err != nil {
			return fmt.Errorf("receive: %w", err)
		}
		for _, m := range out.Msgs {
			dh, err := identity.DHPublicKey(m.Sender)
			if err != nil {
				return fmt.Errorf("sender public key: %w", err)
			}
			plaintext, err := cph.Decrypt(dh, m.Msg)
			if err != nil {
				return fmt.Errorf("decrypt message from %s: %w", m.Sender, err)
			}
			if err := state.Recv(m.Sender, plaintext); err != nil {
				return err
			}
		}

		if done() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

func sampleRandomizer() (frost.Randomizer, error) {
	buf := make([]byte, RandomizerSize)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	return frost.Randomizer(buf), nil
}
