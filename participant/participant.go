package participant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/frostsig/frostrelay/cipher"
	"github.com/frostsig/frostrelay/frost"
	"github.com/frostsig/frostrelay/identity"
	"github.com/frostsig/frostrelay/relay"
	"github.com/frostsig/frostrelay/relayclient"
	"github.com/frostsig/frostrelay/signing"
)

// PollInterval is the default cadence at which a participant polls the
// relay for a signing package, matching coordinator.PollInterval.
const PollInterval = 2 * time.Second

// Sentinel errors for session discovery and policy failures.
var (
	// ErrNoSessionActive is returned when no session ID was given and the
	// relay lists none for this participant.
	ErrNoSessionActive = errors.New("participant: no active session")
	// ErrAmbiguousSession is returned when no session ID was given and the
	// relay lists more than one; the caller must disambiguate.
	ErrAmbiguousSession = errors.New("participant: more than one active session")
	// ErrUnknownCoordinator is returned when the session's coordinator
	// public key doesn't resolve to a known contact via Resolver.
	ErrUnknownCoordinator = errors.New("participant: session coordinator is not a known contact")
	// ErrUserDeclined is returned when Policy rejects any message in the
	// signing package.
	ErrUserDeclined = errors.New("participant: user declined to sign")
)

// Resolver reports whether pubkey is a known contact, standing in for a
// caller-supplied address-book lookup.
type Resolver func(pubkey relay.PublicKey) bool

// Policy surfaces a message to a user-policy hook (CLI prompt, or automated
// policy) and reports whether signing may proceed.
type Policy func(message []byte) bool

// Participant drives one participant's half of a signing run. Build one per
// run; it holds no state across calls to Run.
type Participant struct {
	Client     *relayclient.Client
	Suite      frost.Suite
	KeyPair    *identity.KeyPair
	KeyPackage frost.KeyPackage

	// SessionID, when non-nil, is used directly, skipping discovery via
	// list_sessions.
	SessionID *uuid.UUID

	Resolver Resolver
	Policy   Policy

	Ephemeral bool

	PollInterval time.Duration
}

// Run drives a complete participant run, returning the signature shares it
// contributed. The coordinator holds the authoritative aggregate signature;
// the return value here is for logging and tests.
func (p *Participant) Run(ctx context.Context) ([]frost.SignatureShare, error) {
	if err := p.Client.LoginWithKeyPair(ctx, p.KeyPair); err != nil {
		return nil, fmt.Errorf("participant: login: %w", err)
	}

	sessionID, err := p.locateSession(ctx)
	if err != nil {
		if p.Ephemeral {
			_ = p.Client.Logout(ctx)
		}
		return nil, err
	}

	shares, runErr := p.runSession(ctx, sessionID)

	if p.Ephemeral {
		if logoutErr := p.Client.Logout(ctx); logoutErr != nil && runErr == nil {
			runErr = fmt.Errorf("participant: logout: %w", logoutErr)
		}
	}
	return shares, runErr
}

func (p *Participant) locateSession(ctx context.Context) (uuid.UUID, error) {
	if p.SessionID != nil {
		return *p.SessionID, nil
	}

	out, err := p.Client.ListSessions(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("participant: list sessions: %w", err)
	}
	switch len(out.SessionIDs) {
	case 0:
		return uuid.Nil, ErrNoSessionActive
	case 1:
		return out.SessionIDs[0], nil
	default:
		return uuid.Nil, ErrAmbiguousSession
	}
}

func (p *Participant) runSession(ctx context.Context, sessionID uuid.UUID) ([]frost.SignatureShare, error) {
	info, err := p.Client.GetSessionInfo(ctx, relay.GetSessionInfoArgs{SessionID: sessionID})
	if err != nil {
		return nil, fmt.Errorf("participant: get session info: %w", err)
	}
	if p.Resolver != nil && !p.Resolver(info.CoordinatorPubkey) {
		return nil, ErrUnknownCoordinator
	}

	coordinatorDH, err := identity.DHPublicKey(info.CoordinatorPubkey)
	if err != nil {
		return nil, fmt.Errorf("participant: coordinator public key: %w", err)
	}
	cph, err := cipher.NewCipher(p.KeyPair.Private[:], [][]byte{coordinatorDH})
	if err != nil {
		return nil, fmt.Errorf("participant: build cipher: %w", err)
	}

	commitments, commitmentStates, err := p.commit(ctx, int(info.MessageCount))
	if err != nil {
		return nil, err
	}
	// Round-1 nonces live only for this one signing package; wipe them no
	// matter how the run ends.
	defer func() {
		for _, state := range commitmentStates {
			identity.ZeroBytes(state)
		}
	}()

	if err := p.sendCommitments(ctx, sessionID, cph, commitments); err != nil {
		return nil, err
	}

	args, err := p.awaitSigningPackage(ctx, sessionID, cph)
	if err != nil {
		return nil, err
	}

	for _, pkg := range args.Packages {
		if p.Policy != nil && !p.Policy(pkg.Message) {
			return nil, ErrUserDeclined
		}
	}

	shares, err := p.sign(ctx, args, commitmentStates)
	if err != nil {
		return nil, err
	}

	if err := p.sendShares(ctx, sessionID, cph, shares); err != nil {
		return nil, err
	}
	return shares, nil
}

func (p *Participant) commit(ctx context.Context, messageCount int) ([]frost.SigningCommitments, [][]byte, error) {
	commitments := make([]frost.SigningCommitments, messageCount)
	states := make([][]byte, messageCount)
	for j := 0; j < messageCount; j++ {
		c, state, err := p.Suite.Commit(ctx, p.KeyPackage)
		if err != nil {
			return nil, nil, fmt.Errorf("participant: commit message %d: %w", j, err)
		}
		commitments[j] = c
		states[j] = state
	}
	return commitments, states, nil
}

func (p *Participant) sendCommitments(ctx context.Context, sessionID uuid.UUID, cph *cipher.Cipher, commitments []frost.SigningCommitments) error {
	payload, err := json.Marshal(signing.SendCommitmentsArgs{Commitments: commitments})
	if err != nil {
		return fmt.Errorf("participant: encode commitments: %w", err)
	}
	ciphertext, err := cph.Encrypt(nil, payload)
	if err != nil {
		return fmt.Errorf("participant: encrypt commitments: %w", err)
	}
	// Empty Recipients addresses the session's coordinator slot.
	if err := p.Client.Send(ctx, relay.SendArgs{SessionID: sessionID, Msg: ciphertext}); err != nil {
		return fmt.Errorf("participant: send commitments: %w", err)
	}
	return nil
}

func (p *Participant) awaitSigningPackage(ctx context.Context, sessionID uuid.UUID, cph *cipher.Cipher) (signing.SendSigningPackageArgs, error) {
	interval := p.PollInterval
	if interval == 0 {
		interval = PollInterval
	}

	for {
		out, err := p.Client.Receive(ctx, relay.ReceiveArgs{SessionID: sessionID})
		if err != nil {
			return signing.SendSigningPackageArgs{}, fmt.Errorf("participant: receive: %w", err)
		}
		if len(out.Msgs) > 0 {
			plaintext, err := cph.Decrypt(nil, out.Msgs[0].Msg)
			if err != nil {
				return signing.SendSigningPackageArgs{}, fmt.Errorf("participant: decrypt signing package: %w", err)
			}
			var args signing.SendSigningPackageArgs
			if err := json.Unmarshal(plaintext, &args); err != nil {
				return signing.SendSigningPackageArgs{}, fmt.Errorf("participant: decode signing package: %w", err)
			}
			return args, nil
		}

		select {
		case <-ctx.Done():
			return signing.SendSigningPackageArgs{}, ctx.Err()
		case <-time.After(interval):
		}
	}
}

func (p *Participant) sign(ctx context.Context, args signing.SendSigningPackageArgs, commitmentStates [][]byte) ([]frost.SignatureShare, error) {
	if len(args.Packages) != len(commitmentStates) {
		return nil, fmt.Errorf("participant: signing package has %d messages, expected %d", len(args.Packages), len(commitmentStates))
	}
	if len(args.Randomizers) != 0 && len(args.Randomizers) != len(args.Packages) {
		return nil, fmt.Errorf("participant: %d randomizers for %d messages", len(args.Randomizers), len(args.Packages))
	}
	shares := make([]frost.SignatureShare, len(args.Packages))
	for j, pkg := range args.Packages {
		var rnd frost.Randomizer
		if len(args.Randomizers) != 0 {
			rnd = args.Randomizers[j]
		}
		share, err := p.Suite.Sign(ctx, p.KeyPackage, commitmentStates[j], pkg, rnd)
		if err != nil {
			return nil, fmt.Errorf("participant: sign message %d: %w", j, err)
		}
		shares[j] = share
	}
	return shares, nil
}

func (p *Participant) sendShares(ctx context.Context, sessionID uuid.UUID, cph *cipher.Cipher, shares []frost.SignatureShare) error {
	payload, err := json.Marshal(signing.SendSignatureSharesArgs{Shares: shares})
	if err != nil {
		return fmt.Errorf("participant: encode signature shares: %w", err)
	}
	ciphertext, err := cph.Encrypt(nil, payload)
	if err != nil {
		return fmt.Errorf("participant: encrypt signature shares: %w", err)
	}
	if err := p.Client.Send(ctx, relay.SendArgs{SessionID: sessionID, Msg: ciphertext}); err != nil {
		return fmt.Errorf("participant: send signature shares: %w", err)
	}
	return nil
}
