package dkgdriver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/frostsig/frostrelay/cipher"
	"github.com/frostsig/frostrelay/dkgsession"
	"github.com/frostsig/frostrelay/frost"
	"github.com/frostsig/frostrelay/identity"
	"github.com/frostsig/frostrelay/relay"
	"github.com/frostsig/frostrelay/relayclient"
)

// PollInterval is the default cadence at which the driver polls the relay
// while waiting on the next DKG round.
const PollInterval = 2 * time.Second

// dkgMessageCount is the placeholder message_count passed to
// create_new_session for a DKG run: the relay's session shape is shared
// between signing and DKG, and message_count has no DKG meaning, but the
// relay rejects zero (InvalidArgument).
const dkgMessageCount = 1

// Sentinel errors for session discovery, mirroring participant.Participant's.
var (
	ErrNoSessionActive  = errors.New("dkgdriver: no active session")
	ErrAmbiguousSession = errors.New("dkgdriver: more than one active session")
)

// Driver orchestrates one DKG run through the relay. Build one per run; it
// holds no state across calls to Run.
type Driver struct {
	Client  *relayclient.Client
	Suite   frost.Suite
	KeyPair *identity.KeyPair

	// Participants is the full DKG group membership, including this
	// driver's own communication public key.
	Participants []relay.PublicKey
	Threshold    int

	// CreateSession, when true, makes this driver the one that calls
	// create_new_session; any participant may be the one to create it.
	// When false, SessionID must be set, or the driver discovers a single
	// already-listed session the way a participant locates a signing
	// session.
	CreateSession bool
	SessionID     *uuid.UUID

	Ephemeral bool

	PollInterval time.Duration
}

// Run drives a complete DKG round 1-3 exchange and returns this
// participant's resulting KeyPackage.
func (d *Driver) Run(ctx context.Context) (frost.KeyPackage, error) {
	if err := d.Client.LoginWithKeyPair(ctx, d.KeyPair); err != nil {
		return frost.KeyPackage{}, fmt.Errorf("dkgdriver: login: %w", err)
	}

	sessionID, created, err := d.obtainSession(ctx)
	if err != nil {
		if d.Ephemeral {
			_ = d.Client.Logout(ctx)
		}
		return frost.KeyPackage{}, err
	}

	keyPkg, runErr := d.runSession(ctx, sessionID)

	if created {
		if closeErr := d.Client.CloseSession(ctx, relay.CloseSessionArgs{SessionID: sessionID}); closeErr != nil {
			logrus.WithFields(logrus.Fields{"package": "dkgdriver", "session_id": sessionID}).
				WithError(closeErr).Warn("failed to close session during teardown")
		}
	}
	if d.Ephemeral {
		if logoutErr := d.Client.Logout(ctx); logoutErr != nil && runErr == nil {
			runErr = fmt.Errorf("dkgdriver: logout: %w", logoutErr)
		}
	}

	return keyPkg, runErr
}

func (d *Driver) obtainSession(ctx context.Context) (uuid.UUID, bool, error) {
	if d.SessionID != nil {
		return *d.SessionID, false, nil
	}
	if d.CreateSession {
		out, err := d.Client.CreateNewSession(ctx, relay.CreateNewSessionArgs{
			PublicKeys:   d.Participants,
			MessageCount: dkgMessageCount,
		})
		if err != nil {
			return uuid.Nil, false, fmt.Errorf("dkgdriver: create session: %w", err)
		}
		return out.SessionID, true, nil
	}

	out, err := d.Client.ListSessions(ctx)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("dkgdriver: list sessions: %w", err)
	}
	switch len(out.SessionIDs) {
	case 0:
		return uuid.Nil, false, ErrNoSessionActive
	case 1:
		return out.SessionIDs[0], false, nil
	default:
		return uuid.Nil, false, ErrAmbiguousSession
	}
}

// identity derivation and membership bookkeeping shared across the run.
type membership struct {
	selfID     frost.Identifier
	allIDs     []frost.Identifier
	pubkeyByID map[frost.Identifier]relay.PublicKey
	idByPubkey map[string]frost.Identifier
}

func (d *Driver) deriveMembership(sessionID uuid.UUID) (membership, error) {
	selfPub := relay.PublicKey(d.KeyPair.Public[:])

	m := membership{
		allIDs:     make([]frost.Identifier, 0, len(d.Participants)),
		pubkeyByID: make(map[frost.Identifier]relay.PublicKey, len(d.Participants)),
		idByPubkey: make(map[string]frost.Identifier, len(d.Participants)),
	}
	for _, pub := range d.Participants {
		id, err := d.Suite.DeriveIdentifier(sessionID[:], pub)
		if err != nil {
			return membership{}, fmt.Errorf("dkgdriver: derive identifier: %w", err)
		}
		m.allIDs = append(m.allIDs, id)
		m.pubkeyByID[id] = pub
		m.idByPubkey[pub.String()] = id
		if pub.String() == selfPub.String() {
			m.selfID = id
		}
	}
	if m.selfID.IsZero() {
		return membership{}, errors.New("dkgdriver: own public key is not a member of the DKG participant set")
	}
	return m, nil
}

func (d *Driver) runSession(ctx context.Context, sessionID uuid.UUID) (frost.KeyPackage, error) {
	m, err := d.deriveMembership(sessionID)
	if err != nil {
		return frost.KeyPackage{}, err
	}

	peerDH := make([][]byte, 0, len(d.Participants)-1)
	for _, pub := range d.Participants {
		if pub.String() == relay.PublicKey(d.KeyPair.Public[:]).String() {
			continue
		}
		dh, err := identity.DHPublicKey(pub)
		if err != nil {
			return frost.KeyPackage{}, fmt.Errorf("dkgdriver: participant public key: %w", err)
		}
		peerDH = append(peerDH, dh)
	}
	cph, err := cipher.NewCipher(d.KeyPair.Private[:], peerDH)
	if err != nil {
		return frost.KeyPackage{}, fmt.Errorf("dkgdriver: build cipher: %w", err)
	}

	state := dkgsession.NewState(m.selfID, m.allIDs)

	ownPkg, secretState1, err := d.Suite.DkgRound1(ctx, m.selfID, d.Threshold, len(d.Participants))
	if err != nil {
		return frost.KeyPackage{}, fmt.Errorf("dkgdriver: round 1: %w", err)
	}
	if err := state.RecvRound1(m.selfID, ownPkg); err != nil {
		return frost.KeyPackage{}, err
	}
	if err := d.broadcastRound1(ctx, sessionID, cph, m, ownPkg); err != nil {
		return frost.KeyPackage{}, err
	}
	if err := d.pollUntil(ctx, sessionID, cph, m, state, state.HasAllRound1); err != nil {
		return frost.KeyPackage{}, fmt.Errorf("dkgdriver: collecting round 1: %w", err)
	}

	round1All := state.Round1Packages()
	if len(m.allIDs) > 2 {
		if err := d.echoBroadcast(ctx, sessionID, cph, m, round1All); err != nil {
			return frost.KeyPackage{}, err
		}
		if err := d.pollUntil(ctx, sessionID, cph, m, state, state.ReadyForRound2); err != nil {
			return frost.KeyPackage{}, fmt.Errorf("dkgdriver: echo-broadcast round: %w", err)
		}
	}

	round2Packages, secretState2, err := d.Suite.DkgRound2(ctx, m.selfID, secretState1, round1All)
	if err != nil {
		return frost.KeyPackage{}, fmt.Errorf("dkgdriver: round 2: %w", err)
	}
	if err := d.sendRound2(ctx, sessionID, cph, m, round2Packages); err != nil {
		return frost.KeyPackage{}, err
	}
	if err := d.pollUntil(ctx, sessionID, cph, m, state, state.IsComplete); err != nil {
		return frost.KeyPackage{}, fmt.Errorf("dkgdriver: collecting round 2: %w", err)
	}

	keyPkg, err := d.Suite.DkgRound3(ctx, m.selfID, round1All, secretState2, state.Round2Packages())
	if err != nil {
		return frost.KeyPackage{}, fmt.Errorf("dkgdriver: round 3: %w", err)
	}

	normalized, err := d.Suite.NormalizeGroupKey(keyPkg.PublicKeyPackage)
	if err != nil {
		return frost.KeyPackage{}, fmt.Errorf("dkgdriver: normalize group key: %w", err)
	}
	keyPkg.PublicKeyPackage = normalized

	return keyPkg, nil
}

func (d *Driver) broadcastRound1(ctx context.Context, sessionID uuid.UUID, cph *cipher.Cipher, m membership, pkg frost.Round1Package) error {
	msg := dkgsession.Message{Kind: dkgsession.KindRound1, Round1: &pkg}
	return d.sendToEveryPeer(ctx, sessionID, cph, m, msg)
}

// echoBroadcast rebroadcasts every peer's round-1 package to every other
// peer, defending against a split view: for each ordered pair
// (recipient, subject) where neither is this driver, send the subject's
// round-1 package (as received directly) to recipient.
func (d *Driver) echoBroadcast(ctx context.Context, sessionID uuid.UUID, cph *cipher.Cipher, m membership, round1 map[frost.Identifier]frost.Round1Package) error {
	selfPub := relay.PublicKey(d.KeyPair.Public[:])
	for _, recipientPub := range d.Participants {
		if recipientPub.String() == selfPub.String() {
			continue
		}
		recipientID := m.idByPubkey[recipientPub.String()]
		for subjectID, pkg := range round1 {
			if subjectID == m.selfID || subjectID == recipientID {
				continue
			}
			echo := dkgsession.EchoPayload{Subject: subjectID, Package: pkg}
			msg := dkgsession.Message{Kind: dkgsession.KindEcho, Echo: &echo}
			if err := d.sendTo(ctx, sessionID, cph, recipientPub, msg); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *Driver) sendRound2(ctx context.Context, sessionID uuid.UUID, cph *cipher.Cipher, m membership, packages []frost.Round2Package) error {
	for _, pkg := range packages {
		recipientPub, ok := m.pubkeyByID[pkg.Recipient]
		if !ok {
			return fmt.Errorf("dkgdriver: round-2 package addressed to unknown identifier %s", pkg.Recipient)
		}
		p := pkg
		msg := dkgsession.Message{Kind: dkgsession.KindRound2, Round2: &p}
		if err := d.sendTo(ctx, sessionID, cph, recipientPub, msg); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) sendToEveryPeer(ctx context.Context, sessionID uuid.UUID, cph *cipher.Cipher, m membership, msg dkgsession.Message) error {
	selfPub := relay.PublicKey(d.KeyPair.Public[:])
	for _, pub := range d.Participants {
		if pub.String() == selfPub.String() {
			continue
		}
		if err := d.sendTo(ctx, sessionID, cph, pub, msg); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) sendTo(ctx context.Context, sessionID uuid.UUID, cph *cipher.Cipher, recipient relay.PublicKey, msg dkgsession.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("dkgdriver: encode message: %w", err)
	}
	dh, err := identity.DHPublicKey(recipient)
	if err != nil {
		return err
	}
	ciphertext, err := cph.Encrypt(dh, payload)
	if err != nil {
		return fmt.Errorf("dkgdriver: encrypt message for %s: %w", recipient, err)
	}
	if err := d.Client.Send(ctx, relay.SendArgs{
		SessionID:  sessionID,
		Recipients: []relay.PublicKey{recipient},
		Msg:        ciphertext,
	}); err != nil {
		return fmt.Errorf("dkgdriver: send to %s: %w", recipient, err)
	}
	return nil
}

func (d *Driver) pollUntil(ctx context.Context, sessionID uuid.UUID, cph *cipher.Cipher, m membership, state *dkgsession.State, done func() bool) error {
	interval := d.PollInterval
	if interval == 0 {
		interval = PollInterval
	}

	for {
		if done() {
			return nil
		}

		out, err := d.Client.Receive(ctx, relay.ReceiveArgs{SessionID: sessionID})
		if err != nil {
			return fmt.Errorf("receive: %w", err)
		}
		for _, msg := range out.Msgs {
			senderID, ok := m.idByPubkey[msg.Sender.String()]
			if !ok {
				return fmt.Errorf("dkgdriver: message from non-member %s", msg.Sender)
			}
			dh, err := identity.DHPublicKey(msg.Sender)
			if err != nil {
				return err
			}
			plaintext, err := cph.Decrypt(dh, msg.Msg)
			if err != nil {
				return fmt.Errorf("decrypt message from %s: %w", msg.Sender, err)
			}
			if err := state.Recv(senderID, plaintext); err != nil {
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
