package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/frostsig/frostrelay/config"
	"github.com/frostsig/frostrelay/coordinator"
	"github.com/frostsig/frostrelay/frost"
	"github.com/frostsig/frostrelay/participant"
	"github.com/frostsig/frostrelay/relay"
	"github.com/frostsig/frostrelay/relayclient"
)

func loadGroup(cfg *config.Config, groupID string) (config.Group, error) {
	grp, ok := cfg.Groups[groupID]
	if !ok {
		return config.Group{}, fmt.Errorf("frost-client: no such group %q", groupID)
	}
	return grp, nil
}

// suiteForGroup resolves the group's recorded ciphersuite id to a Suite, so
// a group generated under the re-randomizable suite signs with it.
func suiteForGroup(grp config.Group) (frost.Suite, error) {
	suite, ok := frost.SuiteByName(grp.Ciphersuite)
	if !ok {
		return nil, fmt.Errorf("frost-client: unknown ciphersuite %q", grp.Ciphersuite)
	}
	return suite, nil
}

func newCoordinatorCommand(g *globalFlags) *cobra.Command {
	var (
		groupID     string
		pubkeys     []string
		messages    []string
		outFile     string
		ephemeral   bool
		timeout     time.Duration
		randomizers []string
	)

	cmd := &cobra.Command{
		Use:   "coordinator",
		Short: "Coordinate a signing run: collect commitments, distribute the signing package, aggregate shares",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(messages) == 0 {
				return fmt.Errorf("frost-client: at least one --message is required")
			}

			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			kp, err := keyPairFromConfig(cfg)
			if err != nil {
				return err
			}
			grp, err := loadGroup(cfg, groupID)
			if err != nil {
				return err
			}
			serverURL, err := g.resolveServerURL(cfg, groupID)
			if err != nil {
				return err
			}

			var pubPkg frost.PublicKeyPackage
			if err := json.Unmarshal(grp.PublicKeyPackage, &pubPkg); err != nil {
				return fmt.Errorf("frost-client: decode group public key package: %w", err)
			}

			signerKeys := pubkeys
			if len(signerKeys) == 0 {
				for pub := range grp.Participants {
					signerKeys = append(signerKeys, pub)
				}
			}
			signers := make([]coordinator.Participant, len(signerKeys))
			for i, p := range signerKeys {
				pub, err := resolvePublicKey(cfg, p)
				if err != nil {
					return err
				}
				signers[i] = coordinator.Participant{PublicKey: relay.PublicKey(pub)}
			}

			msgs := make([][]byte, len(messages))
			for i, m := range messages {
				msgs[i] = []byte(m)
			}

			rnds, err := decodeRandomizers(randomizers)
			if err != nil {
				return err
			}

			suite, err := suiteForGroup(grp)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			coord := &coordinator.Coordinator{
				Client:       relayclient.New(serverURL),
				Suite:        suite,
				KeyPair:      kp,
				Participants: signers,
				PublicKeys:   pubPkg,
				Ephemeral:    ephemeral,
			}

			results, err := coord.Run(ctx, msgs, rnds)
			if err != nil {
				return fmt.Errorf("frost-client: coordinate signing: %w", err)
			}

			out := cmd.OutOrStdout()
			if outFile != "" {
				f, err := os.Create(outFile)
				if err != nil {
					return fmt.Errorf("frost-client: create %s: %w", outFile, err)
				}
				defer f.Close()
				out = f
			}
			for _, r := range results {
				fmt.Fprintf(out, "%s\n", hex.EncodeToString(r.Signature))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&groupID, "group", "", "group ID (hex group verifying key) to sign under")
	cmd.Flags().StringSliceVar(&pubkeys, "pubkey", nil, "signer public key (hex) or contact name, repeatable (default: every group participant)")
	cmd.Flags().StringArrayVar(&messages, "message", nil, "message to co-sign, repeatable (one signature per message)")
	cmd.Flags().StringVar(&outFile, "out", "", "write signatures to a file instead of stdout")
	cmd.Flags().BoolVar(&ephemeral, "ephemeral", true, "log out of the relay when the run completes")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "deadline for the whole signing run")
	cmd.Flags().StringArrayVar(&randomizers, "randomizer", nil, "hex-encoded randomizer for the matching --message, for re-randomizable ciphersuites (default: sampled internally)")
	_ = cmd.MarkFlagRequired("group")
	return cmd
}

func decodeRandomizers(hexValues []string) ([]frost.Randomizer, error) {
	if len(hexValues) == 0 {
		return nil, nil
	}
	out := make([]frost.Randomizer, len(hexValues))
	for i, s := range hexValues {
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("frost-client: decode randomizer %d: %w", i, err)
		}
		out[i] = frost.Randomizer(b)
	}
	return out, nil
}

func newParticipantCommand(g *globalFlags) *cobra.Command {
	var (
		groupID     string
		sessionID   string
		autoApprove bool
		ephemeral   bool
		timeout     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "participant",
		Short: "Join a signing session: submit commitments, sign the coordinator's package",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			kp, err := keyPairFromConfig(cfg)
			if err != nil {
				return err
			}
			grp, err := loadGroup(cfg, groupID)
			if err != nil {
				return err
			}
			serverURL, err := g.resolveServerURL(cfg, groupID)
			if err != nil {
				return err
			}
			if len(grp.KeyPackage) == 0 {
				return fmt.Errorf("frost-client: group %q has no key package for this installation", groupID)
			}

			var keyPkg frost.KeyPackage
			if err := json.Unmarshal(grp.KeyPackage, &keyPkg); err != nil {
				return fmt.Errorf("frost-client: decode key package: %w", err)
			}

			sessionPtr, err := parseOptionalSessionID(sessionID)
			if err != nil {
				return err
			}

			suite, err := suiteForGroup(grp)
			if err != nil {
				return err
			}

			policy := func(message []byte) bool {
				if autoApprove {
					return true
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "sign message %q? [y/N] ", message)
				var answer string
				fmt.Fscanln(cmd.InOrStdin(), &answer)
				return answer == "y" || answer == "Y"
			}

			resolver := func(pub relay.PublicKey) bool {
				_, _, ok := cfg.ContactByPublicKey(pub)
				return ok
			}

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			p := &participant.Participant{
				Client:     relayclient.New(serverURL),
				Suite:      suite,
				KeyPair:    kp,
				KeyPackage: keyPkg,
				SessionID:  sessionPtr,
				Resolver:   resolver,
				Policy:     policy,
				Ephemeral:  ephemeral,
			}

			if _, err := p.Run(ctx); err != nil {
				return fmt.Errorf("frost-client: participate in signing: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signature share submitted")
			return nil
		},
	}

	cmd.Flags().StringVar(&groupID, "group", "", "group ID (hex group verifying key) to sign under")
	cmd.Flags().StringVar(&sessionID, "session", "", "session ID to join (default: auto-discover if exactly one is active)")
	cmd.Flags().BoolVar(&autoApprove, "yes", false, "approve every message to sign without prompting")
	cmd.Flags().BoolVar(&ephemeral, "ephemeral", true, "log out of the relay when the run completes")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "deadline for the whole signing run")
	_ = cmd.MarkFlagRequired("group")
	return cmd
}

func parseOptionalSessionID(s string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("frost-client: parse --session: %w", err)
	}
	return &id, nil
}
