package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/frostsig/frostrelay/config"
	"github.com/frostsig/frostrelay/dkgdriver"
	"github.com/frostsig/frostrelay/frost"
	"github.com/frostsig/frostrelay/relay"
	"github.com/frostsig/frostrelay/relayclient"
)

func newDKGCommand(g *globalFlags) *cobra.Command {
	var (
		threshold   int
		pubkeys     []string
		create      bool
		ephemeral   bool
		timeout     time.Duration
		ciphersuite string
	)

	cmd := &cobra.Command{
		Use:   "dkg",
		Short: "Run distributed key generation with a group of peers through a relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			kp, err := keyPairFromConfig(cfg)
			if err != nil {
				return err
			}
			if g.serverURL == "" {
				return fmt.Errorf("frost-client: --server is required")
			}
			if threshold < 1 || threshold > len(pubkeys) {
				return fmt.Errorf("frost-client: threshold %d invalid for %d participants", threshold, len(pubkeys))
			}

			participants := make([]relay.PublicKey, len(pubkeys))
			for i, p := range pubkeys {
				pub, err := resolvePublicKey(cfg, p)
				if err != nil {
					return err
				}
				participants[i] = relay.PublicKey(pub)
			}

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			suite, ok := frost.SuiteByName(ciphersuite)
			if !ok {
				return fmt.Errorf("frost-client: unknown ciphersuite %q", ciphersuite)
			}
			driver := &dkgdriver.Driver{
				Client:        relayclient.New(g.serverURL),
				Suite:         suite,
				KeyPair:       kp,
				Participants:  participants,
				Threshold:     threshold,
				CreateSession: create,
				Ephemeral:     ephemeral,
			}

			keyPkg, err := driver.Run(ctx)
			if err != nil {
				return fmt.Errorf("frost-client: dkg: %w", err)
			}

			groupID := hex.EncodeToString(keyPkg.PublicKeyPackage.GroupPublicKey)
			// Per-peer identifiers aren't recorded here: they derive from
			// (session ID, pubkey), and the session is already torn down by
			// the time DKG completes, so only the pubkey is kept; a later
			// signing run re-derives identifiers from a fresh session.
			participantsMap := make(map[string]config.Participant, len(participants))
			for _, pub := range participants {
				participantsMap[hex.EncodeToString(pub)] = config.Participant{PublicKey: config.HexBytes(pub)}
			}

			keyPkgBytes, err := json.Marshal(keyPkg)
			if err != nil {
				return err
			}
			pubPkgBytes, err := json.Marshal(keyPkg.PublicKeyPackage)
			if err != nil {
				return err
			}

			cfg.AddGroup(groupID, config.Group{
				Ciphersuite:      suite.Name(),
				PublicKeyPackage: config.HexBytes(pubPkgBytes),
				KeyPackage:       config.HexBytes(keyPkgBytes),
				ServerURL:        g.serverURL,
				Participants:     participantsMap,
			})
			if err := cfg.Save(); err != nil {
				return fmt.Errorf("frost-client: save config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "dkg complete: group %s, own identifier %s\n", groupID, keyPkg.Identifier)
			return nil
		},
	}

	cmd.Flags().IntVar(&threshold, "threshold", 0, "signing threshold t")
	cmd.Flags().StringSliceVar(&pubkeys, "pubkey", nil, "DKG group member public key (hex) or contact name, repeatable, including this installation's own key")
	cmd.Flags().BoolVar(&create, "create", false, "create the session (exactly one participant should pass this)")
	cmd.Flags().BoolVar(&ephemeral, "ephemeral", true, "log out of the relay when the run completes")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "deadline for the whole DKG run")
	cmd.Flags().StringVar(&ciphersuite, "ciphersuite", frost.EdSuite{}.Name(), "ciphersuite id for the new group")
	return cmd
}
