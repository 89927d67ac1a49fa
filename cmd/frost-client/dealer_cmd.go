package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/frostsig/frostrelay/config"
	"github.com/frostsig/frostrelay/frost"
)

// dealerExport is what trusted-dealer writes to disk for each participant,
// --self included: enough to populate their own config.Group entry
// without ever seeing another participant's signing share.
type dealerExport struct {
	Ciphersuite      string                        `json:"ciphersuite"`
	Identifier       string                        `json:"identifier"`
	KeyPackage       frost.KeyPackage              `json:"key_package"`
	PublicKeyPackage frost.PublicKeyPackage        `json:"public_key_package"`
	Participants     map[string]config.Participant `json:"participants"`
}

func newTrustedDealerCommand(g *globalFlags) *cobra.Command {
	var (
		threshold int
		pubkeys   []string
		self      string
		outDir    string
	)

	cmd := &cobra.Command{
		Use:   "trusted-dealer",
		Short: "Split a fresh signing key across participants without DKG",
		Long: `trusted-dealer runs the external trusted-dealer key-split step in-process:
it samples a group secret, Shamir-splits it across the given participant
public keys at the given threshold, and writes one key package per
participant to --out-dir. Use --self to also record the resulting group
directly in this installation's config, for whichever participant this
process is acting as.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if threshold < 1 || threshold > len(pubkeys) {
				return fmt.Errorf("frost-client: threshold %d invalid for %d participants", threshold, len(pubkeys))
			}
			if outDir == "" {
				return fmt.Errorf("frost-client: --out-dir is required")
			}

			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}

			resolved := make([][]byte, len(pubkeys))
			for i, p := range pubkeys {
				pub, err := resolvePublicKey(cfg, p)
				if err != nil {
					return err
				}
				resolved[i] = pub
			}

			suite := frost.EdSuite{}
			ids := make([]frost.Identifier, len(resolved))
			idByPubkey := make(map[string]frost.Identifier, len(resolved))
			for i := range resolved {
				id, err := suite.SequentialIdentifier(i + 1)
				if err != nil {
					return fmt.Errorf("frost-client: derive identifier: %w", err)
				}
				ids[i] = id
				idByPubkey[hex.EncodeToString(resolved[i])] = id
			}

			keyPkgs, pubPkg, err := suite.TrustedDealerSplit(ids, threshold, nil)
			if err != nil {
				return fmt.Errorf("frost-client: split key: %w", err)
			}
			normalized, err := suite.NormalizeGroupKey(pubPkg)
			if err != nil {
				return fmt.Errorf("frost-client: normalize group key: %w", err)
			}
			pubPkg = normalized

			participants := make(map[string]config.Participant, len(resolved))
			for i, pub := range resolved {
				participants[hex.EncodeToString(pub)] = config.Participant{
					Identifier: config.HexBytes(ids[i][:]),
					PublicKey:  config.HexBytes(pub),
				}
			}

			groupID := hex.EncodeToString(pubPkg.GroupPublicKey)

			if err := os.MkdirAll(outDir, 0o700); err != nil {
				return fmt.Errorf("frost-client: create out-dir: %w", err)
			}

			for i, pub := range resolved {
				id := ids[i]
				kp := keyPkgs[id]
				kp.PublicKeyPackage = pubPkg
				export := dealerExport{
					Ciphersuite:      suite.Name(),
					Identifier:       id.String(),
					KeyPackage:       kp,
					PublicKeyPackage: pubPkg,
					Participants:     participants,
				}
				data, err := json.MarshalIndent(export, "", "  ")
				if err != nil {
					return fmt.Errorf("frost-client: encode export: %w", err)
				}
				path := filepath.Join(outDir, hex.EncodeToString(pub)+".json")
				if err := os.WriteFile(path, data, 0o600); err != nil {
					return fmt.Errorf("frost-client: write %s: %w", path, err)
				}
			}

			if self != "" {
				selfPub, err := resolvePublicKey(cfg, self)
				if err != nil {
					return err
				}
				id, ok := idByPubkey[hex.EncodeToString(selfPub)]
				if !ok {
					return fmt.Errorf("frost-client: --self %q is not one of the split participants", self)
				}
				kp := keyPkgs[id]
				kp.PublicKeyPackage = pubPkg
				keyPkgBytes, err := json.Marshal(kp)
				if err != nil {
					return err
				}
				pubPkgBytes, err := json.Marshal(pubPkg)
				if err != nil {
					return err
				}
				cfg.AddGroup(groupID, config.Group{
					Ciphersuite:      suite.Name(),
					PublicKeyPackage: config.HexBytes(pubPkgBytes),
					KeyPackage:       config.HexBytes(keyPkgBytes),
					ServerURL:        g.serverURL,
					Participants:     participants,
				})
				if err := cfg.Save(); err != nil {
					return fmt.Errorf("frost-client: save config: %w", err)
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "group %s created; %d key packages written to %s\n", groupID, len(resolved), outDir)
			return nil
		},
	}

	cmd.Flags().IntVar(&threshold, "threshold", 0, "signing threshold t")
	cmd.Flags().StringSliceVar(&pubkeys, "pubkey", nil, "participant public key (hex) or contact name, repeatable")
	cmd.Flags().StringVar(&self, "self", "", "contact name or hex pubkey of the participant this installation will act as")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "directory to write each participant's key package to")
	return cmd
}

// resolvePublicKey accepts "self" (this installation's own communication
// public key), the name of an address-book contact, or a hex-encoded 64-byte
// communication public key.
func resolvePublicKey(cfg *config.Config, s string) ([]byte, error) {
	if cfg.CommunicationKey != nil && s == "self" {
		return cfg.CommunicationKey.Public, nil
	}
	if c, ok := cfg.Contacts[s]; ok {
		return c.PublicKey, nil
	}
	pub, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("frost-client: %q is neither a known contact nor a hex public key", s)
	}
	return pub, nil
}
