// Command frost-client is the end-user driver for FROST signing and DKG:
// install-time key/contact/group management, plus the coordinator,
// participant, DKG, and trusted-dealer protocol runs themselves.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/frostsig/frostrelay/config"
	"github.com/frostsig/frostrelay/identity"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		logrus.WithField("package", "frost-client").Error(err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// globalFlags holds the flags shared by every subcommand: where the
// config file lives and which relay to talk to.
type globalFlags struct {
	configPath string
	serverURL  string
}

func newRootCommand() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:           "frost-client",
		Short:         "Drive FROST threshold signing and DKG through a relay",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&g.configPath, "config", "", "path to the credentials file (default: "+configDefaultHint()+")")
	root.PersistentFlags().StringVar(&g.serverURL, "server", "", "relay server base URL, e.g. https://relay.example.org:2744")

	root.AddCommand(
		newInitCommand(g),
		newExportCommand(g),
		newImportCommand(g),
		newContactsCommand(g),
		newRemoveContactCommand(g),
		newGroupsCommand(g),
		newRemoveGroupCommand(g),
		newSessionsCommand(g),
		newTrustedDealerCommand(g),
		newDKGCommand(g),
		newCoordinatorCommand(g),
		newParticipantCommand(g),
	)
	return root
}

func configDefaultHint() string {
	path, err := config.DefaultPath()
	if err != nil {
		return "$XDG_CONFIG_HOME/frost/credentials.yaml"
	}
	return path
}

// loadConfig reads g's config file, creating an empty in-memory one if it
// doesn't exist yet (config.Load's own behavior), mirroring every
// subcommand's need to start from the installation's current state.
func (g *globalFlags) loadConfig() (*config.Config, error) {
	return config.Load(g.configPath)
}

// resolveServerURL prefers the --server flag, falling back to the server URL
// recorded for the group named by groupID, so a user signing against an already-joined
// group doesn't have to repeat the URL on every invocation.
func (g *globalFlags) resolveServerURL(cfg *config.Config, groupID string) (string, error) {
	if g.serverURL != "" {
		return g.serverURL, nil
	}
	if grp, ok := cfg.Groups[groupID]; ok && grp.ServerURL != "" {
		return grp.ServerURL, nil
	}
	return "", fmt.Errorf("frost-client: no --server given and group %q has no recorded server URL", groupID)
}

// keyPairFromConfig rebuilds an identity.KeyPair from cfg's stored
// communication key, failing if init hasn't been run yet.
func keyPairFromConfig(cfg *config.Config) (*identity.KeyPair, error) {
	if cfg.CommunicationKey == nil {
		return nil, fmt.Errorf("frost-client: no communication key in %s; run init first", cfg.Path())
	}
	var kp identity.KeyPair
	if len(cfg.CommunicationKey.Private) != 32 {
		return nil, fmt.Errorf("frost-client: malformed communication key in config")
	}
	copy(kp.Private[:], cfg.CommunicationKey.Private)
	if len(cfg.CommunicationKey.Public) != identity.PublicKeySize {
		return nil, fmt.Errorf("frost-client: malformed communication key in config")
	}
	copy(kp.Public[:], cfg.CommunicationKey.Public)
	return &kp, nil
}
