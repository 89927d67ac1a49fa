package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/frostsig/frostrelay/config"
	"github.com/frostsig/frostrelay/contact"
	"github.com/frostsig/frostrelay/identity"
)

func newInitCommand(g *globalFlags) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate a new communication key pair and write the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if cfg.CommunicationKey != nil && !force {
				return fmt.Errorf("frost-client: config at %s already has a communication key; pass --force to overwrite", cfg.Path())
			}

			kp, err := identity.GenerateKeyPair()
			if err != nil {
				return fmt.Errorf("frost-client: generate key pair: %w", err)
			}
			defer identity.WipeKeyPair(kp)

			cfg.CommunicationKey = &config.CommunicationKey{
				Private: append(config.HexBytes(nil), kp.Private[:]...),
				Public:  append(config.HexBytes(nil), kp.Public[:]...),
			}
			if err := cfg.Save(); err != nil {
				return fmt.Errorf("frost-client: save config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "initialized %s\npublic key: %x\n", cfg.Path(), kp.Public)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing communication key")
	return cmd
}

func newExportCommand(g *globalFlags) *cobra.Command {
	var name string
	var outFile string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export this installation's contact string for sharing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if cfg.CommunicationKey == nil {
				return fmt.Errorf("frost-client: no communication key; run init first")
			}

			c := contact.Contact{DisplayName: name}
			copy(c.PublicKey[:], cfg.CommunicationKey.Public)
			text, err := c.MarshalText()
			if err != nil {
				return fmt.Errorf("frost-client: encode contact: %w", err)
			}

			if outFile != "" {
				if err := os.WriteFile(outFile, append(text, '\n'), 0o600); err != nil {
					return fmt.Errorf("frost-client: write %s: %w", outFile, err)
				}
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(text))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name to embed in the exported contact string")
	cmd.Flags().StringVar(&outFile, "out", "", "write the contact string to a file instead of stdout")
	return cmd
}

func newImportCommand(g *globalFlags) *cobra.Command {
	var as string
	cmd := &cobra.Command{
		Use:   "import <contact-string>",
		Short: "Add a peer's exported contact string to the address book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var c contact.Contact
			if err := c.UnmarshalText([]byte(args[0])); err != nil {
				return fmt.Errorf("frost-client: decode contact string: %w", err)
			}

			name := as
			if name == "" {
				name = c.DisplayName
			}
			if name == "" {
				return fmt.Errorf("frost-client: contact string has no display name; pass --as")
			}

			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.AddContact(name, c.PublicKey[:]); err != nil {
				return err
			}
			if err := cfg.Save(); err != nil {
				return fmt.Errorf("frost-client: save config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %q (%x)\n", name, c.PublicKey)
			return nil
		},
	}
	cmd.Flags().StringVar(&as, "as", "", "name to file the contact under (defaults to the embedded display name)")
	return cmd
}

func newContactsCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "contacts",
		Short: "List the address book",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if len(cfg.Contacts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "(no contacts)")
				return nil
			}
			for name, c := range cfg.Contacts {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%x\n", name, c.PublicKey)
			}
			return nil
		},
	}
}

func newRemoveContactCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-contact <name>",
		Short: "Remove an address book entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if !cfg.RemoveContact(args[0]) {
				return fmt.Errorf("frost-client: no such contact %q", args[0])
			}
			if err := cfg.Save(); err != nil {
				return fmt.Errorf("frost-client: save config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %q\n", args[0])
			return nil
		},
	}
}

func newGroupsCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "groups",
		Short: "List completed groups this installation can sign or run DKG for",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if len(cfg.Groups) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "(no groups)")
				return nil
			}
			for id, grp := range cfg.Groups {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\tciphersuite=%s\tparticipants=%d\tserver=%s\n",
					id, grp.Ciphersuite, len(grp.Participants), grp.ServerURL)
			}
			return nil
		},
	}
}

func newRemoveGroupCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-group <group-id>",
		Short: "Forget a completed group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if !cfg.RemoveGroup(args[0]) {
				return fmt.Errorf("frost-client: no such group %q", args[0])
			}
			if err := cfg.Save(); err != nil {
				return fmt.Errorf("frost-client: save config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed group %q\n", args[0])
			return nil
		},
	}
}
