// Package config persists the durable local state of a frost-client
// installation: the long-lived communication key pair, the address book,
// and the completed groups a participant or coordinator can later sign or
// run DKG for again.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// CurrentVersion is the config format version written by this package.
// Loading a file with a different version fails closed rather than guessing
// at a migration.
const CurrentVersion uint8 = 1

// ErrVersionMismatch is returned by Load when the file on disk carries a
// version this package does not know how to read.
var ErrVersionMismatch = errors.New("config: unsupported version")

// HexBytes marshals as a lowercase hex string in YAML instead of the base64
// gopkg.in/yaml.v3 would otherwise pick for a raw []byte, so config files
// stay readable next to the bech32m contact-exchange strings.
type HexBytes []byte

func (h HexBytes) MarshalYAML() (interface{}, error) {
	return hex.EncodeToString(h), nil
}

func (h *HexBytes) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("config: decode hex: %w", err)
	}
	*h = b
	return nil
}

// CommunicationKey is the long-lived identity this installation logs into
// the relay and runs DKG/signing with.
type CommunicationKey struct {
	Private HexBytes `yaml:"private"`
	Public  HexBytes `yaml:"public"`
}

// Contact is one address-book entry: a name bound to a peer's communication
// public key. It mirrors contact.Contact but drops the version byte, which
// only matters for the copy/paste exchange format, not local storage.
type Contact struct {
	Name      string   `yaml:"name"`
	PublicKey HexBytes `yaml:"pubkey"`
}

// Participant is one member of a completed group, recorded so a later
// signing or re-DKG run can reconstruct frost.Identifier values without
// redoing DeriveIdentifier against the original session ID.
type Participant struct {
	Identifier HexBytes `yaml:"identifier"`
	PublicKey  HexBytes `yaml:"pubkey"`
}

// Group is the output of a completed DKG (or trusted-dealer split): enough
// to act as a participant or coordinator for that key again.
type Group struct {
	Ciphersuite      string                 `yaml:"ciphersuite"`
	PublicKeyPackage HexBytes               `yaml:"public_key_package"`
	KeyPackage       HexBytes               `yaml:"key_package,omitempty"`
	ServerURL        string                 `yaml:"server_url,omitempty"`
	Participants     map[string]Participant `yaml:"participants,omitempty"`
}

// Config is the full on-disk state of one frost-client installation.
type Config struct {
	path string

	Version          uint8             `yaml:"version"`
	CommunicationKey *CommunicationKey `yaml:"communication_key,omitempty"`
	Contacts         map[string]Contact `yaml:"contacts,omitempty"`
	Groups           map[string]Group   `yaml:"groups,omitempty"`
}

// DefaultPath returns $XDG_CONFIG_HOME/frost/credentials.yaml (or the
// platform equivalent via os.UserConfigDir).
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve config dir: %w", err)
	}
	return filepath.Join(dir, "frost", "credentials.yaml"), nil
}

// empty returns a fresh, unpersisted Config for path.
func empty(path string) *Config {
	return &Config{
		path:     path,
		Version:  CurrentVersion,
		Contacts: map[string]Contact{},
		Groups:   map[string]Group{},
	}
}

// Load reads path, or returns a fresh empty Config if it does not exist
// yet, so a first run never has to special-case a missing file.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return empty(path), nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := empty(path)
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.path = path
	if cfg.Version != CurrentVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, cfg.Version, CurrentVersion)
	}
	if cfg.Contacts == nil {
		cfg.Contacts = map[string]Contact{}
	}
	if cfg.Groups == nil {
		cfg.Groups = map[string]Group{}
	}
	return cfg, nil
}

// Path returns the file this Config will be saved to.
func (c *Config) Path() string {
	return c.path
}

// Save writes the config to its path, replacing the existing file
// atomically. The version is always stamped to CurrentVersion on write.
func (c *Config) Save() error {
	c.Version = CurrentVersion
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	return writeAtomic(c.path, data)
}

// writeAtomic writes data to a temp file beside path, fsyncs it, then
// renames it into place, so a crash mid-write can never leave a truncated
// config behind. The temp file must live in the same directory as path for
// the rename to stay atomic.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("config: create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*.tmp")
	if err != nil {
		return fmt.Errorf("config: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("config: chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("config: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("config: fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("config: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("config: rename into place: %w", err)
	}
	return nil
}

// ContactByPublicKey returns the address-book entry whose public key
// matches pub, if any.
func (c *Config) ContactByPublicKey(pub []byte) (name string, contact Contact, ok bool) {
	for n, ct := range c.Contacts {
		if hex.EncodeToString(ct.PublicKey) == hex.EncodeToString(pub) {
			return n, ct, true
		}
	}
	return "", Contact{}, false
}

// AddContact records a new address-book entry under name. It refuses to
// overwrite an existing name or to add the installation's own communication
// key as a contact.
func (c *Config) AddContact(name string, pub []byte) error {
	if _, exists := c.Contacts[name]; exists {
		return fmt.Errorf("config: contact %q already exists", name)
	}
	if c.CommunicationKey != nil && hex.EncodeToString(c.CommunicationKey.Public) == hex.EncodeToString(pub) {
		return errors.New("config: refusing to add own communication key as a contact")
	}
	if c.Contacts == nil {
		c.Contacts = map[string]Contact{}
	}
	c.Contacts[name] = Contact{Name: name, PublicKey: pub}
	return nil
}

// RemoveContact deletes the named address-book entry. It reports whether an
// entry was actually removed.
func (c *Config) RemoveContact(name string) bool {
	if _, exists := c.Contacts[name]; !exists {
		return false
	}
	delete(c.Contacts, name)
	return true
}

// AddGroup records a completed group under groupID, the hex-encoded group
// verifying key.
func (c *Config) AddGroup(groupID string, g Group) {
	if c.Groups == nil {
		c.Groups = map[string]Group{}
	}
	c.Groups[groupID] = g
}

// RemoveGroup deletes the named group. It reports whether a group was
// actually removed.
func (c *Config) RemoveGroup(groupID string) bool {
	if _, exists := c.Groups[groupID]; !exists {
		return false
	}
	delete(c.Groups, groupID)
	return true
}
