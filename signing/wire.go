package signing

import "github.com/frostsig/frostrelay/frost"

// SendSigningPackageArgs is the decrypted payload the coordinator posts to
// each participant at round 2: one SigningPackage per co-signed message,
// plus an optional per-message Randomizer for re-randomizable ciphersuites.
// Randomizers must be empty for suites that don't support re-randomization.
type SendSigningPackageArgs struct {
	Packages    []frost.SigningPackage `json:"packages"`
	Randomizers []frost.Randomizer     `json:"randomizers,omitempty"`
}
