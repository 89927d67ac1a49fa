// Package contact implements the copy/paste contact-exchange codec: a
// compact, checksummed text representation of one peer's display name and
// communication public key, so two users can exchange identities over any
// out-of-band channel (chat, QR code, email) without a discovery service.
package contact

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"

	"github.com/frostsig/frostrelay/identity"
)

// HRP is the bech32m human-readable part every encoded contact string
// carries.
const HRP = "zffrost"

// CurrentVersion is the contact payload format version this package writes.
// Decoding a payload with a different version fails closed, mirroring
// config.CurrentVersion's same fail-fast stance on format drift.
const CurrentVersion byte = 1

// maxNameLen bounds the display name so the length-prefixed encoding below
// fits in a single byte.
const maxNameLen = 255

var (
	// ErrVersionMismatch is returned by UnmarshalText when the payload's version
	// byte doesn't match CurrentVersion.
	ErrVersionMismatch = errors.New("contact: unsupported version")
	// ErrNameTooLong is returned by MarshalText when DisplayName exceeds maxNameLen.
	ErrNameTooLong = errors.New("contact: display name too long")
	// ErrMalformed is returned by UnmarshalText when the payload is truncated or
	// the wrong length.
	ErrMalformed = errors.New("contact: malformed payload")
)

// Contact is one address-book entry as exchanged between two users: a
// display name and a peer's communication public key (identity.KeyPair.Public).
type Contact struct {
	DisplayName string
	PublicKey   [identity.PublicKeySize]byte
}

// payload lays out {version, name length, name, pubkey} before bech32m
// squashing: a fixed-size public key after a length-prefixed name needs no
// further framing, unlike config's YAML encoding which can rely on the
// format's own structure.
func (c Contact) payload() ([]byte, error) {
	if len(c.DisplayName) > maxNameLen {
		return nil, ErrNameTooLong
	}
	buf := make([]byte, 0, 2+len(c.DisplayName)+identity.PublicKeySize)
	buf = append(buf, CurrentVersion, byte(len(c.DisplayName)))
	buf = append(buf, []byte(c.DisplayName)...)
	buf = append(buf, c.PublicKey[:]...)
	return buf, nil
}

// MarshalText encodes c as a bech32m string with human-readable part HRP,
// satisfying encoding.TextMarshaler so Contact round-trips through anything
// that calls String/UnmarshalText (flags, YAML, JSON).
func (c Contact) MarshalText() ([]byte, error) {
	payload, err := c.payload()
	if err != nil {
		return nil, err
	}
	converted, err := bech32.ConvertBits(payload, 8, 5, true)
	if err != nil {
		return nil, fmt.Errorf("contact: convert bits: %w", err)
	}
	encoded, err := bech32.EncodeM(HRP, converted)
	if err != nil {
		return nil, fmt.Errorf("contact: bech32m encode: %w", err)
	}
	return []byte(encoded), nil
}

// String is MarshalText ignoring the (never, for a valid Contact) error, for
// logging and CLI output.
func (c Contact) String() string {
	text, err := c.MarshalText()
	if err != nil {
		return fmt.Sprintf("<invalid contact: %v>", err)
	}
	return string(text)
}

// UnmarshalText decodes a bech32m contact-exchange string produced by
// MarshalText back into c.
func (c *Contact) UnmarshalText(text []byte) error {
	hrp, data, encoding, err := bech32.DecodeGeneric(string(text))
	if err != nil {
		return fmt.Errorf("contact: bech32 decode: %w", err)
	}
	if encoding != bech32.VersionM {
		return errors.New("contact: expected bech32m encoding")
	}
	if hrp != HRP {
		return fmt.Errorf("contact: unexpected human-readable part %q, want %q", hrp, HRP)
	}

	payload, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return fmt.Errorf("contact: convert bits: %w", err)
	}
	if len(payload) < 2+identity.PublicKeySize {
		return ErrMalformed
	}
	version := payload[0]
	if version != CurrentVersion {
		return fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, version, CurrentVersion)
	}
	nameLen := int(payload[1])
	if len(payload) != 2+nameLen+identity.PublicKeySize {
		return ErrMalformed
	}

	var out Contact
	out.DisplayName = string(payload[2 : 2+nameLen])
	copy(out.PublicKey[:], payload[2+nameLen:])
	*c = out
	return nil
}

// Equal reports whether c and other encode the same display name and public
// key.
func (c Contact) Equal(other Contact) bool {
	return c.DisplayName == other.DisplayName && bytes.Equal(c.PublicKey[:], other.PublicKey[:])
}
