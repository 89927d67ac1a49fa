package identity

import (
	"crypto/subtle"
	"errors"
	"runtime"
)

// SecureWipe overwrites data with zeros using a constant-time XOR the
// compiler cannot optimize away (x XOR x = 0), then calls runtime.KeepAlive
// so the write isn't eliminated as dead code.
func SecureWipe(data []byte) error {
	if data == nil {
		return errors.New("identity: cannot wipe nil data")
	}
	subtle.XORBytes(data, data, data)
	runtime.KeepAlive(data)
	return nil
}

// ZeroBytes is SecureWipe ignoring the no-data error, for defer sites.
func ZeroBytes(data []byte) {
	_ = SecureWipe(data)
}

// WipeKeyPair securely erases the private seed in a KeyPair. Call this when
// a KeyPair is no longer needed. It does not touch FROST signing shares
// (frost.KeyPackage.SigningShare), and the frost package does not wipe them
// either.
func WipeKeyPair(kp *KeyPair) error {
	if kp == nil {
		return errors.New("identity: cannot wipe nil KeyPair")
	}
	return SecureWipe(kp.Private[:])
}
