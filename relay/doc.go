// Package relay implements the untrusted session broker that coordinators
// and participants use to exchange FROST signing and DKG messages without
// ever seeing their plaintext. The relay authenticates callers, brokers
// session membership, and holds per-recipient message queues; it never
// inspects, derives, or requires any cryptographic material beyond the
// bearer-token challenge/login handshake used to establish who is making a
// request.
//
// Every message body the relay forwards (see Msg) is expected to already be
// Noise-encrypted by the caller (see package cipher); the relay cannot read
// it and does not try to.
package relay
