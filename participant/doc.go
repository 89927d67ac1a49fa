// Package participant drives one participant's half of a signing run
// of the protocol: login, session discovery, commitment, signing-package
// confirmation against a user policy, signing, and share submission.
package participant
