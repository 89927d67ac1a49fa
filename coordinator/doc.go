// Package coordinator drives one signing run from the coordinator's side
// of the protocol: login, session creation, commitment collection, signing
// package distribution (with optional re-randomization), signature share
// collection, and aggregation.
package coordinator
