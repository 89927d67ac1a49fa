// Package dkgdriver orchestrates distributed key generation through the
// relay: identifier derivation from the session ID and each
// participant's communication public key, round-1 broadcast, the optional
// echo-broadcast round, round-2 pairwise delivery, and the final
// combine/normalize step producing a frost.KeyPackage.
package dkgdriver
