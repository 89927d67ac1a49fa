// Package signing implements the coordinator-side signing session state
// machine: a tagged sum of three phases that accumulates
// round-1 commitments from every expected participant, then round-2
// signature shares, overwriting on retry rather than rejecting.
package signing
