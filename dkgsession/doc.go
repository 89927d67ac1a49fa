// Package dkgsession implements the participant-side DKG session state
// machine: round-1 broadcast collection, an optional
// echo-broadcast round guarding against a split-view attack when more than
// two participants are involved, and round-2 pairwise package collection.
package dkgsession
