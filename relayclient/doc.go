// Package relayclient is a typed client for package relay's HTTP API,
// mirroring the shape of a generic JSON-over-HTTP client: a small struct
// wrapping *http.Client and a base URL, one method per endpoint, and a
// shared call helper that handles auth, encoding, and the relay's
// always-500 error convention.
package relayclient
