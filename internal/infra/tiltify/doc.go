// Package tiltify is the client for the Tiltify v5 public API.
//
// TokenProvider performs the OAuth client-credentials exchange and holds the
// bearer token. Client resolves a campaign from its slugs and lists recent
// donations, most recent first. Neither type retries; the poller decides when
// to refresh the token and fetch again.
package tiltify
