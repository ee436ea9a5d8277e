package tiltify

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNoCredential is returned without contacting the API when the token
// provider holds no access token, typically after a failed refresh.
var ErrNoCredential = errors.New("no tiltify access token")

// AuthError reports a failed client-credentials exchange.
// StatusCode is zero when no response was received.
type AuthError struct {
	StatusCode int
	Err        error
}

func (e *AuthError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("tiltify authentication failed: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("tiltify authentication failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error   { return e.Err }
func (e *AuthError) HTTPStatus() int { return e.StatusCode }

// LookupError reports that the campaign could not be resolved from its slugs.
type LookupError struct {
	UserSlug     string
	CampaignSlug string
	StatusCode   int
	Err          error
}

func (e *LookupError) Error() string {
	target := e.UserSlug + "/" + e.CampaignSlug
	if e.StatusCode != 0 {
		return fmt.Sprintf("tiltify campaign lookup %s failed: HTTP %d", target, e.StatusCode)
	}
	return fmt.Sprintf("tiltify campaign lookup %s failed: %v", target, e.Err)
}

func (e *LookupError) Unwrap() error   { return e.Err }
func (e *LookupError) HTTPStatus() int { return e.StatusCode }

// FetchError reports a failed donation listing. Unauthorized is set when the
// API rejected the credential (401/403) or no credential was available.
type FetchError struct {
	CampaignID   string
	StatusCode   int
	Unauthorized bool
	Err          error
}

func (e *FetchError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("tiltify donations fetch for campaign %s failed: HTTP %d: %v", e.CampaignID, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("tiltify donations fetch for campaign %s failed: HTTP %d", e.CampaignID, e.StatusCode)
	default:
		return fmt.Sprintf("tiltify donations fetch for campaign %s failed: %v", e.CampaignID, e.Err)
	}
}

func (e *FetchError) Unwrap() error   { return e.Err }
func (e *FetchError) HTTPStatus() int { return e.StatusCode }

func isUnauthorized(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}
