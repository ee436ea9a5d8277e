package tiltify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokenServer(t *testing.T, handler http.HandlerFunc) *TokenProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewTokenProvider(srv.Client(), srv.URL, "client-id", "client-secret")
}

func TestTokenProvider_Authenticate(t *testing.T) {
	var got tokenRequest
	provider := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/oauth/token", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-1","token_type":"bearer","expires_in":7200}`))
	})

	token, err := provider.Authenticate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "tok-1", token)
	assert.Equal(t, "tok-1", provider.Token())
	assert.Equal(t, tokenRequest{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		GrantType:    "client_credentials",
		Scope:        "public",
	}, got)
}

func TestTokenProvider_AuthenticateRejected(t *testing.T) {
	provider := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
	})

	_, err := provider.Authenticate(context.Background())

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
	assert.Equal(t, http.StatusUnauthorized, authErr.HTTPStatus())
	assert.Empty(t, provider.Token())
}

func TestTokenProvider_AuthenticateMissingToken(t *testing.T) {
	provider := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"token_type":"bearer"}`))
	})

	_, err := provider.Authenticate(context.Background())

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Zero(t, authErr.StatusCode)
	assert.Contains(t, err.Error(), "no access_token")
}

func TestTokenProvider_Refresh(t *testing.T) {
	var calls atomic.Int32
	provider := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		switch n {
		case 1:
			_, _ = w.Write([]byte(`{"access_token":"tok-1"}`))
		case 2:
			_, _ = w.Write([]byte(`{"access_token":"tok-2"}`))
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	})
	ctx := context.Background()

	_, err := provider.Authenticate(ctx)
	require.NoError(t, err)

	token, err := provider.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", token)
	assert.Equal(t, "tok-2", provider.Token())

	_, err = provider.Refresh(ctx)
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusServiceUnavailable, authErr.StatusCode)
	assert.Empty(t, provider.Token(), "failed refresh must drop the stale token")
}

func TestTokenProvider_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	provider := NewTokenProvider(srv.Client(), srv.URL, "id", "secret")
	srv.Close()

	_, err := provider.Authenticate(context.Background())

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Zero(t, authErr.StatusCode)
	assert.NotNil(t, errors.Unwrap(err))
}
