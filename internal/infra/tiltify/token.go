package tiltify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"donation-relay/internal/observability/metrics"
)

// tokenRequest is the client-credentials grant body.
type tokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	GrantType    string `json:"grant_type"`
	Scope        string `json:"scope"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// TokenProvider obtains and holds the Tiltify access token.
//
// Tokens are refreshed reactively: the poller calls Refresh after a failed
// request instead of tracking expiry. A failed refresh drops the held token
// so no request is sent with a credential already known to be bad.
type TokenProvider struct {
	httpClient   *http.Client
	baseURL      string
	clientID     string
	clientSecret string
	logger       *slog.Logger

	mu    sync.RWMutex
	token string
}

// NewTokenProvider creates a provider for the given application credentials.
func NewTokenProvider(httpClient *http.Client, baseURL, clientID, clientSecret string) *TokenProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &TokenProvider{
		httpClient:   httpClient,
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		logger:       slog.Default(),
	}
}

// Authenticate performs the initial exchange and stores the token.
func (p *TokenProvider) Authenticate(ctx context.Context) (string, error) {
	token, err := p.exchange(ctx)
	if err != nil {
		return "", err
	}
	p.setToken(token)
	p.logger.Info("obtained tiltify access token")
	return token, nil
}

// Refresh replaces the held token. On failure the held token is cleared.
func (p *TokenProvider) Refresh(ctx context.Context) (string, error) {
	p.logger.Info("renewing tiltify access token")
	token, err := p.exchange(ctx)
	metrics.RecordTokenRefresh(err == nil)
	if err != nil {
		p.setToken("")
		return "", err
	}
	p.setToken(token)
	return token, nil
}

// Token returns the current access token, or "" when none is held.
func (p *TokenProvider) Token() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.token
}

func (p *TokenProvider) setToken(token string) {
	p.mu.Lock()
	p.token = token
	p.mu.Unlock()
}

func (p *TokenProvider) exchange(ctx context.Context) (token string, err error) {
	start := time.Now()
	defer func() { metrics.RecordTiltifyRequest("token", err == nil, start) }()

	body, err := json.Marshal(tokenRequest{
		ClientID:     p.clientID,
		ClientSecret: p.clientSecret,
		GrantType:    "client_credentials",
		Scope:        "public",
	})
	if err != nil {
		return "", &AuthError{Err: fmt.Errorf("encode token request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/oauth/token", bytes.NewReader(body))
	if err != nil {
		return "", &AuthError{Err: fmt.Errorf("create token request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", &AuthError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		drain(resp)
		return "", &AuthError{StatusCode: resp.StatusCode}
	}

	var tr tokenResponse
	if err := decodeJSON(resp, &tr); err != nil {
		return "", &AuthError{Err: fmt.Errorf("decode token response: %w", err)}
	}
	if tr.AccessToken == "" {
		return "", &AuthError{Err: errors.New("token response has no access_token")}
	}
	return tr.AccessToken, nil
}
