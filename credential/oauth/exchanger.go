// Package oauth implements credential.Exchanger against the CRM's own
// OAuth token endpoint, following the crm package's plain net/http client
// idiom rather than pulling in a general-purpose OAuth2 client library the
// example pack never reaches for.
package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/nexacrm/coordinator/credential"
)

const defaultTimeout = 10 * time.Second

// Exchanger calls BASE_URL/oauth/token to exchange an authorization code
// or a refresh token for a credential.
type Exchanger struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client
}

// New builds an Exchanger. httpClient may be nil, in which case a default
// client with a 10s per-call timeout is used.
func New(baseURL, clientID, clientSecret string, httpClient *http.Client) *Exchanger {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Exchanger{baseURL: baseURL, clientID: clientID, clientSecret: clientSecret, httpClient: httpClient}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// ExchangeCode trades an authorization code for a fresh Credential.
func (e *Exchanger) ExchangeCode(ctx context.Context, userID, code, redirectURI string) (credential.Credential, error) {
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {redirectURI},
		"client_id":     {e.clientID},
		"client_secret": {e.clientSecret},
	}
	tok, err := e.post(ctx, form)
	if err != nil {
		return credential.Credential{}, err
	}
	return e.toCredential(userID, tok), nil
}

// Refresh trades a refresh token for a new access token, preserving the
// prior credential's identifying fields.
func (e *Exchanger) Refresh(ctx context.Context, cred credential.Credential) (credential.Credential, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {cred.RefreshToken},
		"client_id":     {e.clientID},
		"client_secret": {e.clientSecret},
	}
	tok, err := e.post(ctx, form)
	if err != nil {
		return credential.Credential{}, err
	}
	refreshed := e.toCredential(cred.UserID, tok)
	refreshed.SessionID = cred.SessionID
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = cred.RefreshToken
	}
	return refreshed, nil
}

func (e *Exchanger) toCredential(userID string, tok tokenResponse) credential.Credential {
	return credential.Credential{
		UserID:       userID,
		Token:        tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second),
	}
}

func (e *Exchanger) post(ctx context.Context, form url.Values) (tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/oauth/token", bytes.NewBufferString(form.Encode()))
	if err != nil {
		return tokenResponse{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return tokenResponse{}, fmt.Errorf("oauth: token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return tokenResponse{}, fmt.Errorf("oauth: token endpoint returned %d: %s", resp.StatusCode, body)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return tokenResponse{}, fmt.Errorf("oauth: decoding token response: %w", err)
	}
	return tok, nil
}
