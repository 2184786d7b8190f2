package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	pkgerrs "github.com/go-snoo/snoo/pkg/errors"
)

const (
	defaultTokenPath     = "api/v1/access_token"
	defaultAuthorizePath = "api/v1/authorize"

	// Tokens are refreshed slightly before their deadline so requests already
	// being built do not race the expiry.
	tokenExpiryMargin = 30 * time.Second
)

// GrantType selects the OAuth2 flow used to obtain access tokens.
type GrantType string

const (
	// GrantClientCredentials is application-only auth; the client is read-only.
	GrantClientCredentials GrantType = "client_credentials"
	// GrantPassword is the script-app flow using a username and password.
	GrantPassword GrantType = "password"
	// GrantAuthorizationCode is the web-app flow; tokens come from exchanging
	// a code obtained at the authorize URL, or from a stored refresh token.
	GrantAuthorizationCode GrantType = "authorization_code"
)

// Credentials holds everything the supported flows may need.
type Credentials struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	RefreshToken string
	RedirectURI  string
}

// Authenticator obtains and caches access tokens for the Reddit API. It is
// safe for concurrent use.
type Authenticator struct {
	client    *http.Client
	creds     Credentials
	userAgent string
	grantType GrantType
	logger    *slog.Logger

	BaseURL      *url.URL
	tokenURL     *url.URL
	authorizeURL *url.URL

	mu        sync.Mutex
	token     string
	scopes    map[string]struct{}
	expiresAt time.Time
	readOnly  bool
}

// NewAuthenticator creates an authenticator for the given flow. baseURL is
// the OAuth host (normally https://www.reddit.com/).
func NewAuthenticator(httpClient *http.Client, creds Credentials, userAgent, baseURL string, grantType GrantType, logger *slog.Logger) (*Authenticator, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, &pkgerrs.AuthError{Err: fmt.Errorf("failed to parse auth base URL: %w", err)}
	}
	if !strings.HasSuffix(parsedURL.Path, "/") {
		parsedURL.Path += "/"
	}

	tokenURL, err := parsedURL.Parse(defaultTokenPath)
	if err != nil {
		return nil, &pkgerrs.AuthError{Err: fmt.Errorf("failed to resolve token endpoint: %w", err)}
	}
	authorizeURL, err := parsedURL.Parse(defaultAuthorizePath)
	if err != nil {
		return nil, &pkgerrs.AuthError{Err: fmt.Errorf("failed to resolve authorize endpoint: %w", err)}
	}

	return &Authenticator{
		client:       httpClient,
		creds:        creds,
		userAgent:    userAgent,
		grantType:    grantType,
		logger:       logger,
		BaseURL:      parsedURL,
		tokenURL:     tokenURL,
		authorizeURL: authorizeURL,
	}, nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
	RefreshToken string `json:"refresh_token"`

	grantWasClientCredentials bool
}

// GetToken returns a valid access token, fetching a fresh one when the cached
// token is missing or about to expire.
func (a *Authenticator) GetToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.tokenValidLocked() {
		return a.token, nil
	}

	resp, err := a.fetchToken(ctx, a.grantForm())
	if err != nil {
		return "", err
	}
	a.storeTokenLocked(resp)
	return a.token, nil
}

// grantForm builds the token request for the configured flow. Web apps that
// have not exchanged a code yet fall back to application-only auth, which
// yields a read-only client.
func (a *Authenticator) grantForm() url.Values {
	form := url.Values{}
	switch {
	case a.creds.RefreshToken != "":
		form.Set("grant_type", "refresh_token")
		form.Set("refresh_token", a.creds.RefreshToken)
	case a.grantType == GrantPassword:
		form.Set("grant_type", "password")
		form.Set("username", a.creds.Username)
		form.Set("password", a.creds.Password)
	default:
		form.Set("grant_type", string(GrantClientCredentials))
	}
	return form
}

// ExchangeCode redeems an authorization code obtained at the authorize URL.
// It stores the resulting tokens and returns the refresh token so callers can
// persist it for later sessions.
func (a *Authenticator) ExchangeCode(ctx context.Context, code string) (string, error) {
	if code == "" {
		return "", &pkgerrs.AuthError{Err: fmt.Errorf("authorization code is empty")}
	}
	if a.creds.RedirectURI == "" {
		return "", &pkgerrs.AuthError{Err: fmt.Errorf("redirect URI is required to exchange an authorization code")}
	}

	form := url.Values{}
	form.Set("grant_type", string(GrantAuthorizationCode))
	form.Set("code", code)
	form.Set("redirect_uri", a.creds.RedirectURI)

	a.mu.Lock()
	defer a.mu.Unlock()

	resp, err := a.fetchToken(ctx, form)
	if err != nil {
		return "", err
	}
	a.storeTokenLocked(resp)
	if resp.RefreshToken != "" {
		a.creds.RefreshToken = resp.RefreshToken
	}
	return resp.RefreshToken, nil
}

// SetToken installs an externally obtained access token (the implicit flow).
// An invalid token is not detected here; it surfaces as a 401 on first use.
func (a *Authenticator) SetToken(token string, expiresIn time.Duration, scope string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.token = token
	a.scopes = parseScopes(scope)
	a.expiresAt = time.Now().Add(expiresIn)
	a.readOnly = false
}

// Scopes returns the scopes granted to the current token, sorted. Reddit
// reports "*" for tokens with access to every scope.
func (a *Authenticator) Scopes() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	scopes := make([]string, 0, len(a.scopes))
	for scope := range a.scopes {
		scopes = append(scopes, scope)
	}
	sort.Strings(scopes)
	return scopes
}

// ReadOnly reports whether the current token only grants application-level
// (logged-out) access.
func (a *Authenticator) ReadOnly() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.readOnly
}

// AuthorizeURL builds the URL a user must visit to authorize a web app.
// duration is "temporary" or "permanent"; permanent grants include a refresh
// token on code exchange.
func (a *Authenticator) AuthorizeURL(state string, scopes []string, duration string) (string, error) {
	if a.creds.RedirectURI == "" {
		return "", &pkgerrs.AuthError{Err: fmt.Errorf("redirect URI is required to build an authorize URL")}
	}
	if state == "" {
		return "", &pkgerrs.AuthError{Err: fmt.Errorf("state must not be empty")}
	}
	if duration == "" {
		duration = "permanent"
	}

	q := url.Values{}
	q.Set("client_id", a.creds.ClientID)
	q.Set("response_type", "code")
	q.Set("redirect_uri", a.creds.RedirectURI)
	q.Set("state", state)
	q.Set("scope", strings.Join(scopes, " "))
	q.Set("duration", duration)

	u := *a.authorizeURL
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (a *Authenticator) tokenValidLocked() bool {
	if a.token == "" {
		return false
	}
	if a.expiresAt.IsZero() {
		return true
	}
	return time.Now().Before(a.expiresAt.Add(-tokenExpiryMargin))
}

func (a *Authenticator) storeTokenLocked(resp *tokenResponse) {
	a.token = resp.AccessToken
	a.scopes = parseScopes(resp.Scope)
	a.expiresAt = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	a.readOnly = resp.grantWasClientCredentials

	if a.logger != nil {
		a.logger.Debug("fetched access token",
			"scope", resp.Scope,
			"expires_in", resp.ExpiresIn,
			"read_only", a.readOnly)
	}
}

func (a *Authenticator) fetchToken(ctx context.Context, form url.Values) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.tokenURL.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &pkgerrs.AuthError{Err: fmt.Errorf("failed to create token request: %w", err)}
	}

	// Installed (implicit) apps have no secret; Reddit expects an empty one.
	req.SetBasicAuth(a.creds.ClientID, a.creds.ClientSecret)
	req.Header.Set("User-Agent", a.userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &pkgerrs.AuthError{Err: fmt.Errorf("failed to execute token request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &pkgerrs.AuthError{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read token response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &pkgerrs.AuthError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, &pkgerrs.AuthError{StatusCode: resp.StatusCode, Body: string(body), Err: fmt.Errorf("failed to unmarshal token response: %w", err)}
	}
	if token.AccessToken == "" {
		return nil, &pkgerrs.AuthError{StatusCode: resp.StatusCode, Body: string(body), Err: fmt.Errorf("access token was empty in response")}
	}

	token.grantWasClientCredentials = form.Get("grant_type") == string(GrantClientCredentials)
	return &token, nil
}

func parseScopes(scope string) map[string]struct{} {
	scopes := make(map[string]struct{})
	for _, s := range strings.Fields(scope) {
		scopes[s] = struct{}{}
	}
	return scopes
}
