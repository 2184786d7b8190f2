package snoo

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-snoo/snoo/internal"
	pkgerrs "github.com/go-snoo/snoo/pkg/errors"
	"github.com/go-snoo/snoo/pkg/types"
)

const (
	// DefaultBaseURL is the authenticated Reddit API host.
	DefaultBaseURL = "https://oauth.reddit.com/"
	// DefaultAuthURL is the Reddit OAuth host.
	DefaultAuthURL = "https://www.reddit.com/"
	// DefaultUserAgent identifies this library when no user agent is given.
	DefaultUserAgent = "go-snoo/0.1"
	// DefaultTimeout is the default HTTP client timeout.
	DefaultTimeout = 30 * time.Second
)

// Config holds credentials and optional customization for the client.
//
// The credential fields select the OAuth2 flow:
//   - ClientID + ClientSecret only: application-only auth (read-only).
//   - plus Username + Password: script-app auth.
//   - plus RedirectURI (and optionally RefreshToken): web-app auth via
//     AuthorizeURL and Authorize, or a previously stored refresh token.
//   - ClientID only, token injected with SetAccessToken: implicit flow.
type Config struct {
	// ClientID identifies the registered application. Required.
	ClientID string
	// ClientSecret is empty for installed (implicit) apps.
	ClientSecret string

	// Username and Password enable the script-app flow.
	Username string
	Password string

	// RefreshToken resumes a previously authorized web-app session.
	RefreshToken string
	// RedirectURI must match the registered app for the web flow.
	RedirectURI string

	// UserAgent should follow Reddit's "platform:app:version by /u/user"
	// convention. Defaults to DefaultUserAgent.
	UserAgent string

	// BaseURL and AuthURL rarely need to change outside tests.
	BaseURL string
	AuthURL string

	// HTTPClient to use for all requests. Defaults to a client with
	// DefaultTimeout.
	HTTPClient *http.Client

	// Logger receives structured diagnostics when set.
	Logger *slog.Logger

	// RequestsPerMinute and RateLimitBurst tune client-side throttling.
	// Zero values select the defaults (60 rpm, burst 10).
	RequestsPerMinute float64
	RateLimitBurst    int

	// ValidateOnSubmit asks Reddit to validate edited bodies server-side.
	ValidateOnSubmit bool
}

// Client is the Reddit API client. Create it with NewClient; it authenticates
// lazily on first use (or eagerly via Connect).
type Client struct {
	http      *internal.Client
	auth      *internal.Authenticator
	config    *Config
	parser    *internal.Parser
	validator *internal.Validator
	conn      *internal.ConnectionManager
}

// NewClient validates the configuration, fills in defaults, and prepares the
// authenticator for the flow the credentials select. No network traffic
// happens until Connect or the first API call.
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, &pkgerrs.ConfigError{Message: "config cannot be nil"}
	}
	if config.ClientID == "" {
		return nil, &pkgerrs.ConfigError{Field: "ClientID", Message: "ClientID is required"}
	}

	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.AuthURL == "" {
		config.AuthURL = DefaultAuthURL
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}

	validator := internal.NewValidator()
	if err := validator.ValidateUserAgent(config.UserAgent); err != nil {
		return nil, err
	}

	grantType := internal.GrantClientCredentials
	switch {
	case config.Username != "" && config.Password != "":
		grantType = internal.GrantPassword
	case config.RedirectURI != "" || config.RefreshToken != "":
		grantType = internal.GrantAuthorizationCode
	}

	auth, err := internal.NewAuthenticator(
		config.HTTPClient,
		internal.Credentials{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Username:     config.Username,
			Password:     config.Password,
			RefreshToken: config.RefreshToken,
			RedirectURI:  config.RedirectURI,
		},
		config.UserAgent,
		config.AuthURL,
		grantType,
		config.Logger,
	)
	if err != nil {
		return nil, err
	}

	return &Client{
		auth:      auth,
		config:    config,
		parser:    internal.NewParser(),
		validator: validator,
		conn:      internal.NewConnectionManager(),
	}, nil
}

// Connect authenticates and initializes the transport. It is safe to call
// concurrently and repeatedly; initialization happens once.
func (c *Client) Connect(ctx context.Context) error {
	return c.conn.Initialize(ctx, c.initialize)
}

func (c *Client) initialize(ctx context.Context) error {
	// Fail fast on bad credentials before any API call is attempted.
	if _, err := c.auth.GetToken(ctx); err != nil {
		return err
	}

	client, err := internal.NewClient(
		c.config.HTTPClient,
		c.auth,
		c.config.BaseURL,
		c.config.UserAgent,
		&internal.RateLimitConfig{
			RequestsPerMinute: c.config.RequestsPerMinute,
			Burst:             c.config.RateLimitBurst,
		},
		c.config.Logger,
	)
	if err != nil {
		return err
	}

	c.http = client
	return nil
}

// ensureConnected lazily initializes the client before handling a request.
func (c *Client) ensureConnected(ctx context.Context) error {
	if err := c.Connect(ctx); err != nil {
		return err
	}
	if c.http == nil {
		return &pkgerrs.StateError{Operation: "request", Message: "client not connected"}
	}
	return nil
}

// IsConnected reports whether the client is authenticated and ready.
func (c *Client) IsConnected() bool {
	return c.conn.IsInitialized() && c.conn.Error() == nil
}

// AuthorizeURL builds the URL a user must visit to grant this web app the
// given scopes. state is echoed back on the redirect and must be verified by
// the caller; duration is "temporary" or "permanent" (default).
func (c *Client) AuthorizeURL(state string, scopes []string, duration string) (string, error) {
	return c.auth.AuthorizeURL(state, scopes, duration)
}

// Authorize redeems the code from an authorize redirect and returns the
// refresh token for later sessions. After a successful call the client acts
// on behalf of the authorizing user.
func (c *Client) Authorize(ctx context.Context, code string) (string, error) {
	return c.auth.ExchangeCode(ctx, code)
}

// SetAccessToken installs a token obtained through the implicit flow.
// Validity is not checked here; an invalid token surfaces as a 401 API error
// on first use.
func (c *Client) SetAccessToken(token string, expiresIn time.Duration, scope string) {
	c.auth.SetToken(token, expiresIn, scope)
}

// Scopes returns the scopes granted to the current token, fetching one first
// if needed. Reddit reports "*" for tokens that can use every scope.
func (c *Client) Scopes(ctx context.Context) ([]string, error) {
	if _, err := c.auth.GetToken(ctx); err != nil {
		return nil, err
	}
	return c.auth.Scopes(), nil
}

// ReadOnly reports whether the client only has application-level access.
func (c *Client) ReadOnly() bool {
	return c.auth.ReadOnly()
}

// Me returns information about the authenticated user.
func (c *Client) Me(ctx context.Context) (*types.AccountData, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}

	req, err := c.http.NewRequest(ctx, http.MethodGet, "api/v1/me", nil)
	if err != nil {
		return nil, err
	}

	var result types.Thing
	if _, err := c.http.Do(req, &result); err != nil {
		return nil, err
	}
	return c.parser.ParseAccount(&result)
}

// GetSubreddit retrieves metadata about a subreddit: subscriber counts,
// descriptions, type, and the caller's relationship to it.
func (c *Client) GetSubreddit(ctx context.Context, name string) (*types.SubredditData, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}
	if err := c.validator.ValidateSubredditName(name); err != nil {
		return nil, err
	}

	req, err := c.http.NewRequest(ctx, http.MethodGet, "r/"+name+"/about", nil)
	if err != nil {
		return nil, err
	}

	var result types.Thing
	if _, err := c.http.Do(req, &result); err != nil {
		return nil, err
	}
	return c.parser.ParseSubreddit(&result)
}
