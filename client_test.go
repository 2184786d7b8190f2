package snoo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	pkgerrs "github.com/go-snoo/snoo/pkg/errors"
)

// testServer fakes both the OAuth host and the API host on one address.
// Handlers registered per path answer API calls; the token endpoint is always
// present and records the grant forms it receives.
type testServer struct {
	*httptest.Server
	mux *http.ServeMux

	mu         sync.Mutex
	tokenForms []url.Values
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{mux: http.NewServeMux()}
	ts.mux.HandleFunc("/api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse token form: %v", err)
		}
		ts.mu.Lock()
		ts.tokenForms = append(ts.tokenForms, r.PostForm)
		ts.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"test-token","token_type":"bearer","expires_in":3600,"scope":"*"}`))
	})
	ts.Server = httptest.NewServer(ts.mux)
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) handle(t *testing.T, pattern string, handler http.HandlerFunc) {
	t.Helper()
	ts.mux.HandleFunc(pattern, handler)
}

func (ts *testServer) grantTypes() []string {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	grants := make([]string, len(ts.tokenForms))
	for i, form := range ts.tokenForms {
		grants[i] = form.Get("grant_type")
	}
	return grants
}

func newTestClientWithConfig(t *testing.T, ts *testServer, config *Config) *Client {
	t.Helper()
	if config.ClientID == "" {
		config.ClientID = "client-id"
	}
	if config.UserAgent == "" {
		config.UserAgent = "test:snoo:0.1 by /u/tester"
	}
	config.BaseURL = ts.URL
	config.AuthURL = ts.URL
	config.HTTPClient = ts.Client()

	client, err := NewClient(config)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return client
}

func newScriptClient(t *testing.T, ts *testServer) *Client {
	t.Helper()
	return newTestClientWithConfig(t, ts, &Config{
		ClientSecret: "secret",
		Username:     "tester",
		Password:     "hunter2",
	})
}

func TestNewClientValidation(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		config *Config
	}{
		{name: "nil config", config: nil},
		{name: "missing client id", config: &Config{UserAgent: "agent"}},
		{name: "bad user agent", config: &Config{ClientID: "id", UserAgent: "bad\nagent"}},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewClient(tc.config)
			var configErr *pkgerrs.ConfigError
			if !errors.As(err, &configErr) {
				t.Errorf("expected ConfigError, got %v", err)
			}
		})
	}
}

func TestNewClientAppliesDefaults(t *testing.T) {
	t.Parallel()

	config := &Config{ClientID: "id"}
	if _, err := NewClient(config); err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	if config.UserAgent != DefaultUserAgent {
		t.Errorf("UserAgent = %q", config.UserAgent)
	}
	if config.BaseURL != DefaultBaseURL || config.AuthURL != DefaultAuthURL {
		t.Errorf("URLs = %q, %q", config.BaseURL, config.AuthURL)
	}
	if config.HTTPClient == nil || config.HTTPClient.Timeout != DefaultTimeout {
		t.Error("HTTP client default not applied")
	}
}

func TestGrantSelection(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		config    *Config
		wantGrant string
	}{
		{
			name:      "script credentials select the password grant",
			config:    &Config{ClientSecret: "s", Username: "u", Password: "p"},
			wantGrant: "password",
		},
		{
			name:      "app-only credentials select client_credentials",
			config:    &Config{ClientSecret: "s"},
			wantGrant: "client_credentials",
		},
		{
			name:      "stored refresh token is redeemed directly",
			config:    &Config{ClientSecret: "s", RefreshToken: "stored-refresh"},
			wantGrant: "refresh_token",
		},
		{
			name:      "web app without a code falls back to client_credentials",
			config:    &Config{ClientSecret: "s", RedirectURI: "https://example.com/cb"},
			wantGrant: "client_credentials",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ts := newTestServer(t)
			client := newTestClientWithConfig(t, ts, tc.config)

			if err := client.Connect(context.Background()); err != nil {
				t.Fatalf("Connect returned error: %v", err)
			}

			grants := ts.grantTypes()
			if len(grants) != 1 || grants[0] != tc.wantGrant {
				t.Errorf("grants = %v, want [%s]", grants, tc.wantGrant)
			}
		})
	}
}

func TestConnectIsIdempotent(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	client := newScriptClient(t, ts)

	if client.IsConnected() {
		t.Error("IsConnected = true before Connect")
	}
	for i := 0; i < 3; i++ {
		if err := client.Connect(context.Background()); err != nil {
			t.Fatalf("Connect returned error: %v", err)
		}
	}
	if !client.IsConnected() {
		t.Error("IsConnected = false after Connect")
	}
	if grants := ts.grantTypes(); len(grants) != 1 {
		t.Errorf("token fetched %d times, want 1", len(grants))
	}
}

func TestScopesAndReadOnly(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	client := newScriptClient(t, ts)

	scopes, err := client.Scopes(context.Background())
	if err != nil {
		t.Fatalf("Scopes returned error: %v", err)
	}
	if len(scopes) != 1 || scopes[0] != "*" {
		t.Errorf("scopes = %v, want [*]", scopes)
	}
	if client.ReadOnly() {
		t.Error("script client must not be read-only")
	}
}

func TestMe(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ts.handle(t, "/api/v1/me", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"kind":"t2","data":{"id":"u1","name":"tester","link_karma":10,"comment_karma":20}}`))
	})
	client := newScriptClient(t, ts)

	me, err := client.Me(context.Background())
	if err != nil {
		t.Fatalf("Me returned error: %v", err)
	}
	if me.Name != "tester" || me.LinkKarma != 10 || me.CommentKarma != 20 {
		t.Errorf("unexpected account: %+v", me)
	}
}

func TestGetSubreddit(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ts.handle(t, "/r/golang/about", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"kind":"t5","data":{"display_name":"golang","subscribers":250000,"title":"The Go programming language"}}`))
	})
	client := newScriptClient(t, ts)

	sub, err := client.GetSubreddit(context.Background(), "golang")
	if err != nil {
		t.Fatalf("GetSubreddit returned error: %v", err)
	}
	if sub.DisplayName != "golang" || sub.Subscribers != 250000 {
		t.Errorf("unexpected subreddit: %+v", sub)
	}
}

func TestGetSubredditRejectsInvalidName(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	client := newScriptClient(t, ts)

	_, err := client.GetSubreddit(context.Background(), "no spaces")
	var configErr *pkgerrs.ConfigError
	if !errors.As(err, &configErr) {
		t.Errorf("expected ConfigError, got %v", err)
	}
}

func TestWebAuthorizeFlow(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	client := newTestClientWithConfig(t, ts, &Config{
		ClientSecret: "secret",
		RedirectURI:  "https://example.com/callback",
	})

	rawURL, err := client.AuthorizeURL("state-token", []string{"submit"}, "permanent")
	if err != nil {
		t.Fatalf("AuthorizeURL returned error: %v", err)
	}
	if !strings.Contains(rawURL, "response_type=code") || !strings.Contains(rawURL, "state=state-token") {
		t.Errorf("authorize URL = %q", rawURL)
	}
}
