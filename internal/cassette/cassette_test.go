package cassette

import (
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
)

func twoInteractions() *Cassette {
	return &Cassette{
		Name: "test",
		Interactions: []Interaction{
			{
				Request: Request{Method: http.MethodGet, URL: "https://oauth.reddit.com/api/v1/me"},
				Response: Response{
					Status:  200,
					Headers: map[string]string{"Content-Type": "application/json"},
					Body:    `{"kind":"t2","data":{"name":"someone"}}`,
				},
			},
			{
				Request:  Request{Method: http.MethodPost, URL: "https://oauth.reddit.com/api/del"},
				Response: Response{Status: 200, Body: `{}`},
			},
		},
	}
}

func get(t *testing.T, client *http.Client, url string) (*http.Response, string) {
	t.Helper()
	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	return resp, string(body)
}

func TestReplayServesInteractionsInOrder(t *testing.T) {
	t.Parallel()

	transport := Replay(twoInteractions())
	client := transport.Client()

	resp, body := get(t, client, "https://oauth.reddit.com/api/v1/me")
	if resp.StatusCode != 200 {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if resp.Header.Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", resp.Header.Get("Content-Type"))
	}
	if !strings.Contains(body, "someone") {
		t.Errorf("body = %q", body)
	}
	if transport.Exhausted() {
		t.Error("transport exhausted after one of two interactions")
	}

	resp, err := client.Post("https://oauth.reddit.com/api/del", "application/x-www-form-urlencoded", strings.NewReader("id=t1_abc"))
	if err != nil {
		t.Fatalf("second request failed: %v", err)
	}
	resp.Body.Close()
	if !transport.Exhausted() {
		t.Error("transport not exhausted after replaying everything")
	}
}

func TestReplayRejectsMismatchedRequest(t *testing.T) {
	t.Parallel()

	client := Replay(twoInteractions()).Client()
	if _, err := client.Get("https://oauth.reddit.com/unexpected"); err == nil {
		t.Error("expected error for mismatched URL")
	}
}

func TestReplayRejectsRequestPastEnd(t *testing.T) {
	t.Parallel()

	c := &Cassette{Name: "empty"}
	client := Replay(c).Client()
	if _, err := client.Get("https://oauth.reddit.com/api/v1/me"); err == nil {
		t.Error("expected error on exhausted cassette")
	}
}

func TestRecordCapturesExchanges(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)

	c := &Cassette{Name: "recorded"}
	client := Record(c, nil).Client()

	resp, err := client.Post(srv.URL+"/api/edit", "application/x-www-form-urlencoded", strings.NewReader("thing_id=t1_abc"))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "ok") {
		t.Errorf("live body = %q", body)
	}

	if len(c.Interactions) != 1 {
		t.Fatalf("interactions = %d, want 1", len(c.Interactions))
	}
	interaction := c.Interactions[0]
	if interaction.Request.Method != http.MethodPost {
		t.Errorf("recorded method = %q", interaction.Request.Method)
	}
	if interaction.Request.Body != "thing_id=t1_abc" {
		t.Errorf("recorded request body = %q", interaction.Request.Body)
	}
	if interaction.Response.Status != 200 || !strings.Contains(interaction.Response.Body, "ok") {
		t.Errorf("recorded response = %+v", interaction.Response)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "roundtrip.yaml")
	original := twoInteractions()
	if err := original.Save(path); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if loaded.Name != original.Name {
		t.Errorf("name = %q, want %q", loaded.Name, original.Name)
	}
	if len(loaded.Interactions) != len(original.Interactions) {
		t.Fatalf("interactions = %d, want %d", len(loaded.Interactions), len(original.Interactions))
	}
	if loaded.Interactions[0].Response.Body != original.Interactions[0].Response.Body {
		t.Errorf("body = %q", loaded.Interactions[0].Response.Body)
	}
	if loaded.Interactions[0].Response.Headers["Content-Type"] != "application/json" {
		t.Errorf("headers = %v", loaded.Interactions[0].Response.Headers)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
