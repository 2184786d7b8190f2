// Package cassette records and replays HTTP interactions for tests.
//
// A cassette is a YAML file holding an ordered list of request/response
// pairs. In replay mode the Transport serves responses from the cassette and
// fails on any request that does not match the next recorded interaction, so
// tests exercise the full client stack without touching the network.
package cassette

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Request is the recorded half of an interaction that is matched against
// outgoing requests. Request headers are deliberately not persisted; they
// carry credentials.
type Request struct {
	Method string `yaml:"method"`
	URL    string `yaml:"url"`
	Body   string `yaml:"body,omitempty"`
}

// Response is the canned reply for a matched request.
type Response struct {
	Status  int               `yaml:"status"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Body    string            `yaml:"body"`
}

// Interaction is one request/response pair.
type Interaction struct {
	Request  Request  `yaml:"request"`
	Response Response `yaml:"response"`
}

// Cassette is an ordered recording of HTTP interactions.
type Cassette struct {
	Name         string        `yaml:"name"`
	Interactions []Interaction `yaml:"interactions"`
}

// Load reads a cassette from a YAML file.
func Load(path string) (*Cassette, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cassette %s: %w", path, err)
	}

	var c Cassette
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse cassette %s: %w", path, err)
	}
	return &c, nil
}

// Save writes the cassette to a YAML file.
func (c *Cassette) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode cassette %s: %w", c.Name, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write cassette %s: %w", path, err)
	}
	return nil
}

// Transport is an http.RoundTripper backed by a cassette. It either replays
// recorded interactions in order or records new ones through an inner
// transport.
type Transport struct {
	mu       sync.Mutex
	cassette *Cassette
	cursor   int
	recorder http.RoundTripper
}

// Replay returns a Transport that serves responses from the cassette.
func Replay(c *Cassette) *Transport {
	return &Transport{cassette: c}
}

// Record returns a Transport that forwards requests through inner and appends
// each exchange to the cassette.
func Record(c *Cassette, inner http.RoundTripper) *Transport {
	if inner == nil {
		inner = http.DefaultTransport
	}
	return &Transport{cassette: c, recorder: inner}
}

// Client returns an http.Client that routes through the transport.
func (t *Transport) Client() *http.Client {
	return &http.Client{Transport: t}
}

// Exhausted reports whether every recorded interaction has been replayed.
func (t *Transport) Exhausted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cursor >= len(t.cassette.Interactions)
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.recorder != nil {
		return t.record(req)
	}
	return t.replay(req)
}

func (t *Transport) replay(req *http.Request) (*http.Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cursor >= len(t.cassette.Interactions) {
		return nil, fmt.Errorf("cassette %q exhausted: unexpected %s %s", t.cassette.Name, req.Method, req.URL)
	}

	interaction := t.cassette.Interactions[t.cursor]
	if req.Method != interaction.Request.Method || req.URL.String() != interaction.Request.URL {
		return nil, fmt.Errorf("cassette %q interaction %d: expected %s %s, got %s %s",
			t.cassette.Name, t.cursor,
			interaction.Request.Method, interaction.Request.URL,
			req.Method, req.URL)
	}
	t.cursor++

	return buildResponse(req, interaction.Response), nil
}

func (t *Transport) record(req *http.Request) (*http.Response, error) {
	var requestBody []byte
	if req.Body != nil {
		var err error
		requestBody, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		req.Body = io.NopCloser(bytes.NewReader(requestBody))
	}

	resp, err := t.recorder.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	responseBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(responseBody))

	headers := make(map[string]string, len(resp.Header))
	for name := range resp.Header {
		headers[name] = resp.Header.Get(name)
	}

	t.mu.Lock()
	t.cassette.Interactions = append(t.cassette.Interactions, Interaction{
		Request: Request{
			Method: req.Method,
			URL:    req.URL.String(),
			Body:   string(requestBody),
		},
		Response: Response{
			Status:  resp.StatusCode,
			Headers: headers,
			Body:    string(responseBody),
		},
	})
	t.mu.Unlock()

	return resp, nil
}

func buildResponse(req *http.Request, recorded Response) *http.Response {
	header := make(http.Header, len(recorded.Headers))
	for name, value := range recorded.Headers {
		header.Set(name, value)
	}

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", recorded.Status, http.StatusText(recorded.Status)),
		StatusCode:    recorded.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader([]byte(recorded.Body))),
		ContentLength: int64(len(recorded.Body)),
		Request:       req,
	}
}
