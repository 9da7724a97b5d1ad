// internal/colppy/transport.go
package colppy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/html/charset"
)

var endpoints = map[string]string{
	"testing":    "https://staging.colppy.com/lib/frontera2/service.php",
	"production": "https://login.colppy.com/lib/frontera2/service.php",
}

// Endpoint returns the service URL for state ("testing" or "production").
func Endpoint(state string) (string, error) {
	u, ok := endpoints[state]
	if !ok {
		return "", &ConfigurationError{Reason: fmt.Sprintf("%q is not a valid state (testing, production)", state)}
	}
	return u, nil
}

// Transport sends one JSON body and returns the raw envelope.
type Transport interface {
	Send(ctx context.Context, method string, payload any) ([]byte, error)
}

type HTTPTransport struct {
	log  zerolog.Logger
	url  string
	http *http.Client
}

type TransportOption func(*HTTPTransport)

// WithBaseURL overrides the state endpoint.
func WithBaseURL(u string) TransportOption {
	return func(t *HTTPTransport) { t.url = u }
}

func WithHTTPClient(c *http.Client) TransportOption {
	return func(t *HTTPTransport) { t.http = c }
}

func NewHTTPTransport(log zerolog.Logger, state string, timeout time.Duration, opts ...TransportOption) (*HTTPTransport, error) {
	u, err := Endpoint(state)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	t := &HTTPTransport{
		log:  log,
		url:  u,
		http: &http.Client{Timeout: timeout},
	}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

func (t *HTTPTransport) URL() string { return t.url }

// Send encodes payload as the request body. GET requests carry a body too,
// the service reads it the same way for both methods.
func (t *HTTPTransport) Send(ctx context.Context, method string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.url, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("error creating request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "colppy2gs/1.0")

	resp, err := t.http.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	// PHP backend, some responses come latin-1 encoded
	r, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		r = resp.Body
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, &TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		t.log.Debug().Int("status", resp.StatusCode).Bytes("body", truncate(raw, 512)).Msg("colppy http error")
		return nil, &TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("request failed with status %d", resp.StatusCode)}
	}
	return raw, nil
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
