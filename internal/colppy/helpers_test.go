package colppy

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type sentCall struct {
	Op      Operation
	Method  string
	Payload Payload
}

// fakeTransport answers by operation. Handlers return the "response" object
// as JSON text, or an error.
type fakeTransport struct {
	mu       sync.Mutex
	calls    []sentCall
	handlers map[Operation]func(p Payload) (string, error)
}

func newFakeTransport() *fakeTransport {
	f := &fakeTransport{handlers: map[Operation]func(Payload) (string, error){}}
	f.on(OpLogin, func(Payload) (string, error) {
		return `{"success": true, "data": {"claveSesion": "key-1"}}`, nil
	})
	return f
}

func (f *fakeTransport) on(op Operation, h func(p Payload) (string, error)) {
	f.handlers[op] = h
}

func (f *fakeTransport) Send(ctx context.Context, method string, payload any) ([]byte, error) {
	p, ok := payload.(Payload)
	if !ok {
		return nil, fmt.Errorf("unexpected payload %T", payload)
	}
	op := opForService(p.Service)

	f.mu.Lock()
	f.calls = append(f.calls, sentCall{Op: op, Method: method, Payload: p})
	h := f.handlers[op]
	f.mu.Unlock()

	if h == nil {
		return nil, fmt.Errorf("no handler for %s", op)
	}
	body, err := h(p)
	if err != nil {
		return nil, err
	}
	return []byte(`{"result": {"estado": 0}, "response": ` + body + `}`), nil
}

func (f *fakeTransport) count(op Operation) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

func (f *fakeTransport) last(op Operation) sentCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].Op == op {
			return f.calls[i]
		}
	}
	return sentCall{}
}

func opForService(s Service) Operation {
	for op, svc := range services {
		if svc == s {
			return op
		}
	}
	return Operation("unknown")
}

var testCreds = Credentials{
	DevUser: Credential{User: "dev@example.com", Password: "devhash"},
	User:    Credential{User: "user@example.com", Password: "userhash"},
}

func testTemplates() Templates {
	return DefaultTemplates().WithCredentials(testCreds)
}

func newTestStore(t *testing.T, defaultCompany string) *TemplateStore {
	t.Helper()
	s, err := NewTemplateStore(testTemplates(), defaultCompany)
	require.NoError(t, err)
	return s
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestClient(t *testing.T, tr Transport, defaults Defaults, opts ...Option) *Client {
	t.Helper()
	c, err := New(zerolog.Nop(), testTemplates(), defaults, tr, opts...)
	require.NoError(t, err)
	return c
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
