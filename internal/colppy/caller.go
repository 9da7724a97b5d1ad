// internal/colppy/caller.go
package colppy

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Response is the unwrapped "response" object of the envelope.
type Response struct {
	Success bool
	Message string
	Content json.RawMessage // data, movimientos or codigos, per operation
	Fields  map[string]json.RawMessage
}

// Observer is notified after every remote call.
type Observer interface {
	ObserveCall(ctx context.Context, op string, err error, d time.Duration)
}

// Caller sends one logical request and validates the envelope. It never
// retries; retry policy belongs to its callers.
type Caller struct {
	log zerolog.Logger
	tr  Transport
	obs Observer
}

func NewCaller(log zerolog.Logger, tr Transport, obs Observer) *Caller {
	return &Caller{log: log, tr: tr, obs: obs}
}

type envelope struct {
	Result   json.RawMessage `json:"result"`
	Response json.RawMessage `json:"response"`
}

func (c *Caller) Call(ctx context.Context, op Operation, payload Payload) (*Response, error) {
	method := http.MethodGet
	if op == OpLogin {
		method = http.MethodPost
	}

	start := time.Now()
	resp, err := c.call(ctx, op, method, payload)
	if c.obs != nil {
		c.obs.ObserveCall(ctx, string(op), err, time.Since(start))
	}
	if err != nil {
		c.log.Debug().Err(err).Str("operation", string(op)).Msg("colppy call failed")
		return nil, err
	}
	c.log.Debug().Str("operation", string(op)).Dur("took", time.Since(start)).Msg("colppy call ok")
	return resp, nil
}

func (c *Caller) call(ctx context.Context, op Operation, method string, payload Payload) (*Response, error) {
	raw, err := c.tr.Send(ctx, method, payload)
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &MalformedResponseError{Reason: "envelope is not a JSON object: " + err.Error(), Body: raw}
	}
	if isNull(env.Response) {
		return nil, &MalformedResponseError{Reason: "no response in envelope", Body: raw}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(env.Response, &fields); err != nil || len(fields) == 0 {
		return nil, &MalformedResponseError{Reason: "response is empty or not an object", Body: raw}
	}

	rawSuccess, ok := fields["success"]
	if !ok {
		return nil, &MalformedResponseError{Reason: "response has no success flag", Body: raw}
	}
	var success bool
	if err := json.Unmarshal(rawSuccess, &success); err != nil {
		return nil, &MalformedResponseError{Reason: "success flag is not a boolean", Body: raw}
	}

	var message string
	if m, ok := fields["message"]; ok {
		_ = json.Unmarshal(m, &message)
	}
	if !success {
		return nil, &RemoteOperationError{Operation: op, Message: message, Envelope: raw}
	}

	return &Response{
		Success: true,
		Message: message,
		Content: fields[contentKeys[op]],
		Fields:  fields,
	}, nil
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}
