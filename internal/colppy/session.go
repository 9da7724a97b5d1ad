// internal/colppy/session.go
package colppy

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

const SessionTTL = 25 * time.Minute

type SessionToken struct {
	Key      string
	IssuedAt time.Time
}

func (t SessionToken) Expired(now time.Time, ttl time.Duration) bool {
	return t.Key == "" || now.Sub(t.IssuedAt) > ttl
}

// SessionManager owns the session key and renews it by expiry.
type SessionManager struct {
	log    zerolog.Logger
	store  *TemplateStore
	caller *Caller
	ttl    time.Duration
	now    func() time.Time

	token  SessionToken
	logins int
}

func NewSessionManager(log zerolog.Logger, store *TemplateStore, caller *Caller) *SessionManager {
	return &SessionManager{
		log:    log,
		store:  store,
		caller: caller,
		ttl:    SessionTTL,
		now:    time.Now,
	}
}

// Token returns a valid session, logging in on first use and after expiry.
// A failed login keeps the previous token and its issue time.
func (s *SessionManager) Token(ctx context.Context) (SessionToken, error) {
	if !s.token.Expired(s.now(), s.ttl) {
		return s.token, nil
	}

	key, err := s.login(ctx)
	if err != nil {
		return SessionToken{}, &AuthenticationError{Err: err}
	}
	s.token = SessionToken{Key: key, IssuedAt: s.now()}
	s.store.SetSession(key)
	s.logins++
	s.log.Info().Int("logins", s.logins).Msg("colppy session opened")
	return s.token, nil
}

// Invalidate forces a login on the next Token call.
func (s *SessionManager) Invalidate() {
	s.token.Key = ""
}

// Logins counts successful logins of this process.
func (s *SessionManager) Logins() int { return s.logins }

func (s *SessionManager) login(ctx context.Context) (string, error) {
	payload, err := s.store.Build(OpLogin, Params{})
	if err != nil {
		return "", err
	}
	resp, err := s.caller.Call(ctx, OpLogin, payload)
	if err != nil {
		return "", err
	}
	var data struct {
		Key string `json:"claveSesion"`
	}
	if isNull(resp.Content) {
		return "", &MalformedResponseError{Reason: "login response has no data"}
	}
	if err := json.Unmarshal(resp.Content, &data); err != nil {
		return "", &MalformedResponseError{Reason: "login data: " + err.Error(), Body: resp.Content}
	}
	if data.Key == "" {
		return "", errors.New("login response has no claveSesion")
	}
	return data.Key, nil
}
