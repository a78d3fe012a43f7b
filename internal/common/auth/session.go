// internal/common/auth/session.go
package auth

import (
	"context"
	"sync"
	"time"

	apperrors "docgen-workers/internal/common/errors"
	"docgen-workers/internal/common/logger"
	"docgen-workers/internal/common/metrics"
)

const (
	// DefaultSafetyMargin is how long before expiry a cached token is considered stale.
	DefaultSafetyMargin = 5 * time.Minute
	// DefaultTokenLifetime applies when the token endpoint omits expires_in.
	DefaultTokenLifetime = 3600
)

// Clock is the time source of a Session.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Token is the result of one credential exchange.
type Token struct {
	AccessToken string
	ExpiresIn   int // seconds
}

// Exchanger trades the service credential for a fresh access token.
type Exchanger interface {
	Exchange(ctx context.Context) (*Token, error)
}

// Session caches one bearer token and refreshes it through its Exchanger
// once it is within the safety margin of expiry.
type Session struct {
	exchanger Exchanger
	clock     Clock
	margin    time.Duration
	logger    logger.Logger

	mu     sync.Mutex
	token  string
	expiry time.Time
}

type SessionOption func(*Session)

func WithClock(c Clock) SessionOption {
	return func(s *Session) { s.clock = c }
}

func WithSafetyMargin(d time.Duration) SessionOption {
	return func(s *Session) { s.margin = d }
}

func NewSession(exchanger Exchanger, log logger.Logger, opts ...SessionOption) *Session {
	s := &Session{
		exchanger: exchanger,
		clock:     SystemClock{},
		margin:    DefaultSafetyMargin,
		logger:    log.WithFields(map[string]interface{}{"component": "auth-session"}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Token returns a bearer token valid for at least the safety margin.
//
// The exchange runs outside the lock, so concurrent callers that all see a
// stale token may each exchange; the last result stored wins. A failed
// exchange leaves the previous state untouched.
func (s *Session) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.token != "" && s.expiry.After(s.clock.Now().Add(s.margin)) {
		token := s.token
		s.mu.Unlock()
		return token, nil
	}
	s.mu.Unlock()

	tok, err := s.exchanger.Exchange(ctx)
	if err != nil {
		metrics.AuthTokenRefresh.WithLabelValues("error").Inc()
		s.logger.Error("Access token exchange failed", map[string]interface{}{"error": err.Error()})
		if apperrors.Is(err, apperrors.ErrCodeAuthFailure) {
			return "", err
		}
		return "", apperrors.NewAuthFailureError("token exchange failed", err)
	}

	lifetime := tok.ExpiresIn
	if lifetime <= 0 {
		lifetime = DefaultTokenLifetime
	}
	expiry := s.clock.Now().Add(time.Duration(lifetime) * time.Second)

	s.mu.Lock()
	s.token = tok.AccessToken
	s.expiry = expiry
	s.mu.Unlock()

	metrics.AuthTokenRefresh.WithLabelValues("success").Inc()
	s.logger.Info("Access token refreshed", map[string]interface{}{
		"expiresAt": expiry.UTC().Format(time.RFC3339),
	})
	return tok.AccessToken, nil
}

// Expiry reports the expiry of the cached token, zero when none is held.
func (s *Session) Expiry() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiry
}

// Invalidate drops the cached token so the next call exchanges again.
func (s *Session) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.expiry = time.Time{}
	s.mu.Unlock()
}
