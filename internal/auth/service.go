package auth

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrInvalidCode is returned when the submitted code matches no accepted
// time step. No grant state changes on this path.
var ErrInvalidCode = errors.New("invalid auth code")

// ErrNotConfigured is returned when no TOTP secret is configured.
var ErrNotConfigured = errors.New("elevation is not configured")

// Service issues and checks time-boxed elevation grants. Expiry is lazy:
// an expired grant is treated as absent on the next lookup, no sweeper
// goroutine needed.
type Service struct {
	mu      sync.Mutex
	secret  []byte // nil = elevation disabled
	ttl     time.Duration
	grants  map[int64]time.Time // chat ID → expiry
	nowFunc func() time.Time
}

// NewService creates a grant service. secret may be nil, which makes every
// IssueGrant fail with ErrNotConfigured.
func NewService(secret []byte, ttl time.Duration) *Service {
	return &Service{
		secret:  secret,
		ttl:     ttl,
		grants:  make(map[int64]time.Time),
		nowFunc: time.Now,
	}
}

// IssueGrant verifies a submitted one-time code and, on success, creates
// or replaces the chat's grant. Returns the grant expiry.
func (s *Service) IssueGrant(chatID int64, code string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.secret) == 0 {
		return time.Time{}, ErrNotConfigured
	}

	now := s.nowFunc()
	if !VerifyCode(s.secret, code, now) {
		slog.Warn("auth code rejected", "chat_id", chatID)
		return time.Time{}, ErrInvalidCode
	}

	expiry := now.Add(s.ttl)
	s.grants[chatID] = expiry
	slog.Info("elevation grant issued", "chat_id", chatID, "expires_at", expiry)
	return expiry, nil
}

// HasGrant reports whether chatID holds a live grant.
func (s *Service) HasGrant(chatID int64) bool {
	_, ok := s.remaining(chatID)
	return ok
}

// Remaining returns how long the chat's grant has left, or false when no
// live grant exists.
func (s *Service) Remaining(chatID int64) (time.Duration, bool) {
	return s.remaining(chatID)
}

// Revoke drops a chat's grant immediately.
func (s *Service) Revoke(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.grants, chatID)
}

func (s *Service) remaining(chatID int64) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, ok := s.grants[chatID]
	if !ok {
		return 0, false
	}
	left := expiry.Sub(s.nowFunc())
	if left <= 0 {
		delete(s.grants, chatID)
		return 0, false
	}
	return left, true
}
