package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"gvsdash/internal/storage"
)

// Session is what the console keeps after a successful login.
type Session struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
}

// Store holds the session in a single storage slot. It is passed explicitly
// to every component that needs the token; there is no package-level state.
type Store struct {
	storage storage.Storage
	log     logrus.FieldLogger
}

// NewStore creates a session store over the given backend.
func NewStore(st storage.Storage, log logrus.FieldLogger) *Store {
	return &Store{storage: st, log: log}
}

// Get returns the stored session, or nil when there is none or it cannot be
// read. It never fails.
func (s *Store) Get(ctx context.Context) *Session {
	raw, err := s.storage.Get(ctx, storage.KeySession)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.log.WithError(err).Debug("Session unreadable, treating as absent")
		}
		return nil
	}

	var sess *Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		s.log.WithError(err).Debug("Session malformed, treating as absent")
		return nil
	}
	// A stored JSON null decodes to nil.
	return sess
}

// Set persists the session, replacing any prior value.
func (s *Store) Set(ctx context.Context, sess Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.storage.Set(ctx, storage.KeySession, string(data)); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// Clear removes the persisted session.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.storage.Delete(ctx, storage.KeySession); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// IsAuthenticated reports whether a session with a non-empty access token is
// stored. Expiry is left to the backend.
func (s *Store) IsAuthenticated(ctx context.Context) bool {
	return s.Token(ctx) != ""
}

// Token returns the stored access token or "".
func (s *Store) Token(ctx context.Context) string {
	sess := s.Get(ctx)
	if sess == nil {
		return ""
	}
	return sess.AccessToken
}

// ExpiresAt reads the exp claim of a JWT access token without verifying its
// signature. It reports false for opaque tokens or tokens without exp. The
// result is informational; the backend still decides when a token is dead.
func (s *Store) ExpiresAt(ctx context.Context) (time.Time, bool) {
	token := s.Token(ctx)
	if token == "" {
		return time.Time{}, false
	}

	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		s.log.WithError(err).Debug("Access token is not a readable JWT")
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
