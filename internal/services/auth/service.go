// Package auth implements the sign-in, sign-up and sign-out flows on top of
// the backend client and the session store.
package auth

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"gvsdash/internal/api"
	"gvsdash/internal/session"
)

// Backend is the part of the API client the flows need. *api.AuthClient
// implements it.
type Backend interface {
	Login(ctx context.Context, username, password string) (*api.Token, error)
	Logout(ctx context.Context) error
	Register(ctx context.Context, req api.RegisterRequest) (*api.User, error)
	Me(ctx context.Context) (*api.User, error)
}

// Sessions is the session store. *session.Store implements it.
type Sessions interface {
	Set(ctx context.Context, sess session.Session) error
	Clear(ctx context.Context) error
	IsAuthenticated(ctx context.Context) bool
}

type Service struct {
	backend  Backend
	sessions Sessions
	log      logrus.FieldLogger
}

func NewService(backend Backend, sessions Sessions, log logrus.FieldLogger) *Service {
	return &Service{
		backend:  backend,
		sessions: sessions,
		log:      log.WithField("component", "auth"),
	}
}

// Login validates the form, exchanges the credentials and stores the token.
func (s *Service) Login(ctx context.Context, req LoginRequest) error {
	if err := ValidateLogin(&req); err != nil {
		return err
	}

	token, err := s.backend.Login(ctx, req.Email, req.Password)
	if err != nil {
		s.log.WithError(err).Warn("Login rejected")
		return fmt.Errorf("login: %w", err)
	}

	sess := session.Session{AccessToken: token.AccessToken, TokenType: token.TokenType}
	if err := s.sessions.Set(ctx, sess); err != nil {
		return err
	}

	s.log.WithField("email", req.Email).Info("Signed in")
	return nil
}

// Register validates the form and creates the account. It does not sign in.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*api.User, error) {
	if err := ValidateRegister(&req); err != nil {
		return nil, err
	}

	user, err := s.backend.Register(ctx, api.RegisterRequest{Email: req.Email, Password: req.Password})
	if err != nil {
		s.log.WithError(err).Warn("Registration rejected")
		return nil, fmt.Errorf("register: %w", err)
	}
	return user, nil
}

// Logout tells the backend and always clears the local session, whatever
// the backend answered.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.backend.Logout(ctx); err != nil {
		s.log.WithError(err).Debug("Backend logout failed, clearing session anyway")
	}
	return s.sessions.Clear(ctx)
}

// Me returns the signed-in user.
func (s *Service) Me(ctx context.Context) (*api.User, error) {
	return s.backend.Me(ctx)
}

func (s *Service) IsAuthenticated(ctx context.Context) bool {
	return s.sessions.IsAuthenticated(ctx)
}
