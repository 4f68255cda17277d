package api

import (
	"context"
	"net/http"
)

// AuthClient covers registration, login and the current user.
type AuthClient struct {
	c *Client
}

// Login exchanges credentials for a bearer token. The form mirrors the
// OAuth2 password grant the backend expects.
func (a *AuthClient) Login(ctx context.Context, username, password string) (*Token, error) {
	req := a.c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"grant_type": "password",
			"username":   username,
			"password":   password,
			"scope":      "",
		})

	var token Token
	if err := a.c.send(req, http.MethodPost, "/auth/jwt/login", &token, nil); err != nil {
		return nil, err
	}
	a.c.ResetCache()
	return &token, nil
}

// Logout ends the backend session. Cached reads belong to the old token and
// are dropped whatever the backend answers.
func (a *AuthClient) Logout(ctx context.Context) error {
	defer a.c.ResetCache()
	return a.c.mutate(ctx, http.MethodPost, "/auth/jwt/logout", nil, nil)
}

func (a *AuthClient) Register(ctx context.Context, body RegisterRequest) (*User, error) {
	var user User
	if err := a.c.mutate(ctx, http.MethodPost, "/auth/register", body, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Me returns the account the current token belongs to.
func (a *AuthClient) Me(ctx context.Context) (*User, error) {
	var user User
	if err := a.c.query(ctx, "/me", nil, []Tag{TagMe}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
