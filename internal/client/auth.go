package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/chepyr/go-kanban/shared/models"
	"github.com/google/uuid"
)

var ErrNoSession = errors.New("not signed in")

// Session is what a successful sign-in returns and what the CLI keeps on disk.
type Session struct {
	Token     string    `json:"token"`
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"user_email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the token is past its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Auth is the auth-service client.
type Auth struct {
	t transport
}

func NewAuth(baseURL string, opts ...Option) *Auth {
	return &Auth{t: newTransport(baseURL, opts)}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *Auth) SignUp(ctx context.Context, email, password string) (models.User, error) {
	var out models.User
	if err := a.t.do(ctx, http.MethodPost, "/register", nil, credentials{email, password}, &out); err != nil {
		return models.User{}, fmt.Errorf("sign up: %w", err)
	}
	return out, nil
}

func (a *Auth) SignIn(ctx context.Context, email, password string) (Session, error) {
	var out Session
	if err := a.t.do(ctx, http.MethodPost, "/login", nil, credentials{email, password}, &out); err != nil {
		return Session{}, fmt.Errorf("sign in: %w", err)
	}
	return out, nil
}

// CurrentUser resolves the user a token was issued to.
func (a *Auth) CurrentUser(ctx context.Context, token string) (models.User, error) {
	t := a.t
	t.token = token
	var out models.User
	if err := t.do(ctx, http.MethodGet, "/me", nil, nil, &out); err != nil {
		return models.User{}, fmt.Errorf("current user: %w", err)
	}
	return out, nil
}

// SignOut discards the stored session. Tokens are stateless, so nothing is
// sent to the server.
func (a *Auth) SignOut(path string) error {
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func SaveSession(path string, s Session) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	buf, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0o600)
}

// LoadSession returns ErrNoSession when the file is missing or the token has
// expired.
func LoadSession(path string) (Session, error) {
	buf, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, err
	}
	var s Session
	if err := json.Unmarshal(buf, &s); err != nil {
		return Session{}, fmt.Errorf("parse session %s: %w", path, err)
	}
	if s.Token == "" || s.Expired(time.Now()) {
		return Session{}, ErrNoSession
	}
	return s, nil
}
