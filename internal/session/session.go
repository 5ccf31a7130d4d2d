// Package session holds the signed-in identity of each portal client.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrEmptyHandle is returned by verifiers when no handle was supplied.
var ErrEmptyHandle = errors.New("handle is required")

// ErrInvalidCredentials is returned when a verifier rejects the secret.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Session is the record of the current signed-in identity.
type Session struct {
	ID          string    `json:"id"`
	Handle      string    `json:"handle"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

// Identity is what a verifier resolves a handle to.
type Identity struct {
	DisplayName string
	Email       string
	Role        string
}

// Result is the outcome of a login attempt.
type Result struct {
	Success bool     `json:"success"`
	Session *Session `json:"session,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// Verifier checks a handle and secret and returns the identity to sign in as.
type Verifier interface {
	Verify(ctx context.Context, handle, secret string) (Identity, error)
}

// Provider creates, reads and clears sessions. Each client holds at most one
// session: logging in again from the same client replaces it.
type Provider struct {
	store    Store
	verifier Verifier
	now      func() time.Time
}

// NewProvider creates a session provider. A nil verifier means OpenVerifier.
func NewProvider(store Store, verifier Verifier) *Provider {
	if store == nil {
		store = NewMemoryStore()
	}
	if verifier == nil {
		verifier = OpenVerifier{}
	}
	return &Provider{
		store:    store,
		verifier: verifier,
		now:      time.Now,
	}
}

// Login verifies the credentials and starts a session. previousID is the
// client's current session, if any; it is cleared on success so the client
// never holds two sessions. Verification failures are reported in Result,
// storage failures as an error.
func (p *Provider) Login(ctx context.Context, previousID, handle, secret string) (Result, error) {
	handle = strings.TrimSpace(handle)

	identity, err := p.verifier.Verify(ctx, handle, secret)
	if err != nil {
		slog.Info("login rejected", "handle", handle, "reason", err)
		return Result{Success: false, Error: err.Error()}, nil
	}

	if previousID != "" {
		if err := p.store.Delete(ctx, previousID); err != nil {
			return Result{}, fmt.Errorf("clear previous session: %w", err)
		}
	}

	s := Session{
		ID:          uuid.NewString(),
		Handle:      handle,
		DisplayName: identity.DisplayName,
		Email:       identity.Email,
		Role:        identity.Role,
		CreatedAt:   p.now(),
	}
	if err := p.store.Put(ctx, s); err != nil {
		return Result{}, fmt.Errorf("save session: %w", err)
	}

	slog.Info("session started", "session_id", s.ID, "handle", s.Handle)
	return Result{Success: true, Session: &s}, nil
}

// Logout clears the session. Unknown or empty IDs are a no-op.
func (p *Provider) Logout(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := p.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	slog.Info("session ended", "session_id", id)
	return nil
}

// Current returns the session with the given ID.
func (p *Provider) Current(ctx context.Context, id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	s, err := p.store.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.Warn("session lookup failed", "session_id", id, "error", err)
		}
		return nil, false
	}
	return s, true
}
