// Package admin authenticates shop administrators and issues their session
// tokens.
package admin

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

var (
	// ErrNotFound is returned when no admin has the requested username.
	ErrNotFound = errors.New("admin not found")
	// ErrInvalidCredentials is returned by Login for an unknown username or a
	// wrong password. The two cases are indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated is returned by Verify for a missing, malformed,
	// tampered or expired session token.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// Admin is a shop administrator account.
type Admin struct {
	ID           string
	Username     string
	PasswordHash string
	Email        string
	CreatedAt    time.Time
}

// Repository defines persistence operations for admins.
type Repository interface {
	FindByUsername(ctx context.Context, username string) (*Admin, error)
	// Upsert creates the admin or replaces the password hash and email of the
	// existing account with the same username.
	Upsert(ctx context.Context, a *Admin) error
}

// Session is the verified content of a session token.
type Session struct {
	AdminID   string
	Username  string
	ExpiresAt time.Time
}
