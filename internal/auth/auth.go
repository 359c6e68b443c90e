// Package auth validates login credentials against the user table.
package auth

import (
	"context"
	"errors"
	"fmt"

	"prekbill/internal/core"
	"prekbill/internal/storage"
)

// ErrInvalidCredentials covers both an unknown username and a password
// mismatch; callers cannot tell the two apart.
var ErrInvalidCredentials = errors.New("invalid username or password")

// UserSource looks up users by username. *storage.Store satisfies it.
type UserSource interface {
	UserByUsername(ctx context.Context, username string) (core.User, error)
}

// Authenticate checks username/password and returns the matching user.
// Unexpected store failures are passed through so the caller can treat
// them as fatal for the request rather than as a bad login.
func Authenticate(ctx context.Context, src UserSource, username, password string) (core.User, error) {
	user, err := src.UserByUsername(ctx, username)
	if errors.Is(err, storage.ErrNotFound) {
		return core.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return core.User{}, fmt.Errorf("look up user: %w", err)
	}
	if !VerifyPassword(user.Password, password) {
		return core.User{}, ErrInvalidCredentials
	}
	return user, nil
}
