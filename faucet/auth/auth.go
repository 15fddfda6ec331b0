// Package auth abstracts the identity provider that vouches for faucet
// users.
package auth

import "context"

// Handler resolves a provider issued session token to a stable user id.
type Handler interface {
	// GetUserSession returns the user id behind an active session token, or
	// an error when the token is unknown, expired or revoked.
	GetUserSession(ctx context.Context, token string) (string, error)
}
