package driven

import "context"

// TokenProvider provides access tokens for authenticated API calls.
type TokenProvider interface {
	// GetToken returns a valid access token.
	// Returns ErrAuthRequired when no token can be obtained.
	GetToken(ctx context.Context) (string, error)

	// IsAuthenticated returns true if a token is available without prompting.
	IsAuthenticated() bool
}
