package duckbridge

import (
	"context"

	"github.com/hugr-lab/duckbridge/auth"
)

// Authenticator validates bearer tokens and returns user identity.
// This is re-exported from the auth package for convenience.
type Authenticator = auth.Authenticator

// ErrUnauthorized is returned by validation functions to reject a token.
var ErrUnauthorized = auth.ErrUnauthenticated

// BearerAuth creates an Authenticator from a validation function.
//
// Example:
//
//	auth := duckbridge.BearerAuth(func(token string) (string, error) {
//	    user, err := validateWithMyBackend(token)
//	    if err != nil {
//	        return "", duckbridge.ErrUnauthorized
//	    }
//	    return user.ID, nil
//	})
func BearerAuth(validateFunc func(token string) (identity string, err error)) Authenticator {
	return auth.BearerAuth(validateFunc)
}

// NoAuth returns an Authenticator that allows all requests without validation.
// Useful for development and testing. DO NOT use in production.
func NoAuth() Authenticator {
	return auth.NoAuth()
}

// IdentityFromContext retrieves the authenticated user identity from context.
// Returns empty string if no identity is present.
func IdentityFromContext(ctx context.Context) string {
	return auth.IdentityFromContext(ctx)
}
