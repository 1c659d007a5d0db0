package auth

import (
	"context"

	"google.golang.org/grpc/credentials"
)

// bearerCredentials attaches a static bearer token to every call.
type bearerCredentials struct {
	token  string
	secure bool
}

// BearerCredentials returns per-RPC credentials sending token in the
// authorization header. When secure is set the token is only sent over TLS.
func BearerCredentials(token string, secure bool) credentials.PerRPCCredentials {
	return bearerCredentials{token: token, secure: secure}
}

func (b bearerCredentials) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{HeaderAuthorization: bearerPrefix + b.token}, nil
}

func (b bearerCredentials) RequireTransportSecurity() bool { return b.secure }
