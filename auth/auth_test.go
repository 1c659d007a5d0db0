package auth

import (
	"context"
	"errors"
	"sync"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func holderAuth() Authenticator {
	return BearerAuth(func(token string) (string, error) {
		if token == "valid-token" {
			return "holder-client", nil
		}
		return "", errors.New("invalid token")
	})
}

func TestNoAuth(t *testing.T) {
	for _, token := range []string{"any-token", ""} {
		identity, err := NoAuth().Authenticate(context.Background(), token)
		if err != nil {
			t.Errorf("NoAuth should never return error, got: %v", err)
		}
		if identity != "anonymous" {
			t.Errorf("Expected identity 'anonymous', got '%s'", identity)
		}
	}
}

func TestBearerAuth(t *testing.T) {
	identity, err := holderAuth().Authenticate(context.Background(), "valid-token")
	if err != nil || identity != "holder-client" {
		t.Errorf("Expected holder-client, got %q, %v", identity, err)
	}

	identity, err = holderAuth().Authenticate(context.Background(), "other")
	if err == nil || identity != "" {
		t.Errorf("Expected rejection, got %q, %v", identity, err)
	}
}

func TestTokenFromAuthorizationHeader(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
		err    error
	}{
		{"bearer", "Bearer abc", "abc", nil},
		{"empty token", "Bearer ", "", ErrTokenIsEmpty},
		{"basic scheme", "Basic abc", "", ErrInvalidAuthHeader},
		{"missing", "", "", ErrInvalidAuthHeader},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TokenFromAuthorizationHeader(tt.header)
			if !errors.Is(err, tt.err) {
				t.Fatalf("expected %v, got %v", tt.err, err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestValidateToken(t *testing.T) {
	ctx, err := ValidateToken(context.Background(), "valid-token", holderAuth())
	if err != nil {
		t.Fatal(err)
	}
	if IdentityFromContext(ctx) != "holder-client" {
		t.Errorf("identity not propagated: %q", IdentityFromContext(ctx))
	}

	if _, err := ValidateToken(context.Background(), "bad", holderAuth()); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}
	if _, err := ValidateToken(context.Background(), "", holderAuth()); !errors.Is(err, ErrTokenIsEmpty) {
		t.Errorf("expected ErrTokenIsEmpty, got %v", err)
	}
}

func TestUnaryServerInterceptor(t *testing.T) {
	handler := func(ctx context.Context, _ any) (any, error) {
		return IdentityFromContext(ctx), nil
	}

	tests := []struct {
		name   string
		auth   Authenticator
		header string
		want   string
		code   codes.Code
	}{
		{"no authenticator", nil, "", "", codes.OK},
		{"valid", holderAuth(), "Bearer valid-token", "holder-client", codes.OK},
		{"invalid", holderAuth(), "Bearer nope", "", codes.Unauthenticated},
		{"missing", holderAuth(), "", "", codes.Unauthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.header != "" {
				ctx = metadata.NewIncomingContext(ctx, metadata.Pairs(HeaderAuthorization, tt.header))
			}
			got, err := UnaryServerInterceptor(tt.auth)(ctx, nil, &grpc.UnaryServerInfo{}, handler)
			if status.Code(err) != tt.code {
				t.Fatalf("expected %s, got %v", tt.code, err)
			}
			if err == nil && got != tt.want {
				t.Errorf("expected identity %q, got %v", tt.want, got)
			}
		})
	}
}

func TestBearerCredentials(t *testing.T) {
	creds := BearerCredentials("valid-token", false)
	md, err := creds.GetRequestMetadata(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if md[HeaderAuthorization] != "Bearer valid-token" {
		t.Errorf("unexpected metadata %v", md)
	}
	if creds.RequireTransportSecurity() {
		t.Error("insecure credentials must not require TLS")
	}
	if !BearerCredentials("x", true).RequireTransportSecurity() {
		t.Error("secure credentials must require TLS")
	}
}

func TestBearerAuthConcurrency(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	a := BearerAuth(func(token string) (string, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return token, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := a.Authenticate(context.Background(), "t"); err != nil {
				t.Errorf("Concurrent auth error: %v", err)
			}
		}()
	}
	wg.Wait()

	if calls != 100 {
		t.Errorf("Expected 100 calls, got %d", calls)
	}
}
