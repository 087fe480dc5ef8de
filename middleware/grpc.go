package middleware

import (
	"context"
	"errors"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/auth"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const ApiKeyHeader = "x-api-key"

// AuthFunc authenticates a gRPC call from its "authorization: bearer" and
// "x-api-key" metadata, for use with the auth interceptors.
func (a *Authenticator) AuthFunc(ctx context.Context) (context.Context, error) {
	var apiKey string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if keys := md.Get(ApiKeyHeader); len(keys) > 0 {
			apiKey = keys[0]
		}
	}
	if err := a.CheckApiKey(apiKey); err != nil {
		return nil, status.Error(codes.Unauthenticated, err.Error())
	}
	token, err := auth.AuthFromMD(ctx, "bearer")
	if err != nil {
		return nil, err
	}
	principal, err := a.Authenticate(ctx, token, apiKey)
	if err != nil {
		return nil, StatusFromError(err)
	}
	return WithPrincipal(ctx, principal), nil
}

// StatusFromError maps authentication errors to gRPC status errors.
func StatusFromError(err error) error {
	switch {
	case errors.Is(err, ErrInactiveUser):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, ErrMissingToken), errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrExpiredToken), errors.Is(err, ErrInvalidApiKey):
		return status.Error(codes.Unauthenticated, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
