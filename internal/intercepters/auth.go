// Package intercepters holds the unary gRPC interceptors of the link service.
package intercepters

import (
	"context"
	"slices"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/atinyakov/tinylink/internal/app/service"
	"github.com/atinyakov/tinylink/internal/middleware"
)

// WithJWT authenticates calls with the bearer token in the "authorization"
// metadata and stores the user ID under middleware.UserIDKey. Methods listed
// in public are passed through untouched.
func WithJWT(parser service.TokenParser, public ...string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if slices.Contains(public, info.FullMethod) {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		authHeader := md.Get("authorization")
		if len(authHeader) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing token")
		}

		scheme, token, found := strings.Cut(authHeader[0], " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
			return nil, status.Error(codes.Unauthenticated, "malformed authorization")
		}

		claims, err := parser.ParseRawJWT(strings.TrimSpace(token))
		if err != nil {
			return nil, status.Errorf(codes.Unauthenticated, "invalid JWT: %v", err)
		}

		ctx = context.WithValue(ctx, middleware.UserIDKey, claims.UserID)

		return handler(ctx, req)
	}
}
