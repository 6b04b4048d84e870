package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

var ErrMissingUser = errors.New("user context not found")

// UserContextKey is the key for user data in context
type UserContextKey struct{}

// UserContext holds authenticated user information
type UserContext struct {
	UserID uint64
	Token  string
}

// TokenValidator interface for validating tokens
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*UserContext, error)
}

// UnaryServerInterceptor returns a new unary server interceptor for authentication.
// Methods listed in public bypass the check.
func UnaryServerInterceptor(validator TokenValidator, public ...string) grpc.UnaryServerInterceptor {
	skip := make(map[string]bool, len(public)+2)
	skip["/grpc.health.v1.Health/Check"] = true
	skip["/grpc.health.v1.Health/Watch"] = true
	for _, m := range public {
		skip[m] = true
	}

	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if skip[info.FullMethod] {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		authHeader := md.Get("authorization")
		if len(authHeader) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing authorization header")
		}

		token := ExtractToken(authHeader[0])
		if token == "" {
			return nil, status.Error(codes.Unauthenticated, "invalid authorization header format")
		}

		userCtx, err := validator.ValidateToken(ctx, token)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, fmt.Sprintf("invalid token: %v", err))
		}

		return handler(WithUser(ctx, userCtx), req)
	}
}

// ExtractToken extracts the token from "Bearer <token>" format
func ExtractToken(authHeader string) string {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// WithUser stores the authenticated user in ctx
func WithUser(ctx context.Context, u *UserContext) context.Context {
	return context.WithValue(ctx, UserContextKey{}, u)
}

// GetUserFromContext retrieves user context from the context
func GetUserFromContext(ctx context.Context) (*UserContext, error) {
	userCtx, ok := ctx.Value(UserContextKey{}).(*UserContext)
	if !ok || userCtx == nil {
		return nil, ErrMissingUser
	}
	return userCtx, nil
}
