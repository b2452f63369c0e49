// Package grpc bridges the token-based auth guard into gRPC services: an
// interceptor verifies the bearer access token carried in request metadata
// and attaches its claims to the handler context.
package grpc

import (
	"context"
	"strings"

	"google.golang.org/grpc/metadata"

	"github.com/authify-dev/authify"
)

// MetadataKeyAuthorization carries the access token, in the same
// "Bearer <token>" form as the HTTP header.
const MetadataKeyAuthorization = "authorization"

type contextKey string

const claimsContextKey contextKey = "authify.grpc.claims"

// ClaimsFromContext returns the verified token claims attached by the
// interceptor, or nil for an unauthenticated request.
func ClaimsFromContext(ctx context.Context) *authify.Claims {
	c, _ := ctx.Value(claimsContextKey).(*authify.Claims)
	return c
}

func withClaims(ctx context.Context, c *authify.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, c)
}

// UserIDFromContext is a shorthand for the common case of only needing
// the caller's account id.
func UserIDFromContext(ctx context.Context) string {
	if c := ClaimsFromContext(ctx); c != nil {
		return c.ID
	}
	return ""
}

// TokenToOutgoingContext attaches an access token to an outgoing call.
func TokenToOutgoingContext(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, MetadataKeyAuthorization, "Bearer "+token)
}

// bearerFromMetadata pulls the token out of incoming metadata. A bare
// token without the Bearer prefix is accepted too.
func bearerFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(MetadataKeyAuthorization)
	if len(values) == 0 {
		return ""
	}
	value := values[0]
	if len(value) > 7 && strings.EqualFold(value[:7], "Bearer ") {
		return strings.TrimSpace(value[7:])
	}
	return strings.TrimSpace(value)
}
