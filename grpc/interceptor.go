package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/authify-dev/authify"
)

// VerifyFunc turns a raw token into claims. Usually this is
// (*authify.TokenIssuer).VerifyAccessToken.
type VerifyFunc func(token string) (*authify.Claims, error)

// InterceptorConfig configures the auth interceptors.
type InterceptorConfig struct {
	Verify VerifyFunc

	// RequireAuth rejects requests without a valid token. When false the
	// request proceeds and ClaimsFromContext returns nil.
	RequireAuth bool

	// PublicMethods don't require auth even when RequireAuth is set.
	// Keys are full method names like "/package.Service/Method".
	PublicMethods map[string]bool
}

// NewInterceptorConfig returns a config requiring auth on every method
// except the listed ones.
func NewInterceptorConfig(verify VerifyFunc, publicMethods ...string) *InterceptorConfig {
	config := &InterceptorConfig{
		Verify:        verify,
		RequireAuth:   true,
		PublicMethods: make(map[string]bool),
	}
	for _, method := range publicMethods {
		config.PublicMethods[method] = true
	}
	return config
}

// authenticate resolves the request's claims. A missing token is not an
// error here; the interceptor decides whether that is fatal.
func (c *InterceptorConfig) authenticate(ctx context.Context) (context.Context, error) {
	token := bearerFromMetadata(ctx)
	if token == "" {
		return ctx, nil
	}
	claims, err := c.Verify(token)
	if err != nil {
		return ctx, status.Error(codes.Unauthenticated, "invalid or expired access token")
	}
	return withClaims(ctx, claims), nil
}

// UnaryAuthInterceptor returns a unary interceptor that verifies the
// bearer token in metadata and attaches its claims to the context.
func UnaryAuthInterceptor(config *InterceptorConfig) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, err := config.authenticate(ctx)
		if err != nil {
			return nil, err
		}
		if config.RequireAuth && !config.PublicMethods[info.FullMethod] && ClaimsFromContext(ctx) == nil {
			return nil, status.Error(codes.Unauthenticated, "authentication required")
		}
		return handler(ctx, req)
	}
}

// StreamAuthInterceptor is the stream counterpart of UnaryAuthInterceptor.
func StreamAuthInterceptor(config *InterceptorConfig) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, err := config.authenticate(ss.Context())
		if err != nil {
			return err
		}
		if config.RequireAuth && !config.PublicMethods[info.FullMethod] && ClaimsFromContext(ctx) == nil {
			return status.Error(codes.Unauthenticated, "authentication required")
		}
		return handler(srv, &claimsServerStream{ServerStream: ss, ctx: ctx})
	}
}

type claimsServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *claimsServerStream) Context() context.Context { return s.ctx }
