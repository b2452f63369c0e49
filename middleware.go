package authify

import (
	"context"
	"net/http"
	"strings"

	"github.com/alexedwards/scs/v2"
)

type contextKey string

const userContextKey contextKey = "authify.user"

// Session variable holding the id of the logged in user.
const SessionUserKey = "loggedInUserId"

// Middleware holds the per-request authentication guards. Each guard is a
// pure gate: it either attaches the resolved user and passes control
// forward, or fails with 401. No business logic lives here.
type Middleware struct {
	Tokens  *TokenIssuer
	Store   UserStore
	Session *scs.SessionManager
}

// UserFromContext returns the user attached by a guard, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userContextKey).(*User)
	return u
}

func withUser(r *http.Request, u *User) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), userContextKey, u))
}

// bearerToken extracts the token from an Authorization: Bearer header.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// userFromToken verifies a bearer access token and re-fetches the account.
// The store round trip is deliberate: a deactivated or deleted account is
// rejected even while its token is still cryptographically valid.
func (m *Middleware) userFromToken(r *http.Request) (*User, error) {
	token := bearerToken(r)
	if token == "" {
		return nil, ErrUnauthorized("Token Not provided")
	}
	claims, err := m.Tokens.VerifyAccessToken(token)
	if err != nil {
		return nil, err
	}
	user, err := m.Store.GetByID(r.Context(), claims.ID)
	if err != nil || user.IsDeleted || !user.IsActive {
		return nil, ErrUnauthorized("Invalid or expired access token")
	}
	return user, nil
}

func (m *Middleware) userFromSession(r *http.Request) (*User, error) {
	if m.Session == nil {
		return nil, ErrUnauthorized("Not Authenticated")
	}
	userID := m.Session.GetString(r.Context(), SessionUserKey)
	if userID == "" {
		return nil, ErrUnauthorized("Not Authenticated")
	}
	user, err := m.Store.GetByID(r.Context(), userID)
	if err != nil || user.IsDeleted || !user.IsActive {
		return nil, ErrUnauthorized("Not Authenticated")
	}
	return user, nil
}

// RequireToken guards a route with bearer access-token authentication.
func (m *Middleware) RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := m.userFromToken(r)
		if err != nil {
			WriteError(w, err)
			return
		}
		next.ServeHTTP(w, withUser(r, user))
	})
}

// RequireSession guards a route with an established server-side session.
func (m *Middleware) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := m.userFromSession(r)
		if err != nil {
			WriteError(w, err)
			return
		}
		next.ServeHTTP(w, withUser(r, user))
	})
}

// ExtractUser attaches the user when either a session or a bearer token
// resolves one, and passes through anonymously otherwise. Used by the
// status endpoint, which is a query rather than a protected operation.
func (m *Middleware) ExtractUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, err := m.userFromSession(r); err == nil {
			next.ServeHTTP(w, withUser(r, user))
			return
		}
		if user, err := m.userFromToken(r); err == nil {
			next.ServeHTTP(w, withUser(r, user))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRoles layers a role check on top of an authenticating guard.
// 401 when no user was attached, 403 when the role is not allowed.
func RequireRoles(roles ...Role) func(http.Handler) http.Handler {
	allowed := make(map[Role]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFromContext(r.Context())
			if user == nil {
				WriteError(w, ErrUnauthorized("Unauthorized"))
				return
			}
			if !allowed[user.Role] {
				WriteError(w, ErrForbidden("Forbidden: You don't have permission"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
