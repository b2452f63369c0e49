package authify

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RouterConfig names the handlers mounted by NewRouter. The OAuth entries
// are plain http.Handlers so the router does not depend on any particular
// provider implementation.
type RouterConfig struct {
	Service *AuthService
	Guard   *Middleware

	Google         http.Handler
	GoogleCallback http.Handler
	Github         http.Handler
	GithubCallback http.Handler
}

// NewRouter mounts the full auth surface on a gorilla/mux router. Mount it
// under a prefix (e.g. /api/auth) and wrap the whole server with the
// session manager's LoadAndSave.
func NewRouter(cfg RouterConfig) *mux.Router {
	svc, guard := cfg.Service, cfg.Guard
	r := mux.NewRouter()

	r.HandleFunc("/signup", svc.HandleSignup).Methods(http.MethodPost)
	r.HandleFunc("/login", svc.HandleLogin).Methods(http.MethodPost)
	r.Handle("/status", guard.ExtractUser(http.HandlerFunc(svc.HandleStatus))).Methods(http.MethodGet)
	r.HandleFunc("/logout", svc.HandleLogout).Methods(http.MethodPost)
	r.HandleFunc("/refresh-token", svc.HandleRefresh).Methods(http.MethodPost)

	r.HandleFunc("/forgot-password", svc.HandleForgotPassword).Methods(http.MethodPost)
	r.HandleFunc("/verify-reset-otp", svc.HandleVerifyResetOTP).Methods(http.MethodPost)
	r.HandleFunc("/reset-password", svc.HandleResetPassword).Methods(http.MethodPost)
	r.Handle("/update-password", guard.RequireToken(http.HandlerFunc(svc.HandleUpdatePassword))).Methods(http.MethodPost)

	// 2FA management rides on the server-side session rather than the
	// bearer token.
	r.Handle("/2FA/setup", guard.RequireSession(http.HandlerFunc(svc.Handle2FASetup))).Methods(http.MethodPost)
	r.Handle("/2FA/verify", guard.RequireSession(http.HandlerFunc(svc.Handle2FAVerify))).Methods(http.MethodPost)
	r.Handle("/2FA/reset", guard.RequireSession(http.HandlerFunc(svc.Handle2FAReset))).Methods(http.MethodPost)

	if cfg.Google != nil {
		r.Handle("/google", cfg.Google).Methods(http.MethodGet)
		r.Handle("/google/callback", cfg.GoogleCallback).Methods(http.MethodGet)
	}
	if cfg.Github != nil {
		r.Handle("/github", cfg.Github).Methods(http.MethodGet)
		r.Handle("/github/callback", cfg.GithubCallback).Methods(http.MethodGet)
	}
	r.HandleFunc("/github/revoke", svc.HandleGithubRevoke).Methods(http.MethodPost)

	return r
}
