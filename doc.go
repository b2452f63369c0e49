// Package authify implements the authentication core of the Authify
// service: local signup/login, Google and GitHub OAuth, password reset
// with one-time codes, TOTP two-factor authentication, and access/refresh
// token management.
//
// # Architecture
//
// User: a durable account record. Users are created by local signup or by
// the first login through an OAuth provider, and are soft-deleted rather
// than removed.
//
// IdentityResolver: maps a credential presentation (email+password, OAuth
// profile, email+OTP) to a User, applying creation, reactivation and
// linking rules.
//
// AuthService: orchestrates the authentication state machine over HTTP:
// token issuance, refresh, the password-reset sub-flow, and 2FA.
//
// Middleware: per-request guards. The token guard expects a Bearer access
// token and re-fetches the user so deactivated accounts are rejected even
// while their tokens are still valid. The session guard expects a
// server-side session established at login.
//
// # Basic Usage
//
// Wire a store, the resolver and the service, then mount the router:
//
//	store := fs.NewUserStore("/path/to/storage")
//	tokens, _ := authify.NewTokenIssuer(accessSecret, refreshSecret)
//	resolver := &authify.IdentityResolver{Store: store}
//	session := scs.New()
//	svc := &authify.AuthService{
//	    Resolver: resolver,
//	    Tokens:   tokens,
//	    Session:  session,
//	    Notifier: &authify.ConsoleOTPNotifier{},
//	}
//	guard := &authify.Middleware{Tokens: tokens, Store: store, Session: session}
//	router := authify.NewRouter(authify.RouterConfig{Service: svc, Guard: guard})
//	http.ListenAndServe(":3000", session.LoadAndSave(router))
package authify
