package authify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/alexedwards/scs/v2"
)

// Cookie names shared across login, refresh and logout.
const (
	RefreshCookieName     = "refreshToken"
	GithubTokenCookieName = "githubAccessToken"
)

const defaultGithubAPIBaseURL = "https://api.github.com"

// AuthService orchestrates the authentication state machine: signup,
// login, logout, status, token refresh, the password-reset sub-flow, 2FA,
// and OAuth completion. It owns no cryptography and no storage of its own;
// everything is delegated to the resolver and the token issuer.
type AuthService struct {
	Resolver *IdentityResolver
	Tokens   *TokenIssuer
	Session  *scs.SessionManager
	Notifier OTPNotifier

	// ClientURL is the base URL of the browser application, used for
	// OAuth redirects (e.g. http://localhost:5173).
	ClientURL string

	// TOTPIssuer labels provisioning URIs. Defaults to "Authify".
	TOTPIssuer string

	// SecureCookies marks auth cookies Secure; enable in production.
	SecureCookies bool

	// GitHub app credentials, needed only for grant revocation.
	GithubClientID     string
	GithubClientSecret string

	// GithubAPIBaseURL overrides the GitHub API host in tests.
	GithubAPIBaseURL string

	HTTPClient *http.Client

	// Clock for TOTP verification; tests override it.
	Clock func() time.Time
}

func (s *AuthService) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

func (s *AuthService) httpClient() *http.Client {
	if s.HTTPClient != nil {
		return s.HTTPClient
	}
	return http.DefaultClient
}

func (s *AuthService) totpIssuer() string {
	if s.TOTPIssuer != "" {
		return s.TOTPIssuer
	}
	return "Authify"
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return ErrBadRequest("Invalid request body")
	}
	return nil
}

func (s *AuthService) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.Tokens.RefreshTTL().Seconds()),
		HttpOnly: true,
		Secure:   s.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *AuthService) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   s.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

// authenticate moves the principal to the Authenticated state: it mints
// the token pair, sets the refresh cookie and establishes the session.
// The access token is returned for the response body.
func (s *AuthService) authenticate(w http.ResponseWriter, r *http.Request, user *User) (string, error) {
	access, refresh, err := s.Tokens.TokenPair(user)
	if err != nil {
		return "", err
	}
	s.setRefreshCookie(w, refresh)
	if s.Session != nil {
		if err := s.Session.RenewToken(r.Context()); err != nil {
			slog.Warn("error renewing session token", "err", err)
		}
		s.Session.Put(r.Context(), SessionUserKey, user.ID)
	}
	return access, nil
}

// HandleSignup handles POST /signup.
func (s *AuthService) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Phone    string `json:"phone"`
		Role     Role   `json:"role"`
	}
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	user, err := s.Resolver.RegisterLocal(r.Context(), req.Name, req.Email, req.Password, req.Phone, req.Role)
	if err != nil {
		WriteError(w, err)
		return
	}
	access, err := s.authenticate(w, r, user)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]any{
		"message": "User registered successfully",
		"data":    user.Profile(),
		"token":   access,
	})
}

// HandleLogin handles POST /login.
func (s *AuthService) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	user, err := s.Resolver.VerifyLocalCredentials(r.Context(), req.Email, req.Password)
	if err != nil {
		WriteError(w, err)
		return
	}
	access, err := s.authenticate(w, r, user)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"data":    user.Profile(),
		"token":   access,
	})
}

// HandleStatus handles GET /status. It is a query, not a protected
// operation: an anonymous caller gets an explicit payload, not an error.
func (s *AuthService) HandleStatus(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		WriteJSON(w, http.StatusOK, map[string]any{
			"message": "Not Authenticated",
			"data":    nil,
		})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"message": "user authenticated",
		"data":    user.Profile(),
	})
}

// HandleLogout handles POST /logout. Local state is always cleared and the
// call always succeeds from the caller's perspective; the GitHub grant
// revocation and session teardown are best-effort side effects.
func (s *AuthService) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(GithubTokenCookieName); err == nil && cookie.Value != "" {
		if err := s.revokeGithubGrant(r, cookie.Value); err != nil {
			slog.Warn("github grant revocation failed during logout", "err", err)
		}
	}
	if s.Session != nil {
		if err := s.Session.Destroy(r.Context()); err != nil {
			slog.Warn("error destroying session", "err", err)
		}
	}
	s.clearCookie(w, RefreshCookieName)
	s.clearCookie(w, GithubTokenCookieName)
	WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Logout successful",
		"data":    nil,
	})
}

// HandleRefresh handles POST /refresh-token. It exchanges a valid refresh
// token for a new access token. The refresh token itself is not rotated;
// it stays valid until its fixed expiry.
func (s *AuthService) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(RefreshCookieName)
	if err != nil || cookie.Value == "" {
		WriteError(w, ErrUnauthorized("Refresh token missing"))
		return
	}
	claims, err := s.Tokens.VerifyRefreshToken(cookie.Value)
	if err != nil {
		WriteError(w, err)
		return
	}
	access, err := s.Tokens.AccessToken(&User{
		ID:    claims.ID,
		Name:  claims.Name,
		Email: claims.Email,
		Phone: claims.Phone,
		Role:  Role(claims.Role),
	})
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"message":     "Access token refreshed",
		"accessToken": access,
	})
}

// HandleForgotPassword handles POST /forgot-password. The OTP email is
// dispatched fire-and-forget; delivery failures are logged, not surfaced.
func (s *AuthService) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	user, code, err := s.Resolver.GenerateResetOTP(r.Context(), req.Email)
	if err != nil {
		WriteError(w, err)
		return
	}
	if s.Notifier != nil {
		go func(to, name, code string) {
			if err := s.Notifier.SendResetOTP(to, name, code, OTPExpiryTime); err != nil {
				slog.Warn("error sending reset otp", "err", err)
			}
		}(user.Email, user.Name, code)
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Password reset OTP sent to your email address",
		"email":   user.Email,
	})
}

// HandleVerifyResetOTP handles POST /verify-reset-otp. The check does not
// consume the code; the final reset re-verifies it.
func (s *AuthService) HandleVerifyResetOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if err := s.Resolver.VerifyResetOTP(r.Context(), req.Email, req.OTP); err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"message":  "OTP verified successfully. You can now reset your password",
		"verified": true,
	})
}

// HandleResetPassword handles POST /reset-password.
func (s *AuthService) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email              string `json:"email"`
		OTP                string `json:"otp"`
		NewPassword        string `json:"newPassword"`
		ConfirmNewPassword string `json:"confirmNewPassword"`
	}
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if err := s.Resolver.CompleteReset(r.Context(), req.Email, req.OTP, req.NewPassword, req.ConfirmNewPassword); err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Password reset successfully. You can now login with your new password",
	})
}

// HandleUpdatePassword handles POST /update-password for an authenticated
// user.
func (s *AuthService) HandleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		WriteError(w, ErrUnauthorized("User not authenticated"))
		return
	}
	var req struct {
		CurrentPassword    string `json:"currentPassword"`
		NewPassword        string `json:"newPassword"`
		ConfirmNewPassword string `json:"confirmNewPassword"`
	}
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if err := s.Resolver.UpdatePassword(r.Context(), user, req.CurrentPassword, req.NewPassword, req.ConfirmNewPassword); err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Password updated successfully",
	})
}

// Handle2FASetup handles POST /2FA/setup. A new seed overwrites any prior
// one and MFA is marked active in the same write.
func (s *AuthService) Handle2FASetup(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		WriteError(w, ErrUnauthorized("User not authenticated"))
		return
	}
	account := user.Email
	if account == "" {
		account = user.Name
	}
	provision, err := GenerateTOTPSecret(s.totpIssuer(), account)
	if err != nil {
		WriteError(w, err)
		return
	}
	user.TOTPSecret = provision.Secret
	user.MFAActive = true
	user.UpdatedAt = s.now()
	if err := s.Resolver.Store.Save(r.Context(), user); err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"message":        "2FA setup successful",
		"secret":         provision.Secret,
		"otpauthURL":     provision.URI,
		"manualEntryKey": provision.Secret,
	})
}

// Handle2FAVerify handles POST /2FA/verify. On success it returns a
// short-lived confirmation token.
func (s *AuthService) Handle2FAVerify(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		WriteError(w, ErrUnauthorized("User not authenticated"))
		return
	}
	var req struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if req.Token == "" {
		WriteError(w, ErrBadRequest("2FA token is required"))
		return
	}
	if user.TOTPSecret == "" {
		WriteError(w, ErrBadRequest("2FA not set up for this user"))
		return
	}
	if !VerifyTOTP(user.TOTPSecret, req.Token, s.now()) {
		WriteError(w, ErrBadRequest("Invalid 2FA token"))
		return
	}
	confirmation, err := s.Tokens.ConfirmationToken(user.Name)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"message": "2FA verified",
		"token":   confirmation,
	})
}

// Handle2FAReset handles POST /2FA/reset. The seed and the MFA flag are
// cleared in a single write.
func (s *AuthService) Handle2FAReset(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		WriteError(w, ErrUnauthorized("User not authenticated"))
		return
	}
	user.TOTPSecret = ""
	user.MFAActive = false
	user.UpdatedAt = s.now()
	if err := s.Resolver.Store.Save(r.Context(), user); err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"message": "2FA reset successful",
	})
}

// CompleteOAuth finishes a provider handshake. The callback is a top-level
// browser navigation, so tokens cannot be returned as a JSON body: the
// access token travels to the client application in a query parameter and
// the refresh token in the HttpOnly cookie.
func (s *AuthService) CompleteOAuth(w http.ResponseWriter, r *http.Request, provider Provider, profile OAuthProfile, providerToken string) {
	user, err := s.Resolver.ResolveOAuthIdentity(r.Context(), provider, profile)
	if err != nil {
		slog.Warn("oauth identity resolution failed", "provider", provider, "err", err)
		http.Redirect(w, r, s.OAuthFailureURL(provider), http.StatusFound)
		return
	}
	access, err := s.authenticate(w, r, user)
	if err != nil {
		http.Redirect(w, r, s.OAuthFailureURL(provider), http.StatusFound)
		return
	}
	if provider == ProviderGithub && providerToken != "" {
		// Kept so /github/revoke can later drop the app grant.
		http.SetCookie(w, &http.Cookie{
			Name:     GithubTokenCookieName,
			Value:    providerToken,
			Path:     "/",
			HttpOnly: true,
			Secure:   s.SecureCookies,
			SameSite: http.SameSiteStrictMode,
		})
	}
	dest := fmt.Sprintf("%s/dashboard?token=%s&auth=success&provider=%s",
		s.ClientURL, url.QueryEscape(access), provider)
	http.Redirect(w, r, dest, http.StatusFound)
}

// OAuthFailureURL is where a failed provider handshake sends the browser.
func (s *AuthService) OAuthFailureURL(provider Provider) string {
	return fmt.Sprintf("%s/login?error=%s_auth_failed", s.ClientURL, provider)
}

// HandleGithubRevoke handles POST /github/revoke: a best-effort revocation
// of the linked GitHub app authorization. Cookies are cleared regardless
// of whether the revocation call succeeds.
func (s *AuthService) HandleGithubRevoke(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(GithubTokenCookieName); err == nil && cookie.Value != "" {
		if err := s.revokeGithubGrant(r, cookie.Value); err != nil {
			slog.Warn("failed to revoke github authorization", "err", err)
		}
	}
	s.clearCookie(w, RefreshCookieName)
	s.clearCookie(w, GithubTokenCookieName)
	WriteJSON(w, http.StatusOK, map[string]any{
		"message": "GitHub authorization revoked and cookies cleared",
		"note":    "Next login will show the GitHub authorization screen",
	})
}

// revokeGithubGrant calls DELETE /applications/{client_id}/grant with
// basic auth, removing the app authorization for the given user token.
func (s *AuthService) revokeGithubGrant(r *http.Request, accessToken string) error {
	base := s.GithubAPIBaseURL
	if base == "" {
		base = defaultGithubAPIBaseURL
	}
	body, err := json.Marshal(map[string]string{"access_token": accessToken})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(r.Context(), http.MethodDelete,
		fmt.Sprintf("%s/applications/%s/grant", base, s.GithubClientID), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.SetBasicAuth(s.GithubClientID, s.GithubClientSecret)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("github revoke returned status %d", resp.StatusCode)
	}
	return nil
}
