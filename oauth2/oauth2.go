// Package oauth2 implements the provider side of the OAuth login flows:
// the redirect to the provider, the state-cookie CSRF check, the code
// exchange and the profile fetch. What happens to the resolved profile is
// up to the OnSuccess function supplied by the host application, so this
// package knows nothing about users, tokens or sessions.
package oauth2

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"
)

const stateCookieName = "oauthstate"

// Completion is the typed result of a successful provider handshake.
type Completion struct {
	Provider   string
	ProviderID string
	Name       string
	Email      string
	AvatarURL  string

	// Token is the provider's token set, in case the host wants to keep
	// the provider access token around (e.g. for later revocation).
	Token *oauth2.Token
}

// CompleteFunc receives the completion and owns the rest of the request:
// issuing application tokens, setting cookies, redirecting the browser.
type CompleteFunc func(w http.ResponseWriter, r *http.Request, c Completion)

// Base carries the pieces shared by every provider.
type Base struct {
	Name      string
	Config    *oauth2.Config
	OnSuccess CompleteFunc

	// FailureURL is where the browser is sent when the handshake fails.
	FailureURL string

	// Client overrides the HTTP client used for the exchange and the
	// profile fetch; tests point it at a fake provider.
	Client *http.Client
}

func (b *Base) httpClient() *http.Client {
	if b.Client != nil {
		return b.Client
	}
	return http.DefaultClient
}

// exchangeContext makes oauth2.Config.Exchange use our client.
func (b *Base) exchangeContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, b.httpClient())
}

func setStateCookie(w http.ResponseWriter) string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		slog.Error("error generating oauth state", "err", err)
	}
	state := base64.URLEncoding.EncodeToString(buf)
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
	})
	return state
}

// HandleBegin starts the flow: it plants the state cookie and redirects
// the browser to the provider's consent screen.
func (b *Base) HandleBegin(w http.ResponseWriter, r *http.Request) {
	state := setStateCookie(w)
	http.Redirect(w, r, b.Config.AuthCodeURL(state), http.StatusFound)
}

// checkState validates the callback against the state cookie. The cookie
// is cleared either way so a state can never be replayed.
func (b *Base) checkState(w http.ResponseWriter, r *http.Request) bool {
	cookie, err := r.Cookie(stateCookieName)
	http.SetCookie(w, &http.Cookie{Name: stateCookieName, Path: "/", MaxAge: -1})
	if err != nil || cookie.Value == "" || r.FormValue("state") != cookie.Value {
		slog.Warn("oauth state mismatch", "provider", b.Name)
		return false
	}
	return true
}

// exchange trades the callback code for the provider token.
func (b *Base) exchange(r *http.Request) (*oauth2.Token, error) {
	return b.Config.Exchange(b.exchangeContext(r.Context()), r.FormValue("code"))
}

func (b *Base) fail(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, b.FailureURL, http.StatusFound)
}
