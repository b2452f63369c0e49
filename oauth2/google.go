package oauth2

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Google runs the Google OAuth flow. Google always supplies a verified
// email in the userinfo payload, so there is no fallback fetch here.
type Google struct {
	Base

	// Overridable in tests.
	UserInfoURL string
}

func NewGoogle(clientID, clientSecret, callbackURL string, onSuccess CompleteFunc, failureURL string) *Google {
	return &Google{
		Base: Base{
			Name: "google",
			Config: &oauth2.Config{
				ClientID:     clientID,
				ClientSecret: clientSecret,
				RedirectURL:  callbackURL,
				Scopes: []string{
					"https://www.googleapis.com/auth/userinfo.email",
					"https://www.googleapis.com/auth/userinfo.profile",
				},
				Endpoint: google.Endpoint,
			},
			OnSuccess:  onSuccess,
			FailureURL: failureURL,
		},
		UserInfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
	}
}

func (g *Google) HandleCallback(w http.ResponseWriter, r *http.Request) {
	if !g.checkState(w, r) {
		g.fail(w, r)
		return
	}
	token, err := g.exchange(r)
	if err != nil {
		slog.Warn("google code exchange failed", "err", err)
		g.fail(w, r)
		return
	}
	completion, err := g.fetchProfile(token)
	if err != nil {
		slog.Warn("google profile fetch failed", "err", err)
		g.fail(w, r)
		return
	}
	g.OnSuccess(w, r, *completion)
}

func (g *Google) fetchProfile(token *oauth2.Token) (*Completion, error) {
	req, err := http.NewRequest(http.MethodGet, g.UserInfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	resp, err := g.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed getting user info from google: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google returned status %d", resp.StatusCode)
	}

	var profile struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Email   string `json:"email"`
		Picture string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, err
	}
	if profile.ID == "" {
		return nil, fmt.Errorf("google profile has no id")
	}
	return &Completion{
		Provider:   "google",
		ProviderID: profile.ID,
		Name:       profile.Name,
		Email:      profile.Email,
		AvatarURL:  profile.Picture,
		Token:      token,
	}, nil
}
