package oauth2

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// Github runs the GitHub OAuth flow. GitHub frequently hides the account
// email from the profile endpoint, so after the profile fetch it falls
// back to /user/emails and picks the primary verified address.
type Github struct {
	Base

	// Overridable in tests; default to GitHub's API.
	UserInfoURL string
	EmailsURL   string
}

// NewGithub builds the provider with GitHub's endpoint and the scopes
// needed to read the profile and email.
func NewGithub(clientID, clientSecret, callbackURL string, onSuccess CompleteFunc, failureURL string) *Github {
	return &Github{
		Base: Base{
			Name: "github",
			Config: &oauth2.Config{
				ClientID:     clientID,
				ClientSecret: clientSecret,
				RedirectURL:  callbackURL,
				Scopes:       []string{"read:user", "user:email"},
				Endpoint:     github.Endpoint,
			},
			OnSuccess:  onSuccess,
			FailureURL: failureURL,
		},
		UserInfoURL: "https://api.github.com/user",
		EmailsURL:   "https://api.github.com/user/emails",
	}
}

// HandleCallback finishes the flow and hands the typed completion to
// OnSuccess. Any failure redirects the browser to FailureURL.
func (g *Github) HandleCallback(w http.ResponseWriter, r *http.Request) {
	if !g.checkState(w, r) {
		g.fail(w, r)
		return
	}
	token, err := g.exchange(r)
	if err != nil {
		slog.Warn("github code exchange failed", "err", err)
		g.fail(w, r)
		return
	}
	completion, err := g.fetchProfile(token)
	if err != nil {
		slog.Warn("github profile fetch failed", "err", err)
		g.fail(w, r)
		return
	}
	g.OnSuccess(w, r, *completion)
}

func (g *Github) fetchProfile(token *oauth2.Token) (*Completion, error) {
	var profile struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := g.getJSON(token, g.UserInfoURL, &profile); err != nil {
		return nil, err
	}
	if profile.ID == 0 {
		return nil, fmt.Errorf("github profile has no id")
	}
	name := profile.Name
	if name == "" {
		name = profile.Login
	}
	email := profile.Email
	if email == "" {
		email = g.primaryEmail(token)
	}
	return &Completion{
		Provider:   "github",
		ProviderID: strconv.FormatInt(profile.ID, 10),
		Name:       name,
		Email:      email,
		AvatarURL:  profile.AvatarURL,
		Token:      token,
	}, nil
}

// primaryEmail is best-effort: an account with all emails private simply
// ends up with no email, which the host tolerates.
func (g *Github) primaryEmail(token *oauth2.Token) string {
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := g.getJSON(token, g.EmailsURL, &emails); err != nil {
		slog.Warn("github email fetch failed", "err", err)
		return ""
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email
		}
	}
	for _, e := range emails {
		if e.Verified {
			return e.Email
		}
	}
	return ""
}

func (g *Github) getJSON(token *oauth2.Token, url string, v any) error {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := g.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("failed getting user info from github: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github returned status %d for %s", resp.StatusCode, url)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
