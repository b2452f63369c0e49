package oauth2_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	oauth2lib "golang.org/x/oauth2"

	"github.com/authify-dev/authify/oauth2"
)

// mockProvider fakes the provider side: a /token endpoint for the code
// exchange plus /user, /user/emails and /userinfo payload endpoints.
type mockProvider struct {
	server *httptest.Server

	tokenError    bool
	userResponse  map[string]any
	emailResponse []map[string]any
}

func newMockProvider() *mockProvider {
	mock := &mockProvider{
		userResponse: map[string]any{
			"id":         float64(12345),
			"login":      "octo",
			"name":       "Octo Cat",
			"email":      "octo@example.com",
			"avatar_url": "https://avatars.example/octo.png",
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if mock.tokenError {
			http.Error(w, "token exchange failed", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "mock_access_token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mock.userResponse)
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mock.emailResponse)
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "g-9001",
			"name":    "Goo Gle",
			"email":   "goo@example.com",
			"picture": "https://avatars.example/goo.png",
		})
	})

	mock.server = httptest.NewServer(mux)
	return mock
}

func (m *mockProvider) Close() { m.server.Close() }

func newTestGithub(mock *mockProvider, onSuccess oauth2.CompleteFunc) *oauth2.Github {
	gh := oauth2.NewGithub("client-id", "client-secret", "http://app.example/callback",
		onSuccess, "http://app.example/login?error=github_auth_failed")
	gh.Config.Endpoint = oauth2lib.Endpoint{
		AuthURL:  mock.server.URL + "/auth",
		TokenURL: mock.server.URL + "/token",
	}
	gh.Client = mock.server.Client()
	gh.UserInfoURL = mock.server.URL + "/user"
	gh.EmailsURL = mock.server.URL + "/user/emails"
	return gh
}

func stateCookie(t *testing.T, rr *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == "oauthstate" {
			return c
		}
	}
	return nil
}

func TestHandleBegin(t *testing.T) {
	mock := newMockProvider()
	defer mock.Close()
	gh := newTestGithub(mock, nil)

	req := httptest.NewRequest(http.MethodGet, "/github", nil)
	rr := httptest.NewRecorder()
	gh.HandleBegin(rr, req)

	if rr.Code != http.StatusFound {
		t.Fatalf("Expected 302, got %d", rr.Code)
	}
	location := rr.Header().Get("Location")
	if !strings.HasPrefix(location, mock.server.URL+"/auth") {
		t.Errorf("Expected redirect to the provider, got %q", location)
	}

	parsed, err := url.Parse(location)
	if err != nil {
		t.Fatalf("Failed to parse redirect URL: %v", err)
	}
	query := parsed.Query()
	if query.Get("client_id") != "client-id" {
		t.Error("Expected client_id in URL")
	}
	if query.Get("state") == "" {
		t.Error("Expected a state parameter")
	}

	cookie := stateCookie(t, rr)
	if cookie == nil || cookie.Value == "" {
		t.Fatal("Expected the oauthstate cookie to be set")
	}
	if cookie.Value != query.Get("state") {
		t.Error("Expected the cookie and URL state to match")
	}
}

func TestGithubCallback(t *testing.T) {
	mock := newMockProvider()
	defer mock.Close()

	t.Run("completes with the provider profile", func(t *testing.T) {
		var got *oauth2.Completion
		gh := newTestGithub(mock, func(w http.ResponseWriter, r *http.Request, c oauth2.Completion) {
			got = &c
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/github/callback?state=valid_state&code=auth_code", nil)
		req.AddCookie(&http.Cookie{Name: "oauthstate", Value: "valid_state"})
		rr := httptest.NewRecorder()
		gh.HandleCallback(rr, req)

		if got == nil {
			t.Fatalf("Expected OnSuccess to be called, status %d", rr.Code)
		}
		if got.Provider != "github" {
			t.Errorf("Expected provider github, got %q", got.Provider)
		}
		if got.ProviderID != "12345" {
			t.Errorf("Expected provider id 12345, got %q", got.ProviderID)
		}
		if got.Email != "octo@example.com" {
			t.Errorf("Expected profile email, got %q", got.Email)
		}
		if got.Token == nil || got.Token.AccessToken != "mock_access_token" {
			t.Error("Expected the provider token on the completion")
		}
	})

	t.Run("falls back to the emails endpoint", func(t *testing.T) {
		mock.userResponse["email"] = ""
		mock.emailResponse = []map[string]any{
			{"email": "secondary@example.com", "primary": false, "verified": true},
			{"email": "primary@example.com", "primary": true, "verified": true},
		}
		defer func() { mock.userResponse["email"] = "octo@example.com" }()

		var got *oauth2.Completion
		gh := newTestGithub(mock, func(w http.ResponseWriter, r *http.Request, c oauth2.Completion) {
			got = &c
		})

		req := httptest.NewRequest(http.MethodGet, "/github/callback?state=valid_state&code=auth_code", nil)
		req.AddCookie(&http.Cookie{Name: "oauthstate", Value: "valid_state"})
		gh.HandleCallback(httptest.NewRecorder(), req)

		if got == nil {
			t.Fatal("Expected OnSuccess to be called")
		}
		if got.Email != "primary@example.com" {
			t.Errorf("Expected the primary verified email, got %q", got.Email)
		}
	})

	t.Run("state mismatch redirects to the failure URL", func(t *testing.T) {
		called := false
		gh := newTestGithub(mock, func(w http.ResponseWriter, r *http.Request, c oauth2.Completion) {
			called = true
		})

		req := httptest.NewRequest(http.MethodGet, "/github/callback?state=evil_state&code=auth_code", nil)
		req.AddCookie(&http.Cookie{Name: "oauthstate", Value: "valid_state"})
		rr := httptest.NewRecorder()
		gh.HandleCallback(rr, req)

		if called {
			t.Error("Expected OnSuccess not to be called")
		}
		if rr.Code != http.StatusFound {
			t.Fatalf("Expected 302, got %d", rr.Code)
		}
		if got := rr.Header().Get("Location"); got != "http://app.example/login?error=github_auth_failed" {
			t.Errorf("Expected failure redirect, got %q", got)
		}
	})

	t.Run("missing state cookie fails", func(t *testing.T) {
		called := false
		gh := newTestGithub(mock, func(w http.ResponseWriter, r *http.Request, c oauth2.Completion) {
			called = true
		})
		req := httptest.NewRequest(http.MethodGet, "/github/callback?state=valid_state&code=auth_code", nil)
		rr := httptest.NewRecorder()
		gh.HandleCallback(rr, req)
		if called || rr.Code != http.StatusFound {
			t.Errorf("Expected failure redirect, called=%v code=%d", called, rr.Code)
		}
	})

	t.Run("failed exchange redirects to the failure URL", func(t *testing.T) {
		mock.tokenError = true
		defer func() { mock.tokenError = false }()

		called := false
		gh := newTestGithub(mock, func(w http.ResponseWriter, r *http.Request, c oauth2.Completion) {
			called = true
		})
		req := httptest.NewRequest(http.MethodGet, "/github/callback?state=valid_state&code=auth_code", nil)
		req.AddCookie(&http.Cookie{Name: "oauthstate", Value: "valid_state"})
		rr := httptest.NewRecorder()
		gh.HandleCallback(rr, req)
		if called {
			t.Error("Expected OnSuccess not to be called")
		}
		if got := rr.Header().Get("Location"); got != "http://app.example/login?error=github_auth_failed" {
			t.Errorf("Expected failure redirect, got %q", got)
		}
	})
}

func TestGoogleCallback(t *testing.T) {
	mock := newMockProvider()
	defer mock.Close()

	var got *oauth2.Completion
	g := oauth2.NewGoogle("client-id", "client-secret", "http://app.example/callback",
		func(w http.ResponseWriter, r *http.Request, c oauth2.Completion) { got = &c },
		"http://app.example/login?error=google_auth_failed")
	g.Config.Endpoint = oauth2lib.Endpoint{
		AuthURL:  mock.server.URL + "/auth",
		TokenURL: mock.server.URL + "/token",
	}
	g.Client = mock.server.Client()
	g.UserInfoURL = mock.server.URL + "/userinfo"

	req := httptest.NewRequest(http.MethodGet, "/google/callback?state=valid_state&code=auth_code", nil)
	req.AddCookie(&http.Cookie{Name: "oauthstate", Value: "valid_state"})
	g.HandleCallback(httptest.NewRecorder(), req)

	if got == nil {
		t.Fatal("Expected OnSuccess to be called")
	}
	if got.Provider != "google" || got.ProviderID != "g-9001" {
		t.Errorf("Unexpected completion %+v", got)
	}
	if got.Email != "goo@example.com" || got.AvatarURL != "https://avatars.example/goo.png" {
		t.Errorf("Unexpected profile fields %+v", got)
	}
}
