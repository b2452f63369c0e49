package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/authify-dev/authify/client"
)

// fakeAuthServer is a minimal stand-in for the real service: it hands out
// counted access tokens and honors the refresh cookie.
type fakeAuthServer struct {
	server *httptest.Server

	issued       int
	validToken   string
	loginCount   int
	refreshCount int
}

func newFakeAuthServer() *fakeAuthServer {
	f := &fakeAuthServer{}
	mux := http.NewServeMux()

	issue := func() string {
		f.issued++
		f.validToken = "access-" + strings.Repeat("x", f.issued)
		return f.validToken
	}

	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		if req["password"] != "secret123" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]any{"message": "Incorrect credentials."})
			return
		}
		f.loginCount++
		http.SetCookie(w, &http.Cookie{Name: "refreshToken", Value: "refresh-1", Path: "/", HttpOnly: true})
		json.NewEncoder(w).Encode(map[string]any{
			"message": "Login successful",
			"data":    map[string]any{"id": "u1", "name": "A", "email": req["email"]},
			"token":   issue(),
		})
	})

	mux.HandleFunc("/refresh-token", func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("refreshToken")
		if err != nil || cookie.Value != "refresh-1" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]any{"message": "Refresh token missing"})
			return
		}
		f.refreshCount++
		json.NewEncoder(w).Encode(map[string]any{
			"message":     "Access token refreshed",
			"accessToken": issue(),
		})
	})

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth != "Bearer "+f.validToken || f.validToken == "" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]any{"message": "Invalid or expired access token"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"message": "user authenticated",
			"data":    map[string]any{"id": "u1", "name": "A", "email": "a@b.com"},
		})
	})

	mux.HandleFunc("/logout", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"message": "Logout successful"})
	})

	f.server = httptest.NewServer(mux)
	return f
}

func TestClientLogin(t *testing.T) {
	fake := newFakeAuthServer()
	defer fake.server.Close()
	c := client.New(fake.server.URL)
	ctx := context.Background()

	t.Run("stores the access token on success", func(t *testing.T) {
		profile, err := c.Login(ctx, "a@b.com", "secret123")
		if err != nil {
			t.Fatalf("Login failed: %v", err)
		}
		if profile == nil || profile.ID != "u1" {
			t.Errorf("Expected profile u1, got %+v", profile)
		}
		if c.AccessToken() == "" {
			t.Error("Expected a stored access token")
		}
	})

	t.Run("surfaces the server message on failure", func(t *testing.T) {
		_, err := c.Login(ctx, "a@b.com", "wrong")
		if err == nil || !strings.Contains(err.Error(), "Incorrect credentials.") {
			t.Errorf("Expected credentials error, got %v", err)
		}
	})
}

func TestClientStatusAndRefresh(t *testing.T) {
	fake := newFakeAuthServer()
	defer fake.server.Close()
	c := client.New(fake.server.URL)
	ctx := context.Background()

	if _, err := c.Login(ctx, "a@b.com", "secret123"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	profile, err := c.Status(ctx)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if profile == nil || profile.ID != "u1" {
		t.Errorf("Expected profile u1, got %+v", profile)
	}

	t.Run("refreshes and retries after a 401", func(t *testing.T) {
		// Invalidate the current token on the server side only.
		fake.validToken = "rotated-away"

		profile, err := c.Status(ctx)
		if err != nil {
			t.Fatalf("Expected the retry to succeed: %v", err)
		}
		if profile == nil {
			t.Fatal("Expected a profile after refresh")
		}
		if fake.refreshCount != 1 {
			t.Errorf("Expected exactly one refresh, got %d", fake.refreshCount)
		}
	})
}

func TestClientLogout(t *testing.T) {
	fake := newFakeAuthServer()
	defer fake.server.Close()
	c := client.New(fake.server.URL)
	ctx := context.Background()

	if _, err := c.Login(ctx, "a@b.com", "secret123"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if err := c.Logout(ctx); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if c.AccessToken() != "" {
		t.Error("Expected the access token to be dropped")
	}
}

func TestAuthTransport(t *testing.T) {
	var gotAuth string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	transport := &client.AuthTransport{TokenSource: func() string { return "tok-1" }}
	hc := &http.Client{Transport: transport}
	resp, err := hc.Get(backend.URL)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if gotAuth != "Bearer tok-1" {
		t.Errorf("Expected bearer header, got %q", gotAuth)
	}
}
