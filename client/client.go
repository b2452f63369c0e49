// Package client is a Go client for an Authify server. It keeps the
// refresh-token cookie in a jar, remembers the latest access token and
// retries a 401 once after refreshing, so callers can mostly ignore token
// lifetimes.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/authify-dev/authify"
)

// Client talks to the auth endpoints mounted at BaseURL, e.g.
// http://localhost:3000/api/auth.
type Client struct {
	BaseURL string

	mu          sync.Mutex
	accessToken string
	httpClient  *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client. A cookie jar is
// attached if the client has none, since the refresh flow needs one.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func New(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient.Jar == nil {
		jar, _ := cookiejar.New(nil)
		c.httpClient.Jar = jar
	}
	return c
}

// AccessToken returns the most recently issued access token, if any.
func (c *Client) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

func (c *Client) setAccessToken(token string) {
	c.mu.Lock()
	c.accessToken = token
	c.mu.Unlock()
}

// authResponse is the common response envelope.
type authResponse struct {
	Message     string           `json:"message"`
	Data        *authify.Profile `json:"data"`
	Token       string           `json:"token"`
	AccessToken string           `json:"accessToken"`
	Email       string           `json:"email"`
	Verified    bool             `json:"verified"`
	Error       string           `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body any, authed bool) (*authResponse, error) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if authed {
		if token := c.AccessToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// One refresh-and-retry on an expired access token.
	if authed && resp.StatusCode == http.StatusUnauthorized {
		if refreshErr := c.Refresh(ctx); refreshErr == nil {
			return c.retry(ctx, method, path, body)
		}
	}

	return decodeResponse(resp)
}

func (c *Client) retry(ctx context.Context, method, path string, body any) (*authResponse, error) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.AccessToken())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return decodeResponse(resp)
}

func decodeResponse(resp *http.Response) (*authResponse, error) {
	var out authResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("invalid response from server: %w", err)
	}
	if resp.StatusCode >= 400 {
		msg := out.Error
		if msg == "" {
			msg = out.Message
		}
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		return &out, fmt.Errorf("request failed: %s", msg)
	}
	return &out, nil
}

// Signup registers a new account and stores the issued access token.
func (c *Client) Signup(ctx context.Context, name, email, password, phone string) (*authify.Profile, error) {
	resp, err := c.do(ctx, http.MethodPost, "/signup", map[string]string{
		"name": name, "email": email, "password": password, "phone": phone,
	}, false)
	if err != nil {
		return nil, err
	}
	c.setAccessToken(resp.Token)
	return resp.Data, nil
}

// Login authenticates and stores the issued access token. The refresh
// cookie lands in the jar as a side effect.
func (c *Client) Login(ctx context.Context, email, password string) (*authify.Profile, error) {
	resp, err := c.do(ctx, http.MethodPost, "/login", map[string]string{
		"email": email, "password": password,
	}, false)
	if err != nil {
		return nil, err
	}
	c.setAccessToken(resp.Token)
	return resp.Data, nil
}

// Status reports the authenticated profile, or nil when anonymous.
func (c *Client) Status(ctx context.Context) (*authify.Profile, error) {
	resp, err := c.do(ctx, http.MethodGet, "/status", nil, true)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Refresh exchanges the jarred refresh cookie for a new access token.
func (c *Client) Refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/refresh-token", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	out, err := decodeResponse(resp)
	if err != nil {
		return err
	}
	c.setAccessToken(out.AccessToken)
	return nil
}

// Logout ends the session and drops the local access token.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/logout", nil, false)
	c.setAccessToken("")
	return err
}

// ForgotPassword starts the reset flow for an email.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	_, err := c.do(ctx, http.MethodPost, "/forgot-password", map[string]string{"email": email}, false)
	return err
}

// VerifyResetOTP checks a reset code without consuming it.
func (c *Client) VerifyResetOTP(ctx context.Context, email, otp string) (bool, error) {
	resp, err := c.do(ctx, http.MethodPost, "/verify-reset-otp", map[string]string{
		"email": email, "otp": otp,
	}, false)
	if err != nil {
		return false, err
	}
	return resp.Verified, nil
}

// ResetPassword completes the reset flow.
func (c *Client) ResetPassword(ctx context.Context, email, otp, newPassword, confirmNewPassword string) error {
	_, err := c.do(ctx, http.MethodPost, "/reset-password", map[string]string{
		"email":              email,
		"otp":                otp,
		"newPassword":        newPassword,
		"confirmNewPassword": confirmNewPassword,
	}, false)
	return err
}

// UpdatePassword changes the password of the authenticated user.
func (c *Client) UpdatePassword(ctx context.Context, currentPassword, newPassword, confirmNewPassword string) error {
	_, err := c.do(ctx, http.MethodPost, "/update-password", map[string]string{
		"currentPassword":    currentPassword,
		"newPassword":        newPassword,
		"confirmNewPassword": confirmNewPassword,
	}, true)
	return err
}
