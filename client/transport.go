package client

import "net/http"

// AuthTransport wraps an http.RoundTripper to add an Authorization header
// from a token source on every request. TokenSource is usually
// (*Client).AccessToken, so a wrapped transport tracks refreshes.
type AuthTransport struct {
	Base        http.RoundTripper
	TokenSource func() string
}

func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.TokenSource != nil {
		if token := t.TokenSource(); token != "" {
			req2 := req.Clone(req.Context())
			req2.Header.Set("Authorization", "Bearer "+token)
			req = req2
		}
	}
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

// NewAuthTransport builds a transport bound to a client's current token.
func NewAuthTransport(c *Client) *AuthTransport {
	return &AuthTransport{Base: http.DefaultTransport, TokenSource: c.AccessToken}
}
