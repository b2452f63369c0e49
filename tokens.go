package authify

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token lifetimes. Access tokens are short-lived bearer
// credentials; refresh tokens live in an HttpOnly cookie for a week.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour

	// TTL of the confirmation token issued after a successful 2FA check.
	confirmationTokenTTL = time.Hour
)

// Claims is the identity payload carried by access and refresh tokens.
type Claims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
	ID    string `json:"id"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer creates and validates the signed access and refresh tokens.
// The two token classes are signed with distinct secrets so that
// compromise of one cannot forge the other. Issuance is stateless.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string

	// now is the clock used for both issuing and validating; tests
	// override it to probe expiry boundaries.
	now func() time.Time
}

// TokenIssuerOption customizes a TokenIssuer.
type TokenIssuerOption func(*TokenIssuer)

// WithAccessTTL overrides the access token lifetime.
func WithAccessTTL(d time.Duration) TokenIssuerOption {
	return func(t *TokenIssuer) { t.accessTTL = d }
}

// WithRefreshTTL overrides the refresh token lifetime.
func WithRefreshTTL(d time.Duration) TokenIssuerOption {
	return func(t *TokenIssuer) { t.refreshTTL = d }
}

// WithIssuer sets the iss claim.
func WithIssuer(issuer string) TokenIssuerOption {
	return func(t *TokenIssuer) { t.issuer = issuer }
}

// WithClock overrides the issuer's clock.
func WithClock(now func() time.Time) TokenIssuerOption {
	return func(t *TokenIssuer) { t.now = now }
}

// NewTokenIssuer builds an issuer from the two signing secrets. It fails
// fast when either secret is absent or when both are the same value, so a
// misconfigured process never starts handing out forgeable tokens.
func NewTokenIssuer(accessSecret, refreshSecret string, opts ...TokenIssuerOption) (*TokenIssuer, error) {
	if accessSecret == "" {
		return nil, errors.New("ACCESS_TOKEN_SECRET is not defined")
	}
	if refreshSecret == "" {
		return nil, errors.New("REFRESH_TOKEN_SECRET is not defined")
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("access and refresh token secrets must differ")
	}
	t := &TokenIssuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     DefaultAccessTokenTTL,
		refreshTTL:    DefaultRefreshTokenTTL,
		issuer:        "Authify",
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func (t *TokenIssuer) sign(u *User, secret []byte, ttl time.Duration) (string, error) {
	now := t.now()
	claims := &Claims{
		Name:  u.Name,
		Email: u.Email,
		Phone: u.Phone,
		ID:    u.ID,
		Role:  string(u.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// AccessToken issues a short-lived access token for u.
func (t *TokenIssuer) AccessToken(u *User) (string, error) {
	return t.sign(u, t.accessSecret, t.accessTTL)
}

// RefreshToken issues a long-lived refresh token for u.
func (t *TokenIssuer) RefreshToken(u *User) (string, error) {
	return t.sign(u, t.refreshSecret, t.refreshTTL)
}

// TokenPair issues both tokens at authentication time. Tokens are always
// minted as a pair; refreshing later mints a new access token only.
func (t *TokenIssuer) TokenPair(u *User) (access, refresh string, err error) {
	if access, err = t.AccessToken(u); err != nil {
		return "", "", err
	}
	if refresh, err = t.RefreshToken(u); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// RefreshTTL reports the refresh token lifetime, which also bounds the
// refresh cookie's Max-Age.
func (t *TokenIssuer) RefreshTTL() time.Duration {
	return t.refreshTTL
}

// ConfirmationToken issues the short-lived token returned after a
// successful 2FA verification.
func (t *TokenIssuer) ConfirmationToken(name string) (string, error) {
	now := t.now()
	claims := jwt.MapClaims{
		"name": name,
		"iss":  t.issuer,
		"iat":  now.Unix(),
		"exp":  now.Add(confirmationTokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.accessSecret)
}

func (t *TokenIssuer) verify(tokenString string, secret []byte, invalidMsg string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return t.now() }),
	)
	if err != nil || !token.Valid || claims.ID == "" {
		return nil, ErrUnauthorized(invalidMsg)
	}
	return claims, nil
}

// VerifyAccessToken validates signature and expiry of an access token.
func (t *TokenIssuer) VerifyAccessToken(tokenString string) (*Claims, error) {
	return t.verify(tokenString, t.accessSecret, "Invalid or expired access token")
}

// VerifyRefreshToken validates signature and expiry of a refresh token.
func (t *TokenIssuer) VerifyRefreshToken(tokenString string) (*Claims, error) {
	return t.verify(tokenString, t.refreshSecret, "Invalid or expired refresh token")
}
