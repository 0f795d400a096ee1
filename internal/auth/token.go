// Package auth issues and verifies client-scoped access tokens and hashes
// passwords.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL is how long a token stays valid when no TTL is configured.
const DefaultTTL = 7 * 24 * time.Hour

var (
	// ErrTokenExpired is returned by Parse for a well-signed token whose
	// exp claim is in the past.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid covers every other rejection: bad signature, wrong
	// algorithm, malformed token, missing claims.
	ErrTokenInvalid = errors.New("invalid token")
)

// Claims is the payload of an access token.  ClientID binds the token to
// the client whose secret signed it.
type Claims struct {
	UserID   string `json:"userId"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	ClientID string `json:"clientId"`
	jwt.RegisteredClaims
}

// Subject is what a token is issued for.
type Subject struct {
	UserID string
	Email  string
	Role   string
}

// AccessToken is a signed token along with its expiry.
type AccessToken struct {
	Token string
	Exp   time.Time
}

// Issue signs an HS256 token for sub on behalf of clientID.
func Issue(secret, clientID string, sub Subject, ttl time.Duration) (AccessToken, error) {
	if secret == "" {
		return AccessToken{}, errors.New("empty signing secret")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := Claims{
		UserID:   sub.UserID,
		Email:    sub.Email,
		Role:     sub.Role,
		ClientID: clientID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// Parse verifies raw against secret.  Only HMAC-signed tokens are accepted.
func Parse(secret, raw string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !tok.Valid || claims.UserID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
