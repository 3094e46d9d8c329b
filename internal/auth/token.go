// Package auth issues and verifies the signed identity tokens that
// authenticate API requests.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is the lifetime of every issued token.
const DefaultTokenTTL = time.Hour

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the token payload: the principal's user id plus the
// registered iat/exp claims.
type Claims struct {
	User ClaimsUser `json:"user"`
	jwt.RegisteredClaims
}

type ClaimsUser struct {
	ID string `json:"id"`
}

// Codec signs and verifies tokens with a process-wide HMAC secret.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewCodec constructs a Codec. The secret must not be empty.
func NewCodec(secret string) (*Codec, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("token secret is required")
	}
	return &Codec{
		secret: []byte(secret),
		ttl:    DefaultTokenTTL,
		now:    time.Now,
	}, nil
}

// Issue returns a signed token for userID that expires after DefaultTokenTTL.
func (c *Codec) Issue(userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", errors.New("user id is required")
	}
	now := c.now()
	claims := Claims{
		User: ClaimsUser{ID: userID},
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Verify checks the signature and expiry of tokenString and returns the
// principal's user id. All failures wrap ErrInvalidToken.
func (c *Codec) Verify(tokenString string) (string, error) {
	claims := Claims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return c.secret, nil
	},
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return "", ErrInvalidToken
	}
	if strings.TrimSpace(claims.User.ID) == "" {
		return "", fmt.Errorf("%w: missing user id", ErrInvalidToken)
	}
	return claims.User.ID, nil
}
