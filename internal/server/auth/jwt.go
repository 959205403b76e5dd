// Package auth issues and verifies the signed session tokens carried in the
// auth-token cookie.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultValidity is how long an issued session token stays valid.
const DefaultValidity = 7 * 24 * time.Hour

var ErrEmptySecret = errors.New("signing secret is empty")

// Claims carries the account identity inside a session token.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

// Codec signs and verifies HS256 session tokens with one secret.
// Rotating the secret invalidates every outstanding token.
type Codec struct {
	secret   []byte
	validity time.Duration
	now      func() time.Time
}

// NewCodec returns a Codec. A non-positive validity means DefaultValidity.
func NewCodec(secret []byte, validity time.Duration) (*Codec, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	if validity <= 0 {
		validity = DefaultValidity
	}
	return &Codec{secret: secret, validity: validity, now: time.Now}, nil
}

// Issue returns a token for the account that expires after the codec's validity.
func (c *Codec) Issue(accountID, email string) (string, error) {
	now := c.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.validity)),
		},
		UserID: accountID,
		Email:  email,
	})

	tokenString, err := token.SignedString(c.secret)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// Verify returns the claims of a well-formed, correctly signed and unexpired
// token. Any failure is reported as false without detail.
func (c *Codec) Verify(tokenString string) (Claims, bool) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !token.Valid || claims.UserID == "" {
		return Claims{}, false
	}

	return *claims, true
}
