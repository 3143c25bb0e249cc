package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid session token")

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies the opaque token handed to the client.
// The token names a session id (jti) and is worthless once the entry is gone.
type Tokens struct {
	secret []byte
	issuer string
}

func NewTokens(secret string) (*Tokens, error) {
	if len(secret) < 8 {
		return nil, errors.New("session secret must be at least 8 characters")
	}
	return &Tokens{secret: []byte(secret), issuer: "medcol"}, nil
}

func (t *Tokens) Issue(sessionID, subject, role string, expiresAt time.Time) (string, error) {
	c := claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Subject:   subject,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Parse returns the session id carried by token.
func (t *Tokens) Parse(token string) (string, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(tok *jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid || c.ID == "" {
		return "", ErrInvalidToken
	}
	return c.ID, nil
}
