package session

import (
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// ErrNoCredential is returned when there is no token to decode.
var ErrNoCredential = errors.New("session: no credential")

// Claims are the display fields of the access token.
type Claims struct {
	Subject   string
	Name      string
	Email     string
	ExpiresAt time.Time // zero when the token carries no exp
}

// ParseClaims decodes a JWT without verifying its signature. The backend
// verifies; the client only needs the fields for the status bar and to warn
// before the session lapses.
func ParseClaims(token string) (Claims, error) {
	if token == "" {
		return Claims{}, ErrNoCredential
	}

	tok, _, err := gojwt.NewParser().ParseUnverified(token, gojwt.MapClaims{})
	if err != nil {
		return Claims{}, fmt.Errorf("parse token: %w", err)
	}
	mc, ok := tok.Claims.(gojwt.MapClaims)
	if !ok {
		return Claims{}, fmt.Errorf("parse token: unexpected claims type %T", tok.Claims)
	}

	var c Claims
	c.Subject, _ = mc.GetSubject()
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	c.Name, _ = mc["name"].(string)
	c.Email, _ = mc["email"].(string)
	if c.Name == "" {
		c.Name = c.Email
	}
	if c.Name == "" {
		c.Name = c.Subject
	}
	return c, nil
}

// Expired reports whether the token has an expiry at or before now.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}
