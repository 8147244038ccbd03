package auth

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// TokenClaims is the subset of access token claims the client reads.
// The client never verifies signatures; that is the server's job. The
// parse exists so the session layer can reason about expiry and the
// token's subject without a network round trip.
type TokenClaims struct {
	Subject   string
	UserID    string
	ExpiresAt *time.Time
	IssuedAt  *time.Time
}

// ParseTokenClaims decodes the access token payload without verifying
// the signature.
func ParseTokenClaims(token string) (*TokenClaims, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "malformed access token")
	}

	out := &TokenClaims{}

	if sub, err := claims.GetSubject(); err == nil {
		out.Subject = sub
	}
	if uid, ok := claims["user_id"]; ok {
		switch v := uid.(type) {
		case string:
			out.UserID = v
		case float64:
			out.UserID = strconv.FormatInt(int64(v), 10)
		}
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		t := exp.Time
		out.ExpiresAt = &t
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		t := iat.Time
		out.IssuedAt = &t
	}

	return out, nil
}

// Expired reports whether the token expiry has passed at the given
// time. Tokens without an exp claim never report expired.
func (c *TokenClaims) Expired(now time.Time) bool {
	if c == nil || c.ExpiresAt == nil {
		return false
	}
	return !now.Before(*c.ExpiresAt)
}

// TimeToExpiry returns the remaining lifetime at the given time, or
// zero when the token carries no expiry.
func (c *TokenClaims) TimeToExpiry(now time.Time) time.Duration {
	if c == nil || c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Sub(now)
}
