package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Authenticator interface {
	GenerateToken(subject, role string, ttl time.Duration) (string, error)
	ValidateToken(token string) (*Claims, error)
}

// Claims are the fields the payments API reads from an access token.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}
