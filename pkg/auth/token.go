package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// IssueDevToken mints a locally signed HS256 token for development and
// CLI use. The role claim is always "role".
func IssueDevToken(secret, sub, role string, ttl time.Duration) (string, error) {
	normalized := NormalizeRole(role)
	if !ValidRole(normalized) {
		return "", fmt.Errorf("unsupported role: %s", role)
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  sub,
		"role": normalized,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
