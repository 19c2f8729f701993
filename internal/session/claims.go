package session

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the fields the API puts in its tokens.
type Claims struct {
	UserID int `json:"id"`
	jwt.RegisteredClaims
}

// ParseClaims decodes the token payload without verifying the signature;
// the server is the only party that can verify it.
func ParseClaims(token string) (*Claims, error) {
	var c Claims
	if _, _, err := jwt.NewParser().ParseUnverified(stripBearer(token), &c); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	return &c, nil
}
