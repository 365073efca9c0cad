package auth

import (
	"fmt"
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleLeitor   Role = "leitor"
	RoleOperador Role = "operador"
)

func (r Role) Valid() bool {
	return slices.Contains([]Role{RoleAdmin, RoleLeitor, RoleOperador}, r)
}

// Claims is the identity carried in the bearer token issued by the user API.
type Claims struct {
	UserID int    `json:"id"`
	Nome   string `json:"nome"`
	Papel  Role   `json:"papel"`
	jwt.RegisteredClaims
}

// Decode reads the token payload without checking its signature or expiry.
// Integrity is the issuing server's responsibility; this only extracts the
// identity for routing decisions.
func Decode(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return claims, nil
}
