package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims are the access-token claims issued by the central auth
// service. This service only validates tokens; it never issues them.
type JWTClaims struct {
	UserID   string `json:"user_id"`
	Role     string `json:"role"`
	FullName string `json:"full_name"`
	jwt.RegisteredClaims
}
