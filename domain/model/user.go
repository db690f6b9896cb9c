package model

import "github.com/golang-jwt/jwt"

// UserClaims is the JWT payload issued by the account service. The subject (or,
// for older tokens, the issuer) carries the user id.
type UserClaims struct {
	jwt.StandardClaims
	UserName string `json:"user_name,omitempty"`
}

func (c UserClaims) UserID() string {
	if c.Subject != "" {
		return c.Subject
	}
	return c.Issuer
}
