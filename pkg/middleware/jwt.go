package middleware

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var errMissingSubject = errors.New("token has no user_id or sub claim")

// HMACValidator returns a TokenValidator for HS256/HS384/HS512 tokens signed
// with secret. The user ID is read from user_id, falling back to sub.
func HMACValidator(secret []byte) TokenValidator {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
	)

	return func(tokenStr string) (*Claims, error) {
		mc := jwt.MapClaims{}
		if _, err := parser.ParseWithClaims(tokenStr, mc, func(*jwt.Token) (any, error) {
			return secret, nil
		}); err != nil {
			return nil, fmt.Errorf("parse token: %w", err)
		}

		claims := &Claims{
			UserID: stringClaim(mc, "user_id"),
			Email:  stringClaim(mc, "email"),
			Role:   stringClaim(mc, "role"),
		}
		if claims.UserID == "" {
			sub, err := mc.GetSubject()
			if err != nil || sub == "" {
				return nil, errMissingSubject
			}
			claims.UserID = sub
		}
		return claims, nil
	}
}

func stringClaim(mc jwt.MapClaims, key string) string {
	if v, ok := mc[key].(string); ok {
		return v
	}
	return ""
}
