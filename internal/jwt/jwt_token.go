package jwt

import (
	"fmt"

	"github.com/golang-jwt/jwt"
)

func appendRoleChar(token string, role Role) string {
	switch role {
	case RoleAgent:
		return token + "1"
	}
	return token
}

func expectedRoleChar(role Role) string {
	switch role {
	case RoleAgent:
		return "1"
	}
	return ""
}

func CreateToken(secret string, role Role, claims Claims) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("signing secret is empty")
	}
	if claims.ExpiresAt == 0 {
		return "", fmt.Errorf("token expiry is required")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":    claims.AgentID,
		"email": claims.Email,
		"sid":   claims.SessionID,
		"exp":   claims.ExpiresAt,
	})
	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", err
	}

	return appendRoleChar(tokenString, role), nil
}

// ParseToken checks the role char, signature and expiry and returns the claims.
func ParseToken(tokenString, secret string, role Role) (Claims, error) {
	if len(tokenString) == 0 {
		return Claims{}, fmt.Errorf("token string is empty")
	}

	if tokenString[len(tokenString)-1:] != expectedRoleChar(role) {
		return Claims{}, fmt.Errorf("invalid role character in token")
	}
	tokenString = tokenString[:len(tokenString)-1]

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("unauthorized: %v", err)
	}
	if !token.Valid {
		return Claims{}, fmt.Errorf("token is not valid - unauthorized")
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, fmt.Errorf("claims of unauthorized type")
	}

	claims := Claims{}
	claims.AgentID, _ = mapClaims["id"].(string)
	claims.Email, _ = mapClaims["email"].(string)
	claims.SessionID, _ = mapClaims["sid"].(string)
	if exp, ok := mapClaims["exp"].(float64); ok {
		claims.ExpiresAt = int64(exp)
	}

	if claims.AgentID == "" || claims.SessionID == "" {
		return Claims{}, fmt.Errorf("token missing identifiers")
	}
	return claims, nil
}
