package conversation

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
)

const defaultVisitorTokenTTL = 7 * 24 * time.Hour

type visitorTokenClaims struct {
	ConversationID string
	VisitorID      string
	IssuedAt       int64
	ExpiresAt      int64
}

// signedVisitorClaims is the JWT payload of a visitor token.
type signedVisitorClaims struct {
	ConversationID string `json:"cid"`
	VisitorID      string `json:"vid"`
	jwt.StandardClaims
}

func (s *Service) signVisitorToken(claims visitorTokenClaims) (string, error) {
	if len(s.secret) == 0 {
		return "", errors.New("visitor token secret not configured")
	}
	if claims.ExpiresAt == 0 {
		return "", errors.New("visitor token expiry is required")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, signedVisitorClaims{
		ConversationID: claims.ConversationID,
		VisitorID:      claims.VisitorID,
		StandardClaims: jwt.StandardClaims{
			Subject:   claims.VisitorID,
			IssuedAt:  claims.IssuedAt,
			ExpiresAt: claims.ExpiresAt,
		},
	})
	return token.SignedString(s.secret)
}

// verifyVisitorToken checks the signature with the visitor secret and the
// expiry against the service clock.
func (s *Service) verifyVisitorToken(tokenString string) (visitorTokenClaims, error) {
	if len(s.secret) == 0 {
		return visitorTokenClaims{}, errors.New("visitor token secret not configured")
	}

	parser := &jwt.Parser{
		ValidMethods:         []string{jwt.SigningMethodHS256.Alg()},
		SkipClaimsValidation: true,
	}
	var parsed signedVisitorClaims
	if _, err := parser.ParseWithClaims(tokenString, &parsed, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}); err != nil {
		return visitorTokenClaims{}, fmt.Errorf("parse visitor token: %w", err)
	}

	if !parsed.VerifyExpiresAt(s.now().UTC().Unix(), true) {
		return visitorTokenClaims{}, errors.New("token expired")
	}
	if parsed.ConversationID == "" || parsed.VisitorID == "" {
		return visitorTokenClaims{}, errors.New("token missing identifiers")
	}

	return visitorTokenClaims{
		ConversationID: parsed.ConversationID,
		VisitorID:      parsed.VisitorID,
		IssuedAt:       parsed.IssuedAt,
		ExpiresAt:      parsed.ExpiresAt,
	}, nil
}
