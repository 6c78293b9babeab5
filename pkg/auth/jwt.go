// Package auth verifies the bearer tokens issued by the practice's identity
// service. Token issuance lives there; this side only validates.
package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/iosifidis/msc-pims/internal/model"
	"github.com/iosifidis/msc-pims/pkg/errors"
)

// Claims carries the authenticated practitioner identity.
type Claims struct {
	PractitionerID uuid.UUID  `json:"practitioner_id"`
	Role           model.Role `json:"role"`
	jwt.RegisteredClaims
}

type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// VerifyToken parses and validates a signed token, rejecting anything not
// signed with HMAC.
func (v *Verifier) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, errors.Unauthorized(err)
	}
	if !token.Valid {
		return nil, errors.Unauthorized(fmt.Errorf("invalid token"))
	}
	if claims.PractitionerID == uuid.Nil {
		return nil, errors.Unauthorized(fmt.Errorf("token missing practitioner identity"))
	}
	return claims, nil
}
