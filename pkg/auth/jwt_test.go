package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iosifidis/msc-pims/internal/model"
	"github.com/iosifidis/msc-pims/pkg/errors"
)

func signToken(t *testing.T, secret string, claims *Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestVerifyToken(t *testing.T) {
	const secret = "test-secret"
	v := NewVerifier(secret)
	practitionerID := uuid.New()

	signed := signToken(t, secret, &Claims{
		PractitionerID: practitionerID,
		Role:           model.RoleVet,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := v.VerifyToken(signed)
	require.NoError(t, err)
	assert.Equal(t, practitionerID, claims.PractitionerID)
	assert.Equal(t, model.RoleVet, claims.Role)
}

func TestVerifyTokenRejections(t *testing.T) {
	v := NewVerifier("test-secret")
	practitionerID := uuid.New()

	expired := signToken(t, "test-secret", &Claims{
		PractitionerID: practitionerID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	_, err := v.VerifyToken(expired)
	assert.True(t, errors.IsCode(err, errors.ErrUnauthorized))

	wrongKey := signToken(t, "other-secret", &Claims{
		PractitionerID: practitionerID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	_, err = v.VerifyToken(wrongKey)
	assert.True(t, errors.IsCode(err, errors.ErrUnauthorized))

	anonymous := signToken(t, "test-secret", &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	_, err = v.VerifyToken(anonymous)
	assert.True(t, errors.IsCode(err, errors.ErrUnauthorized))

	_, err = v.VerifyToken("not-a-token")
	assert.True(t, errors.IsCode(err, errors.ErrUnauthorized))
}
