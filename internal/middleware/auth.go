package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/iosifidis/msc-pims/internal/model"
	"github.com/iosifidis/msc-pims/pkg/auth"
	"github.com/iosifidis/msc-pims/pkg/httputil"
)

const (
	ContextPractitionerID = "practitioner_id"
	ContextRole           = "role"
)

type AuthMiddleware struct {
	verifier *auth.Verifier
}

func NewAuthMiddleware(verifier *auth.Verifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// Authenticate verifies the bearer token and stores the practitioner
// identity in the request context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortUnauthorized(c, "invalid authorization format")
			return
		}

		claims, err := m.verifier.VerifyToken(parts[1])
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}

		c.Set(ContextPractitionerID, claims.PractitionerID)
		c.Set(ContextRole, claims.Role)
		c.Next()
	}
}

// RequireRole limits a route to the given roles. Runs after Authenticate.
func (m *AuthMiddleware) RequireRole(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := c.Get(ContextRole)
		if !ok {
			abortUnauthorized(c, "missing authentication")
			return
		}
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, httputil.Response{
			Success: false,
			Error: &httputil.Error{
				Code:    http.StatusForbidden,
				Message: "insufficient role",
			},
		})
	}
}

// PractitionerID extracts the authenticated practitioner from the context.
func PractitionerID(c *gin.Context) (uuid.UUID, error) {
	v, ok := c.Get(ContextPractitionerID)
	if !ok {
		return uuid.Nil, fmt.Errorf("no practitioner in context")
	}
	id, ok := v.(uuid.UUID)
	if !ok {
		return uuid.Nil, fmt.Errorf("unexpected practitioner ID type")
	}
	return id, nil
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, httputil.Response{
		Success: false,
		Error: &httputil.Error{
			Code:    http.StatusUnauthorized,
			Message: message,
		},
	})
}
