package middleware

import (
	"context"
	"database/sql"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/learnhub-dev/learnhub-api/internal/models"
	appErrors "github.com/learnhub-dev/learnhub-api/pkg/errors"
	"github.com/learnhub-dev/learnhub-api/pkg/response"
)

// RoleLookup resolves the stored profile for an authenticated subject. The
// stored role is authoritative; the token's role claim is only a hint.
type RoleLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// RBAC enforces role-based access control. It must run after JWT: a request
// without claims is rejected as unauthenticated, while a subject whose
// profile is missing or whose stored role is not in the allow set gets 403.
func RBAC(users RoleLookup, allowed ...models.UserRole) gin.HandlerFunc {
	allowedRoles := make(map[models.UserRole]struct{}, len(allowed))
	for _, role := range allowed {
		allowedRoles[role] = struct{}{}
	}

	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		user, err := users.FindByID(c.Request.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "no profile for subject"))
			} else {
				response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile"))
			}
			c.Abort()
			return
		}
		if !user.Active {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "account is inactive"))
			c.Abort()
			return
		}

		if _, ok := allowedRoles[user.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}

		claims.Role = user.Role
		c.Next()
	}
}
