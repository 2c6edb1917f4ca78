package middleware

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/learnhub-dev/learnhub-api/internal/models"
)

type fakeRoleLookup struct {
	users map[string]*models.User
	err   error
}

func (f *fakeRoleLookup) FindByID(ctx context.Context, id string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	user, ok := f.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func runRBAC(t *testing.T, lookup *fakeRoleLookup, claims *models.JWTClaims, allowed ...models.UserRole) (*httptest.ResponseRecorder, *models.JWTClaims) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var seen *models.JWTClaims
	router := gin.New()
	router.GET("/guarded",
		func(c *gin.Context) {
			if claims != nil {
				c.Set(ContextUserKey, claims)
			}
			c.Next()
		},
		RBAC(lookup, allowed...),
		func(c *gin.Context) {
			value, _ := c.Get(ContextUserKey)
			seen, _ = value.(*models.JWTClaims)
			c.Status(http.StatusOK)
		},
	)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/guarded", nil))
	return rec, seen
}

func TestRBACMissingClaims(t *testing.T) {
	lookup := &fakeRoleLookup{users: map[string]*models.User{}}
	rec, _ := runRBAC(t, lookup, nil, models.RoleStudent)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRBACMissingProfileIsForbidden(t *testing.T) {
	lookup := &fakeRoleLookup{users: map[string]*models.User{}}
	claims := &models.JWTClaims{UserID: "ghost", Role: models.RoleAdmin}

	rec, _ := runRBAC(t, lookup, claims, models.RoleAdmin)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRBACStoredRoleIsAuthoritative(t *testing.T) {
	lookup := &fakeRoleLookup{users: map[string]*models.User{
		"user-1": {ID: "user-1", Role: models.RoleStudent, Active: true},
	}}
	claims := &models.JWTClaims{UserID: "user-1", Role: models.RoleAdmin}

	rec, _ := runRBAC(t, lookup, claims, models.RoleAdmin)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRBACOverwritesClaimRole(t *testing.T) {
	lookup := &fakeRoleLookup{users: map[string]*models.User{
		"user-1": {ID: "user-1", Role: models.RoleInstructor, Active: true},
	}}
	claims := &models.JWTClaims{UserID: "user-1", Role: models.RoleStudent}

	rec, seen := runRBAC(t, lookup, claims, models.RoleInstructor)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, seen)
	assert.Equal(t, models.RoleInstructor, seen.Role)
}

func TestRBACInactiveAccount(t *testing.T) {
	lookup := &fakeRoleLookup{users: map[string]*models.User{
		"user-1": {ID: "user-1", Role: models.RoleAdmin, Active: false},
	}}
	claims := &models.JWTClaims{UserID: "user-1", Role: models.RoleAdmin}

	rec, _ := runRBAC(t, lookup, claims, models.RoleAdmin)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRBACLookupFailure(t *testing.T) {
	lookup := &fakeRoleLookup{err: errors.New("connection reset")}
	claims := &models.JWTClaims{UserID: "user-1", Role: models.RoleAdmin}

	rec, _ := runRBAC(t, lookup, claims, models.RoleAdmin)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
