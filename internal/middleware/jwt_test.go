package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub-dev/learnhub-api/internal/models"
	"github.com/learnhub-dev/learnhub-api/internal/service"
)

const testSecret = "middleware-test-secret"

func testAuthService(secret string) *service.AuthService {
	return service.NewAuthService(nil, nil, nil, service.AuthConfig{
		AccessTokenSecret:  secret,
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "learnhub-test",
	})
}

func mintToken(t *testing.T, secret string, expiry time.Duration) string {
	t.Helper()
	now := time.Now().UTC()
	claims := &models.JWTClaims{
		UserID: "user-1",
		Role:   models.RoleStudent,
		Email:  "student@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "learnhub-test",
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func runJWT(t *testing.T, authHeader string) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reached := false
	router := gin.New()
	router.GET("/protected", JWT(testAuthService(testSecret)), func(c *gin.Context) {
		reached = true
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec, reached
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

func TestJWTMissingHeader(t *testing.T) {
	rec, reached := runJWT(t, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, rec))
	assert.False(t, reached)
}

func TestJWTMalformedHeader(t *testing.T) {
	rec, reached := runJWT(t, "Token abc123")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, reached)
}

func TestJWTValidToken(t *testing.T) {
	rec, reached := runJWT(t, "Bearer "+mintToken(t, testSecret, time.Hour))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, reached)
}

func TestJWTExpiredToken(t *testing.T) {
	rec, reached := runJWT(t, "Bearer "+mintToken(t, testSecret, -time.Minute))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "CREDENTIAL_EXPIRED", errorCode(t, rec))
	assert.False(t, reached)
}

func TestJWTTamperedToken(t *testing.T) {
	rec, reached := runJWT(t, "Bearer "+mintToken(t, "another-secret", time.Hour))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_CREDENTIAL", errorCode(t, rec))
	assert.False(t, reached)
}

func TestOptionalJWTWithoutHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var hadClaims bool
	router := gin.New()
	router.GET("/open", OptionalJWT(testAuthService(testSecret)), func(c *gin.Context) {
		_, hadClaims = c.Get(ContextUserKey)
		c.Status(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/open", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, hadClaims)
}
