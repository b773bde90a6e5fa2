package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"shelfmate/backend/internal/models"
	"shelfmate/backend/internal/service"
	"shelfmate/backend/pkg/jwt"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret-0123456789"

const brokenUserID = 500

type fakeUsers map[uint]*models.User

func (f fakeUsers) Get(_ context.Context, id uint) (*models.User, error) {
	if id == brokenUserID {
		return nil, errors.New("connection reset by peer")
	}
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, service.ErrNotFound
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(users fakeUsers) *gin.Engine {
	r := gin.New()
	whoami := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": UserID(c)})
	}
	r.GET("/private", AuthMiddleware(secret, users, nil), whoami)
	r.GET("/admin", AuthMiddleware(secret, users, nil), AdminMiddleware(), whoami)
	r.GET("/public", OptionalAuthMiddleware(secret), whoami)
	return r
}

func token(t *testing.T, userID uint) string {
	t.Helper()
	tok, err := jwt.GenerateToken(userID, secret, time.Hour)
	require.NoError(t, err)
	return tok
}

func TestAuthMiddleware(t *testing.T) {
	users := fakeUsers{
		1: {ID: 1, Username: "alice", Role: models.RoleUser},
		2: {ID: 2, Username: "mallory", Role: models.RoleUser, Blocked: true},
		3: {ID: 3, Username: "root", Role: models.RoleAdmin},
	}
	r := newRouter(users)

	tests := []struct {
		name   string
		path   string
		setup  func(*http.Request)
		status int
	}{
		{"no token", "/private", func(*http.Request) {}, http.StatusUnauthorized},
		{"garbage bearer", "/private", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
		{"bearer", "/private", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token(t, 1)) }, http.StatusOK},
		{"cookie", "/private", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: CookieName, Value: token(t, 1)}) }, http.StatusOK},
		{"deleted user", "/private", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token(t, 99)) }, http.StatusUnauthorized},
		{"user lookup fails", "/private", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token(t, brokenUserID)) }, http.StatusInternalServerError},
		{"blocked user", "/private", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token(t, 2)) }, http.StatusForbidden},
		{"admin route as user", "/admin", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token(t, 1)) }, http.StatusForbidden},
		{"admin route as admin", "/admin", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token(t, 3)) }, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			tt.setup(req)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestOptionalAuthMiddleware(t *testing.T) {
	r := newRouter(fakeUsers{})

	req := httptest.NewRequest(http.MethodGet, "/public", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":0}`, w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/public", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, 7))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.JSONEq(t, `{"user_id":7}`, w.Body.String())
}
