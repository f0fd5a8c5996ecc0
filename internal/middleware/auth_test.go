package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monsweeper-backend/internal/config"
	"monsweeper-backend/internal/middleware"
	"monsweeper-backend/internal/services"
)

func newRouter(jwtService *services.JWTService, store services.Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware(jwtService, store), middleware.RateLimitMiddleware(store))
	api.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetInt64(middleware.ContextUserID)})
	})
	api.POST("/games/reveal", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	jwtService := services.NewJWTService(&config.Config{JWTSecret: "k", JWTTTL: time.Hour})
	store := services.NewMemoryStore()
	r := newRouter(jwtService, store)

	token, session, err := jwtService.GenerateToken(77)
	require.NoError(t, err)

	cases := []struct {
		name   string
		target string
		header string
		want   int
	}{
		{"missing", "/api/me", "", http.StatusUnauthorized},
		{"bad format", "/api/me", "Token " + token, http.StatusUnauthorized},
		{"garbage", "/api/me", "Bearer nope", http.StatusUnauthorized},
		{"bearer", "/api/me", "Bearer " + token, http.StatusOK},
		{"query", "/api/me?token=" + token, "", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.target, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}

	require.NoError(t, store.RevokeSession(context.Background(), session.SessionID, time.Hour))
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	jwtService := services.NewJWTService(&config.Config{JWTSecret: "k", JWTTTL: time.Hour})
	r := newRouter(jwtService, services.NewMemoryStore())
	token, _, err := jwtService.GenerateToken(5)
	require.NoError(t, err)

	codes := map[int]int{}
	for i := 0; i < services.DefaultRateLimitReveal+1; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/games/reveal", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		codes[w.Code]++
	}
	assert.Equal(t, services.DefaultRateLimitReveal, codes[http.StatusOK])
	assert.Equal(t, 1, codes[http.StatusTooManyRequests])
}
