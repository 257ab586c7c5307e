package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stagecast/internal/core/domain"
	"stagecast/internal/core/services"

	"github.com/gin-gonic/gin"
)

func authTestRouter(t *testing.T) (*gin.Engine, services.AuthService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	auth := services.NewAuthService("test-secret", time.Hour)

	router := gin.New()
	router.GET("/protected", AuthMiddleware(auth), func(c *gin.Context) {
		userID, _ := c.Get("user_id")
		c.JSON(http.StatusOK, gin.H{"user_id": userID})
	})
	router.GET("/optional", OptionalAuthMiddleware(auth), func(c *gin.Context) {
		_, authed := c.Get("user_id")
		c.JSON(http.StatusOK, gin.H{"authed": authed})
	})
	router.GET("/performer", AuthMiddleware(auth), PerformerOnlyMiddleware(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router, auth
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	router, _ := authTestRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", w.Code)
	}
}

func TestAuthMiddleware_MalformedHeader(t *testing.T) {
	router, _ := authTestRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Token abc")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", w.Code)
	}
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	router, _ := authTestRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	router, auth := authTestRouter(t)

	token, err := auth.GenerateToken(domain.UserID("user-1"), "bob", false)
	if err != nil {
		t.Fatalf("failed to mint token: %v", err)
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
}

func TestOptionalAuthMiddleware_AnonymousPasses(t *testing.T) {
	router, _ := authTestRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/optional", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200 for anonymous caller, got %d", w.Code)
	}
}

func TestPerformerOnlyMiddleware(t *testing.T) {
	router, auth := authTestRouter(t)

	memberToken, err := auth.GenerateToken(domain.UserID("user-1"), "bob", false)
	if err != nil {
		t.Fatalf("failed to mint token: %v", err)
	}
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/performer", nil)
	req.Header.Set("Authorization", "Bearer "+memberToken)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected status 403 for non-performer, got %d", w.Code)
	}

	performerToken, err := auth.GenerateToken(domain.UserID("alice"), "alice", true)
	if err != nil {
		t.Fatalf("failed to mint token: %v", err)
	}
	w2 := httptest.NewRecorder()
	req2, _ := http.NewRequest(http.MethodGet, "/performer", nil)
	req2.Header.Set("Authorization", "Bearer "+performerToken)
	router.ServeHTTP(w2, req2)
	if w2.Code != http.StatusOK {
		t.Fatalf("expected status 200 for performer, got %d", w2.Code)
	}
}
