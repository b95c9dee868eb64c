package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/abduss/filedrive/internal/config"
)

func testConfig() config.AuthConfig {
	return config.AuthConfig{
		AccessTokenSecret: "access-secret",
		AccessTokenTTL:    time.Minute,
	}
}

func TestIssuedTokenValidates(t *testing.T) {
	service := NewService(testConfig())
	userID := uuid.New()

	token, expiresAt, err := service.IssueAccessToken(userID, "user@example.com", true)
	if err != nil {
		t.Fatalf("IssueAccessToken returned error: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatalf("expected expiry in the future, got %v", expiresAt)
	}

	claims, err := service.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("ValidateAccessToken returned error: %v", err)
	}
	if claims.UserID != userID || claims.Email != "user@example.com" || !claims.IsAdmin {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	service := NewService(testConfig())
	service.nowFunc = func() time.Time { return time.Now().Add(-time.Hour) }

	token, _, err := service.IssueAccessToken(uuid.New(), "user@example.com", false)
	if err != nil {
		t.Fatalf("IssueAccessToken returned error: %v", err)
	}

	service.nowFunc = time.Now
	if _, err := service.ValidateAccessToken(token); err != ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	issuer := NewService(config.AuthConfig{AccessTokenSecret: "other", AccessTokenTTL: time.Minute})
	token, _, err := issuer.IssueAccessToken(uuid.New(), "user@example.com", false)
	if err != nil {
		t.Fatalf("IssueAccessToken returned error: %v", err)
	}

	if _, err := NewService(testConfig()).ValidateAccessToken(token); err != ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestValidateRejectsNonUUIDSubject(t *testing.T) {
	cfg := testConfig()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "not-a-uuid",
		"exp": time.Now().Add(time.Minute).Unix(),
	})
	signed, err := token.SignedString([]byte(cfg.AccessTokenSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := NewService(cfg).ValidateAccessToken(signed); err != ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := NewService(testConfig())
	userID := uuid.New()
	token, _, err := service.IssueAccessToken(userID, "user@example.com", false)
	if err != nil {
		t.Fatalf("IssueAccessToken returned error: %v", err)
	}

	router := gin.New()
	router.GET("/me", AuthMiddleware(service), func(c *gin.Context) {
		id, user, ok := RequireUser(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id.String(), "admin": user.IsAdmin})
	})

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer abc.def.ghi", http.StatusUnauthorized},
		{"valid token", "Bearer " + token, http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != tc.status {
				t.Fatalf("expected status %d, got %d (%s)", tc.status, rr.Code, rr.Body.String())
			}
		})
	}
}
