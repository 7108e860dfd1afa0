package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	testKey    = "test-signing-key"
	testIssuer = "campustrack"
)

func TestIssueParseRoundtrip(t *testing.T) {
	tok, err := Issue("user-42", RoleAdmin, testIssuer, testKey, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if tok.Value == "" {
		t.Fatal("empty token")
	}
	claims, err := Parse(tok.Value, testKey, testIssuer)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "user-42" {
		t.Fatalf("subject: got %q", claims.Subject)
	}
	if claims.Role != RoleAdmin {
		t.Fatalf("role: got %q", claims.Role)
	}
}

func TestParseRejections(t *testing.T) {
	tok, err := Issue("user-42", RoleStudent, testIssuer, testKey, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	expired, err := Issue("user-42", RoleStudent, testIssuer, testKey, -time.Minute)
	if err != nil {
		t.Fatalf("issue expired: %v", err)
	}

	tests := []struct {
		name   string
		token  string
		key    string
		issuer string
	}{
		{name: "wrong key", token: tok.Value, key: "other-key", issuer: testIssuer},
		{name: "wrong issuer", token: tok.Value, key: testKey, issuer: "someone-else"},
		{name: "expired", token: expired.Value, key: testKey, issuer: testIssuer},
		{name: "garbage", token: "not.a.jwt", key: testKey, issuer: testIssuer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.token, tt.key, tt.issuer); err == nil {
				t.Fatal("expected parse error")
			}
		})
	}
}

func TestRequireAuthAndAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", RequireAuth(testKey, testIssuer), func(c *gin.Context) {
		claims, _ := FromContext(c)
		c.String(http.StatusOK, claims.Subject)
	})
	r.GET("/admin", RequireAuth(testKey, testIssuer), RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	adminTok, _ := Issue("admin-1", RoleAdmin, testIssuer, testKey, time.Hour)
	userTok, _ := Issue("user-1", RoleUser, testIssuer, testKey, time.Hour)

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{name: "no header", path: "/me", want: http.StatusUnauthorized},
		{name: "malformed header", path: "/me", header: "Token abc", want: http.StatusUnauthorized},
		{name: "valid token", path: "/me", header: "Bearer " + userTok.Value, want: http.StatusOK},
		{name: "user hits admin route", path: "/admin", header: "Bearer " + userTok.Value, want: http.StatusForbidden},
		{name: "admin hits admin route", path: "/admin", header: "Bearer " + adminTok.Value, want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Fatalf("status: got %d, want %d", w.Code, tt.want)
			}
		})
	}
}
