package router

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/storefront-next/internal/authz"
	"github.com/storefront-next/internal/constants"
	"github.com/storefront-next/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

func TestResolveAllowedOrigin(t *testing.T) {
	got := resolveAllowedOrigin("https://example.com", []string{"*"}, false)
	if got != "*" {
		t.Fatalf("wildcard without credentials should return *, got %s", got)
	}

	got = resolveAllowedOrigin("https://example.com", []string{"*"}, true)
	if got != "https://example.com" {
		t.Fatalf("wildcard with credentials should echo origin, got %s", got)
	}

	got = resolveAllowedOrigin("https://a.example.com", []string{"https://a.example.com", "https://b.example.com"}, false)
	if got != "https://a.example.com" {
		t.Fatalf("allow-list should return matched origin, got %s", got)
	}

	got = resolveAllowedOrigin("https://x.example.com", []string{"https://a.example.com"}, false)
	if got != "" {
		t.Fatalf("unmatched origin should be empty, got %s", got)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"request_id": getRequestID(c)})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(requestIDHeader, "req-123")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d", w.Code)
	}
	if w.Header().Get(requestIDHeader) != "req-123" {
		t.Fatalf("response request id want req-123 got %s", w.Header().Get(requestIDHeader))
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	if resp["request_id"] != "req-123" {
		t.Fatalf("context request id want req-123 got %s", resp["request_id"])
	}

	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/ping", nil)
	r.ServeHTTP(w2, req2)
	generated := w2.Header().Get(requestIDHeader)
	if generated == "" {
		t.Fatalf("generated request id should not be empty")
	}
	if resp := strings.TrimSpace(generated); resp == "" {
		t.Fatalf("generated request id should not be blank")
	}
}

func TestUserJWTAuthMiddlewareRejectsMissingCredentials(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name   string
		secret string
		header string
	}{
		{name: "missing secret", secret: "", header: "Bearer abc"},
		{name: "missing header", secret: "secret", header: ""},
		{name: "malformed header", secret: "secret", header: "Token abc"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.Use(UserJWTAuthMiddleware(tc.secret, nil, nil))
			r.GET("/users/me", func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{"ok": true})
			})

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			r.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status want 401 got %d", w.Code)
			}
			var resp struct {
				StatusCode int `json:"status_code"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("unmarshal response failed: %v", err)
			}
			if resp.StatusCode != 401 {
				t.Fatalf("status_code want 401 got %d", resp.StatusCode)
			}
		})
	}
}

func setupMiddlewareAuthz(t *testing.T) *authz.Service {
	t.Helper()
	dsn := fmt.Sprintf("file:middleware_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	svc, err := authz.NewService(db)
	if err != nil {
		t.Fatalf("new authz service failed: %v", err)
	}
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap roles failed: %v", err)
	}
	return svc
}

func withUser(userID uint) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(userIDContextKey, userID)
		c.Next()
	}
}

func TestOwnerOrAdminMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := setupMiddlewareAuthz(t)
	if err := svc.SetUserRoles(1, []string{constants.RoleAdmin}); err != nil {
		t.Fatalf("set admin role failed: %v", err)
	}

	serve := func(userID uint, path string) int {
		r := gin.New()
		r.GET("/cart/:userId", withUser(userID), OwnerOrAdminMiddleware(svc, "userId"), func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"ok": true})
		})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w.Code
	}

	if code := serve(2, "/cart/2"); code != http.StatusOK {
		t.Fatalf("owner want 200 got %d", code)
	}
	if code := serve(2, "/cart/3"); code != http.StatusForbidden {
		t.Fatalf("other user want 403 got %d", code)
	}
	if code := serve(1, "/cart/3"); code != http.StatusOK {
		t.Fatalf("admin want 200 got %d", code)
	}
	if code := serve(2, "/cart/abc"); code != http.StatusBadRequest {
		t.Fatalf("bad param want 400 got %d", code)
	}
}

func TestAdminRBACMiddlewareRequiresUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := setupMiddlewareAuthz(t)

	r := gin.New()
	r.GET("/users", AdminRBACMiddleware(svc), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous want 401 got %d", w.Code)
	}

	r2 := gin.New()
	r2.GET("/users", withUser(5), AdminRBACMiddleware(svc), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	w2 := httptest.NewRecorder()
	r2.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/users", nil))
	if w2.Code != http.StatusForbidden {
		t.Fatalf("non-admin want 403 got %d", w2.Code)
	}
}

func TestMetricsMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()

	r := gin.New()
	r.Use(MetricsMiddleware(metrics.New(reg)))
	r.GET("/products/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	for _, path := range []string{"/products/1", "/products/2", "/missing"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	counts := map[string]float64{}
	for _, family := range families {
		if family.GetName() != "storefront_http_requests_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "route" {
					counts[label.GetValue()] += metric.GetCounter().GetValue()
				}
			}
		}
	}
	if counts["/products/:id"] != 2 {
		t.Fatalf("route template count want 2 got %v", counts)
	}
	if counts["unmatched"] != 1 {
		t.Fatalf("unmatched count want 1 got %v", counts)
	}

	// nil recorder 不影响请求
	r2 := gin.New()
	r2.Use(MetricsMiddleware(nil))
	r2.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	w := httptest.NewRecorder()
	r2.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("status want 204 got %d", w.Code)
	}
}
