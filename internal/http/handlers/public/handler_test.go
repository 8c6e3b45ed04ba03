package public

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/storefront-next/internal/config"
	"github.com/storefront-next/internal/models"
	"github.com/storefront-next/internal/provider"
	"github.com/storefront-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type envelope struct {
	StatusCode int             `json:"status_code"`
	Msg        string          `json:"msg"`
	Data       json.RawMessage `json:"data"`
}

func newPublicTestHandler(t *testing.T) *Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dsn := fmt.Sprintf("file:public_handler_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	cfg := &config.Config{
		UserJWT:  config.JWTConfig{SecretKey: "public-handler-secret"},
		Order:    config.OrderConfig{Currency: "gbp", DefaultShippingCost: 5, PaymentExpireMinutes: 30},
		Security: config.SecurityConfig{PasswordPolicy: config.PasswordPolicyConfig{MinLength: 8}},
	}
	container, err := provider.NewContainer(cfg, db)
	if err != nil {
		t.Fatalf("new container failed: %v", err)
	}
	t.Cleanup(func() { _ = container.Close() })
	return New(container)
}

func serveJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body failed: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var resp envelope
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v body=%s", err, w.Body.String())
	}
	return w, resp
}

func TestCatalogHandlers(t *testing.T) {
	h := newPublicTestHandler(t)
	if _, err := h.CatalogService.CreateProduct(t.Context(), service.CreateProductInput{
		Name:        "Canvas Tote",
		Description: "Heavy canvas bag",
		Category:    "Bags",
		Brand:       "Harbour",
		Variants:    []service.VariantInput{{Price: json.Number("24.00"), StockQuantity: 4}},
	}); err != nil {
		t.Fatalf("create product failed: %v", err)
	}

	r := gin.New()
	r.GET("/products", h.ListProducts)
	r.GET("/products/search", h.SearchProducts)
	r.GET("/products/category/:name", h.ListProductsByCategory)
	r.GET("/products/:id", h.GetProduct)
	r.GET("/category/summary", h.CategorySummary)

	w, resp := serveJSON(t, r, http.MethodGet, "/products", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list want 200 got %d", w.Code)
	}
	var products []models.Product
	if err := json.Unmarshal(resp.Data, &products); err != nil || len(products) != 1 {
		t.Fatalf("unexpected products: %s err=%v", string(resp.Data), err)
	}

	w, resp = serveJSON(t, r, http.MethodGet, "/products/search?term=nothing-matches", nil)
	if w.Code != http.StatusOK || string(resp.Data) != "[]" {
		t.Fatalf("empty search want 200 [] got %d %s", w.Code, string(resp.Data))
	}
	w, _ = serveJSON(t, r, http.MethodGet, "/products/search", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing term want 400 got %d", w.Code)
	}

	w, _ = serveJSON(t, r, http.MethodGet, "/products/category/bags", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("category lookup should be case-insensitive, got %d", w.Code)
	}
	w, _ = serveJSON(t, r, http.MethodGet, "/products/category/garden", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown category want 404 got %d", w.Code)
	}

	w, _ = serveJSON(t, r, http.MethodGet, "/products/999", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing product want 404 got %d", w.Code)
	}
	w, _ = serveJSON(t, r, http.MethodGet, "/products/abc", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad id want 400 got %d", w.Code)
	}

	w, resp = serveJSON(t, r, http.MethodGet, "/category/summary", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("summary want 200 got %d", w.Code)
	}
	var summary []models.CategorySummary
	if err := json.Unmarshal(resp.Data, &summary); err != nil || len(summary) != 1 || summary[0].ProductCount != 1 {
		t.Fatalf("unexpected summary: %s err=%v", string(resp.Data), err)
	}
}

func TestSubscribeHandler(t *testing.T) {
	h := newPublicTestHandler(t)
	r := gin.New()
	r.POST("/newsletter/subscribe", h.Subscribe)

	w, resp := serveJSON(t, r, http.MethodPost, "/newsletter/subscribe", gin.H{"email": "Reader@Example.com"})
	if w.Code != http.StatusCreated || resp.StatusCode != http.StatusCreated {
		t.Fatalf("subscribe want 201 got %d/%d", w.Code, resp.StatusCode)
	}
	w, _ = serveJSON(t, r, http.MethodPost, "/newsletter/subscribe", gin.H{"email": "reader@example.com"})
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate subscribe want 409 got %d", w.Code)
	}
	w, _ = serveJSON(t, r, http.MethodPost, "/newsletter/subscribe", gin.H{"email": "not-an-email"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid email want 400 got %d", w.Code)
	}
}

func TestRegisterAndLoginHandlers(t *testing.T) {
	h := newPublicTestHandler(t)
	r := gin.New()
	r.POST("/users/register", h.Register)
	r.POST("/users/login", h.Login)

	w, _ := serveJSON(t, r, http.MethodPost, "/users/register", gin.H{"email": "x@example.com", "password": "password123"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing username want 400 got %d", w.Code)
	}
	w, resp := serveJSON(t, r, http.MethodPost, "/users/register", gin.H{
		"username": "casey", "email": "casey@example.com", "password": "password123", "isAdmin": true,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register want 201 got %d", w.Code)
	}
	var user models.User
	if err := json.Unmarshal(resp.Data, &user); err != nil {
		t.Fatalf("decode user failed: %v", err)
	}
	if user.IsAdmin {
		t.Fatalf("anonymous registration must not grant admin")
	}
	w, _ = serveJSON(t, r, http.MethodPost, "/users/register", gin.H{
		"username": "casey2", "email": "CASEY@example.com", "password": "password123",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate email want 409 got %d", w.Code)
	}

	w, _ = serveJSON(t, r, http.MethodPost, "/users/login", gin.H{"email": "casey@example.com", "password": "wrong-pass"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad password want 401 got %d", w.Code)
	}
	w, resp = serveJSON(t, r, http.MethodPost, "/users/login", gin.H{"email": "casey@example.com", "password": "password123"})
	if w.Code != http.StatusOK {
		t.Fatalf("login want 200 got %d", w.Code)
	}
	var login LoginResponse
	if err := json.Unmarshal(resp.Data, &login); err != nil || login.Token == "" {
		t.Fatalf("login should return a token: %s err=%v", string(resp.Data), err)
	}
}
