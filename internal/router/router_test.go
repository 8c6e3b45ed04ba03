package router

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/storefront-next/internal/config"
	"github.com/storefront-next/internal/models"
	"github.com/storefront-next/internal/provider"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

const (
	testAdminEmail    = "admin@example.com"
	testAdminPassword = "admin-pass-1"
	testWebhookSecret = "whsec_router_test"
)

type stubStripe struct {
	mu       sync.Mutex
	amounts  []string
	canceled []string
	server   *httptest.Server
}

func newStubStripe(t *testing.T) *stubStripe {
	t.Helper()
	stub := &stubStripe{}
	stub.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/cancel") {
			id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1/payment_intents/"), "/cancel")
			stub.mu.Lock()
			stub.canceled = append(stub.canceled, id)
			stub.mu.Unlock()
			w.Header().Set("Content-Type", "application/json")
			_, _ = fmt.Fprintf(w, `{"id":%q,"object":"payment_intent","status":"canceled"}`, id)
			return
		}
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/v1/payment_intents") {
			http.Error(w, "unexpected route", http.StatusNotFound)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		stub.mu.Lock()
		stub.amounts = append(stub.amounts, r.PostForm.Get("amount"))
		n := len(stub.amounts)
		stub.mu.Unlock()
		id := fmt.Sprintf("pi_e2e_%d", n)
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"id":%q,"object":"payment_intent","amount":%s,"currency":%q,"status":"requires_payment_method","client_secret":%q}`,
			id, r.PostForm.Get("amount"), r.PostForm.Get("currency"), id+"_secret")
	}))
	t.Cleanup(stub.server.Close)
	return stub
}

func (s *stubStripe) amountAt(i int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i >= len(s.amounts) {
		return ""
	}
	return s.amounts[i]
}

type testEnvelope struct {
	StatusCode int             `json:"status_code"`
	Msg        string          `json:"msg"`
	Data       json.RawMessage `json:"data"`
}

type routerTestEnv struct {
	t      *testing.T
	engine *gin.Engine
	stub   *stubStripe
}

func newRouterTestEnv(t *testing.T) *routerTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	stub := newStubStripe(t)
	dsn := fmt.Sprintf("file:router_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}

	cfg := &config.Config{
		UserJWT: config.JWTConfig{SecretKey: "router-test-secret", ExpireHours: 1},
		Order:   config.OrderConfig{Currency: "gbp", DefaultShippingCost: 5, PaymentExpireMinutes: 30},
		Stripe: config.StripeConfig{
			SecretKey:     "sk_test_router",
			WebhookSecret: testWebhookSecret,
			APIBaseURL:    stub.server.URL,
		},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
		Security: config.SecurityConfig{
			PasswordPolicy: config.PasswordPolicyConfig{MinLength: 8},
		},
	}

	if err := models.InitDefaultAdmin(db, testAdminEmail, testAdminPassword); err != nil {
		t.Fatalf("init admin failed: %v", err)
	}
	container, err := provider.NewContainer(cfg, db)
	if err != nil {
		t.Fatalf("new container failed: %v", err)
	}
	t.Cleanup(func() { _ = container.Close() })
	if err := container.UserAuthService.SyncAdminRolesByEmail(testAdminEmail); err != nil {
		t.Fatalf("sync admin roles failed: %v", err)
	}

	return &routerTestEnv{t: t, engine: SetupRouter(cfg, container), stub: stub}
}

func (e *routerTestEnv) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, testEnvelope) {
	e.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			e.t.Fatalf("marshal body failed: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)

	var env testEnvelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			e.t.Fatalf("%s %s: unmarshal response failed: %v body=%s", method, path, err, w.Body.String())
		}
	}
	return w, env
}

func (e *routerTestEnv) login(email, password string) (string, uint) {
	e.t.Helper()
	w, env := e.do(http.MethodPost, "/users/login", "", gin.H{"email": email, "password": password})
	if w.Code != http.StatusOK {
		e.t.Fatalf("login %s failed: %d %s", email, w.Code, w.Body.String())
	}
	var data struct {
		Token string `json:"token"`
		User  struct {
			ID uint `json:"id"`
		} `json:"user"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		e.t.Fatalf("decode login data failed: %v", err)
	}
	if data.Token == "" || data.User.ID == 0 {
		e.t.Fatalf("login returned empty token or user: %s", string(env.Data))
	}
	return data.Token, data.User.ID
}

func (e *routerTestEnv) registerAndLogin(username, email string) (string, uint) {
	e.t.Helper()
	w, _ := e.do(http.MethodPost, "/users/register", "", gin.H{
		"username": username,
		"email":    email,
		"password": "password123",
	})
	if w.Code != http.StatusCreated {
		e.t.Fatalf("register %s failed: %d %s", email, w.Code, w.Body.String())
	}
	return e.login(email, "password123")
}

type createdProduct struct {
	ID       uint `json:"id"`
	Variants []struct {
		ID uint `json:"id"`
	} `json:"variants"`
}

func (e *routerTestEnv) createProduct(adminToken string) createdProduct {
	e.t.Helper()
	w, env := e.do(http.MethodPost, "/products", adminToken, gin.H{
		"name":        "Trail Runner",
		"description": "Lightweight running shoe",
		"category":    "Shoes",
		"brand":       "Acme",
		"variants": []gin.H{
			{"price": "10.00", "stockQuantity": 10, "variantType": "size", "variantValue": "42"},
			{"price": "5.00", "stockQuantity": 10, "variantType": "size", "variantValue": "43"},
		},
	})
	if w.Code != http.StatusCreated {
		e.t.Fatalf("create product failed: %d %s", w.Code, w.Body.String())
	}
	var product createdProduct
	if err := json.Unmarshal(env.Data, &product); err != nil {
		e.t.Fatalf("decode product failed: %v", err)
	}
	if product.ID == 0 || len(product.Variants) != 2 {
		e.t.Fatalf("unexpected product: %s", string(env.Data))
	}
	return product
}

func signWebhook(secret string, body []byte) string {
	ts := time.Now().Unix()
	h := hmac.New(sha256.New, []byte(secret))
	_, _ = h.Write([]byte(strconv.FormatInt(ts, 10) + "." + string(body)))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(h.Sum(nil)))
}

func TestStorefrontCheckoutFlow(t *testing.T) {
	env := newRouterTestEnv(t)
	adminToken, _ := env.login(testAdminEmail, testAdminPassword)
	userToken, userID := env.registerAndLogin("shopper", "shopper@example.com")
	_, otherID := env.registerAndLogin("other", "other@example.com")

	// 非管理员无法创建商品
	w, _ := env.do(http.MethodPost, "/products", userToken, gin.H{"name": "x"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("non-admin create product want 403 got %d", w.Code)
	}
	w, _ = env.do(http.MethodPost, "/products", "", gin.H{"name": "x"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous create product want 401 got %d", w.Code)
	}

	product := env.createProduct(adminToken)
	cartPath := fmt.Sprintf("/cart/%d", userID)

	w, _ = env.do(http.MethodPost, cartPath, userToken, gin.H{
		"productId": product.ID, "variantId": product.Variants[0].ID, "quantity": 2,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("add cart item failed: %d %s", w.Code, w.Body.String())
	}
	w, _ = env.do(http.MethodPost, cartPath, userToken, gin.H{
		"productId": product.ID, "variantId": product.Variants[1].ID, "quantity": 1,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("add second cart item failed: %d %s", w.Code, w.Body.String())
	}

	w, _ = env.do(http.MethodGet, fmt.Sprintf("/cart/%d", otherID), userToken, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("foreign cart want 403 got %d", w.Code)
	}

	w, resp := env.do(http.MethodPost, cartPath+"/checkout", userToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("checkout failed: %d %s", w.Code, w.Body.String())
	}
	var checkout struct {
		OrderID      uint   `json:"orderId"`
		ClientSecret string `json:"clientSecret"`
		Amount       int64  `json:"amount"`
	}
	if err := json.Unmarshal(resp.Data, &checkout); err != nil {
		t.Fatalf("decode checkout failed: %v", err)
	}
	if checkout.OrderID == 0 || checkout.ClientSecret != "pi_e2e_1_secret" || checkout.Amount != 3000 {
		t.Fatalf("unexpected checkout result: %+v", checkout)
	}
	if got := env.stub.amountAt(0); got != "3000" {
		t.Fatalf("payment intent amount want 3000 got %s", got)
	}

	// 结算后购物车保留，直到订单完成
	_, resp = env.do(http.MethodGet, cartPath, userToken, nil)
	var cartView struct {
		Items []json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(resp.Data, &cartView); err != nil {
		t.Fatalf("decode cart failed: %v", err)
	}
	if len(cartView.Items) != 2 {
		t.Fatalf("cart should be kept after checkout, got %d items", len(cartView.Items))
	}

	completePath := fmt.Sprintf("/order/%d/complete", userID)
	w, resp = env.do(http.MethodPost, completePath, userToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("complete order failed: %d %s", w.Code, w.Body.String())
	}
	var completed struct {
		ID     uint   `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(resp.Data, &completed); err != nil {
		t.Fatalf("decode completed order failed: %v", err)
	}
	if completed.ID != checkout.OrderID || completed.Status != "paid" {
		t.Fatalf("unexpected completed order: %+v", completed)
	}

	_, resp = env.do(http.MethodGet, cartPath, userToken, nil)
	cartView.Items = nil
	if err := json.Unmarshal(resp.Data, &cartView); err != nil {
		t.Fatalf("decode cart failed: %v", err)
	}
	if len(cartView.Items) != 0 {
		t.Fatalf("cart should be empty after completion, got %d items", len(cartView.Items))
	}

	w, _ = env.do(http.MethodPost, completePath, userToken, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("second complete want 404 got %d", w.Code)
	}

	w, resp = env.do(http.MethodGet, fmt.Sprintf("/order/user/%d", userID), userToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list orders failed: %d %s", w.Code, w.Body.String())
	}
	var orders []struct {
		ID    uint              `json:"id"`
		Items []json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(resp.Data, &orders); err != nil {
		t.Fatalf("decode orders failed: %v", err)
	}
	if len(orders) != 1 || len(orders[0].Items) != 2 {
		t.Fatalf("unexpected order history: %s", string(resp.Data))
	}

	// 管理员可以查看任意用户订单
	w, _ = env.do(http.MethodGet, fmt.Sprintf("/order/%d", checkout.OrderID), adminToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("admin get order want 200 got %d", w.Code)
	}
	otherToken, _ := env.login("other@example.com", "password123")
	w, _ = env.do(http.MethodGet, fmt.Sprintf("/order/%d", checkout.OrderID), otherToken, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("foreign order want 403 got %d", w.Code)
	}

	w, _ = env.do(http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "storefront_checkout_total") {
		t.Fatalf("metrics should expose checkout counter: %d", w.Code)
	}
	w, _ = env.do(http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health want 200 got %d", w.Code)
	}
}

func TestStripeWebhookFinalizesOrder(t *testing.T) {
	env := newRouterTestEnv(t)
	adminToken, _ := env.login(testAdminEmail, testAdminPassword)
	userToken, userID := env.registerAndLogin("buyer", "buyer@example.com")
	product := env.createProduct(adminToken)

	cartPath := fmt.Sprintf("/cart/%d", userID)
	w, _ := env.do(http.MethodPost, cartPath, userToken, gin.H{
		"productId": product.ID, "variantId": product.Variants[0].ID, "quantity": 1,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("add cart item failed: %d %s", w.Code, w.Body.String())
	}
	w, resp := env.do(http.MethodPost, cartPath+"/checkout", userToken, gin.H{"shippingCost": "0"})
	if w.Code != http.StatusOK {
		t.Fatalf("checkout failed: %d %s", w.Code, w.Body.String())
	}
	var checkout struct {
		OrderID uint  `json:"orderId"`
		Amount  int64 `json:"amount"`
	}
	if err := json.Unmarshal(resp.Data, &checkout); err != nil {
		t.Fatalf("decode checkout failed: %v", err)
	}
	if checkout.Amount != 1000 {
		t.Fatalf("amount with zero shipping want 1000 got %d", checkout.Amount)
	}

	body, _ := json.Marshal(map[string]interface{}{
		"id":     "evt_router_1",
		"object": "event",
		"type":   "payment_intent.succeeded",
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"id":       "pi_e2e_1",
				"object":   "payment_intent",
				"amount":   1000,
				"currency": "gbp",
				"metadata": map[string]string{
					"order_id": strconv.FormatUint(uint64(checkout.OrderID), 10),
					"user_id":  strconv.FormatUint(uint64(userID), 10),
				},
			},
		},
	})

	badReq := httptest.NewRequest(http.MethodPost, "/payments/webhook/stripe", bytes.NewReader(body))
	badReq.Header.Set("Stripe-Signature", signWebhook("whsec_wrong", body))
	badW := httptest.NewRecorder()
	env.engine.ServeHTTP(badW, badReq)
	if badW.Code != http.StatusBadRequest {
		t.Fatalf("bad signature want 400 got %d", badW.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/payments/webhook/stripe", bytes.NewReader(body))
	req.Header.Set("Stripe-Signature", signWebhook(testWebhookSecret, body))
	rec := httptest.NewRecorder()
	env.engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("webhook failed: %d %s", rec.Code, rec.Body.String())
	}

	_, resp = env.do(http.MethodGet, fmt.Sprintf("/order/%d", checkout.OrderID), userToken, nil)
	var order struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(resp.Data, &order); err != nil {
		t.Fatalf("decode order failed: %v", err)
	}
	if order.Status != "paid" {
		t.Fatalf("order status want paid got %s", order.Status)
	}
}

func TestCheckoutRetryCancelsPreviousIntent(t *testing.T) {
	env := newRouterTestEnv(t)
	adminToken, _ := env.login(testAdminEmail, testAdminPassword)
	userToken, userID := env.registerAndLogin("retry", "retry@example.com")
	product := env.createProduct(adminToken)

	cartPath := fmt.Sprintf("/cart/%d", userID)
	w, _ := env.do(http.MethodPost, cartPath, userToken, gin.H{
		"productId": product.ID, "variantId": product.Variants[0].ID, "quantity": 10,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("add cart item failed: %d %s", w.Code, w.Body.String())
	}
	for i := 0; i < 2; i++ {
		w, _ = env.do(http.MethodPost, cartPath+"/checkout", userToken, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("checkout attempt %d failed: %d %s", i+1, w.Code, w.Body.String())
		}
	}

	env.stub.mu.Lock()
	canceled := append([]string(nil), env.stub.canceled...)
	env.stub.mu.Unlock()
	if len(canceled) != 1 || canceled[0] != "pi_e2e_1" {
		t.Fatalf("first intent must be canceled on retry, got %v", canceled)
	}
}

func TestUserRoutesOwnership(t *testing.T) {
	env := newRouterTestEnv(t)
	adminToken, _ := env.login(testAdminEmail, testAdminPassword)
	userToken, userID := env.registerAndLogin("alice", "alice@example.com")
	_, otherID := env.registerAndLogin("bob", "bob@example.com")

	w, _ := env.do(http.MethodGet, fmt.Sprintf("/users/%d", userID), userToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("own profile want 200 got %d", w.Code)
	}
	w, _ = env.do(http.MethodGet, fmt.Sprintf("/users/%d", otherID), userToken, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("foreign profile want 403 got %d", w.Code)
	}
	w, _ = env.do(http.MethodGet, "/users", userToken, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("non-admin list users want 403 got %d", w.Code)
	}
	w, _ = env.do(http.MethodGet, "/users", adminToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("admin list users want 200 got %d", w.Code)
	}
	w, _ = env.do(http.MethodPut, fmt.Sprintf("/users/%d", userID), userToken, gin.H{"isAdmin": true})
	if w.Code != http.StatusForbidden {
		t.Fatalf("self promotion want 403 got %d", w.Code)
	}

	w, _ = env.do(http.MethodPost, "/users/logout", userToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("logout want 200 got %d", w.Code)
	}
	w, _ = env.do(http.MethodGet, "/users/me", userToken, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("revoked token want 401 got %d", w.Code)
	}
}
