package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/storefront-next/internal/config"
	"github.com/storefront-next/internal/models"
	"github.com/storefront-next/internal/payment/stripe"
	"github.com/storefront-next/internal/queue"
	"github.com/storefront-next/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type fakeGateway struct {
	mu        sync.Mutex
	inputs    []stripe.IntentInput
	err       error
	counter   int
	canceled  []string
	cancelErr error
	refunded  []string
	refundErr error
}

func (g *fakeGateway) CreateIntent(ctx context.Context, input stripe.IntentInput) (*stripe.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inputs = append(g.inputs, input)
	if g.err != nil {
		return nil, g.err
	}
	g.counter++
	id := fmt.Sprintf("pi_test_%d", g.counter)
	return &stripe.Intent{
		ID:           id,
		ClientSecret: id + "_secret",
		AmountMinor:  input.AmountMinor,
		Currency:     input.Currency,
		Status:       "requires_payment_method",
	}, nil
}

func (g *fakeGateway) CancelIntent(ctx context.Context, intentID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancelErr != nil {
		return g.cancelErr
	}
	g.canceled = append(g.canceled, intentID)
	return nil
}

func (g *fakeGateway) RefundIntent(ctx context.Context, intentID string, metadata map[string]string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.refundErr != nil {
		return g.refundErr
	}
	g.refunded = append(g.refunded, intentID)
	return nil
}

type fakeQueue struct {
	mu       sync.Mutex
	timeouts []queue.OrderTimeoutCancelPayload
	delays   []time.Duration
	paid     []queue.OrderPaidPayload
}

func (q *fakeQueue) EnqueueOrderTimeoutCancel(payload queue.OrderTimeoutCancelPayload, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.timeouts = append(q.timeouts, payload)
	q.delays = append(q.delays, delay)
	return nil
}

func (q *fakeQueue) EnqueueOrderPaid(payload queue.OrderPaidPayload) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.paid = append(q.paid, payload)
	return nil
}

type serviceTestEnv struct {
	db       *gorm.DB
	gateway  *fakeGateway
	queue    *fakeQueue
	cart     *CartService
	checkout *CheckoutService
	orders   *OrderService
	catalog  *CatalogService
}

func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	return db
}

func newServiceTestEnv(t *testing.T) *serviceTestEnv {
	t.Helper()
	db := setupServiceTestDB(t)
	cartRepo := repository.NewCartRepository(db)
	variantRepo := repository.NewVariantRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	catalog := NewCatalogService(repository.NewProductRepository(db), repository.NewCategoryRepository(db), variantRepo, nil)
	gateway := &fakeGateway{}
	q := &fakeQueue{}
	orderCfg := config.OrderConfig{Currency: "gbp", DefaultShippingCost: 5, PaymentExpireMinutes: 30}

	return &serviceTestEnv{
		db:      db,
		gateway: gateway,
		queue:   q,
		cart:    NewCartService(cartRepo, variantRepo),
		checkout: NewCheckoutService(CheckoutDeps{
			Config:      orderCfg,
			CartRepo:    cartRepo,
			VariantRepo: variantRepo,
			OrderRepo:   orderRepo,
			Gateway:     gateway,
			Queue:       q,
			Catalog:     catalog,
		}),
		orders: NewOrderService(OrderDeps{
			OrderRepo:   orderRepo,
			CartRepo:    cartRepo,
			VariantRepo: variantRepo,
			Gateway:     gateway,
			Queue:       q,
			Catalog:     catalog,
		}),
		catalog: catalog,
	}
}

func seedVariant(t *testing.T, db *gorm.DB, name, price string, stock int) *models.Variant {
	t.Helper()
	var category models.Category
	if err := db.Where("name = ?", "General").FirstOrCreate(&category, models.Category{Name: "General", Slug: "general"}).Error; err != nil {
		t.Fatalf("create category failed: %v", err)
	}
	product := &models.Product{
		CategoryID:  category.ID,
		Name:        name,
		Slug:        fmt.Sprintf("%s-%d", name, time.Now().UnixNano()),
		Description: name,
		Brand:       "Acme",
		Variants: []models.Variant{{
			Price:         models.NewMoneyFromDecimal(decimal.RequireFromString(price)),
			StockQuantity: stock,
			VariantType:   "size",
			VariantValue:  "M",
		}},
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	return &product.Variants[0]
}

func countRows(t *testing.T, db *gorm.DB, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	q := db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	return n
}

func reloadVariant(t *testing.T, db *gorm.DB, id uint) models.Variant {
	t.Helper()
	var v models.Variant
	if err := db.First(&v, id).Error; err != nil {
		t.Fatalf("reload variant failed: %v", err)
	}
	return v
}

var errGatewayDown = errors.New("gateway down")
