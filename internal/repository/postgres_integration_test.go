//go:build integration
// +build integration

package repository

import (
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/storefront-next/internal/constants"
	"github.com/storefront-next/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupPostgresIntegrationDB 初始化 PostgreSQL 集成测试数据库。
func setupPostgresIntegrationDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("skip postgres integration test: TEST_POSTGRES_DSN is empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open postgres failed: %v", err)
	}

	cleanupModels := []interface{}{
		&models.OrderItem{},
		&models.Order{},
		&models.CartItem{},
		&models.Variant{},
		&models.Product{},
		&models.Category{},
		&models.User{},
		&models.NewsletterSubscriber{},
	}
	_ = db.Migrator().DropTable(cleanupModels...)

	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("migrate postgres models failed: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Migrator().DropTable(cleanupModels...)
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestPostgresProductFiltersUseILike(t *testing.T) {
	db := setupPostgresIntegrationDB(t)

	category := &models.Category{Name: "Shoes", Slug: "shoes"}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("create category failed: %v", err)
	}
	repo := NewProductRepository(db)
	product := &models.Product{
		CategoryID:  category.ID,
		Name:        "Trail Runner",
		Slug:        "trail-runner",
		Description: "100% grippy outsole",
		Brand:       "Northpeak",
	}
	if err := repo.Create(product); err != nil {
		t.Fatalf("create product failed: %v", err)
	}

	rows, err := repo.List(ProductListFilter{Search: "TRAIL"})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != product.ID {
		t.Fatalf("unexpected search rows: %+v", rows)
	}

	// % 需要按字面量匹配
	rows, err = repo.List(ProductListFilter{Search: "100%"})
	if err != nil {
		t.Fatalf("escaped search failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("escaped search want 1 row got %d", len(rows))
	}

	rows, err = repo.List(ProductListFilter{Category: "shoes", Brand: "NORTHPEAK"})
	if err != nil {
		t.Fatalf("category filter failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("category+brand filter want 1 row got %d", len(rows))
	}
}

func TestPostgresConcurrentStockDecrement(t *testing.T) {
	db := setupPostgresIntegrationDB(t)

	variant := &models.Variant{
		ProductID:     1,
		Price:         models.NewMoneyFromDecimal(decimal.NewFromInt(10)),
		StockQuantity: 5,
	}
	if err := db.Create(variant).Error; err != nil {
		t.Fatalf("create variant failed: %v", err)
	}
	repo := NewVariantRepository(db)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := db.Transaction(func(tx *gorm.DB) error {
				txRepo := repo.WithTx(tx)
				if _, err := txRepo.LockByIDs([]uint{variant.ID}); err != nil {
					return err
				}
				affected, err := txRepo.DecrementStock(variant.ID, 1)
				if err != nil {
					return err
				}
				if affected == 1 {
					mu.Lock()
					success++
					mu.Unlock()
				}
				return nil
			})
			if err != nil {
				t.Errorf("decrement tx failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if success != 5 {
		t.Fatalf("expected exactly 5 successful decrements, got %d", success)
	}
	reloaded, err := repo.GetByID(variant.ID)
	if err != nil || reloaded == nil {
		t.Fatalf("reload variant failed: %v", err)
	}
	if reloaded.StockQuantity != 0 {
		t.Fatalf("stock should never go negative, got %d", reloaded.StockQuantity)
	}
}

func TestPostgresOrderLockByPaymentIntent(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	repo := NewOrderRepository(db)

	order := &models.Order{
		UserID:     9,
		Status:     constants.OrderStatusPending,
		Currency:   "gbp",
		TotalPrice: models.NewMoneyFromDecimal(decimal.NewFromInt(30)),
		OrderDate:  time.Now(),
	}
	if err := repo.Create(order, []models.OrderItem{{ProductID: 1, VariantID: 1, ProductName: "Runner", Quantity: 3}}); err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	if err := repo.SetPaymentIntent(order.ID, "pi_pg_1"); err != nil {
		t.Fatalf("set payment intent failed: %v", err)
	}

	err := repo.Transaction(func(tx *gorm.DB) error {
		locked, err := repo.WithTx(tx).LockByPaymentIntent("pi_pg_1")
		if err != nil {
			return err
		}
		if locked == nil || locked.ID != order.ID {
			t.Fatalf("unexpected locked order: %+v", locked)
		}
		affected, err := repo.WithTx(tx).TransitionStatus(order.ID, constants.OrderStatusPending, constants.OrderStatusPaid, map[string]interface{}{"paid_at": time.Now()})
		if err != nil {
			return err
		}
		if affected != 1 {
			t.Fatalf("transition should affect 1 row, got %d", affected)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction failed: %v", err)
	}

	affected, err := repo.TransitionStatus(order.ID, constants.OrderStatusPending, constants.OrderStatusPaid, nil)
	if err != nil {
		t.Fatalf("second transition failed: %v", err)
	}
	if affected != 0 {
		t.Fatalf("second transition should be a no-op, got %d", affected)
	}
}
