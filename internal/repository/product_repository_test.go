package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/storefront-next/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupRepositoryTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repository_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	return db
}

func seedCatalogProduct(t *testing.T, db *gorm.DB, category, name, brand string, price string, stock int) (*models.Product, *models.Variant) {
	t.Helper()
	var cat models.Category
	if err := db.Where("name = ?", category).FirstOrCreate(&cat, models.Category{Name: category, Slug: category}).Error; err != nil {
		t.Fatalf("create category failed: %v", err)
	}
	product := &models.Product{
		CategoryID:  cat.ID,
		Name:        name,
		Slug:        fmt.Sprintf("%s-%d", name, time.Now().UnixNano()),
		Description: name + " description",
		Brand:       brand,
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
	return product, &product.Variants[0]
}

func TestProductListFilters(t *testing.T) {
	db := setupRepositoryTestDB(t)
	repo := NewProductRepository(db)
	seedCatalogProduct(t, db, "Shoes", "Runner", "Acme", "10.00", 5)
	seedCatalogProduct(t, db, "Shirts", "Oxford Shirt", "Bolt", "25.00", 3)
	seedCatalogProduct(t, db, "Shoes", "Trail Boot", "bolt", "40.00", 2)

	all, err := repo.List(ProductListFilter{})
	if err != nil {
		t.Fatalf("list all failed: %v", err)
	}
	if len(all) != 3 || len(all[0].Variants) != 1 {
		t.Fatalf("expected 3 products with variants, got %+v", all)
	}

	byCategory, err := repo.List(ProductListFilter{Category: "shoes"})
	if err != nil {
		t.Fatalf("list by category failed: %v", err)
	}
	if len(byCategory) != 2 {
		t.Fatalf("expected 2 shoes, got %d", len(byCategory))
	}

	byBrand, err := repo.List(ProductListFilter{Brand: "BOLT"})
	if err != nil {
		t.Fatalf("list by brand failed: %v", err)
	}
	if len(byBrand) != 2 {
		t.Fatalf("expected brand match to be case-insensitive, got %d", len(byBrand))
	}

	search, err := repo.List(ProductListFilter{Search: "oxf"})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(search) != 1 || search[0].Name != "Oxford Shirt" {
		t.Fatalf("unexpected search result: %+v", search)
	}
}

func TestProductUpdateAndDelete(t *testing.T) {
	db := setupRepositoryTestDB(t)
	repo := NewProductRepository(db)
	product, _ := seedCatalogProduct(t, db, "Hats", "Cap", "Acme", "8.00", 1)

	affected, err := repo.Update(product.ID, map[string]interface{}{"brand": "Zed"})
	if err != nil || affected != 1 {
		t.Fatalf("update failed affected=%d err=%v", affected, err)
	}
	got, err := repo.GetByID(product.ID)
	if err != nil || got == nil || got.Brand != "Zed" {
		t.Fatalf("expected updated brand, got %+v err=%v", got, err)
	}

	variant := got.Variants[0]
	cartRepo := NewCartRepository(db)
	other, otherVariant := seedCatalogProduct(t, db, "Hats", "Beanie", "Acme", "6.00", 3)
	for _, item := range []models.CartItem{
		{UserID: 1, ProductID: product.ID, VariantID: variant.ID, Quantity: 1},
		{UserID: 2, ProductID: product.ID, VariantID: variant.ID, Quantity: 2},
		{UserID: 1, ProductID: other.ID, VariantID: otherVariant.ID, Quantity: 1},
	} {
		item := item
		if err := cartRepo.Create(&item); err != nil {
			t.Fatalf("create cart item failed: %v", err)
		}
	}

	affected, err = repo.Delete(product.ID)
	if err != nil || affected != 1 {
		t.Fatalf("delete failed affected=%d err=%v", affected, err)
	}
	var lines int64
	db.Model(&models.CartItem{}).Where("product_id = ?", product.ID).Count(&lines)
	if lines != 0 {
		t.Fatalf("expected cart lines removed with product, got %d", lines)
	}
	db.Model(&models.CartItem{}).Where("product_id = ?", other.ID).Count(&lines)
	if lines != 1 {
		t.Fatalf("cart lines of other products must stay, got %d", lines)
	}
	var variants int64
	db.Model(&models.Variant{}).Where("product_id = ?", product.ID).Count(&variants)
	if variants != 0 {
		t.Fatalf("expected variants removed with product, got %d", variants)
	}
	missing, err := repo.GetByID(product.ID)
	if err != nil || missing != nil {
		t.Fatalf("expected nil product after delete, got %+v err=%v", missing, err)
	}
}

func TestCategorySummaryIncludesEmptyCategories(t *testing.T) {
	db := setupRepositoryTestDB(t)
	seedCatalogProduct(t, db, "Shoes", "Runner", "Acme", "10.00", 5)
	seedCatalogProduct(t, db, "Shoes", "Boot", "Acme", "10.00", 5)
	if err := db.Create(&models.Category{Name: "Accessories", Slug: "accessories"}).Error; err != nil {
		t.Fatalf("create category failed: %v", err)
	}

	rows, err := NewCategoryRepository(db).Summary()
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 categories, got %+v", rows)
	}
	if rows[0].Name != "Accessories" || rows[0].ProductCount != 0 {
		t.Fatalf("unexpected first row: %+v", rows[0])
	}
	if rows[1].Name != "Shoes" || rows[1].ProductCount != 2 {
		t.Fatalf("unexpected second row: %+v", rows[1])
	}
}

func TestVariantStockDecrementIsConditional(t *testing.T) {
	db := setupRepositoryTestDB(t)
	repo := NewVariantRepository(db)
	_, variant := seedCatalogProduct(t, db, "Shoes", "Runner", "Acme", "10.00", 3)

	affected, err := repo.DecrementStock(variant.ID, 2)
	if err != nil || affected != 1 {
		t.Fatalf("decrement failed affected=%d err=%v", affected, err)
	}
	affected, err = repo.DecrementStock(variant.ID, 2)
	if err != nil {
		t.Fatalf("decrement error: %v", err)
	}
	if affected != 0 {
		t.Fatalf("expected no rows affected when stock insufficient, got %d", affected)
	}
	if _, err := repo.RestoreStock(variant.ID, 2); err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	locked, err := repo.LockByIDs([]uint{variant.ID})
	if err != nil || len(locked) != 1 {
		t.Fatalf("lock failed: %+v err=%v", locked, err)
	}
	if locked[0].StockQuantity != 3 {
		t.Fatalf("expected stock 3 after restore, got %d", locked[0].StockQuantity)
	}
}
