package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/storefront-next/internal/cache"
	"github.com/storefront-next/internal/constants"
	"github.com/storefront-next/internal/logger"
	"github.com/storefront-next/internal/models"
	"github.com/storefront-next/internal/repository"

	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

const catalogCacheTTL = 60 * time.Second

// CatalogService 商品目录服务（商品、规格、分类）
type CatalogService struct {
	productRepo  repository.ProductRepository
	categoryRepo repository.CategoryRepository
	variantRepo  repository.VariantRepository
	cache        *cache.Store
}

// NewCatalogService 创建商品目录服务
func NewCatalogService(productRepo repository.ProductRepository, categoryRepo repository.CategoryRepository, variantRepo repository.VariantRepository, store *cache.Store) *CatalogService {
	return &CatalogService{
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
		variantRepo:  variantRepo,
		cache:        store,
	}
}

// VariantInput 规格输入
type VariantInput struct {
	Price         json.Number `json:"price" validate:"required"`
	StockQuantity int         `json:"stockQuantity" validate:"gte=0"`
	VariantType   string      `json:"variantType" validate:"max=64"`
	VariantValue  string      `json:"variantValue" validate:"max=128"`
}

// CreateProductInput 创建商品输入
type CreateProductInput struct {
	Name        string         `json:"name" validate:"required,max=200"`
	Description string         `json:"description" validate:"required"`
	Category    string         `json:"category" validate:"required,max=120"`
	Brand       string         `json:"brand" validate:"required,max=120"`
	ImageURL    string         `json:"imageUrl" validate:"max=500"`
	Variants    []VariantInput `json:"variants" validate:"dive"`
}

// ProductPatch 商品局部更新，nil 字段保持不变
type ProductPatch struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,min=1"`
	Category    *string `json:"category" validate:"omitempty,min=1,max=120"`
	Brand       *string `json:"brand" validate:"omitempty,min=1,max=120"`
	ImageURL    *string `json:"imageUrl" validate:"omitempty,max=500"`
}

func (p ProductPatch) normalized() ProductPatch {
	return ProductPatch{
		Name:        trimPtr(p.Name),
		Description: trimPtr(p.Description),
		Category:    trimPtr(p.Category),
		Brand:       trimPtr(p.Brand),
		ImageURL:    trimPtr(p.ImageURL),
	}
}

func (p ProductPatch) empty() bool {
	return p.Name == nil && p.Description == nil && p.Category == nil && p.Brand == nil && p.ImageURL == nil
}

// ListProducts 获取全部商品（含规格），优先读缓存
func (s *CatalogService) ListProducts(ctx context.Context) ([]models.Product, error) {
	var cached []models.Product
	if hit, err := s.cache.GetJSON(ctx, constants.CacheKeyProductList, &cached); err != nil {
		logger.Warnw("catalog_cache_read_failed", "error", err)
	} else if hit {
		return cached, nil
	}

	products, err := s.productRepo.List(repository.ProductListFilter{})
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []models.Product{}
	}
	if err := s.cache.SetJSON(ctx, constants.CacheKeyProductList, products, catalogCacheTTL); err != nil {
		logger.Warnw("catalog_cache_write_failed", "error", err)
	}
	return products, nil
}

// GetProduct 获取商品详情
func (s *CatalogService) GetProduct(id uint) (*models.Product, error) {
	if id == 0 {
		return nil, ErrProductNotFound
	}
	product, err := s.productRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	return product, nil
}

// ListByCategory 按分类名（大小写不敏感）查询商品
func (s *CatalogService) ListByCategory(name string) ([]models.Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNoProductsInCategory
	}
	products, err := s.productRepo.List(repository.ProductListFilter{Category: name})
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, ErrNoProductsInCategory
	}
	return products, nil
}

// ListByBrand 按品牌（大小写不敏感）查询商品
func (s *CatalogService) ListByBrand(brand string) ([]models.Product, error) {
	brand = strings.TrimSpace(brand)
	if brand == "" {
		return nil, ErrNoProductsForBrand
	}
	products, err := s.productRepo.List(repository.ProductListFilter{Brand: brand})
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, ErrNoProductsForBrand
	}
	return products, nil
}

// Search 在名称、描述、品牌中模糊搜索，无结果时返回空列表
func (s *CatalogService) Search(term string) ([]models.Product, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, ErrSearchTermRequired
	}
	products, err := s.productRepo.List(repository.ProductListFilter{Search: term})
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []models.Product{}
	}
	return products, nil
}

// CategorySummary 分类概览（含商品数量）
func (s *CatalogService) CategorySummary(ctx context.Context) ([]models.CategorySummary, error) {
	var cached []models.CategorySummary
	if hit, err := s.cache.GetJSON(ctx, constants.CacheKeyCategorySummary, &cached); err == nil && hit {
		return cached, nil
	}
	summary, err := s.categoryRepo.Summary()
	if err != nil {
		return nil, err
	}
	if summary == nil {
		summary = []models.CategorySummary{}
	}
	if err := s.cache.SetJSON(ctx, constants.CacheKeyCategorySummary, summary, catalogCacheTTL); err != nil {
		logger.Warnw("catalog_cache_write_failed", "key", constants.CacheKeyCategorySummary, "error", err)
	}
	return summary, nil
}

// CreateProduct 创建商品，分类按名称不存在时自动创建
func (s *CatalogService) CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	input.Category = strings.TrimSpace(input.Category)
	input.Brand = strings.TrimSpace(input.Brand)
	input.ImageURL = strings.TrimSpace(input.ImageURL)
	if field, err := validateStruct(input); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidProductInput, field)
	}

	variants := make([]models.Variant, 0, len(input.Variants))
	for _, item := range input.Variants {
		variant, err := buildVariant(item)
		if err != nil {
			return nil, err
		}
		variants = append(variants, variant)
	}

	var created *models.Product
	err := s.productRepo.Transaction(func(tx *gorm.DB) error {
		category, err := s.getOrCreateCategory(tx, input.Category)
		if err != nil {
			return err
		}
		productRepo := s.productRepo.WithTx(tx)
		productSlug, err := uniqueSlug(input.Name, productRepo.CountBySlug)
		if err != nil {
			return err
		}
		product := &models.Product{
			CategoryID:  category.ID,
			Name:        input.Name,
			Slug:        productSlug,
			Description: input.Description,
			Brand:       input.Brand,
			ImageURL:    input.ImageURL,
			Variants:    variants,
		}
		if err := productRepo.Create(product); err != nil {
			return err
		}
		product.Category = category
		created = product
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.InvalidateCache(ctx)
	return created, nil
}

// UpdateProduct 按补丁局部更新商品
func (s *CatalogService) UpdateProduct(ctx context.Context, id uint, patch ProductPatch) (*models.Product, error) {
	patch = patch.normalized()
	if patch.empty() {
		return nil, ErrNoFieldsToUpdate
	}
	if field, err := validateStruct(patch); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidProductInput, field)
	}

	err := s.productRepo.Transaction(func(tx *gorm.DB) error {
		productRepo := s.productRepo.WithTx(tx)
		existing, err := productRepo.GetByID(id)
		if err != nil {
			return err
		}
		if existing == nil {
			return ErrProductNotFound
		}

		updates := map[string]interface{}{}
		if patch.Name != nil {
			updates["name"] = *patch.Name
		}
		if patch.Description != nil {
			updates["description"] = *patch.Description
		}
		if patch.Brand != nil {
			updates["brand"] = *patch.Brand
		}
		if patch.ImageURL != nil {
			updates["image_url"] = *patch.ImageURL
		}
		if patch.Category != nil {
			category, err := s.getOrCreateCategory(tx, *patch.Category)
			if err != nil {
				return err
			}
			updates["category_id"] = category.ID
		}
		_, err = productRepo.Update(id, updates)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.InvalidateCache(ctx)
	return s.GetProduct(id)
}

// DeleteProduct 删除商品及其规格
func (s *CatalogService) DeleteProduct(ctx context.Context, id uint) error {
	var affected int64
	err := s.productRepo.Transaction(func(tx *gorm.DB) error {
		n, err := s.productRepo.WithTx(tx).Delete(id)
		affected = n
		return err
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrProductNotFound
	}
	s.InvalidateCache(ctx)
	return nil
}

// AddVariant 为商品新增规格
func (s *CatalogService) AddVariant(ctx context.Context, productID uint, input VariantInput) (*models.Variant, error) {
	variant, err := buildVariant(input)
	if err != nil {
		return nil, err
	}
	product, err := s.productRepo.GetByID(productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	variant.ProductID = product.ID
	if err := s.variantRepo.Create(&variant); err != nil {
		return nil, err
	}
	s.InvalidateCache(ctx)
	return &variant, nil
}

// InvalidateCache 清理目录缓存（商品写操作、库存变化后调用）
func (s *CatalogService) InvalidateCache(ctx context.Context) {
	if s == nil {
		return
	}
	if err := s.cache.Del(ctx, constants.CacheKeyProductList, constants.CacheKeyCategorySummary); err != nil {
		logger.Warnw("catalog_cache_invalidate_failed", "error", err)
	}
}

func (s *CatalogService) getOrCreateCategory(tx *gorm.DB, name string) (*models.Category, error) {
	categoryRepo := s.categoryRepo.WithTx(tx)
	category, err := categoryRepo.GetByName(name)
	if err != nil {
		return nil, err
	}
	if category != nil {
		return category, nil
	}
	categorySlug, err := uniqueSlug(name, categoryRepo.CountBySlug)
	if err != nil {
		return nil, err
	}
	category = &models.Category{Name: name, Slug: categorySlug}
	if err := categoryRepo.Create(category); err != nil {
		return nil, err
	}
	return category, nil
}

func buildVariant(input VariantInput) (models.Variant, error) {
	input.VariantType = strings.TrimSpace(input.VariantType)
	input.VariantValue = strings.TrimSpace(input.VariantValue)
	if field, err := validateStruct(input); err != nil {
		return models.Variant{}, fmt.Errorf("%w: %s", ErrInvalidVariantInput, field)
	}
	price, err := models.NewMoneyFromString(input.Price.String())
	if err != nil || !price.IsPositive() {
		return models.Variant{}, fmt.Errorf("%w: price", ErrInvalidVariantInput)
	}
	return models.Variant{
		Price:         price,
		StockQuantity: input.StockQuantity,
		VariantType:   input.VariantType,
		VariantValue:  input.VariantValue,
	}, nil
}

// uniqueSlug 生成唯一 slug，冲突时追加 -n 后缀
func uniqueSlug(source string, count func(string) (int64, error)) (string, error) {
	base := slug.Make(source)
	if base == "" {
		base = "item"
	}
	candidate := base
	for i := 2; ; i++ {
		n, err := count(candidate)
		if err != nil {
			return "", err
		}
		if n == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}
