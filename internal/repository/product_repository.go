package repository

import (
	"errors"

	"github.com/storefront-next/internal/models"

	"gorm.io/gorm"
)

// ProductRepository 商品数据访问接口
type ProductRepository interface {
	List(filter ProductListFilter) ([]models.Product, error)
	GetByID(id uint) (*models.Product, error)
	Create(product *models.Product) error
	Update(id uint, updates map[string]interface{}) (int64, error)
	Delete(id uint) (int64, error)
	CountBySlug(slug string) (int64, error)
	WithTx(tx *gorm.DB) ProductRepository
	Transaction(fn func(tx *gorm.DB) error) error
}

// GormProductRepository GORM 实现
type GormProductRepository struct {
	db *gorm.DB
}

// NewProductRepository 创建商品仓库
func NewProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// WithTx 绑定事务
func (r *GormProductRepository) WithTx(tx *gorm.DB) ProductRepository {
	if tx == nil {
		return r
	}
	return &GormProductRepository{db: tx}
}

// Transaction 执行事务
func (r *GormProductRepository) Transaction(fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

func (r *GormProductRepository) withVariants(query *gorm.DB) *gorm.DB {
	return query.Preload("Variants", func(db *gorm.DB) *gorm.DB {
		return db.Order("variants.id ASC")
	})
}

// List 商品列表（含规格），按 ID 升序
func (r *GormProductRepository) List(filter ProductListFilter) ([]models.Product, error) {
	query := r.withVariants(r.db.Model(&models.Product{}))

	if filter.Category != "" {
		query = query.Joins("JOIN categories ON categories.id = products.category_id").
			Where(equalFoldCondition("categories.name"), filter.Category)
	}
	if filter.Brand != "" {
		query = query.Where(equalFoldCondition("products.brand"), filter.Brand)
	}
	if filter.Search != "" {
		condition, argCount := buildContainsCondition(r.db, []string{"products.name", "products.description", "products.brand"})
		query = query.Where(condition, repeatLikeArgs(containsPattern(filter.Search), argCount)...)
	}

	var products []models.Product
	if err := query.Order("products.id ASC").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// GetByID 根据 ID 获取商品（含规格）
func (r *GormProductRepository) GetByID(id uint) (*models.Product, error) {
	var product models.Product
	if err := r.withVariants(r.db).First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}

// Create 创建商品（规格随关联一并写入）
func (r *GormProductRepository) Create(product *models.Product) error {
	return r.db.Create(product).Error
}

// Update 按字段集合部分更新商品，返回影响行数
func (r *GormProductRepository) Update(id uint, updates map[string]interface{}) (int64, error) {
	result := r.db.Model(&models.Product{}).Where("id = ?", id).Updates(updates)
	return result.RowsAffected, result.Error
}

// Delete 删除商品、其规格以及引用它的购物车行；调用方负责包裹事务
func (r *GormProductRepository) Delete(id uint) (int64, error) {
	if err := r.db.Where("product_id = ?", id).Delete(&models.CartItem{}).Error; err != nil {
		return 0, err
	}
	if err := r.db.Where("product_id = ?", id).Delete(&models.Variant{}).Error; err != nil {
		return 0, err
	}
	result := r.db.Delete(&models.Product{}, id)
	return result.RowsAffected, result.Error
}

// CountBySlug 统计 slug 数量
func (r *GormProductRepository) CountBySlug(slug string) (int64, error) {
	var count int64
	if err := r.db.Model(&models.Product{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
