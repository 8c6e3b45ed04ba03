package repository

import (
	"errors"

	"github.com/storefront-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CartRepository 购物车数据访问接口
type CartRepository interface {
	FindLineForUpdate(userID, productID, variantID uint) (*models.CartItem, error)
	Create(item *models.CartItem) error
	Increment(id uint, quantity int) error
	SetQuantity(userID, productID, variantID uint, quantity int) (int64, error)
	Get(userID, productID, variantID uint) (*models.CartItem, error)
	Remove(userID, productID, variantID uint) (int64, error)
	ClearByUser(userID uint) (int64, error)
	ListByUser(userID uint) ([]models.CartItem, error)
	ListWithPricing(userID uint) ([]models.CartLineView, error)
	WithTx(tx *gorm.DB) CartRepository
	Transaction(fn func(tx *gorm.DB) error) error
}

// GormCartRepository GORM 实现
type GormCartRepository struct {
	db *gorm.DB
}

// NewCartRepository 创建购物车仓库
func NewCartRepository(db *gorm.DB) *GormCartRepository {
	return &GormCartRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCartRepository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &GormCartRepository{db: tx}
}

// Transaction 执行事务
func (r *GormCartRepository) Transaction(fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

// FindLineForUpdate 加锁读取购物车行，不存在返回 nil
func (r *GormCartRepository) FindLineForUpdate(userID, productID, variantID uint) (*models.CartItem, error) {
	var item models.CartItem
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND product_id = ? AND variant_id = ?", userID, productID, variantID).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// Get 读取购物车行，不存在返回 nil
func (r *GormCartRepository) Get(userID, productID, variantID uint) (*models.CartItem, error) {
	var item models.CartItem
	err := r.db.Where("user_id = ? AND product_id = ? AND variant_id = ?", userID, productID, variantID).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// Create 新增购物车行
func (r *GormCartRepository) Create(item *models.CartItem) error {
	return r.db.Create(item).Error
}

// Increment 数量累加
func (r *GormCartRepository) Increment(id uint, quantity int) error {
	return r.db.Model(&models.CartItem{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"quantity":   gorm.Expr("quantity + ?", quantity),
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		}).Error
}

// SetQuantity 覆盖数量，返回影响行数
func (r *GormCartRepository) SetQuantity(userID, productID, variantID uint, quantity int) (int64, error) {
	result := r.db.Model(&models.CartItem{}).
		Where("user_id = ? AND product_id = ? AND variant_id = ?", userID, productID, variantID).
		Update("quantity", quantity)
	return result.RowsAffected, result.Error
}

// Remove 删除购物车行；variantID 为 0 时删除该商品的所有规格行
func (r *GormCartRepository) Remove(userID, productID, variantID uint) (int64, error) {
	query := r.db.Where("user_id = ? AND product_id = ?", userID, productID)
	if variantID > 0 {
		query = query.Where("variant_id = ?", variantID)
	}
	result := query.Delete(&models.CartItem{})
	return result.RowsAffected, result.Error
}

// ClearByUser 清空购物车，返回删除行数
func (r *GormCartRepository) ClearByUser(userID uint) (int64, error) {
	result := r.db.Where("user_id = ?", userID).Delete(&models.CartItem{})
	return result.RowsAffected, result.Error
}

// ListByUser 获取用户购物车原始行
func (r *GormCartRepository) ListByUser(userID uint) ([]models.CartItem, error) {
	var items []models.CartItem
	if err := r.db.Where("user_id = ?", userID).Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// ListWithPricing 购物车行联表规格与商品，返回定价视图
func (r *GormCartRepository) ListWithPricing(userID uint) ([]models.CartLineView, error) {
	var rows []models.CartLineView
	err := r.db.Table("cart_items").
		Select(`cart_items.id, cart_items.product_id, cart_items.variant_id, cart_items.quantity,
			products.name AS product_name, products.brand, products.image_url,
			variants.price, variants.stock_quantity, variants.variant_type, variants.variant_value`).
		Joins("JOIN variants ON variants.id = cart_items.variant_id").
		Joins("JOIN products ON products.id = cart_items.product_id").
		Where("cart_items.user_id = ?", userID).
		Order("cart_items.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
