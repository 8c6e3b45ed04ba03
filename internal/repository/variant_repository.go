package repository

import (
	"errors"

	"github.com/storefront-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VariantRepository 商品规格数据访问接口
type VariantRepository interface {
	GetByID(id uint) (*models.Variant, error)
	Create(variant *models.Variant) error
	LockByIDs(ids []uint) ([]models.Variant, error)
	DecrementStock(id uint, quantity int) (int64, error)
	RestoreStock(id uint, quantity int) (int64, error)
	WithTx(tx *gorm.DB) VariantRepository
}

// GormVariantRepository GORM 实现
type GormVariantRepository struct {
	db *gorm.DB
}

// NewVariantRepository 创建规格仓库
func NewVariantRepository(db *gorm.DB) *GormVariantRepository {
	return &GormVariantRepository{db: db}
}

// WithTx 绑定事务
func (r *GormVariantRepository) WithTx(tx *gorm.DB) VariantRepository {
	if tx == nil {
		return r
	}
	return &GormVariantRepository{db: tx}
}

// GetByID 根据 ID 获取规格
func (r *GormVariantRepository) GetByID(id uint) (*models.Variant, error) {
	if id == 0 {
		return nil, errors.New("invalid variant id")
	}
	var variant models.Variant
	if err := r.db.First(&variant, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &variant, nil
}

// Create 创建规格
func (r *GormVariantRepository) Create(variant *models.Variant) error {
	return r.db.Create(variant).Error
}

// LockByIDs 按 ID 升序加行锁读取规格（SELECT ... FOR UPDATE），需在事务内调用
func (r *GormVariantRepository) LockByIDs(ids []uint) ([]models.Variant, error) {
	if len(ids) == 0 {
		return []models.Variant{}, nil
	}
	var variants []models.Variant
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&variants).Error
	if err != nil {
		return nil, err
	}
	return variants, nil
}

// DecrementStock 条件扣减库存，库存不足时影响行数为 0
func (r *GormVariantRepository) DecrementStock(id uint, quantity int) (int64, error) {
	if id == 0 || quantity <= 0 {
		return 0, errors.New("invalid stock decrement")
	}
	result := r.db.Model(&models.Variant{}).
		Where("id = ? AND stock_quantity >= ?", id, quantity).
		UpdateColumn("stock_quantity", gorm.Expr("stock_quantity - ?", quantity))
	return result.RowsAffected, result.Error
}

// RestoreStock 回补库存（订单取消时调用）
func (r *GormVariantRepository) RestoreStock(id uint, quantity int) (int64, error) {
	if id == 0 || quantity <= 0 {
		return 0, errors.New("invalid stock restore")
	}
	result := r.db.Model(&models.Variant{}).
		Where("id = ?", id).
		UpdateColumn("stock_quantity", gorm.Expr("stock_quantity + ?", quantity))
	return result.RowsAffected, result.Error
}
