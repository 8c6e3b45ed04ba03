package repository

import (
	"errors"
	"time"

	"github.com/storefront-next/internal/constants"
	"github.com/storefront-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderRepository 订单数据访问接口
type OrderRepository interface {
	Create(order *models.Order, items []models.OrderItem) error
	GetByID(id uint) (*models.Order, error)
	ListByUser(userID uint) ([]models.Order, error)
	LockByID(id uint) (*models.Order, error)
	LockLatestPendingByUser(userID uint) (*models.Order, error)
	LockByPaymentIntent(intentID string) (*models.Order, error)
	LockPendingByUser(userID uint) ([]models.Order, error)
	SetPaymentIntent(id uint, intentID string) error
	TransitionStatus(id uint, from, to string, updates map[string]interface{}) (int64, error)
	ListOverduePendingIDs(now time.Time, limit int) ([]uint, error)
	ListItems(orderID uint) ([]models.OrderItem, error)
	WithTx(tx *gorm.DB) OrderRepository
	Transaction(fn func(tx *gorm.DB) error) error
}

// GormOrderRepository GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓库
func NewOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// WithTx 绑定事务
func (r *GormOrderRepository) WithTx(tx *gorm.DB) OrderRepository {
	if tx == nil {
		return r
	}
	return &GormOrderRepository{db: tx}
}

// Transaction 执行事务
func (r *GormOrderRepository) Transaction(fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

func (r *GormOrderRepository) withItems(query *gorm.DB) *gorm.DB {
	return query.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("order_items.id ASC")
	})
}

// Create 创建订单与订单项
func (r *GormOrderRepository) Create(order *models.Order, items []models.OrderItem) error {
	if err := r.db.Omit("Items").Create(order).Error; err != nil {
		return err
	}
	for i := range items {
		items[i].OrderID = order.ID
	}
	if len(items) > 0 {
		if err := r.db.Create(&items).Error; err != nil {
			return err
		}
	}
	order.Items = items
	return nil
}

// GetByID 根据 ID 获取订单（含订单项）
func (r *GormOrderRepository) GetByID(id uint) (*models.Order, error) {
	var order models.Order
	if err := r.withItems(r.db).First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// ListByUser 用户订单列表（含订单项），最新在前
func (r *GormOrderRepository) ListByUser(userID uint) ([]models.Order, error) {
	var orders []models.Order
	err := r.withItems(r.db).
		Where("user_id = ?", userID).
		Order("order_date DESC").
		Order("id DESC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *GormOrderRepository) lockOne(query *gorm.DB) (*models.Order, error) {
	var order models.Order
	if err := query.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// LockByID 加锁读取订单
func (r *GormOrderRepository) LockByID(id uint) (*models.Order, error) {
	return r.lockOne(r.db.Where("id = ?", id))
}

// LockLatestPendingByUser 加锁读取用户最近一笔待支付订单
func (r *GormOrderRepository) LockLatestPendingByUser(userID uint) (*models.Order, error) {
	return r.lockOne(r.db.
		Where("user_id = ? AND status = ?", userID, constants.OrderStatusPending).
		Order("id DESC"))
}

// LockByPaymentIntent 按支付意图 ID 加锁读取订单
func (r *GormOrderRepository) LockByPaymentIntent(intentID string) (*models.Order, error) {
	if intentID == "" {
		return nil, nil
	}
	return r.lockOne(r.db.Where("payment_intent_id = ?", intentID))
}

// LockPendingByUser 加锁读取用户全部待支付订单
func (r *GormOrderRepository) LockPendingByUser(userID uint) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND status = ?", userID, constants.OrderStatusPending).
		Order("id ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// SetPaymentIntent 回写支付意图 ID
func (r *GormOrderRepository) SetPaymentIntent(id uint, intentID string) error {
	return r.db.Model(&models.Order{}).Where("id = ?", id).Update("payment_intent_id", intentID).Error
}

// TransitionStatus 条件状态流转（仅当当前状态为 from 时生效），返回影响行数
func (r *GormOrderRepository) TransitionStatus(id uint, from, to string, updates map[string]interface{}) (int64, error) {
	values := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	for key, value := range updates {
		values[key] = value
	}
	result := r.db.Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	return result.RowsAffected, result.Error
}

// ListOverduePendingIDs 查询已过支付截止时间的待支付订单
func (r *GormOrderRepository) ListOverduePendingIDs(now time.Time, limit int) ([]uint, error) {
	if limit <= 0 {
		limit = 100
	}
	var ids []uint
	err := r.db.Model(&models.Order{}).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", constants.OrderStatusPending, now).
		Order("id ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ListItems 获取订单项快照
func (r *GormOrderRepository) ListItems(orderID uint) ([]models.OrderItem, error) {
	var items []models.OrderItem
	if err := r.db.Where("order_id = ?", orderID).Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
