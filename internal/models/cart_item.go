package models

import "time"

// CartItem 购物车行，(user, product, variant) 唯一，删除即物理删除
type CartItem struct {
	ID        uint      `gorm:"primarykey" json:"id"`                                              // 主键
	UserID    uint      `gorm:"not null;uniqueIndex:idx_cart_user_product_variant" json:"user_id"` // 用户ID
	ProductID uint      `gorm:"not null;uniqueIndex:idx_cart_user_product_variant" json:"product_id"`
	VariantID uint      `gorm:"not null;uniqueIndex:idx_cart_user_product_variant;index" json:"variant_id"`
	Quantity  int       `gorm:"not null" json:"quantity"` // 数量（>=1）
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (CartItem) TableName() string {
	return "cart_items"
}

// CartLineView 购物车行与规格、商品的联表视图
type CartLineView struct {
	ID            uint   `json:"id"`
	ProductID     uint   `json:"product_id"`
	VariantID     uint   `json:"variant_id"`
	Quantity      int    `json:"quantity"`
	ProductName   string `json:"product_name"`
	Brand         string `json:"brand"`
	ImageURL      string `json:"image_url"`
	Price         Money  `json:"price"`
	StockQuantity int    `json:"stock_quantity"`
	VariantType   string `json:"variant_type"`
	VariantValue  string `json:"variant_value"`
}

// LineTotal 行小计
func (v CartLineView) LineTotal() Money {
	return v.Price.MulInt(v.Quantity)
}
