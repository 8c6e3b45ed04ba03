package models

import "time"

// Variant 商品规格（价格 + 库存维度）
type Variant struct {
	ID            uint      `gorm:"primarykey" json:"id"`                                       // 主键
	ProductID     uint      `gorm:"not null;index" json:"product_id"`                           // 商品ID
	Price         Money     `gorm:"type:decimal(20,2);not null;default:0" json:"price"`         // 单价
	StockQuantity int       `gorm:"not null;default:0" json:"stock_quantity"`                   // 可售库存
	VariantType   string    `gorm:"type:varchar(64);not null;default:''" json:"variant_type"`   // 规格类型（如 size）
	VariantValue  string    `gorm:"type:varchar(128);not null;default:''" json:"variant_value"` // 规格值（如 XL）
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Variant) TableName() string {
	return "variants"
}
