package models

import "time"

// OrderItem 订单项表，下单时快照商品与规格信息
type OrderItem struct {
	ID           uint      `gorm:"primarykey" json:"id"`                                     // 主键
	OrderID      uint      `gorm:"index;not null" json:"order_id"`                           // 订单ID
	ProductID    uint      `gorm:"index;not null" json:"product_id"`                         // 商品ID
	VariantID    uint      `gorm:"index;not null" json:"variant_id"`                         // 规格ID
	ProductName  string    `gorm:"type:varchar(200);not null" json:"product_name"`           // 商品名称快照
	VariantType  string    `gorm:"type:varchar(64)" json:"variant_type"`                     // 规格类型快照
	VariantValue string    `gorm:"type:varchar(128)" json:"variant_value"`                   // 规格值快照
	UnitPrice    Money     `gorm:"type:decimal(20,2);not null;default:0" json:"unit_price"`  // 单价
	Quantity     int       `gorm:"not null" json:"quantity"`                                 // 数量
	TotalPrice   Money     `gorm:"type:decimal(20,2);not null;default:0" json:"total_price"` // 小计
	CreatedAt    time.Time `json:"created_at"`
}

// TableName 指定表名
func (OrderItem) TableName() string {
	return "order_items"
}
