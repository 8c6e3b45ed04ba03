package models

import "time"

// Order 订单表
type Order struct {
	ID              uint       `gorm:"primarykey" json:"id"`                                       // 主键
	UserID          uint       `gorm:"index;not null" json:"user_id"`                              // 用户ID
	Status          string     `gorm:"type:varchar(20);index;not null" json:"status"`              // 订单状态
	Currency        string     `gorm:"type:varchar(8);not null" json:"currency"`                   // 币种
	TotalPrice      Money      `gorm:"type:decimal(20,2);not null;default:0" json:"total_price"`   // 实付金额（含运费）
	ShippingCost    Money      `gorm:"type:decimal(20,2);not null;default:0" json:"shipping_cost"` // 运费
	PaymentIntentID string     `gorm:"type:varchar(128);index" json:"payment_intent_id,omitempty"` // 支付意图ID
	ShippingName    string     `gorm:"type:varchar(64)" json:"shipping_name,omitempty"`            // 收件人
	ShippingEmail   string     `gorm:"type:varchar(255)" json:"shipping_email,omitempty"`          // 收件邮箱
	ShippingAddress string     `gorm:"type:varchar(128)" json:"shipping_address,omitempty"`        // 收件地址
	ShippingCity    string     `gorm:"type:varchar(64)" json:"shipping_city,omitempty"`            // 城市
	ShippingPostal  string     `gorm:"type:varchar(16)" json:"shipping_postal_code,omitempty"`     // 邮编
	OrderDate       time.Time  `gorm:"index;not null" json:"order_date"`                           // 下单时间
	ExpiresAt       *time.Time `gorm:"index" json:"expires_at"`                                    // 支付截止时间
	PaidAt          *time.Time `gorm:"index" json:"paid_at"`                                       // 支付时间
	CanceledAt      *time.Time `gorm:"index" json:"canceled_at"`                                   // 取消时间
	RefundedAt      *time.Time `json:"refunded_at,omitempty"`                                      // 退款时间
	CreatedAt       time.Time  `json:"created_at"`                                                 // 创建时间
	UpdatedAt       time.Time  `json:"updated_at"`                                                 // 更新时间

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items"` // 订单项
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}
