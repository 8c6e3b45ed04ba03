package models

import "time"

// Product 商品表
type Product struct {
	ID          uint      `gorm:"primarykey" json:"id"`                               // 主键
	CategoryID  uint      `gorm:"not null;index" json:"category_id"`                  // 分类ID
	Name        string    `gorm:"type:varchar(200);not null;index" json:"name"`       // 名称
	Slug        string    `gorm:"type:varchar(240);uniqueIndex;not null" json:"slug"` // 唯一标识
	Description string    `gorm:"type:text" json:"description"`                       // 描述
	Brand       string    `gorm:"type:varchar(120);index" json:"brand"`               // 品牌
	ImageURL    string    `gorm:"type:varchar(500)" json:"image_url"`                 // 主图
	CreatedAt   time.Time `gorm:"index" json:"created_at"`                            // 创建时间
	UpdatedAt   time.Time `json:"updated_at"`                                         // 更新时间

	// 关联
	Category *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"` // 分类信息
	Variants []Variant `gorm:"foreignKey:ProductID" json:"variants"`            // 规格列表
}

// TableName 指定表名
func (Product) TableName() string {
	return "products"
}
