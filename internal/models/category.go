package models

import "time"

// Category 分类表
type Category struct {
	ID          uint      `gorm:"primarykey" json:"id"`                               // 主键
	Name        string    `gorm:"type:varchar(120);uniqueIndex;not null" json:"name"` // 名称（大小写不敏感去重由服务层保证）
	Slug        string    `gorm:"type:varchar(160);uniqueIndex;not null" json:"slug"` // 唯一标识
	Description string    `gorm:"type:text" json:"description"`                       // 描述
	CreatedAt   time.Time `gorm:"index" json:"created_at"`                            // 创建时间
}

// TableName 指定表名
func (Category) TableName() string {
	return "categories"
}

// CategorySummary 分类概览（含商品数）
type CategorySummary struct {
	ID           uint   `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	ProductCount int64  `json:"product_count"`
}
