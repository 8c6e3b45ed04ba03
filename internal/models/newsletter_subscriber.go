package models

import "time"

// NewsletterSubscriber 邮件订阅者
type NewsletterSubscriber struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	SubscribedAt time.Time `gorm:"not null" json:"subscribed_at"`
}

// TableName 指定表名
func (NewsletterSubscriber) TableName() string {
	return "newsletter_subscribers"
}
