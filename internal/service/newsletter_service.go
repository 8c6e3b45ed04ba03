package service

import (
	"time"

	"github.com/storefront-next/internal/models"
	"github.com/storefront-next/internal/repository"
)

// NewsletterService 邮件订阅服务
type NewsletterService struct {
	repo repository.NewsletterRepository
}

// NewNewsletterService 创建邮件订阅服务
func NewNewsletterService(repo repository.NewsletterRepository) *NewsletterService {
	return &NewsletterService{repo: repo}
}

// Subscribe 订阅；重复订阅返回 ErrAlreadySubscribed
func (s *NewsletterService) Subscribe(email string) (*models.NewsletterSubscriber, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	existing, err := s.repo.GetByEmail(normalized)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadySubscribed
	}
	subscriber := &models.NewsletterSubscriber{Email: normalized, SubscribedAt: time.Now()}
	if err := s.repo.Create(subscriber); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, ErrAlreadySubscribed
		}
		return nil, err
	}
	return subscriber, nil
}
