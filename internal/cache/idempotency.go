package cache

import (
	"context"
	"strings"
	"time"
)

const webhookEventTTL = 72 * time.Hour

func webhookEventKey(provider, eventID string) string {
	return "webhook:" + strings.ToLower(strings.TrimSpace(provider)) + ":" + strings.TrimSpace(eventID)
}

// ClaimWebhookEvent 占用一次 webhook 事件处理权，重复投递返回 false
func (s *Store) ClaimWebhookEvent(ctx context.Context, provider, eventID string) (bool, error) {
	if strings.TrimSpace(eventID) == "" {
		return true, nil
	}
	return s.SetNX(ctx, webhookEventKey(provider, eventID), time.Now().Unix(), webhookEventTTL)
}

// ReleaseWebhookEvent 处理失败时释放占用，允许提供方重试
func (s *Store) ReleaseWebhookEvent(ctx context.Context, provider, eventID string) error {
	if strings.TrimSpace(eventID) == "" {
		return nil
	}
	return s.Del(ctx, webhookEventKey(provider, eventID))
}
