package public

import (
	"errors"
	"io"

	"github.com/storefront-next/internal/constants"
	handlershared "github.com/storefront-next/internal/http/handlers/shared"
	"github.com/storefront-next/internal/http/response"
	"github.com/storefront-next/internal/payment/stripe"

	"github.com/gin-gonic/gin"
)

const maxWebhookBodyBytes = 64 << 10

// StripeWebhook 处理 Stripe 回调：验签、按事件 ID 去重后交给订单服务
func (h *Handler) StripeWebhook(c *gin.Context) {
	if h.PaymentGateway == nil {
		respondError(c, response.CodeInternal, "payment gateway unavailable", nil)
		return
	}
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", nil)
		return
	}
	event, err := h.PaymentGateway.ParseWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		handlershared.RespondAppError(c, webhookParseError(err))
		return
	}

	ctx := c.Request.Context()
	claimed, err := h.Cache.ClaimWebhookEvent(ctx, constants.PaymentProviderStripe, event.ID)
	if err != nil {
		// 去重存储不可用时继续处理，订单状态迁移本身是条件更新
		requestLog(c).Warnw("stripe_webhook_claim_failed", "event_id", event.ID, "error", err)
		claimed = true
	}
	if !claimed {
		requestLog(c).Infow("stripe_webhook_duplicate", "event_id", event.ID, "type", event.Type)
		response.SuccessWithMsg(c, "duplicate event", gin.H{"received": true})
		return
	}

	if err := h.OrderService.HandlePaymentEvent(ctx, event); err != nil {
		if releaseErr := h.Cache.ReleaseWebhookEvent(ctx, constants.PaymentProviderStripe, event.ID); releaseErr != nil {
			requestLog(c).Warnw("stripe_webhook_release_failed", "event_id", event.ID, "error", releaseErr)
		}
		respondError(c, response.CodeInternal, "webhook processing failed", err)
		return
	}
	response.Success(c, gin.H{"received": true})
}

// webhookParseError 配置缺失为内部错误，其余（签名、载荷）一律按 400 拒绝
func webhookParseError(err error) *response.AppError {
	if errors.Is(err, stripe.ErrConfigInvalid) {
		return response.WrapError(response.CodeInternal, "webhook not configured", err)
	}
	return response.WrapError(response.CodeBadRequest, "invalid signature", err)
}
