package service

import (
	"context"
	"fmt"
	"time"

	"github.com/storefront-next/internal/constants"
	"github.com/storefront-next/internal/models"
	"github.com/storefront-next/internal/repository"
)

// releasePendingOrder 待支付 → 已取消，并回补订单占用的库存
// 调用方需在事务内持有订单行锁，仓库均已绑定该事务
func releasePendingOrder(orderRepo repository.OrderRepository, variantRepo repository.VariantRepository, order *models.Order, now time.Time) error {
	affected, err := orderRepo.TransitionStatus(order.ID, constants.OrderStatusPending, constants.OrderStatusCanceled, map[string]interface{}{
		"canceled_at": now,
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderNotPending
	}

	items, err := orderRepo.ListItems(order.ID)
	if err != nil {
		return err
	}
	for _, item := range items {
		if item.VariantID == 0 || item.Quantity <= 0 {
			continue
		}
		if _, err := variantRepo.RestoreStock(item.VariantID, item.Quantity); err != nil {
			return err
		}
	}
	order.Status = constants.OrderStatusCanceled
	order.CanceledAt = &now
	order.Items = items
	return nil
}

// cancelOrderIntent 作废订单的支付意图，保证取消后的订单无法再被支付
// 未配置网关或订单尚无意图时跳过；意图不可取消时错误链包含 stripe.ErrIntentNotCancelable
func cancelOrderIntent(ctx context.Context, gateway PaymentGateway, order *models.Order) error {
	if gateway == nil || order == nil || order.PaymentIntentID == "" {
		return nil
	}
	if err := gateway.CancelIntent(ctx, order.PaymentIntentID); err != nil {
		return fmt.Errorf("%w: order %d: %w", ErrPaymentCancelFailed, order.ID, err)
	}
	return nil
}
