package worker

import (
	"context"
	"fmt"

	"github.com/storefront-next/internal/logger"
	"github.com/storefront-next/internal/provider"
	"github.com/storefront-next/internal/queue"

	"github.com/hibiken/asynq"
)

// OrderExpirer 订单超时取消能力
type OrderExpirer interface {
	ExpirePending(ctx context.Context, orderID uint) (bool, error)
	ExpireOverdue(ctx context.Context, limit int) (int, error)
}

// Consumer 异步任务消费者
type Consumer struct {
	orders OrderExpirer
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	if c == nil || c.OrderService == nil {
		return &Consumer{}
	}
	return &Consumer{orders: c.OrderService}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskOrderTimeoutCancel, c.handleOrderTimeoutCancel)
	mux.HandleFunc(queue.TaskOrderPaid, c.handleOrderPaid)
}

func (c *Consumer) handleOrderTimeoutCancel(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_order_timeout_cancel_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.OrderTimeoutCancelPayload
	if err := queue.DecodePayload(task, &payload); err != nil {
		logger.Warnw("worker_order_timeout_cancel_unmarshal_failed", "error", err)
		// 载荷损坏重试无意义
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.OrderID == 0 {
		logger.Debugw("worker_order_timeout_cancel_skip_invalid_payload", "order_id", payload.OrderID)
		return nil
	}
	if c.orders == nil {
		logger.Warnw("worker_order_timeout_cancel_skip_order_service_nil", "order_id", payload.OrderID)
		return nil
	}
	expired, err := c.orders.ExpirePending(ctx, payload.OrderID)
	if err != nil {
		logger.Warnw("worker_order_timeout_cancel_failed", "order_id", payload.OrderID, "error", err)
		return err
	}
	if expired {
		logger.Infow("worker_order_expired", "order_id", payload.OrderID)
	} else {
		logger.Debugw("worker_order_timeout_cancel_skip_not_pending", "order_id", payload.OrderID)
	}
	return nil
}

func (c *Consumer) handleOrderPaid(_ context.Context, task *asynq.Task) error {
	if task == nil {
		return nil
	}
	var payload queue.OrderPaidPayload
	if err := queue.DecodePayload(task, &payload); err != nil {
		logger.Warnw("worker_order_paid_unmarshal_failed", "error", err)
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	logger.Infow("worker_order_paid",
		"order_id", payload.OrderID,
		"user_id", payload.UserID,
		"source", payload.Source,
	)
	return nil
}

// sweepOverdue 兜底扫描：队列不可用或任务丢失时仍能释放库存
func (c *Consumer) sweepOverdue(ctx context.Context, limit int) {
	if c == nil || c.orders == nil {
		return
	}
	expired, err := c.orders.ExpireOverdue(ctx, limit)
	if err != nil {
		logger.Warnw("worker_sweep_overdue_failed", "expired", expired, "error", err)
		return
	}
	if expired > 0 {
		logger.Infow("worker_sweep_overdue_done", "expired", expired)
	}
}
