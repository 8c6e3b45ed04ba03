package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/storefront-next/internal/constants"
	"github.com/storefront-next/internal/logger"
	"github.com/storefront-next/internal/metrics"
	"github.com/storefront-next/internal/models"
	"github.com/storefront-next/internal/payment/stripe"
	"github.com/storefront-next/internal/queue"
	"github.com/storefront-next/internal/repository"

	"go.uber.org/multierr"
	"gorm.io/gorm"
)

// 订单完成来源
const (
	FinalizeSourceAPI     = "api"
	FinalizeSourceWebhook = "webhook"
)

// FinalizeInput 订单完成输入
// OrderID / PaymentIntentID 均为空时回退到用户最近一笔待支付订单
type FinalizeInput struct {
	UserID          uint
	OrderID         uint
	PaymentIntentID string
	Source          string
}

// OrderDeps 订单服务依赖
type OrderDeps struct {
	OrderRepo   repository.OrderRepository
	CartRepo    repository.CartRepository
	VariantRepo repository.VariantRepository
	Gateway     PaymentGateway
	Queue       OrderTaskQueue
	Catalog     CatalogCache
	Metrics     *metrics.Recorder
}

// OrderService 订单服务：支付完成、取消/超时、历史查询
type OrderService struct {
	orderRepo   repository.OrderRepository
	cartRepo    repository.CartRepository
	variantRepo repository.VariantRepository
	gateway     PaymentGateway
	queue       OrderTaskQueue
	catalog     CatalogCache
	metrics     *metrics.Recorder
	now         func() time.Time
}

// NewOrderService 创建订单服务
func NewOrderService(deps OrderDeps) *OrderService {
	return &OrderService{
		orderRepo:   deps.OrderRepo,
		cartRepo:    deps.CartRepo,
		variantRepo: deps.VariantRepo,
		gateway:     deps.Gateway,
		queue:       deps.Queue,
		catalog:     deps.Catalog,
		metrics:     deps.Metrics,
		now:         time.Now,
	}
}

// Finalize 原子地将待支付订单标记为已支付并清空该用户购物车
func (s *OrderService) Finalize(ctx context.Context, input FinalizeInput) (*models.Order, error) {
	if input.UserID == 0 && input.OrderID == 0 && input.PaymentIntentID == "" {
		return nil, ErrMissingUserID
	}
	source := input.Source
	if source == "" {
		source = FinalizeSourceAPI
	}

	var finalized *models.Order
	err := s.orderRepo.Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		order, err := s.lockFinalizeTarget(orderRepo, input)
		if err != nil {
			return err
		}

		now := s.now()
		affected, err := orderRepo.TransitionStatus(order.ID, constants.OrderStatusPending, constants.OrderStatusPaid, map[string]interface{}{
			"paid_at": now,
		})
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrOrderNotPending
		}
		if _, err := s.cartRepo.WithTx(tx).ClearByUser(order.UserID); err != nil {
			return err
		}
		order.Status = constants.OrderStatusPaid
		order.PaidAt = &now
		finalized = order
		return nil
	})
	if err != nil {
		s.metrics.FinalizeOutcome(source, finalizeOutcome(err))
		return nil, err
	}

	s.metrics.FinalizeOutcome(source, "paid")
	if s.queue != nil {
		payload := queue.OrderPaidPayload{OrderID: finalized.ID, UserID: finalized.UserID, Source: source}
		if err := s.queue.EnqueueOrderPaid(payload); err != nil {
			logger.Warnw("order_enqueue_paid_failed", "order_id", finalized.ID, "error", err)
		}
	}
	logger.Infow("order_finalized", "order_id", finalized.ID, "user_id", finalized.UserID, "source", source)

	order, err := s.orderRepo.GetByID(finalized.ID)
	if err != nil || order == nil {
		return finalized, nil
	}
	return withItems(order), nil
}

func (s *OrderService) lockFinalizeTarget(orderRepo repository.OrderRepository, input FinalizeInput) (*models.Order, error) {
	var (
		order    *models.Order
		err      error
		explicit = true
	)
	switch {
	case input.OrderID > 0:
		order, err = orderRepo.LockByID(input.OrderID)
	case input.PaymentIntentID != "":
		order, err = orderRepo.LockByPaymentIntent(input.PaymentIntentID)
	default:
		explicit = false
		order, err = orderRepo.LockLatestPendingByUser(input.UserID)
	}
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrNoPendingOrder
	}
	if input.UserID > 0 && order.UserID != input.UserID {
		return nil, ErrNoPendingOrder
	}
	if explicit && order.Status != constants.OrderStatusPending {
		return nil, ErrOrderNotPending
	}
	return order, nil
}

// ExpirePending 支付超时取消；订单已完成、已取消或未到期时视为无事可做
// 支付意图已进入不可取消状态（处理中/已成功）时保留订单，等待支付回调
func (s *OrderService) ExpirePending(ctx context.Context, orderID uint) (bool, error) {
	now := s.now()
	_, err := s.cancel(ctx, constants.OrderCancelReasonExpired, true, func(orderRepo repository.OrderRepository) (*models.Order, error) {
		order, err := orderRepo.LockByID(orderID)
		if err != nil || order == nil {
			return order, err
		}
		if order.ExpiresAt == nil || order.ExpiresAt.After(now) {
			return nil, errOrderNotDue
		}
		return order, nil
	})
	switch {
	case err == nil:
		s.metrics.OrderExpired()
		return true, nil
	case errors.Is(err, stripe.ErrIntentNotCancelable):
		logger.Warnw("order_expire_skipped_payment_in_progress", "order_id", orderID, "error", err)
		return false, nil
	case errors.Is(err, ErrOrderNotFound), errors.Is(err, ErrOrderNotPending), errors.Is(err, errOrderNotDue):
		return false, nil
	default:
		return false, err
	}
}

var errOrderNotDue = errors.New("order payment window still open")

// ExpireOverdue 扫描并取消已过支付截止时间的订单，返回取消数量
func (s *OrderService) ExpireOverdue(ctx context.Context, limit int) (int, error) {
	ids, err := s.orderRepo.ListOverduePendingIDs(s.now(), limit)
	if err != nil {
		return 0, err
	}
	expired := 0
	var errs error
	for _, id := range ids {
		ok, err := s.ExpirePending(ctx, id)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if ok {
			expired++
		}
	}
	return expired, errs
}

// HandlePaymentEvent 处理已验签的支付事件
func (s *OrderService) HandlePaymentEvent(ctx context.Context, event *stripe.WebhookEvent) error {
	if event == nil {
		return nil
	}
	switch event.Type {
	case constants.StripeEventPaymentIntentSucceeded:
		return s.handlePaymentSucceeded(ctx, event)
	case constants.StripeEventPaymentIntentFailed, constants.StripeEventPaymentIntentCanceled:
		return s.handlePaymentFailed(ctx, event)
	default:
		logger.Debugw("payment_event_ignored", "event_id", event.ID, "type", event.Type)
		return nil
	}
}

func (s *OrderService) handlePaymentSucceeded(ctx context.Context, event *stripe.WebhookEvent) error {
	_, err := s.Finalize(ctx, FinalizeInput{PaymentIntentID: event.PaymentIntentID, Source: FinalizeSourceWebhook})
	if errors.Is(err, ErrNoPendingOrder) {
		if orderID := event.MetadataUint(constants.PaymentMetadataOrderID); orderID > 0 {
			_, err = s.Finalize(ctx, FinalizeInput{
				UserID:  event.MetadataUint(constants.PaymentMetadataUserID),
				OrderID: orderID,
				Source:  FinalizeSourceWebhook,
			})
		}
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrOrderNotPending):
		return s.settleLatePayment(ctx, event)
	case errors.Is(err, ErrNoPendingOrder):
		logger.Warnw("payment_succeeded_order_missing", "event_id", event.ID, "payment_intent_id", event.PaymentIntentID)
		return nil
	default:
		return err
	}
}

// settleLatePayment 处理非待支付订单收到的支付成功：
// 已支付/已退款为重复投递；已取消订单的库存已释放，款项全额退回并标记为已退款
func (s *OrderService) settleLatePayment(ctx context.Context, event *stripe.WebhookEvent) error {
	var refunded *models.Order
	err := s.orderRepo.Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		order, err := lockEventOrder(orderRepo, event)
		if err != nil {
			return err
		}
		if order == nil || order.Status != constants.OrderStatusCanceled {
			return nil
		}
		if s.gateway == nil {
			return ErrPaymentGatewayUnavailable
		}
		intentID := event.PaymentIntentID
		if intentID == "" {
			intentID = order.PaymentIntentID
		}
		metadata := map[string]string{
			constants.PaymentMetadataOrderID: strconv.FormatUint(uint64(order.ID), 10),
			constants.PaymentMetadataUserID:  strconv.FormatUint(uint64(order.UserID), 10),
		}
		if err := s.gateway.RefundIntent(ctx, intentID, metadata); err != nil {
			return fmt.Errorf("%w: order %d: %w", ErrPaymentRefundFailed, order.ID, err)
		}
		now := s.now()
		affected, err := orderRepo.TransitionStatus(order.ID, constants.OrderStatusCanceled, constants.OrderStatusRefunded, map[string]interface{}{
			"refunded_at": now,
		})
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrOrderNotPending
		}
		order.Status = constants.OrderStatusRefunded
		order.RefundedAt = &now
		refunded = order
		return nil
	})
	if err != nil {
		logger.Errorw("payment_succeeded_order_canceled_refund_failed",
			"event_id", event.ID,
			"payment_intent_id", event.PaymentIntentID,
			"error", err,
		)
		return err
	}
	if refunded == nil {
		logger.Infow("payment_succeeded_duplicate", "event_id", event.ID, "payment_intent_id", event.PaymentIntentID)
		return nil
	}
	s.metrics.FinalizeOutcome(FinalizeSourceWebhook, "refunded")
	logger.Errorw("payment_succeeded_order_canceled_refunded",
		"event_id", event.ID,
		"order_id", refunded.ID,
		"user_id", refunded.UserID,
		"payment_intent_id", event.PaymentIntentID,
		"amount", event.AmountMinor,
		"currency", event.Currency,
	)
	return nil
}

func lockEventOrder(orderRepo repository.OrderRepository, event *stripe.WebhookEvent) (*models.Order, error) {
	order, err := orderRepo.LockByPaymentIntent(event.PaymentIntentID)
	if err != nil || order != nil {
		return order, err
	}
	if orderID := event.MetadataUint(constants.PaymentMetadataOrderID); orderID > 0 {
		return orderRepo.LockByID(orderID)
	}
	return nil, nil
}

func (s *OrderService) handlePaymentFailed(ctx context.Context, event *stripe.WebhookEvent) error {
	// payment_failed 后意图仍可重新确认，需同时作废；canceled 事件的意图已失效
	cancelIntent := event.Type == constants.StripeEventPaymentIntentFailed
	_, err := s.cancel(ctx, constants.OrderCancelReasonPaymentFailed, cancelIntent, func(orderRepo repository.OrderRepository) (*models.Order, error) {
		return lockEventOrder(orderRepo, event)
	})
	switch {
	case err == nil, errors.Is(err, ErrOrderNotFound), errors.Is(err, ErrOrderNotPending):
		return nil
	case errors.Is(err, stripe.ErrIntentNotCancelable):
		// 用户已换卡重试并进入处理中，等待 succeeded 事件
		logger.Infow("payment_failed_intent_retried", "event_id", event.ID, "payment_intent_id", event.PaymentIntentID)
		return nil
	default:
		return err
	}
}

func (s *OrderService) cancel(ctx context.Context, reason string, cancelIntent bool, lock func(repository.OrderRepository) (*models.Order, error)) (*models.Order, error) {
	var canceled *models.Order
	err := s.orderRepo.Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		order, err := lock(orderRepo)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrOrderNotFound
		}
		if order.Status != constants.OrderStatusPending {
			return ErrOrderNotPending
		}
		if cancelIntent {
			if err := cancelOrderIntent(ctx, s.gateway, order); err != nil {
				return err
			}
		}
		if err := releasePendingOrder(orderRepo, s.variantRepo.WithTx(tx), order, s.now()); err != nil {
			return err
		}
		canceled = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.catalog != nil {
		s.catalog.InvalidateCache(ctx)
	}
	logger.Infow("order_canceled", "order_id", canceled.ID, "reason", reason)
	return withItems(canceled), nil
}

// ListByUser 用户订单历史（新到旧），items 永不为 null
func (s *OrderService) ListByUser(userID uint) ([]models.Order, error) {
	if userID == 0 {
		return nil, ErrMissingUserID
	}
	orders, err := s.orderRepo.ListByUser(userID)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		return []models.Order{}, nil
	}
	for i := range orders {
		if orders[i].Items == nil {
			orders[i].Items = []models.OrderItem{}
		}
	}
	return orders, nil
}

// GetByID 订单详情（含订单项）
func (s *OrderService) GetByID(orderID uint) (*models.Order, error) {
	if orderID == 0 {
		return nil, ErrOrderNotFound
	}
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return withItems(order), nil
}

func withItems(order *models.Order) *models.Order {
	if order != nil && order.Items == nil {
		order.Items = []models.OrderItem{}
	}
	return order
}

func finalizeOutcome(err error) string {
	switch {
	case errors.Is(err, ErrNoPendingOrder):
		return "not_found"
	case errors.Is(err, ErrOrderNotPending):
		return "not_pending"
	default:
		return "error"
	}
}
