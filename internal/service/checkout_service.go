package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/storefront-next/internal/config"
	"github.com/storefront-next/internal/constants"
	"github.com/storefront-next/internal/logger"
	"github.com/storefront-next/internal/metrics"
	"github.com/storefront-next/internal/models"
	"github.com/storefront-next/internal/payment/stripe"
	"github.com/storefront-next/internal/queue"
	"github.com/storefront-next/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentGateway 支付网关（创建、作废、退款）
type PaymentGateway interface {
	CreateIntent(ctx context.Context, input stripe.IntentInput) (*stripe.Intent, error)
	CancelIntent(ctx context.Context, intentID string) error
	RefundIntent(ctx context.Context, intentID string, metadata map[string]string) error
}

// OrderTaskQueue 订单异步任务投递
type OrderTaskQueue interface {
	EnqueueOrderTimeoutCancel(payload queue.OrderTimeoutCancelPayload, delay time.Duration) error
	EnqueueOrderPaid(payload queue.OrderPaidPayload) error
}

// CatalogCache 目录缓存失效
type CatalogCache interface {
	InvalidateCache(ctx context.Context)
}

// ShippingInfo 收货信息（全部可选）
type ShippingInfo struct {
	Name       string `json:"name" validate:"omitempty,min=2,max=64"`
	Email      string `json:"email" validate:"omitempty,email"`
	Address    string `json:"address" validate:"omitempty,min=4,max=128"`
	City       string `json:"city" validate:"omitempty,min=2,max=64"`
	PostalCode string `json:"postalCode" validate:"omitempty,min=2,max=16"`
}

func (s ShippingInfo) trimmed() ShippingInfo {
	return ShippingInfo{
		Name:       strings.TrimSpace(s.Name),
		Email:      strings.TrimSpace(s.Email),
		Address:    strings.TrimSpace(s.Address),
		City:       strings.TrimSpace(s.City),
		PostalCode: strings.TrimSpace(s.PostalCode),
	}
}

// CheckoutInput 结算输入
type CheckoutInput struct {
	UserID       uint
	ShippingCost *decimal.Decimal
	Shipping     *ShippingInfo
}

// CheckoutResult 结算结果，clientSecret 交由前端完成支付
type CheckoutResult struct {
	OrderID         uint         `json:"orderId"`
	ClientSecret    string       `json:"clientSecret"`
	PaymentIntentID string       `json:"paymentIntentId"`
	Amount          int64        `json:"amount"`
	Currency        string       `json:"currency"`
	Total           models.Money `json:"total"`
}

// CheckoutDeps 结算服务依赖
type CheckoutDeps struct {
	Config      config.OrderConfig
	CartRepo    repository.CartRepository
	VariantRepo repository.VariantRepository
	OrderRepo   repository.OrderRepository
	Gateway     PaymentGateway
	Queue       OrderTaskQueue
	Catalog     CatalogCache
	Metrics     *metrics.Recorder
}

// CheckoutService 结算服务：购物车 → 待支付订单 + 支付意图
type CheckoutService struct {
	cfg         config.OrderConfig
	cartRepo    repository.CartRepository
	variantRepo repository.VariantRepository
	orderRepo   repository.OrderRepository
	gateway     PaymentGateway
	queue       OrderTaskQueue
	catalog     CatalogCache
	metrics     *metrics.Recorder
	now         func() time.Time
}

// NewCheckoutService 创建结算服务
func NewCheckoutService(deps CheckoutDeps) *CheckoutService {
	return &CheckoutService{
		cfg:         deps.Config,
		cartRepo:    deps.CartRepo,
		variantRepo: deps.VariantRepo,
		orderRepo:   deps.OrderRepo,
		gateway:     deps.Gateway,
		queue:       deps.Queue,
		catalog:     deps.Catalog,
		metrics:     deps.Metrics,
		now:         time.Now,
	}
}

func (s *CheckoutService) currency() string {
	currency := strings.ToLower(strings.TrimSpace(s.cfg.Currency))
	if currency == "" {
		return constants.CurrencyDefault
	}
	return currency
}

func (s *CheckoutService) resolveShipping(input *decimal.Decimal) (decimal.Decimal, error) {
	if input == nil {
		return decimal.NewFromFloat(s.cfg.DefaultShippingCost).Round(2), nil
	}
	if input.IsNegative() {
		return decimal.Zero, ErrInvalidShippingCost
	}
	return input.Round(2), nil
}

// Checkout 在单个事务内：校验库存、生成订单快照、扣减库存、创建支付意图
// 任一步失败整体回滚；购物车保留到支付完成
func (s *CheckoutService) Checkout(ctx context.Context, input CheckoutInput) (*CheckoutResult, error) {
	if input.UserID == 0 {
		return nil, ErrMissingCartIdentifiers
	}
	shippingCost, err := s.resolveShipping(input.ShippingCost)
	if err != nil {
		return nil, err
	}
	var shipping ShippingInfo
	if input.Shipping != nil {
		shipping = input.Shipping.trimmed()
		if field, err := validateStruct(shipping); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidShippingInfo, field)
		}
	}
	if s.gateway == nil {
		return nil, ErrPaymentGatewayUnavailable
	}

	if err := s.supersedePending(ctx, input.UserID); err != nil {
		s.metrics.CheckoutOutcome(checkoutOutcome(err))
		return nil, err
	}

	currency := s.currency()
	now := s.now()
	var result *CheckoutResult

	err = s.orderRepo.Transaction(func(tx *gorm.DB) error {
		lines, err := s.cartRepo.WithTx(tx).ListWithPricing(input.UserID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return ErrCartEmpty
		}

		variantRepo := s.variantRepo.WithTx(tx)
		variants, err := variantRepo.LockByIDs(collectVariantIDs(lines))
		if err != nil {
			return err
		}
		stock := make(map[uint]int, len(variants))
		for _, v := range variants {
			stock[v.ID] = v.StockQuantity
		}

		subtotal := decimal.Zero
		items := make([]models.OrderItem, 0, len(lines))
		for _, line := range lines {
			available := stock[line.VariantID]
			if line.Quantity > available {
				return &StockShortageError{
					ProductID:   line.ProductID,
					ProductName: line.ProductName,
					VariantID:   line.VariantID,
					Requested:   line.Quantity,
					Available:   available,
				}
			}
			lineTotal := line.LineTotal()
			subtotal = subtotal.Add(lineTotal.Decimal)
			items = append(items, models.OrderItem{
				ProductID:    line.ProductID,
				VariantID:    line.VariantID,
				ProductName:  line.ProductName,
				VariantType:  line.VariantType,
				VariantValue: line.VariantValue,
				UnitPrice:    line.Price,
				Quantity:     line.Quantity,
				TotalPrice:   lineTotal,
			})
		}

		total := subtotal.Add(shippingCost)
		amountMinor, err := stripe.ToMinorAmount(total, currency)
		if err != nil {
			return ErrOrderTotalInvalid
		}

		order := &models.Order{
			UserID:          input.UserID,
			Status:          constants.OrderStatusPending,
			Currency:        currency,
			TotalPrice:      models.NewMoneyFromDecimal(total),
			ShippingCost:    models.NewMoneyFromDecimal(shippingCost),
			ShippingName:    shipping.Name,
			ShippingEmail:   shipping.Email,
			ShippingAddress: shipping.Address,
			ShippingCity:    shipping.City,
			ShippingPostal:  shipping.PostalCode,
			OrderDate:       now,
			ExpiresAt:       s.expiresAt(now),
		}
		orderRepo := s.orderRepo.WithTx(tx)
		if err := orderRepo.Create(order, items); err != nil {
			return err
		}

		for _, item := range items {
			affected, err := variantRepo.DecrementStock(item.VariantID, item.Quantity)
			if err != nil {
				return err
			}
			if affected == 0 {
				return &StockShortageError{
					ProductID:   item.ProductID,
					ProductName: item.ProductName,
					VariantID:   item.VariantID,
					Requested:   item.Quantity,
					Available:   stock[item.VariantID],
				}
			}
		}

		intent, err := s.gateway.CreateIntent(ctx, stripe.IntentInput{
			AmountMinor: amountMinor,
			Currency:    currency,
			Metadata: map[string]string{
				constants.PaymentMetadataUserID:  strconv.FormatUint(uint64(input.UserID), 10),
				constants.PaymentMetadataOrderID: strconv.FormatUint(uint64(order.ID), 10),
			},
			IdempotencyKey: fmt.Sprintf("checkout-order-%d", order.ID),
		})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPaymentCreateFailed, err)
		}
		if err := orderRepo.SetPaymentIntent(order.ID, intent.ID); err != nil {
			return err
		}

		result = &CheckoutResult{
			OrderID:         order.ID,
			ClientSecret:    intent.ClientSecret,
			PaymentIntentID: intent.ID,
			Amount:          amountMinor,
			Currency:        currency,
			Total:           order.TotalPrice,
		}
		return nil
	})
	if err != nil {
		s.metrics.CheckoutOutcome(checkoutOutcome(err))
		if isPaymentCreateFailure(err) {
			logger.Errorw("checkout_payment_intent_failed", "user_id", input.UserID, "error", err)
		}
		return nil, err
	}

	s.afterCheckout(ctx, result)
	return result, nil
}

// supersedePending 重新下单前取消该用户尚未支付的旧订单并回补库存，
// 避免用户自己的库存占用导致重试失败；旧支付意图同时作废
// 购物车为空时保留旧订单，交由结算返回 cart is empty
func (s *CheckoutService) supersedePending(ctx context.Context, userID uint) error {
	lines, err := s.cartRepo.ListWithPricing(userID)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}

	var superseded []uint
	err = s.orderRepo.Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		variantRepo := s.variantRepo.WithTx(tx)
		pending, err := orderRepo.LockPendingByUser(userID)
		if err != nil {
			return err
		}
		now := s.now()
		for i := range pending {
			order := &pending[i]
			if err := cancelOrderIntent(ctx, s.gateway, order); err != nil {
				if errors.Is(err, stripe.ErrIntentNotCancelable) {
					logger.Warnw("checkout_previous_payment_in_progress", "order_id", order.ID, "user_id", userID)
					continue
				}
				return err
			}
			if err := releasePendingOrder(orderRepo, variantRepo, order, now); err != nil {
				return err
			}
			superseded = append(superseded, order.ID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(superseded) > 0 {
		if s.catalog != nil {
			s.catalog.InvalidateCache(ctx)
		}
		logger.Infow("checkout_superseded_pending_orders", "user_id", userID, "order_ids", superseded)
	}
	return nil
}

func (s *CheckoutService) expiresAt(now time.Time) *time.Time {
	if s.cfg.PaymentExpireMinutes <= 0 {
		return nil
	}
	expires := now.Add(time.Duration(s.cfg.PaymentExpireMinutes) * time.Minute)
	return &expires
}

func (s *CheckoutService) afterCheckout(ctx context.Context, result *CheckoutResult) {
	if s.queue != nil && s.cfg.PaymentExpireMinutes > 0 {
		delay := time.Duration(s.cfg.PaymentExpireMinutes) * time.Minute
		if err := s.queue.EnqueueOrderTimeoutCancel(queue.OrderTimeoutCancelPayload{OrderID: result.OrderID}, delay); err != nil {
			logger.Warnw("checkout_enqueue_timeout_cancel_failed", "order_id", result.OrderID, "error", err)
		}
	}
	if s.catalog != nil {
		s.catalog.InvalidateCache(ctx)
	}
	s.metrics.CheckoutOutcome("created")
	s.metrics.ObserveOrderValue(result.Amount)
	logger.Infow("checkout_order_created",
		"order_id", result.OrderID,
		"payment_intent_id", result.PaymentIntentID,
		"amount", result.Amount,
		"currency", result.Currency,
	)
}

func collectVariantIDs(lines []models.CartLineView) []uint {
	seen := make(map[uint]struct{}, len(lines))
	ids := make([]uint, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.VariantID]; ok {
			continue
		}
		seen[line.VariantID] = struct{}{}
		ids = append(ids, line.VariantID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func checkoutOutcome(err error) string {
	switch {
	case errors.Is(err, ErrCartEmpty):
		return "empty_cart"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case isPaymentCreateFailure(err), errors.Is(err, ErrPaymentCancelFailed):
		return "payment_failed"
	default:
		return "error"
	}
}

func isPaymentCreateFailure(err error) bool {
	return errors.Is(err, ErrPaymentCreateFailed)
}
