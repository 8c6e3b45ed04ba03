package service

import (
	"errors"
	"fmt"
)

// 参数校验类错误
var (
	ErrMissingCartIdentifiers = errors.New("missing userId, productId, or variantId")
	ErrMissingUserID          = errors.New("missing userId")
	ErrInvalidQuantity        = errors.New("quantity must be at least 1")
	ErrInvalidShippingCost    = errors.New("shipping cost must not be negative")
	ErrInvalidShippingInfo    = errors.New("shipping info invalid")
	ErrSearchTermRequired     = errors.New("search term required")
	ErrInvalidProductInput    = errors.New("product input invalid")
	ErrInvalidVariantInput    = errors.New("variant input invalid")
	ErrNoFieldsToUpdate       = errors.New("no fields provided to update")
	ErrInvalidEmail           = errors.New("email is required")
	ErrInvalidUserInput       = errors.New("username, email and password are required")
	ErrWeakPassword           = errors.New("password does not meet policy")
)

// 资源不存在类错误
var (
	ErrProductNotFound      = errors.New("product not found")
	ErrVariantNotFound      = errors.New("variant not found")
	ErrCartItemNotFound     = errors.New("cart item not found")
	ErrCartNotFound         = errors.New("no cart items found")
	ErrNoProductsInCategory = errors.New("no products found in this category")
	ErrNoProductsForBrand   = errors.New("no products found for this brand")
	ErrOrderNotFound        = errors.New("order not found")
	ErrNoPendingOrder       = errors.New("no pending order found")
	ErrUserNotFound         = errors.New("user not found")
)

// 业务规则类错误
var (
	ErrCartEmpty          = errors.New("cart is empty")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrOrderNotPending    = errors.New("order is not pending")
	ErrOrderTotalInvalid  = errors.New("order total must be greater than zero")
	ErrOrderOwnerMismatch = errors.New("order does not belong to user")
)

// 冲突类错误
var (
	ErrUserExists        = errors.New("user already exists")
	ErrAlreadySubscribed = errors.New("you're already subscribed!")
)

// 认证授权类错误
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserDisabled       = errors.New("user disabled")
	ErrForbidden          = errors.New("forbidden")
)

// 内部错误
var (
	ErrPaymentCreateFailed       = errors.New("failed to create payment intent")
	ErrPaymentGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrPaymentCancelFailed       = errors.New("failed to cancel payment intent")
	ErrPaymentRefundFailed       = errors.New("failed to refund payment")
)

// StockShortageError 库存不足，携带首个不满足的购物车行
type StockShortageError struct {
	ProductID   uint
	ProductName string
	VariantID   uint
	Requested   int
	Available   int
}

func (e *StockShortageError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s", e.ProductName)
}

func (e *StockShortageError) Is(target error) bool {
	return target == ErrInsufficientStock
}
