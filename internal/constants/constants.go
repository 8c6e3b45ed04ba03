package constants

// 订单状态常量
const (
	OrderStatusPending  = "pending"
	OrderStatusPaid     = "paid"
	OrderStatusCanceled = "canceled"
	// OrderStatusRefunded 已取消订单收到迟到的支付成功，款项已原路退回
	OrderStatusRefunded = "refunded"
)

// 订单取消原因常量
const (
	OrderCancelReasonExpired       = "payment_expired"
	OrderCancelReasonPaymentFailed = "payment_failed"
	OrderCancelReasonSuperseded    = "superseded"
)

// 用户状态常量
const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// 支付提供方常量
const (
	PaymentProviderStripe = "stripe"
)

// Stripe 事件类型常量
const (
	StripeEventPaymentIntentSucceeded = "payment_intent.succeeded"
	StripeEventPaymentIntentFailed    = "payment_intent.payment_failed"
	StripeEventPaymentIntentCanceled  = "payment_intent.canceled"
)

// 支付意图元数据键常量
const (
	PaymentMetadataUserID  = "user_id"
	PaymentMetadataOrderID = "order_id"
)

// 队列常量
const (
	QueueDefault           = "default"
	QueueCritical          = "critical"
	TaskOrderTimeoutCancel = "order:timeout_cancel"
	TaskOrderPaid          = "order:paid"
)

// 缓存默认配置常量
const (
	RedisPrefixDefault = "sf"
)

// 缓存键常量
const (
	CacheKeyProductList     = "catalog:products"
	CacheKeyCategorySummary = "catalog:category_summary"
)

// 币种常量
const (
	CurrencyDefault = "gbp"
)

// 角色常量
const (
	RoleAdmin = "admin"
)
