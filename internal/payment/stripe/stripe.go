package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/storefront-next/internal/config"

	"github.com/shopspring/decimal"
	stripeapi "github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"
)

var (
	ErrConfigInvalid    = errors.New("stripe config invalid")
	ErrAmountInvalid    = errors.New("stripe amount invalid")
	ErrRequestFailed    = errors.New("stripe request failed")
	ErrSignatureInvalid = errors.New("stripe signature invalid")
	ErrPayloadInvalid   = errors.New("stripe payload invalid")
	// ErrIntentNotCancelable 意图已进入 processing/succeeded 等不可取消状态
	ErrIntentNotCancelable = errors.New("stripe payment intent not cancelable")
)

const (
	defaultTimeout           = 12 * time.Second
	defaultWebhookToleranceS = 300
)

var zeroDecimalCurrencies = map[string]struct{}{
	"BIF": {},
	"CLP": {},
	"DJF": {},
	"GNF": {},
	"JPY": {},
	"KMF": {},
	"KRW": {},
	"MGA": {},
	"PYG": {},
	"RWF": {},
	"UGX": {},
	"VND": {},
	"VUV": {},
	"XAF": {},
	"XOF": {},
	"XPF": {},
}

// IntentInput 创建 PaymentIntent 的输入。
type IntentInput struct {
	AmountMinor    int64
	Currency       string
	Metadata       map[string]string
	IdempotencyKey string
}

// Intent 创建结果，clientSecret 交给前端完成支付。
type Intent struct {
	ID           string
	ClientSecret string
	AmountMinor  int64
	Currency     string
	Status       string
}

// WebhookEvent 已验签的 webhook 事件（仅保留 PaymentIntent 相关字段）。
type WebhookEvent struct {
	ID              string
	Type            string
	PaymentIntentID string
	AmountMinor     int64
	Currency        string
	Metadata        map[string]string
}

// Gateway 基于 stripe-go 的支付网关。
type Gateway struct {
	client        *stripeapi.Client
	webhookSecret string
	tolerance     time.Duration
}

// NewGateway 根据配置创建网关；secret_key 缺失时返回 ErrConfigInvalid。
func NewGateway(cfg config.StripeConfig) (*Gateway, error) {
	secretKey := strings.TrimSpace(cfg.SecretKey)
	if secretKey == "" {
		return nil, fmt.Errorf("%w: secret_key is required", ErrConfigInvalid)
	}
	backendConfig := &stripeapi.BackendConfig{
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
	if base := strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/"); base != "" {
		backendConfig.URL = stripeapi.String(base)
	}
	client := stripeapi.NewClient(secretKey, stripeapi.WithBackends(stripeapi.NewBackendsWithConfig(backendConfig)))

	tolerance := cfg.WebhookToleranceSeconds
	if tolerance <= 0 {
		tolerance = defaultWebhookToleranceS
	}
	return &Gateway{
		client:        client,
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		tolerance:     time.Duration(tolerance) * time.Second,
	}, nil
}

// CreateIntent 创建启用自动支付方式的 PaymentIntent。
func (g *Gateway) CreateIntent(ctx context.Context, input IntentInput) (*Intent, error) {
	if g == nil || g.client == nil {
		return nil, fmt.Errorf("%w: gateway not configured", ErrConfigInvalid)
	}
	if input.AmountMinor <= 0 {
		return nil, fmt.Errorf("%w: amount must be greater than zero", ErrAmountInvalid)
	}
	currency := strings.ToLower(strings.TrimSpace(input.Currency))
	if currency == "" {
		return nil, fmt.Errorf("%w: currency is required", ErrConfigInvalid)
	}

	params := &stripeapi.PaymentIntentCreateParams{
		Amount:   stripeapi.Int64(input.AmountMinor),
		Currency: stripeapi.String(currency),
		AutomaticPaymentMethods: &stripeapi.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripeapi.Bool(true),
		},
	}
	for key, value := range input.Metadata {
		params.AddMetadata(key, value)
	}
	if key := strings.TrimSpace(input.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}

	intent, err := g.client.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	if intent == nil || strings.TrimSpace(intent.ClientSecret) == "" {
		return nil, fmt.Errorf("%w: client_secret missing", ErrRequestFailed)
	}
	return &Intent{
		ID:           intent.ID,
		ClientSecret: intent.ClientSecret,
		AmountMinor:  intent.Amount,
		Currency:     string(intent.Currency),
		Status:       string(intent.Status),
	}, nil
}

// CancelIntent 取消 PaymentIntent；已取消视为成功。
// 意图已支付或处理中时返回 ErrIntentNotCancelable。
func (g *Gateway) CancelIntent(ctx context.Context, intentID string) error {
	if g == nil || g.client == nil {
		return fmt.Errorf("%w: gateway not configured", ErrConfigInvalid)
	}
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return nil
	}
	params := &stripeapi.PaymentIntentCancelParams{
		CancellationReason: stripeapi.String(string(stripeapi.PaymentIntentCancellationReasonAbandoned)),
	}
	_, err := g.client.V1PaymentIntents.Cancel(ctx, intentID, params)
	if err == nil {
		return nil
	}
	var apiErr *stripeapi.Error
	if !errors.As(err, &apiErr) || apiErr.Code != stripeapi.ErrorCodePaymentIntentUnexpectedState {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	intent, getErr := g.client.V1PaymentIntents.Retrieve(ctx, intentID, nil)
	if getErr != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, getErr)
	}
	if intent.Status == stripeapi.PaymentIntentStatusCanceled {
		return nil
	}
	return fmt.Errorf("%w: status %s", ErrIntentNotCancelable, intent.Status)
}

// RefundIntent 全额退款；同一意图重复调用由幂等键去重。
func (g *Gateway) RefundIntent(ctx context.Context, intentID string, metadata map[string]string) error {
	if g == nil || g.client == nil {
		return fmt.Errorf("%w: gateway not configured", ErrConfigInvalid)
	}
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return fmt.Errorf("%w: payment intent id is required", ErrRequestFailed)
	}
	params := &stripeapi.RefundCreateParams{
		PaymentIntent: stripeapi.String(intentID),
	}
	for key, value := range metadata {
		params.AddMetadata(key, value)
	}
	params.SetIdempotencyKey("refund-" + intentID)
	if _, err := g.client.V1Refunds.Create(ctx, params); err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	return nil
}

// ParseWebhook 校验 Stripe-Signature 并解析事件。
func (g *Gateway) ParseWebhook(payload []byte, signatureHeader string) (*WebhookEvent, error) {
	if g == nil || g.webhookSecret == "" {
		return nil, fmt.Errorf("%w: webhook_secret is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(signatureHeader) == "" {
		return nil, fmt.Errorf("%w: Stripe-Signature is required", ErrSignatureInvalid)
	}
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, g.webhookSecret, webhook.ConstructEventOptions{
		Tolerance:                g.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}

	result := &WebhookEvent{
		ID:   event.ID,
		Type: string(event.Type),
	}
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return result, nil
	}
	if !strings.HasPrefix(result.Type, "payment_intent.") {
		return result, nil
	}
	var intent stripeapi.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return nil, fmt.Errorf("%w: decode payment_intent failed", ErrPayloadInvalid)
	}
	result.PaymentIntentID = intent.ID
	result.AmountMinor = intent.Amount
	result.Currency = string(intent.Currency)
	result.Metadata = intent.Metadata
	return result, nil
}

// MetadataUint 读取元数据中的数字 ID，缺失或非法返回 0。
func (e *WebhookEvent) MetadataUint(key string) uint {
	if e == nil || e.Metadata == nil {
		return 0
	}
	parsed, err := strconv.ParseUint(strings.TrimSpace(e.Metadata[key]), 10, 64)
	if err != nil {
		return 0
	}
	return uint(parsed)
}

// ToMinorAmount 将金额转换为最小货币单位，零小数位币种按整数处理。
func ToMinorAmount(amount decimal.Decimal, currency string) (int64, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return 0, fmt.Errorf("%w: amount must be greater than zero", ErrAmountInvalid)
	}
	return amount.Shift(CurrencyScale(currency)).Round(0).IntPart(), nil
}

// FromMinorAmount 最小货币单位转换回金额字符串。
func FromMinorAmount(minor int64, currency string) string {
	scale := CurrencyScale(currency)
	return decimal.NewFromInt(minor).Shift(-scale).StringFixed(scale)
}

// CurrencyScale 币种小数位数。
func CurrencyScale(currency string) int32 {
	upper := strings.ToUpper(strings.TrimSpace(currency))
	if _, ok := zeroDecimalCurrencies[upper]; ok {
		return 0
	}
	return 2
}
