package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storefront"

// Recorder 业务与 HTTP 指标；nil 接收者上的所有方法均为空操作
type Recorder struct {
	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
	checkouts    *prometheus.CounterVec
	finalizes    *prometheus.CounterVec
	expirations  prometheus.Counter
	orderValue   prometheus.Histogram
}

// New 在给定 Registerer 上注册指标；reg 为 nil 时返回空实现
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		return &Recorder{}
	}
	r := &Recorder{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_total",
			Help:      "Checkout attempts by outcome.",
		}, []string{"outcome"}),
		finalizes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_finalize_total",
			Help:      "Order finalize attempts by source and outcome.",
		}, []string{"source", "outcome"}),
		expirations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_expired_total",
			Help:      "Pending orders canceled after the payment window.",
		}),
		orderValue: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_value_minor_units",
			Help:      "Order totals in minor currency units at checkout.",
			Buckets:   prometheus.ExponentialBuckets(100, 2, 12),
		}),
	}
	reg.MustRegister(r.httpRequests, r.httpLatency, r.checkouts, r.finalizes, r.expirations, r.orderValue)
	return r
}

// ObserveHTTP 记录一次 HTTP 请求
func (r *Recorder) ObserveHTTP(route, method, status string, duration time.Duration) {
	if r == nil || r.httpRequests == nil {
		return
	}
	route = normalizeLabel(route)
	r.httpRequests.WithLabelValues(route, method, status).Inc()
	r.httpLatency.WithLabelValues(route, method).Observe(duration.Seconds())
}

// CheckoutOutcome 记录结算结果（created / empty_cart / insufficient_stock / payment_failed / error）
func (r *Recorder) CheckoutOutcome(outcome string) {
	if r == nil || r.checkouts == nil {
		return
	}
	r.checkouts.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveOrderValue 记录下单金额
func (r *Recorder) ObserveOrderValue(minor int64) {
	if r == nil || r.orderValue == nil {
		return
	}
	r.orderValue.Observe(float64(minor))
}

// FinalizeOutcome 记录订单完成结果
func (r *Recorder) FinalizeOutcome(source, outcome string) {
	if r == nil || r.finalizes == nil {
		return
	}
	r.finalizes.WithLabelValues(normalizeLabel(source), normalizeLabel(outcome)).Inc()
}

// OrderExpired 记录一次超时取消
func (r *Recorder) OrderExpired() {
	if r == nil || r.expirations == nil {
		return
	}
	r.expirations.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
