package public

import (
	"github.com/storefront-next/internal/http/response"
	"github.com/storefront-next/internal/service"

	"github.com/gin-gonic/gin"
)

// CompleteOrderRequest 完成订单请求；orderId 缺省时取用户最近一笔待支付订单
type CompleteOrderRequest struct {
	OrderID uint `json:"orderId"`
}

// CompleteOrder 支付确认后完成订单并清空购物车
func (h *Handler) CompleteOrder(c *gin.Context) {
	userID, ok := parseUintParam(c, "userId")
	if !ok {
		return
	}
	var req CompleteOrderRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", nil)
		return
	}
	order, err := h.OrderService.Finalize(c.Request.Context(), service.FinalizeInput{
		UserID:  userID,
		OrderID: req.OrderID,
		Source:  service.FinalizeSourceAPI,
	})
	if err != nil {
		respondWithMappedError(c, err, orderErrorRules, "failed to complete order")
		return
	}
	response.SuccessWithMsg(c, "order completed", order)
}

// ListUserOrders 用户订单历史（最新在前）
func (h *Handler) ListUserOrders(c *gin.Context) {
	userID, ok := parseUintParam(c, "userId")
	if !ok {
		return
	}
	orders, err := h.OrderService.ListByUser(userID)
	if err != nil {
		respondWithMappedError(c, err, orderErrorRules, "failed to load orders")
		return
	}
	response.Success(c, orders)
}

// GetOrder 订单详情；仅订单所有者或管理员可见
func (h *Handler) GetOrder(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	orderID, ok := parseUintParam(c, "orderId")
	if !ok {
		return
	}
	order, err := h.OrderService.GetByID(orderID)
	if err != nil {
		respondWithMappedError(c, err, orderErrorRules, "failed to load order")
		return
	}
	if order.UserID != uid {
		allowed, err := h.AuthzService.EnforceUser(uid, c.FullPath(), c.Request.Method)
		if err != nil {
			respondError(c, response.CodeInternal, "permission check failed", err)
			return
		}
		if !allowed {
			respondError(c, response.CodeForbidden, "forbidden", nil)
			return
		}
	}
	response.Success(c, order)
}
