package public

import (
	"github.com/storefront-next/internal/http/response"
	"github.com/storefront-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// AddCartItemRequest 加购请求
type AddCartItemRequest struct {
	ProductID uint `json:"productId"`
	VariantID uint `json:"variantId"`
	Quantity  int  `json:"quantity"`
}

// SetCartQuantityRequest 修改数量请求
type SetCartQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// CheckoutRequest 结算请求；shippingCost 缺省时使用配置的默认运费
type CheckoutRequest struct {
	ShippingCost *decimal.Decimal      `json:"shippingCost"`
	ShippingInfo *service.ShippingInfo `json:"shippingInfo"`
}

// AddCartItem 加购；已存在的行累加数量
func (h *Handler) AddCartItem(c *gin.Context) {
	userID, ok := parseUintParam(c, "userId")
	if !ok {
		return
	}
	var req AddCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", nil)
		return
	}
	items, err := h.CartService.AddOrIncrement(service.AddCartItemInput{
		UserID:    userID,
		ProductID: req.ProductID,
		VariantID: req.VariantID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		respondWithMappedError(c, err, cartErrorRules, "failed to add item to cart")
		return
	}
	response.Success(c, items)
}

// SetCartQuantity 设置购物车行数量
func (h *Handler) SetCartQuantity(c *gin.Context) {
	userID, ok := parseUintParam(c, "userId")
	if !ok {
		return
	}
	productID, ok := parseUintParam(c, "productId")
	if !ok {
		return
	}
	variantID, ok := parseUintParam(c, "variantId")
	if !ok {
		return
	}
	var req SetCartQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", nil)
		return
	}
	item, err := h.CartService.SetQuantity(userID, productID, variantID, req.Quantity)
	if err != nil {
		respondWithMappedError(c, err, cartErrorRules, "failed to update cart item")
		return
	}
	response.Success(c, item)
}

// RemoveCartItem 移除商品；带 variantId 查询参数时仅移除该规格
func (h *Handler) RemoveCartItem(c *gin.Context) {
	userID, ok := parseUintParam(c, "userId")
	if !ok {
		return
	}
	productID, ok := parseUintParam(c, "productId")
	if !ok {
		return
	}
	var variantID uint
	if raw := c.Query("variantId"); raw != "" {
		parsed, valid := parseUintQuery(raw)
		if !valid {
			respondError(c, response.CodeBadRequest, "invalid variantId", nil)
			return
		}
		variantID = parsed
	}
	if err := h.CartService.Remove(userID, productID, variantID); err != nil {
		respondWithMappedError(c, err, cartErrorRules, "failed to remove cart item")
		return
	}
	response.SuccessWithMsg(c, "item removed from cart", nil)
}

// ClearCart 清空购物车
func (h *Handler) ClearCart(c *gin.Context) {
	userID, ok := parseUintParam(c, "userId")
	if !ok {
		return
	}
	if err := h.CartService.Clear(userID); err != nil {
		respondWithMappedError(c, err, cartErrorRules, "failed to clear cart")
		return
	}
	response.SuccessWithMsg(c, "cart cleared", nil)
}

// GetCart 获取购物车（含定价）
func (h *Handler) GetCart(c *gin.Context) {
	userID, ok := parseUintParam(c, "userId")
	if !ok {
		return
	}
	view, err := h.CartService.View(userID)
	if err != nil {
		respondWithMappedError(c, err, cartErrorRules, "failed to load cart")
		return
	}
	response.Success(c, view)
}

// Checkout 由购物车生成待支付订单并创建支付意图
func (h *Handler) Checkout(c *gin.Context) {
	userID, ok := parseUintParam(c, "userId")
	if !ok {
		return
	}
	var req CheckoutRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", nil)
		return
	}
	result, err := h.CheckoutService.Checkout(c.Request.Context(), service.CheckoutInput{
		UserID:       userID,
		ShippingCost: req.ShippingCost,
		Shipping:     req.ShippingInfo,
	})
	if err != nil {
		respondWithMappedError(c, err, checkoutErrorRules, "checkout failed")
		return
	}
	response.Success(c, result)
}
