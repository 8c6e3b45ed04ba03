package admin

import (
	"github.com/storefront-next/internal/http/response"
	"github.com/storefront-next/internal/service"

	"github.com/gin-gonic/gin"
)

// CreateProduct 创建商品；分类按名称自动创建
func (h *Handler) CreateProduct(c *gin.Context) {
	var req service.CreateProductInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", nil)
		return
	}
	product, err := h.CatalogService.CreateProduct(c.Request.Context(), req)
	if err != nil {
		respondWithMappedError(c, err, productErrorRules, "failed to create product")
		return
	}
	response.Created(c, "product created", product)
}

// UpdateProduct 局部更新商品
func (h *Handler) UpdateProduct(c *gin.Context) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	var patch service.ProductPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", nil)
		return
	}
	product, err := h.CatalogService.UpdateProduct(c.Request.Context(), id, patch)
	if err != nil {
		respondWithMappedError(c, err, productErrorRules, "failed to update product")
		return
	}
	response.Success(c, product)
}

// DeleteProduct 删除商品及其规格
func (h *Handler) DeleteProduct(c *gin.Context) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	if err := h.CatalogService.DeleteProduct(c.Request.Context(), id); err != nil {
		respondWithMappedError(c, err, productErrorRules, "failed to delete product")
		return
	}
	response.SuccessWithMsg(c, "product deleted", nil)
}

// AddVariant 新增商品规格
func (h *Handler) AddVariant(c *gin.Context) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	var req service.VariantInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", nil)
		return
	}
	variant, err := h.CatalogService.AddVariant(c.Request.Context(), id, req)
	if err != nil {
		respondWithMappedError(c, err, productErrorRules, "failed to add variant")
		return
	}
	response.Created(c, "variant created", variant)
}
