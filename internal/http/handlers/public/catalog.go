package public

import (
	"github.com/storefront-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

// ListProducts 商品列表（含规格）
func (h *Handler) ListProducts(c *gin.Context) {
	products, err := h.CatalogService.ListProducts(c.Request.Context())
	if err != nil {
		respondWithMappedError(c, err, catalogErrorRules, "failed to load products")
		return
	}
	response.Success(c, products)
}

// GetProduct 商品详情
func (h *Handler) GetProduct(c *gin.Context) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	product, err := h.CatalogService.GetProduct(id)
	if err != nil {
		respondWithMappedError(c, err, catalogErrorRules, "failed to load product")
		return
	}
	response.Success(c, product)
}

// ListProductsByCategory 按分类名查询
func (h *Handler) ListProductsByCategory(c *gin.Context) {
	products, err := h.CatalogService.ListByCategory(c.Param("name"))
	if err != nil {
		respondWithMappedError(c, err, catalogErrorRules, "failed to load products")
		return
	}
	response.Success(c, products)
}

// ListProductsByBrand 按品牌查询
func (h *Handler) ListProductsByBrand(c *gin.Context) {
	products, err := h.CatalogService.ListByBrand(c.Param("name"))
	if err != nil {
		respondWithMappedError(c, err, catalogErrorRules, "failed to load products")
		return
	}
	response.Success(c, products)
}

// SearchProducts 关键字搜索
func (h *Handler) SearchProducts(c *gin.Context) {
	products, err := h.CatalogService.Search(c.Query("term"))
	if err != nil {
		respondWithMappedError(c, err, catalogErrorRules, "failed to search products")
		return
	}
	response.Success(c, products)
}

// CategorySummary 分类概览
func (h *Handler) CategorySummary(c *gin.Context) {
	summary, err := h.CatalogService.CategorySummary(c.Request.Context())
	if err != nil {
		respondWithMappedError(c, err, catalogErrorRules, "failed to load categories")
		return
	}
	response.Success(c, summary)
}
