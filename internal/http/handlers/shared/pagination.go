package shared

import (
	"strconv"

	"github.com/storefront-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// PageQuery 列表分页参数
type PageQuery struct {
	Page     int
	PageSize int
}

// ParsePageQuery 读取 page / page_size；非法值回落到默认值，page_size 上限 100
func ParsePageQuery(c *gin.Context) PageQuery {
	page, _ := strconv.Atoi(c.Query("page"))
	size, _ := strconv.Atoi(c.Query("page_size"))
	if page < 1 {
		page = 1
	}
	switch {
	case size <= 0:
		size = defaultPageSize
	case size > maxPageSize:
		size = maxPageSize
	}
	return PageQuery{Page: page, PageSize: size}
}

// Meta 按总数生成分页信息
func (q PageQuery) Meta(total int64) response.Pagination {
	var totalPage int64
	if q.PageSize > 0 {
		totalPage = (total + int64(q.PageSize) - 1) / int64(q.PageSize)
	}
	return response.Pagination{
		Page:      q.Page,
		PageSize:  q.PageSize,
		Total:     total,
		TotalPage: totalPage,
	}
}
