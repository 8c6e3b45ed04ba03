package public

import (
	"errors"
	"io"

	handlershared "github.com/storefront-next/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
)

// bindOptionalJSON 请求体可为空；非空时按 JSON 绑定
func bindOptionalJSON(c *gin.Context, dest interface{}) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(dest); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func parseUintQuery(raw string) (uint, bool) {
	return handlershared.ParseUintValue(raw)
}
