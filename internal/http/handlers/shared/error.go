package shared

import (
	"errors"

	"github.com/storefront-next/internal/http/response"
	"github.com/storefront-next/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLog 提供携带 request_id 的日志实例。
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil {
		return logger.S()
	}
	if requestID, ok := c.Get("request_id"); ok {
		if id, ok := requestID.(string); ok && id != "" {
			return logger.SW("request_id", id)
		}
	}
	return logger.S()
}

// RespondError 返回错误响应，并在有原始错误时记录日志。
// 非 release 模式下内部错误会在 data.error 中带出原始错误文本。
func RespondError(c *gin.Context, code int, msg string, err error) {
	if err == nil {
		response.Error(c, code, msg)
		return
	}
	RequestLog(c).Errorw("handler_error",
		"code", code,
		"message", msg,
		"error", err,
	)
	if code == response.CodeInternal && gin.Mode() != gin.ReleaseMode {
		response.ErrorWithData(c, code, msg, gin.H{"error": err.Error()})
		return
	}
	response.Error(c, code, msg)
}

// RespondAppError 输出错误链中的 AppError；未包含时返回 false。
// 非内部错误只记 warn，原始错误不进入响应。
func RespondAppError(c *gin.Context, err error) bool {
	appErr, ok := response.AsAppError(err)
	if !ok {
		return false
	}
	if appErr.Code != response.CodeInternal {
		if cause := appErr.Unwrap(); cause != nil {
			RequestLog(c).Warnw("handler_rejected", "code", appErr.Code, "message", appErr.Message, "error", cause)
		}
		RespondError(c, appErr.Code, appErr.Message, nil)
		return true
	}
	RespondError(c, appErr.Code, appErr.Message, appErr.Unwrap())
	return true
}

// ErrorRule 业务错误到接口错误响应的映射；Msg 为空时直接使用错误文本。
type ErrorRule struct {
	Target error
	Code   int
	Msg    string
}

// RespondMappedError 优先使用错误链中的 AppError，其次按规则表映射，未命中时按 fallback 返回并记录原始错误。
func RespondMappedError(c *gin.Context, err error, rules []ErrorRule, fallbackCode int, fallbackMsg string) {
	if RespondAppError(c, err) {
		return
	}
	for _, rule := range rules {
		if errors.Is(err, rule.Target) {
			msg := rule.Msg
			if msg == "" {
				msg = err.Error()
			}
			RespondError(c, rule.Code, msg, nil)
			return
		}
	}
	RespondError(c, fallbackCode, fallbackMsg, err)
}

// ConcatErrorRules 合并多组映射规则。
func ConcatErrorRules(groups ...[]ErrorRule) []ErrorRule {
	total := 0
	for _, group := range groups {
		total += len(group)
	}
	result := make([]ErrorRule, 0, total)
	for _, group := range groups {
		result = append(result, group...)
	}
	return result
}
