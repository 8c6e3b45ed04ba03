package admin

import (
	handlershared "github.com/storefront-next/internal/http/handlers/shared"
	"github.com/storefront-next/internal/http/response"
	"github.com/storefront-next/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func requestLog(c *gin.Context) *zap.SugaredLogger {
	return handlershared.RequestLog(c)
}

func respondError(c *gin.Context, code int, msg string, err error) {
	handlershared.RespondError(c, code, msg, err)
}

var productErrorRules = []handlershared.ErrorRule{
	{Target: service.ErrProductNotFound, Code: response.CodeNotFound},
	{Target: service.ErrInvalidProductInput, Code: response.CodeBadRequest},
	{Target: service.ErrInvalidVariantInput, Code: response.CodeBadRequest},
	{Target: service.ErrNoFieldsToUpdate, Code: response.CodeBadRequest},
}

var userErrorRules = []handlershared.ErrorRule{
	{Target: service.ErrUserNotFound, Code: response.CodeNotFound},
	{Target: service.ErrUserExists, Code: response.CodeConflict},
	{Target: service.ErrInvalidUserInput, Code: response.CodeBadRequest},
	{Target: service.ErrInvalidEmail, Code: response.CodeBadRequest},
	{Target: service.ErrWeakPassword, Code: response.CodeBadRequest},
	{Target: service.ErrNoFieldsToUpdate, Code: response.CodeBadRequest},
}

func respondWithMappedError(c *gin.Context, err error, rules []handlershared.ErrorRule, fallbackMsg string) {
	handlershared.RespondMappedError(c, err, rules, response.CodeInternal, fallbackMsg)
}
