package public

import (
	handlershared "github.com/storefront-next/internal/http/handlers/shared"
	"github.com/storefront-next/internal/http/response"
	"github.com/storefront-next/internal/service"

	"github.com/gin-gonic/gin"
)

type mappedHandlerError = handlershared.ErrorRule

var cartErrorRules = []mappedHandlerError{
	{Target: service.ErrMissingCartIdentifiers, Code: response.CodeBadRequest},
	{Target: service.ErrMissingUserID, Code: response.CodeBadRequest},
	{Target: service.ErrInvalidQuantity, Code: response.CodeBadRequest},
	{Target: service.ErrVariantNotFound, Code: response.CodeNotFound},
	{Target: service.ErrCartItemNotFound, Code: response.CodeNotFound},
	{Target: service.ErrCartNotFound, Code: response.CodeNotFound},
}

var checkoutErrorRules = []mappedHandlerError{
	{Target: service.ErrMissingUserID, Code: response.CodeBadRequest},
	{Target: service.ErrInvalidShippingCost, Code: response.CodeBadRequest},
	{Target: service.ErrInvalidShippingInfo, Code: response.CodeBadRequest},
	{Target: service.ErrCartEmpty, Code: response.CodeBadRequest},
	{Target: service.ErrInsufficientStock, Code: response.CodeBadRequest},
	{Target: service.ErrOrderTotalInvalid, Code: response.CodeBadRequest},
}

var orderErrorRules = []mappedHandlerError{
	{Target: service.ErrMissingUserID, Code: response.CodeBadRequest},
	{Target: service.ErrNoPendingOrder, Code: response.CodeNotFound},
	{Target: service.ErrOrderNotFound, Code: response.CodeNotFound},
	{Target: service.ErrOrderNotPending, Code: response.CodeBadRequest},
}

var catalogErrorRules = []mappedHandlerError{
	{Target: service.ErrProductNotFound, Code: response.CodeNotFound},
	{Target: service.ErrNoProductsInCategory, Code: response.CodeNotFound},
	{Target: service.ErrNoProductsForBrand, Code: response.CodeNotFound},
	{Target: service.ErrSearchTermRequired, Code: response.CodeBadRequest},
}

var userErrorRules = []mappedHandlerError{
	{Target: service.ErrInvalidUserInput, Code: response.CodeBadRequest},
	{Target: service.ErrInvalidEmail, Code: response.CodeBadRequest},
	{Target: service.ErrWeakPassword, Code: response.CodeBadRequest},
	{Target: service.ErrUserExists, Code: response.CodeConflict},
	{Target: service.ErrInvalidCredentials, Code: response.CodeUnauthorized},
	{Target: service.ErrUserDisabled, Code: response.CodeUnauthorized},
	{Target: service.ErrUserNotFound, Code: response.CodeNotFound},
}

var newsletterErrorRules = []mappedHandlerError{
	{Target: service.ErrInvalidEmail, Code: response.CodeBadRequest},
	{Target: service.ErrAlreadySubscribed, Code: response.CodeConflict},
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackMsg string) {
	handlershared.RespondMappedError(c, err, rules, response.CodeInternal, fallbackMsg)
}
