package public

import (
	"github.com/storefront-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

// SubscribeRequest 订阅请求
type SubscribeRequest struct {
	Email string `json:"email"`
}

// Subscribe 订阅邮件通讯
func (h *Handler) Subscribe(c *gin.Context) {
	var req SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "email is required", nil)
		return
	}
	subscriber, err := h.NewsletterService.Subscribe(req.Email)
	if err != nil {
		respondWithMappedError(c, err, newsletterErrorRules, "failed to subscribe")
		return
	}
	response.Created(c, "thank you for subscribing!", subscriber)
}
