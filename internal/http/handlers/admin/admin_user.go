package admin

import (
	"strings"

	handlershared "github.com/storefront-next/internal/http/handlers/shared"
	"github.com/storefront-next/internal/http/response"
	"github.com/storefront-next/internal/service"

	"github.com/gin-gonic/gin"
)

// ListUsers 获取用户列表
func (h *Handler) ListUsers(c *gin.Context) {
	query := handlershared.ParsePageQuery(c)
	keyword := strings.TrimSpace(c.Query("keyword"))

	users, total, err := h.UserAuthService.ListUsers(query.Page, query.PageSize, keyword)
	if err != nil {
		respondWithMappedError(c, err, userErrorRules, "failed to load users")
		return
	}
	response.SuccessWithPage(c, users, query.Meta(total))
}

// GetUser 用户详情（本人或管理员）
func (h *Handler) GetUser(c *gin.Context) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	user, err := h.UserAuthService.GetUser(id)
	if err != nil {
		respondWithMappedError(c, err, userErrorRules, "failed to load user")
		return
	}
	response.Success(c, user)
}

// UpdateUser 局部更新用户（本人或管理员）；仅管理员可修改 isAdmin
func (h *Handler) UpdateUser(c *gin.Context) {
	callerID, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	var patch service.UserPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", nil)
		return
	}
	if patch.IsAdmin != nil {
		allowed, err := h.AuthzService.EnforceUser(callerID, c.FullPath(), c.Request.Method)
		if err != nil {
			respondError(c, response.CodeInternal, "permission check failed", err)
			return
		}
		if !allowed {
			respondError(c, response.CodeForbidden, "only admins can change admin status", nil)
			return
		}
	}
	user, err := h.UserAuthService.UpdateUser(c.Request.Context(), id, patch)
	if err != nil {
		respondWithMappedError(c, err, userErrorRules, "failed to update user")
		return
	}
	requestLog(c).Infow("admin_user_updated", "user_id", id, "operator_id", callerID)
	response.Success(c, user)
}

// DeleteUser 删除用户
func (h *Handler) DeleteUser(c *gin.Context) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	if err := h.UserAuthService.DeleteUser(c.Request.Context(), id); err != nil {
		respondWithMappedError(c, err, userErrorRules, "failed to delete user")
		return
	}
	response.SuccessWithMsg(c, "user deleted", nil)
}
