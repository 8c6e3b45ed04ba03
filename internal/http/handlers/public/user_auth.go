package public

import (
	"time"

	"github.com/storefront-next/internal/constants"
	"github.com/storefront-next/internal/http/response"
	"github.com/storefront-next/internal/models"
	"github.com/storefront-next/internal/service"

	"github.com/gin-gonic/gin"
)

// RegisterRequest 注册请求
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	IsAdmin  bool   `json:"isAdmin"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

// Register 注册用户；isAdmin 仅在管理员调用时生效
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", nil)
		return
	}
	callerIsAdmin := false
	if uid := currentUserID(c); uid > 0 && req.IsAdmin {
		isAdmin, err := h.AuthzService.HasRole(uid, constants.RoleAdmin)
		if err != nil {
			requestLog(c).Warnw("register_admin_check_failed", "user_id", uid, "error", err)
		}
		callerIsAdmin = isAdmin
	}
	user, err := h.UserAuthService.Register(c.Request.Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		IsAdmin:  req.IsAdmin,
	}, callerIsAdmin)
	if err != nil {
		respondWithMappedError(c, err, userErrorRules, "failed to register user")
		return
	}
	response.Created(c, "user registered", user)
}

// Login 邮箱密码登录
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "email and password are required", nil)
		return
	}
	user, token, expiresAt, err := h.UserAuthService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondWithMappedError(c, err, userErrorRules, "failed to log in")
		return
	}
	response.Success(c, LoginResponse{Token: token, ExpiresAt: expiresAt, User: user})
}

// Logout 注销：使当前用户所有 Token 失效
func (h *Handler) Logout(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	if err := h.UserAuthService.Logout(c.Request.Context(), uid); err != nil {
		respondWithMappedError(c, err, userErrorRules, "failed to log out")
		return
	}
	response.SuccessWithMsg(c, "logged out", nil)
}

// Me 当前用户
func (h *Handler) Me(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	user, err := h.UserAuthService.GetUser(uid)
	if err != nil {
		respondWithMappedError(c, err, userErrorRules, "failed to load user")
		return
	}
	response.Success(c, user)
}
