package router

import (
	"strconv"
	"strings"
	"time"

	"github.com/storefront-next/internal/authz"
	"github.com/storefront-next/internal/cache"
	"github.com/storefront-next/internal/config"
	"github.com/storefront-next/internal/constants"
	"github.com/storefront-next/internal/http/response"
	"github.com/storefront-next/internal/logger"
	"github.com/storefront-next/internal/metrics"
	"github.com/storefront-next/internal/repository"
	"github.com/storefront-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDKey = "request_id"
const requestIDHeader = "X-Request-ID"
const userIDContextKey = "user_id"

// CORSMiddleware 跨域中间件
func CORSMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	allowedMethods := cfg.AllowedMethods
	if len(allowedMethods) == 0 {
		allowedMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	allowedHeaders := cfg.AllowedHeaders
	if len(allowedHeaders) == 0 {
		allowedHeaders = []string{
			"Content-Type",
			"Content-Length",
			"Accept-Encoding",
			"Authorization",
			"Cache-Control",
			"X-Requested-With",
			"X-CSRF-Token",
		}
	}
	methodsHeader := strings.Join(allowedMethods, ", ")
	headersHeader := strings.Join(allowedHeaders, ", ")

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		allowedOrigin := resolveAllowedOrigin(origin, allowedOrigins, cfg.AllowCredentials)
		if allowedOrigin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			if allowedOrigin != "*" {
				c.Writer.Header().Add("Vary", "Origin")
			}
		}
		if cfg.AllowCredentials {
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", headersHeader)
		c.Writer.Header().Set("Access-Control-Allow-Methods", methodsHeader)
		if cfg.MaxAge > 0 {
			c.Writer.Header().Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

func resolveAllowedOrigin(origin string, allowedOrigins []string, allowCredentials bool) string {
	if len(allowedOrigins) == 0 {
		return ""
	}
	for _, allowed := range allowedOrigins {
		if allowed == "*" {
			if allowCredentials && origin != "" {
				return origin
			}
			return "*"
		}
	}
	if origin == "" {
		return ""
	}
	for _, allowed := range allowedOrigins {
		if strings.EqualFold(allowed, origin) {
			return origin
		}
	}
	return ""
}

// RequestIDMiddleware 请求 ID 中间件
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Writer.Header().Set(requestIDHeader, requestID)
		c.Next()
	}
}

// LoggerMiddleware 结构化请求日志中间件
func LoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.L()
	}
	sugar := logger.Sugar()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log := sugar.With(
			"request_id", getRequestID(c),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"route", c.FullPath(),
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		)
		if len(c.Errors) > 0 {
			log.Errorw("request", "errors", c.Errors.String())
			return
		}
		log.Infow("request")
	}
}

func getRequestID(c *gin.Context) string {
	value, ok := c.Get(requestIDKey)
	if !ok {
		return ""
	}
	if requestID, ok := value.(string); ok {
		return requestID
	}
	return ""
}

// MetricsMiddleware 记录 HTTP 请求数与耗时；route 取路由模板避免标签爆炸
func MetricsMiddleware(recorder *metrics.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		if recorder == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		recorder.ObserveHTTP(route, c.Request.Method, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// userAuthenticator 校验用户 Bearer Token：签名、用户状态与 Token 版本
type userAuthenticator struct {
	secretKey string
	userRepo  repository.UserRepository
	store     *cache.Store
}

// authenticate 成功返回用户 ID，失败返回提示消息
func (a userAuthenticator) authenticate(c *gin.Context) (uint, string) {
	if a.secretKey == "" {
		return 0, "jwt secret is not configured"
	}
	if a.userRepo == nil {
		return 0, "invalid token"
	}
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return 0, "authorization header is missing"
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if !(len(parts) == 2 && parts[0] == "Bearer") {
		return 0, "authorization header must be Bearer <token>"
	}

	claims, err := service.ParseUserJWT(a.secretKey, parts[1])
	if err != nil {
		return 0, "invalid token"
	}

	ctx := c.Request.Context()
	if cached, hit, cacheErr := a.store.GetUserAuthState(ctx, claims.UserID); cacheErr == nil && hit && cached != nil {
		if !isActiveUserStatus(cached.Status) {
			return 0, "user is disabled"
		}
		if claims.TokenVersion != cached.TokenVersion {
			return 0, "token has been revoked"
		}
		return claims.UserID, ""
	}

	user, err := a.userRepo.GetByID(claims.UserID)
	if err != nil || user == nil {
		return 0, "invalid token"
	}
	if !isActiveUserStatus(user.Status) {
		return 0, "user is disabled"
	}
	if claims.TokenVersion != user.TokenVersion {
		return 0, "token has been revoked"
	}
	if err := a.store.SetUserAuthState(ctx, cache.BuildUserAuthState(user)); err != nil {
		logger.Warnw("user_auth_state_cache_failed", "user_id", user.ID, "error", err)
	}
	return claims.UserID, ""
}

// UserJWTAuthMiddleware 用户 JWT 鉴权中间件
func UserJWTAuthMiddleware(secretKey string, userRepo repository.UserRepository, store *cache.Store) gin.HandlerFunc {
	auth := userAuthenticator{secretKey: secretKey, userRepo: userRepo, store: store}
	return func(c *gin.Context) {
		userID, msg := auth.authenticate(c)
		if userID == 0 {
			response.Unauthorized(c, msg)
			c.Abort()
			return
		}
		c.Set(userIDContextKey, userID)
		c.Next()
	}
}

// OptionalUserJWTAuthMiddleware 携带有效 Token 时写入用户 ID，否则按匿名请求放行
func OptionalUserJWTAuthMiddleware(secretKey string, userRepo repository.UserRepository, store *cache.Store) gin.HandlerFunc {
	auth := userAuthenticator{secretKey: secretKey, userRepo: userRepo, store: store}
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") != "" {
			if userID, _ := auth.authenticate(c); userID > 0 {
				c.Set(userIDContextKey, userID)
			}
		}
		c.Next()
	}
}

// OwnerOrAdminMiddleware 路径参数中的用户 ID 必须与当前用户一致，否则需要 RBAC 授权
func OwnerOrAdminMiddleware(authzService *authz.Service, param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := contextUserID(c)
		if !ok {
			response.Unauthorized(c, "unauthorized")
			c.Abort()
			return
		}
		target, err := strconv.ParseUint(strings.TrimSpace(c.Param(param)), 10, 64)
		if err != nil || target == 0 {
			response.BadRequest(c, "invalid "+param)
			c.Abort()
			return
		}
		if uint(target) == userID {
			c.Next()
			return
		}
		enforce(c, authzService, userID)
	}
}

// AdminRBACMiddleware 管理端 RBAC 鉴权中间件
func AdminRBACMiddleware(authzService *authz.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := contextUserID(c)
		if !ok {
			response.Unauthorized(c, "unauthorized")
			c.Abort()
			return
		}
		enforce(c, authzService, userID)
	}
}

func enforce(c *gin.Context, authzService *authz.Service, userID uint) {
	if authzService == nil {
		logger.Errorw("rbac_service_unavailable")
		response.Forbidden(c, "forbidden")
		c.Abort()
		return
	}
	resource := c.FullPath()
	if strings.TrimSpace(resource) == "" {
		resource = c.Request.URL.Path
	}
	allowed, err := authzService.EnforceUser(userID, resource, c.Request.Method)
	if err != nil {
		logger.Errorw("rbac_enforce_failed",
			"user_id", userID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"error", err,
		)
		response.Error(c, response.CodeInternal, "permission check failed")
		c.Abort()
		return
	}
	if !allowed {
		logger.Warnw("rbac_permission_denied",
			"user_id", userID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"resource", authz.NormalizeObject(resource),
		)
		response.Forbidden(c, "forbidden")
		c.Abort()
		return
	}
	c.Next()
}

func contextUserID(c *gin.Context) (uint, bool) {
	value, ok := c.Get(userIDContextKey)
	if !ok {
		return 0, false
	}
	id, ok := value.(uint)
	return id, ok && id > 0
}

func isActiveUserStatus(status string) bool {
	return strings.ToLower(strings.TrimSpace(status)) == constants.UserStatusActive
}
