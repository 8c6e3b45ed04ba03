package router

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/storefront-next/internal/config"
	"github.com/storefront-next/internal/constants"
	adminhandlers "github.com/storefront-next/internal/http/handlers/admin"
	publichandlers "github.com/storefront-next/internal/http/handlers/public"
	"github.com/storefront-next/internal/logger"
	"github.com/storefront-next/internal/provider"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	r := gin.New()

	// 初始化 Handler（按前台/后台分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)

	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = constants.RedisPrefixDefault
	}
	redisClient := c.Cache.Client()
	loginRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:login", redisPrefix),
		WindowSeconds: cfg.Security.LoginRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.LoginRateLimit.MaxAttempts,
		Message:       "too many login attempts, please retry in %d seconds",
	}
	checkoutRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:checkout", redisPrefix),
		WindowSeconds: cfg.Security.CheckoutRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.CheckoutRateLimit.MaxAttempts,
		Message:       "too many checkout attempts, please retry in %d seconds",
	}

	userAuth := UserJWTAuthMiddleware(cfg.UserJWT.SecretKey, c.UserRepo, c.Cache)
	optionalAuth := OptionalUserJWTAuthMiddleware(cfg.UserJWT.SecretKey, c.UserRepo, c.Cache)
	adminOnly := AdminRBACMiddleware(c.AuthzService)

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(logger.Z()))
	r.Use(MetricsMiddleware(c.Metrics))
	r.Use(CORSMiddleware(cfg.CORS))

	// 商品目录
	products := r.Group("/products")
	{
		products.GET("", publicHandler.ListProducts)
		products.GET("/search", publicHandler.SearchProducts)
		products.GET("/category/:name", publicHandler.ListProductsByCategory)
		products.GET("/brand/:name", publicHandler.ListProductsByBrand)
		products.GET("/:id", publicHandler.GetProduct)

		products.POST("", userAuth, adminOnly, adminHandler.CreateProduct)
		products.PUT("/:id", userAuth, adminOnly, adminHandler.UpdateProduct)
		products.DELETE("/:id", userAuth, adminOnly, adminHandler.DeleteProduct)
		products.POST("/:id/variants", userAuth, adminOnly, adminHandler.AddVariant)
	}
	r.GET("/category/summary", publicHandler.CategorySummary)
	r.POST("/newsletter/subscribe", publicHandler.Subscribe)

	// 购物车（本人或管理员）
	cart := r.Group("/cart/:userId", userAuth, OwnerOrAdminMiddleware(c.AuthzService, "userId"))
	{
		cart.GET("", publicHandler.GetCart)
		cart.POST("", publicHandler.AddCartItem)
		cart.DELETE("", publicHandler.ClearCart)
		cart.PUT("/:productId/:variantId", publicHandler.SetCartQuantity)
		cart.DELETE("/:productId", publicHandler.RemoveCartItem)
		cart.POST("/checkout", RateLimitMiddleware(redisClient, checkoutRule, KeyByParam("userId")), publicHandler.Checkout)
	}

	// 订单
	order := r.Group("/order", userAuth)
	{
		order.POST("/:userId/complete", OwnerOrAdminMiddleware(c.AuthzService, "userId"), publicHandler.CompleteOrder)
		order.GET("/user/:userId", OwnerOrAdminMiddleware(c.AuthzService, "userId"), publicHandler.ListUserOrders)
		order.GET("/:orderId", publicHandler.GetOrder)
	}

	// 用户
	users := r.Group("/users")
	{
		users.POST("/register", optionalAuth, publicHandler.Register)
		users.POST("/login", RateLimitMiddleware(redisClient, loginRule, KeyByIPAndJSONField("email")), publicHandler.Login)
		users.POST("/logout", userAuth, publicHandler.Logout)
		users.GET("/me", userAuth, publicHandler.Me)

		users.GET("", userAuth, adminOnly, adminHandler.ListUsers)
		users.GET("/:id", userAuth, OwnerOrAdminMiddleware(c.AuthzService, "id"), adminHandler.GetUser)
		users.PUT("/:id", userAuth, OwnerOrAdminMiddleware(c.AuthzService, "id"), adminHandler.UpdateUser)
		users.DELETE("/:id", userAuth, adminOnly, adminHandler.DeleteUser)
	}

	// 支付回调（签名校验，无需登录）
	r.POST("/payments/webhook/stripe", publicHandler.StripeWebhook)

	if c.Registry != nil {
		metricsPath := strings.TrimSpace(cfg.Metrics.Path)
		if metricsPath == "" {
			metricsPath = "/metrics"
		}
		r.GET(metricsPath, gin.WrapH(promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{})))
	}

	// 健康检查
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
