package provider

import (
	"errors"

	"github.com/storefront-next/internal/authz"
	"github.com/storefront-next/internal/cache"
	"github.com/storefront-next/internal/config"
	"github.com/storefront-next/internal/logger"
	"github.com/storefront-next/internal/metrics"
	"github.com/storefront-next/internal/payment/stripe"
	"github.com/storefront-next/internal/queue"
	"github.com/storefront-next/internal/repository"
	"github.com/storefront-next/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

// Container 依赖注入容器；所有依赖显式构造，DB 不经由全局变量传递
type Container struct {
	Config      *config.Config
	DB          *gorm.DB
	Cache       *cache.Store
	QueueClient *queue.Client
	Registry    *prometheus.Registry
	Metrics     *metrics.Recorder
	// PaymentGateway 未配置 stripe.secret_key 时为 nil，结算接口返回 500
	PaymentGateway *stripe.Gateway

	// Repositories
	UserRepo       repository.UserRepository
	ProductRepo    repository.ProductRepository
	CategoryRepo   repository.CategoryRepository
	VariantRepo    repository.VariantRepository
	CartRepo       repository.CartRepository
	OrderRepo      repository.OrderRepository
	NewsletterRepo repository.NewsletterRepository

	// Services
	AuthzService      *authz.Service
	UserAuthService   *service.UserAuthService
	CatalogService    *service.CatalogService
	CartService       *service.CartService
	CheckoutService   *service.CheckoutService
	OrderService      *service.OrderService
	NewsletterService *service.NewsletterService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config, db *gorm.DB) (*Container, error) {
	if cfg == nil || db == nil {
		return nil, errors.New("provider: config and db are required")
	}

	queueClient, err := queue.NewClient(&cfg.Queue)
	if err != nil {
		return nil, err
	}

	c := &Container{
		Config:      cfg,
		DB:          db,
		Cache:       cache.NewStore(&cfg.Redis),
		QueueClient: queueClient,
	}

	if cfg.Metrics.Enabled {
		c.Registry = prometheus.NewRegistry()
		c.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		c.Metrics = metrics.New(c.Registry)
	}

	gateway, err := stripe.NewGateway(cfg.Stripe)
	if err != nil {
		logger.Warnw("provider_stripe_gateway_disabled", "error", err)
	} else {
		c.PaymentGateway = gateway
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	if err := c.initServices(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Container) initRepositories() {
	db := c.DB
	c.UserRepo = repository.NewUserRepository(db)
	c.ProductRepo = repository.NewProductRepository(db)
	c.CategoryRepo = repository.NewCategoryRepository(db)
	c.VariantRepo = repository.NewVariantRepository(db)
	c.CartRepo = repository.NewCartRepository(db)
	c.OrderRepo = repository.NewOrderRepository(db)
	c.NewsletterRepo = repository.NewNewsletterRepository(db)
}

func (c *Container) initServices() error {
	authzService, err := authz.NewService(c.DB)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		return err
	}
	c.AuthzService = authzService
	if err := c.AuthzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_builtin_roles_failed", "error", err)
		return err
	}

	c.UserAuthService = service.NewUserAuthService(c.Config, c.UserRepo, c.Cache, c.AuthzService)
	c.CatalogService = service.NewCatalogService(c.ProductRepo, c.CategoryRepo, c.VariantRepo, c.Cache)
	c.CartService = service.NewCartService(c.CartRepo, c.VariantRepo)
	c.NewsletterService = service.NewNewsletterService(c.NewsletterRepo)

	checkoutDeps := service.CheckoutDeps{
		Config:      c.Config.Order,
		CartRepo:    c.CartRepo,
		VariantRepo: c.VariantRepo,
		OrderRepo:   c.OrderRepo,
		Queue:       c.QueueClient,
		Catalog:     c.CatalogService,
		Metrics:     c.Metrics,
	}
	orderDeps := service.OrderDeps{
		OrderRepo:   c.OrderRepo,
		CartRepo:    c.CartRepo,
		VariantRepo: c.VariantRepo,
		Queue:       c.QueueClient,
		Catalog:     c.CatalogService,
		Metrics:     c.Metrics,
	}
	// 避免把 nil 指针装进接口
	if c.PaymentGateway != nil {
		checkoutDeps.Gateway = c.PaymentGateway
		orderDeps.Gateway = c.PaymentGateway
	}
	c.CheckoutService = service.NewCheckoutService(checkoutDeps)
	c.OrderService = service.NewOrderService(orderDeps)
	return nil
}

// Close 释放容器持有的外部连接
func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	return multierr.Combine(c.QueueClient.Close(), c.Cache.Close())
}
