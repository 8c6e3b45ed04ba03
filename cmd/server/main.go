package main

import (
	"flag"
	"os"
	"strings"
	"syscall"

	"github.com/storefront-next/internal/app"
	"github.com/storefront-next/internal/config"
	"github.com/storefront-next/internal/logger"
	"github.com/storefront-next/internal/models"

	"github.com/gin-gonic/gin"
)

func main() {
	// 解析命令行参数
	var mode string
	flag.StringVar(&mode, "mode", app.ModeAll, "启动模式: all (默认), api, worker")
	flag.Parse()

	// 加载配置（.env → config.yml → 环境变量）
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	defer logger.Sync()
	stdLog := logger.StdLogger()

	if cfg.Server.IsRelease() {
		if isWeakSecret(cfg.UserJWT.SecretKey) {
			stdLog.Fatalf("user_jwt.secret is weak or still the default, configure a strong random secret in production")
		}
		gin.SetMode(gin.ReleaseMode)
	} else if isWeakSecret(cfg.UserJWT.SecretKey) {
		logger.Warnw("jwt_secret_weak", "hint", "set USER_JWT_SECRET before deploying")
	}

	// 初始化数据库
	db, err := models.OpenDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}, cfg.Database.LogSQL)
	if err != nil {
		stdLog.Fatalf("open database failed: %v", err)
	}
	defer func() {
		if err := models.CloseDB(db); err != nil {
			logger.Warnw("database_close_failed", "error", err)
		}
	}()

	// 自动迁移数据库表
	if err := models.AutoMigrate(db); err != nil {
		stdLog.Fatalf("migrate database failed: %v", err)
	}

	// 初始化种子管理员
	if cfg.Server.IsRelease() && cfg.Admin.Email != "" && cfg.Admin.Password == "" {
		logger.Warnw("default_admin_skipped", "reason", "admin.password is empty")
	} else if err := models.InitDefaultAdmin(db, cfg.Admin.Email, cfg.Admin.Password); err != nil {
		logger.Warnw("default_admin_init_failed", "error", err)
	}

	if err := app.Run(app.Options{
		Config:  cfg,
		DB:      db,
		Logger:  logger.S(),
		Signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
		Mode:    mode,
	}); err != nil {
		stdLog.Fatalf("app run failed: %v", err)
	}
}

func isWeakSecret(secret string) bool {
	if len(secret) < 32 {
		return true
	}
	normalized := strings.ToLower(secret)
	return strings.Contains(normalized, "change-me") ||
		strings.Contains(normalized, "change-in-production") ||
		strings.Contains(normalized, "your-secret-key")
}
