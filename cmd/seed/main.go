package main

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/storefront-next/internal/config"
	"github.com/storefront-next/internal/logger"
	"github.com/storefront-next/internal/models"
	"github.com/storefront-next/internal/repository"
	"github.com/storefront-next/internal/service"
)

// demoProducts 演示商品目录
var demoProducts = []service.CreateProductInput{
	{
		Name:        "Trail Runner",
		Description: "Lightweight trail running shoe with a grippy outsole.",
		Category:    "Shoes",
		Brand:       "Northpeak",
		ImageURL:    "https://images.example.com/trail-runner.jpg",
		Variants: []service.VariantInput{
			{Price: json.Number("79.99"), StockQuantity: 25, VariantType: "size", VariantValue: "42"},
			{Price: json.Number("79.99"), StockQuantity: 18, VariantType: "size", VariantValue: "43"},
		},
	},
	{
		Name:        "Merino Crew Sock",
		Description: "Breathable merino wool socks for everyday wear.",
		Category:    "Accessories",
		Brand:       "Northpeak",
		Variants: []service.VariantInput{
			{Price: json.Number("12.50"), StockQuantity: 120, VariantType: "colour", VariantValue: "charcoal"},
			{Price: json.Number("12.50"), StockQuantity: 80, VariantType: "colour", VariantValue: "sand"},
		},
	},
	{
		Name:        "Canvas Tote",
		Description: "Heavy canvas tote bag with an inner pocket.",
		Category:    "Bags",
		Brand:       "Harbour & Co",
		Variants: []service.VariantInput{
			{Price: json.Number("24.00"), StockQuantity: 40},
		},
	},
}

func main() {
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	defer logger.Sync()
	stdLog := logger.StdLogger()

	db, err := models.OpenDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}, cfg.Database.LogSQL)
	if err != nil {
		stdLog.Fatalf("open database failed: %v", err)
	}
	defer func() { _ = models.CloseDB(db) }()

	if err := models.AutoMigrate(db); err != nil {
		stdLog.Fatalf("migrate database failed: %v", err)
	}

	productRepo := repository.NewProductRepository(db)
	catalog := service.NewCatalogService(productRepo, repository.NewCategoryRepository(db), repository.NewVariantRepository(db), nil)

	ctx := context.Background()
	existing, err := catalog.ListProducts(ctx)
	if err != nil {
		stdLog.Fatalf("list products failed: %v", err)
	}
	seen := make(map[string]struct{}, len(existing))
	for _, product := range existing {
		seen[strings.ToLower(product.Name)] = struct{}{}
	}

	created := 0
	for _, input := range demoProducts {
		if _, ok := seen[strings.ToLower(input.Name)]; ok {
			logger.Infow("seed_product_exists", "name", input.Name)
			continue
		}
		product, err := catalog.CreateProduct(ctx, input)
		if err != nil {
			logger.Warnw("seed_product_create_failed", "name", input.Name, "error", err)
			continue
		}
		created++
		logger.Infow("seed_product_created", "id", product.ID, "name", product.Name, "slug", product.Slug)
	}
	logger.Infow("seed_done", "created", created, "skipped", len(demoProducts)-created)
}
