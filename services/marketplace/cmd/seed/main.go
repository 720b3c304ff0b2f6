// Command seed loads a small demo catalog into the marketplace database.
// Product ids are derived from their names, so re-running the seeder
// updates the same rows instead of duplicating them.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/trancongquochuy123/e-commerce-platform-sub000/pkg/database"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/pkg/logger"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/config"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/migrations"
)

var productNamespace = uuid.MustParse("6ba7b811-9dad-11d1-80b4-00c04fd430c8")

type seedProduct struct {
	Title     string
	Thumbnail string
	Price     string
	Discount  string
	Stock     int
	Active    bool
}

var catalog = []seedProduct{
	{"Product A", "https://cdn.example.com/a.jpg", "100.00", "10", 5, true},
	{"Product B", "https://cdn.example.com/b.jpg", "50.00", "0", 1, true},
	{"Linen Shirt", "https://cdn.example.com/linen-shirt.jpg", "39.90", "15", 40, true},
	{"Denim Jacket", "https://cdn.example.com/denim-jacket.jpg", "89.00", "0", 12, true},
	{"Wool Scarf", "https://cdn.example.com/wool-scarf.jpg", "24.50", "20", 0, true},
	{"Leather Belt", "https://cdn.example.com/leather-belt.jpg", "29.99", "5", 25, true},
	{"Canvas Tote", "https://cdn.example.com/canvas-tote.jpg", "18.00", "0", 60, true},
	{"Discontinued Cap", "https://cdn.example.com/cap.jpg", "12.00", "50", 8, false},
}

const upsertProduct = `
	INSERT INTO products (id, title, thumbnail, price, discount_percentage, stock, active, created_at, updated_at)
	VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6, $7, $8, $8)
	ON CONFLICT (id) DO UPDATE SET
		title = EXCLUDED.title,
		thumbnail = EXCLUDED.thumbnail,
		price = EXCLUDED.price,
		discount_percentage = EXCLUDED.discount_percentage,
		stock = EXCLUDED.stock,
		active = EXCLUDED.active,
		deleted = FALSE,
		version = products.version + 1,
		updated_at = EXCLUDED.updated_at`

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logger.New(config.ServiceName+"-seed", cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	pool, err := database.NewPostgresPool(ctx, cfg.Postgres(), log)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool, migrations.FS, log); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, p := range catalog {
		// Validate money before it reaches the database.
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return fmt.Errorf("price of %s: %w", p.Title, err)
		}
		discount, err := decimal.NewFromString(p.Discount)
		if err != nil {
			return fmt.Errorf("discount of %s: %w", p.Title, err)
		}
		id := uuid.NewSHA1(productNamespace, []byte(p.Title)).String()
		batch.Queue(upsertProduct, id, p.Title, p.Thumbnail, price.String(), discount.String(), p.Stock, p.Active, now)
		log.Info("seeding product",
			slog.String("id", id),
			slog.String("title", p.Title),
			slog.Int("stock", p.Stock),
		)
	}

	if err := pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert products: %w", err)
	}
	log.Info("catalog seeded", slog.Int("products", len(catalog)))
	return nil
}
