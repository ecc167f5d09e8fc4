// Command seed-db prepares a fresh database for local development: it runs
// migrations, loads the demo catalog, inserts an admin API key, and
// optionally places a demo order.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/verdora/order-backend/internal/domain/auth"
	"github.com/verdora/order-backend/internal/domain/order"
	"github.com/verdora/order-backend/internal/domain/product"
	"github.com/verdora/order-backend/internal/handler"
	"github.com/verdora/order-backend/internal/storage/postgres"
)

type productJSON struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	Price        decimal.Decimal `json:"price"`
	OfferPercent decimal.Decimal `json:"offer_percent"`
	Sizes        []string        `json:"sizes"`
	Colors       []string        `json:"colors"`
	Image        struct {
		Thumbnail string `json:"thumbnail"`
		Mobile    string `json:"mobile"`
		Tablet    string `json:"tablet"`
		Desktop   string `json:"desktop"`
	} `json:"image"`
}

func (p productJSON) toProduct() product.Product {
	dp := product.Product{
		ID:           p.ID,
		Name:         p.Name,
		Category:     p.Category,
		Price:        p.Price,
		OfferPercent: p.OfferPercent,
		Sizes:        p.Sizes,
		Colors:       p.Colors,
	}
	dp.Image.Thumbnail = p.Image.Thumbnail
	dp.Image.Mobile = p.Image.Mobile
	dp.Image.Tablet = p.Image.Tablet
	dp.Image.Desktop = p.Image.Desktop
	return dp
}

// noopNotifier satisfies order.Notifier for one-off CLI use.
type noopNotifier struct{}

func (noopNotifier) Notify(order.Event) {}

func main() {
	var (
		databaseURL  string
		productsFile string
		apiKey       string
		apiKeyPepper string
		demoUser     string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&apiKey, "api-key", "", "admin API key to seed (or VERDORA_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or VERDORA_API_KEY_PEPPER env)")
	flag.StringVar(&demoUser, "demo-user", "", "when set, place a demo order for this user id")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("VERDORA_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or VERDORA_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("VERDORA_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, apiKey, apiKeyPepper, demoUser); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, apiKey, pepper, demoUser string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	products, err := seedProducts(ctx, postgres.NewProductRepository(pool), productsFile)
	if err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedAPIKey(ctx, postgres.NewAPIKeyRepository(pool), apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	if demoUser != "" {
		if err := seedDemoOrder(ctx, pool, products, demoUser); err != nil {
			return errors.Wrap(err, "seed demo order")
		}
	}

	return nil
}

func seedProducts(ctx context.Context, repo *postgres.ProductRepository, productsFile string) ([]productJSON, error) {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return nil, errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		if err := repo.Upsert(ctx, p.toProduct()); err != nil {
			return nil, errors.Wrapf(err, "upsert product %s", p.ID)
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return products, nil
}

func seedAPIKey(ctx context.Context, repo *postgres.APIKeyRepository, apiKey, pepper string) error {
	slog.Info("seeding default admin API key")

	info := auth.APIKeyInfo{
		ID:      "default",
		KeyHash: handler.HashAPIKey([]byte(pepper), apiKey),
		Name:    "Default admin key",
		Scopes:  []string{"manage_orders"},
	}
	if err := repo.Insert(ctx, info); err != nil {
		return errors.Wrap(err, "insert default API key")
	}

	slog.Info("upserted API key", slog.String("id", info.ID), slog.String("name", info.Name))

	return nil
}

// seedDemoOrder places one order through the real service so local frontends
// have data to render immediately. The first plant in the catalog is ordered
// with the first pot as its add-on.
func seedDemoOrder(ctx context.Context, pool *pgxpool.Pool, products []productJSON, demoUser string) error {
	var plantID, potID string
	for _, p := range products {
		switch p.Category {
		case product.CategoryPlant:
			if plantID == "" {
				plantID = p.ID
			}
		case product.CategoryPot:
			if potID == "" {
				potID = p.ID
			}
		}
	}
	if plantID == "" {
		return errors.New("catalog has no plants to order")
	}

	svc := order.NewService(
		order.ServiceConfig{ShippingFee: decimal.NewFromFloat(5.99)},
		postgres.NewOrderRepository(pool),
		postgres.NewProductRepository(pool),
		postgres.NewAuditLog(pool),
		noopNotifier{},
	)

	o, err := svc.PlaceOrder(ctx, order.PlaceOrderRequest{
		UserID:        demoUser,
		PaymentMethod: "card",
		Items: []order.PlaceOrderItem{
			{ProductID: plantID, Quantity: 1, PotID: potID},
		},
	})
	if err != nil {
		return errors.Wrap(err, "place demo order")
	}

	slog.Info("placed demo order",
		slog.String("order_id", o.ID),
		slog.String("user_id", demoUser),
		slog.String("total", o.Total.StringFixed(2)),
	)
	return nil
}
