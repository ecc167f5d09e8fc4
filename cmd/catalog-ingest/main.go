// Command catalog-ingest loads supplier catalog feeds into the products
// table. Feeds are gzip-compressed JSON Lines files, one product per line;
// suppliers routinely resend the same SKUs across feeds, so a bloom filter
// prefilters duplicates before the exact check.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/verdora/order-backend/internal/domain/product"
	"github.com/verdora/order-backend/internal/storage/postgres"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 100_000
)

type productLine struct {
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

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing catalog feed files (*.jsonl.gz)")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.jsonl.gz"))
	if err != nil {
		return errors.Wrap(err, "glob feed files")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.jsonl.gz feed files in %s", dataDir)
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	repo := postgres.NewProductRepository(pool)
	dedupe := newDeduper()

	products := make(chan product.Product, 1024)
	g, gctx := errgroup.WithContext(ctx)

	// One reader per feed file.
	readers, rctx := errgroup.WithContext(gctx)
	for _, f := range files {
		readers.Go(readFeedFile(rctx, f, dedupe, products))
	}
	g.Go(func() error {
		defer close(products)
		return readers.Wait()
	})

	// Single writer keeps upsert ordering deterministic per SKU.
	g.Go(func() error {
		var written int
		for p := range products {
			if err := repo.Upsert(gctx, p); err != nil {
				return errors.Wrapf(err, "upsert product %s", p.ID)
			}
			written++
			if written%1000 == 0 {
				slog.Info("write progress", slog.Int("written", written))
			}
		}
		slog.Info("products written", slog.Int("count", written))
		return nil
	})

	return g.Wait()
}

// deduper skips SKUs that were already emitted during this run. The bloom
// filter answers the common negative case without touching the map; a bloom
// positive is confirmed against the exact set so false positives never drop
// a real product.
type deduper struct {
	mu     sync.Mutex
	filter *bloom.BloomFilter
	seen   map[string]struct{}
}

func newDeduper() *deduper {
	return &deduper{
		filter: bloom.NewWithEstimates(bloomCapacity, bloomFPR),
		seen:   make(map[string]struct{}),
	}
}

// firstSeen reports whether sku has not been emitted yet and marks it seen.
func (d *deduper) firstSeen(sku string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.filter.TestString(sku) {
		if _, ok := d.seen[sku]; ok {
			return false
		}
	}
	d.filter.AddString(sku)
	d.seen[sku] = struct{}{}
	return true
}

func readFeedFile(ctx context.Context, path string, dedupe *deduper, out chan<- product.Product) func() error {
	return func() error {
		var total, kept uint64

		if err := streamGzFile(ctx, path, func(line []byte) error {
			total++
			if total%progressEvery == 0 {
				slog.Info("read progress", slog.String("file", path), slog.Uint64("lines", total))
			}

			var pl productLine
			if err := json.Unmarshal(line, &pl); err != nil {
				return errors.Wrapf(err, "parse line %d", total)
			}
			if pl.ID == "" || pl.Name == "" {
				slog.Warn("skipping incomplete product line", slog.String("file", path), slog.Uint64("line", total))
				return nil
			}
			if pl.Category != product.CategoryPlant && pl.Category != product.CategoryPot {
				slog.Warn("skipping unknown category",
					slog.String("file", path),
					slog.String("sku", pl.ID),
					slog.String("category", pl.Category),
				)
				return nil
			}
			if !dedupe.firstSeen(pl.ID) {
				return nil
			}

			p := product.Product{
				ID:           pl.ID,
				Name:         pl.Name,
				Category:     pl.Category,
				Price:        pl.Price,
				OfferPercent: pl.OfferPercent,
				Sizes:        pl.Sizes,
				Colors:       pl.Colors,
			}
			p.Image.Thumbnail = pl.Image.Thumbnail
			p.Image.Mobile = pl.Image.Mobile
			p.Image.Tablet = pl.Image.Tablet
			p.Image.Desktop = pl.Image.Desktop

			kept++
			select {
			case out <- p:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}); err != nil {
			return errors.Wrapf(err, "read feed %s", path)
		}

		slog.Info("feed complete",
			slog.String("file", path),
			slog.Uint64("lines", total),
			slog.Uint64("kept", kept),
		)
		return nil
	}
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(scanner.Bytes()) == 0 {
			continue
		}
		if err := fn(scanner.Bytes()); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}
