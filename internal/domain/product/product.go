package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Known catalog categories.
const (
	CategoryPlant = "plants"
	CategoryPot   = "pots"
)

// Product is a catalog item: a plant or a pot. Orders copy the fields they
// need at checkout time, so later catalog edits never change past orders.
type Product struct {
	ID           string
	Name         string
	Category     string
	Price        decimal.Decimal
	OfferPercent decimal.Decimal
	Sizes        []string
	Colors       []string
	Image        Image
}

// Image holds responsive image URLs for a product.
type Image struct {
	Thumbnail string
	Mobile    string
	Tablet    string
	Desktop   string
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}
