package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/yelena0000/fish-store/internal/domain"
)

// CatalogRepository defines the read side of the product catalog.
// Consumers define this interface, not the Strapi implementation.
type CatalogRepository interface {
	GetProducts(ctx context.Context) ([]domain.Product, error)
}

// CartRepository defines the raw store operations on carts and line items.
// Adding the same product twice creates two line items; the store never
// merges quantities server-side.
type CartRepository interface {
	// GetCart returns errs.ErrCartNotFound when the owner has no cart yet.
	GetCart(ctx context.Context, ownerKey string) (*domain.Cart, error)
	CreateCart(ctx context.Context, ownerKey string) (*domain.Cart, error)
	AddItem(ctx context.Context, cartID, productID string, quantity decimal.Decimal) (*domain.CartItem, error)
	// DeleteItem reports found=false when the store answered 404, meaning
	// the item was already gone.
	DeleteItem(ctx context.Context, itemID string) (found bool, err error)
	// TouchCart issues a no-op rewrite to nudge the store into
	// invalidating read caches between a delete and its verification.
	TouchCart(ctx context.Context, cartID string) error
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, order domain.Order) (domain.Order, error)
}

// Repository is the full store surface implemented by the Strapi client.
type Repository interface {
	CatalogRepository
	CartRepository
	OrderRepository
}
