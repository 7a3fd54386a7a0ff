package service

import (
	"context"

	"github.com/utafrali/storefront/services/storefront/internal/cart"
	"github.com/utafrali/storefront/services/storefront/internal/domain"
)

// CartPersistence loads and saves session carts. *cart.Adapter satisfies it.
type CartPersistence interface {
	Load(ctx context.Context, sessionID string) (domain.Cart, error)
	Delete(ctx context.Context, sessionID string) error
	SaveOnChange(ctx context.Context, sessionID string) cart.Listener
}

// Catalog reads product and delivery data. *client.CatalogClient satisfies it.
type Catalog interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetDeliveryOption(ctx context.Context, id string) (*domain.DeliveryOption, error)
}

// Coupons validates and redeems coupon codes. *client.CouponClient satisfies it.
type Coupons interface {
	Validate(ctx context.Context, code string) (*domain.Coupon, error)
	Redeem(ctx context.Context, code, orderID string) error
}
