package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/services/storefront/internal/cart"
	"github.com/utafrali/storefront/services/storefront/internal/domain"
	"github.com/utafrali/storefront/services/storefront/internal/event"
)

// Cart operation upper-bound limits to prevent abuse.
const (
	// MaxQuantityPerItem is the maximum quantity allowed for a single line item.
	MaxQuantityPerItem = 100
	// MaxItemsPerCart is the maximum number of distinct line items in a cart.
	MaxItemsPerCart = 50
)

// Cart mutation operation labels.
const (
	opAdd    = "add"
	opUpdate = "update"
	opRemove = "remove"
	opClear  = "clear"
)

// AddItemInput holds the parameters for adding a product to the cart.
type AddItemInput struct {
	ProductID        string                  `json:"product_id" validate:"required,opaque_id"`
	SelectedVariants domain.SelectedVariants `json:"selected_variants"`
	Quantity         int                     `json:"quantity" validate:"required,gte=1,lte=100"`
}

// QuoteInput holds the optional coupon and delivery choice for a quote.
type QuoteInput struct {
	CouponCode       string `json:"coupon_code" validate:"omitempty,opaque_id"`
	DeliveryOptionID string `json:"delivery_option_id" validate:"omitempty,opaque_id"`
}

// QuoteResult is a priced cart plus the outcome of the coupon lookup.
type QuoteResult struct {
	domain.Quote
	DeliveryOption *domain.DeliveryOption `json:"delivery_option,omitempty"`
	CouponApplied  bool                   `json:"coupon_applied"`
	CouponMessage  string                 `json:"coupon_message,omitempty"`
}

// CartService implements the business logic for session carts. Every call
// loads the session's cart into a fresh store, so a store never outlives the
// request that created it.
type CartService struct {
	carts    CartPersistence
	catalog  Catalog
	coupons  Coupons
	producer *event.Producer
	metrics  *Metrics
	logger   *slog.Logger
}

// NewCartService creates a new cart service.
func NewCartService(
	carts CartPersistence,
	catalog Catalog,
	coupons Coupons,
	producer *event.Producer,
	metrics *Metrics,
	logger *slog.Logger,
) *CartService {
	return &CartService{
		carts:    carts,
		catalog:  catalog,
		coupons:  coupons,
		producer: producer,
		metrics:  metrics,
		logger:   logger,
	}
}

// GetCart returns the session's cart. A session without a cart gets an empty one.
func (s *CartService) GetCart(ctx context.Context, sessionID string) (domain.Cart, error) {
	if sessionID == "" {
		return domain.Cart{}, apperrors.InvalidInput("session id is required")
	}

	c, err := s.carts.Load(ctx, sessionID)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("get cart: %w", err)
	}
	return c, nil
}

// AddItem adds a product from the catalog to the session's cart. The selection
// must name existing variants and options of the current product.
func (s *CartService) AddItem(ctx context.Context, sessionID string, input AddItemInput) (domain.Cart, error) {
	if sessionID == "" {
		return domain.Cart{}, apperrors.InvalidInput("session id is required")
	}
	if input.ProductID == "" {
		return domain.Cart{}, apperrors.InvalidInput("product id is required")
	}
	if input.Quantity <= 0 {
		return domain.Cart{}, apperrors.InvalidInput("quantity must be greater than 0")
	}
	if input.Quantity > MaxQuantityPerItem {
		return domain.Cart{}, apperrors.InvalidInput(fmt.Sprintf("quantity must not exceed %d", MaxQuantityPerItem))
	}

	product, err := s.catalog.GetProduct(ctx, input.ProductID)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("get product %s: %w", input.ProductID, err)
	}
	if err := validateSelection(product, input.SelectedVariants); err != nil {
		return domain.Cart{}, err
	}

	store, err := s.open(ctx, sessionID, opAdd)
	if err != nil {
		return domain.Cart{}, err
	}

	id := domain.LineItemIdentity(product.ID, input.SelectedVariants)
	if existing, ok := store.Item(id); ok {
		if existing.Product.ID != product.ID {
			return domain.Cart{}, apperrors.Conflict(fmt.Sprintf("line item %s is held by product %s", id, existing.Product.ID))
		}
		if existing.Quantity+input.Quantity > MaxQuantityPerItem {
			return domain.Cart{}, apperrors.InvalidInput(fmt.Sprintf("combined quantity must not exceed %d", MaxQuantityPerItem))
		}
	} else if store.Len() >= MaxItemsPerCart {
		return domain.Cart{}, apperrors.InvalidInput(fmt.Sprintf("cart must not contain more than %d items", MaxItemsPerCart))
	}

	item, _ := store.AddItem(*product, input.SelectedVariants, input.Quantity)

	s.logger.InfoContext(ctx, "item added to cart",
		slog.String("session_id", sessionID),
		slog.String("line_item_id", item.ID),
		slog.Int("quantity", input.Quantity),
	)

	return store.Snapshot(), nil
}

// UpdateQuantity sets the quantity of a line item. Zero or less removes it.
func (s *CartService) UpdateQuantity(ctx context.Context, sessionID, itemID string, quantity int) (domain.Cart, error) {
	if sessionID == "" {
		return domain.Cart{}, apperrors.InvalidInput("session id is required")
	}
	if quantity > MaxQuantityPerItem {
		return domain.Cart{}, apperrors.InvalidInput(fmt.Sprintf("quantity must not exceed %d", MaxQuantityPerItem))
	}

	op := opUpdate
	if quantity <= 0 {
		op = opRemove
	}
	store, err := s.open(ctx, sessionID, op)
	if err != nil {
		return domain.Cart{}, err
	}
	if _, ok := store.Item(itemID); !ok {
		return domain.Cart{}, apperrors.NotFound("cart item", itemID)
	}

	store.UpdateQuantity(itemID, quantity)
	return store.Snapshot(), nil
}

// RemoveItem removes a line item. Removing an item that is not in the cart
// leaves the cart unchanged.
func (s *CartService) RemoveItem(ctx context.Context, sessionID, itemID string) (domain.Cart, error) {
	if sessionID == "" {
		return domain.Cart{}, apperrors.InvalidInput("session id is required")
	}

	store, err := s.open(ctx, sessionID, opRemove)
	if err != nil {
		return domain.Cart{}, err
	}
	store.RemoveItem(itemID)
	return store.Snapshot(), nil
}

// ClearCart empties the session's cart.
func (s *CartService) ClearCart(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return apperrors.InvalidInput("session id is required")
	}

	store, err := s.open(ctx, sessionID, opClear)
	if err != nil {
		return err
	}
	if store.Len() == 0 {
		return nil
	}
	store.Clear()

	if err := s.producer.PublishCartCleared(ctx, sessionID, event.ClearReasonCustomer); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.cleared event",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "cart cleared", slog.String("session_id", sessionID))
	return nil
}

// Quote prices the session's cart with an optional delivery option and coupon.
// A coupon that cannot be applied, or cannot be verified, yields a quote
// without discount and an explanatory message.
func (s *CartService) Quote(ctx context.Context, sessionID string, input QuoteInput) (*QuoteResult, error) {
	c, err := s.GetCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	result := &QuoteResult{}
	var shipping int64
	if input.DeliveryOptionID != "" {
		opt, err := s.catalog.GetDeliveryOption(ctx, input.DeliveryOptionID)
		if err != nil {
			return nil, fmt.Errorf("get delivery option %s: %w", input.DeliveryOptionID, err)
		}
		result.DeliveryOption = opt
		shipping = opt.Cost
	}

	lookup := resolveCoupon(ctx, s.coupons, s.metrics, s.logger, strings.TrimSpace(input.CouponCode))
	result.Quote = domain.NewQuote(c, shipping, lookup.coupon)
	result.CouponApplied = lookup.coupon != nil
	result.CouponMessage = lookup.message

	return result, nil
}

// open loads the session's cart into a store whose changes are persisted and
// published as they happen.
func (s *CartService) open(ctx context.Context, sessionID, op string) (*cart.Store, error) {
	c, err := s.carts.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	store := cart.NewStore(c, cart.WithOnChange(s.carts.SaveOnChange(ctx, sessionID)))
	store.Subscribe(func(snapshot domain.Cart) {
		s.metrics.CartMutations.WithLabelValues(op).Inc()
		if err := s.producer.PublishCartUpdated(ctx, sessionID, snapshot); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish cart.updated event",
				slog.String("session_id", sessionID),
				slog.String("error", err.Error()),
			)
		}
	})
	return store, nil
}

// validateSelection rejects selections naming a variant or option the product
// does not offer. Leaving a variant unselected is allowed.
func validateSelection(product *domain.Product, selected domain.SelectedVariants) error {
	names := make([]string, 0, len(selected))
	for name := range selected {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, ok := product.FindVariant(name); !ok {
			return apperrors.InvalidInput(fmt.Sprintf("product %s has no variant %q", product.ID, name))
		}
		if _, ok := product.FindOption(name, selected[name]); !ok {
			return apperrors.InvalidInput(fmt.Sprintf("variant %q of product %s has no option %q", name, product.ID, selected[name]))
		}
	}
	return nil
}
