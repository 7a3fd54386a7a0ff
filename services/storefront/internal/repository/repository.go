package repository

import (
	"context"
	"time"

	"github.com/utafrali/storefront/services/storefront/internal/domain"
)

// CartStateStore is a key-value store holding one serialized cart per session.
type CartStateStore interface {
	// Get returns the stored value for the session. found is false when no
	// value has been stored yet.
	Get(ctx context.Context, sessionID string) (value string, found bool, err error)

	// Set stores the value for the session, replacing any previous value.
	Set(ctx context.Context, sessionID, value string) error

	// Delete removes the stored value for the session.
	Delete(ctx context.Context, sessionID string) error
}

// OrderFilter narrows an order listing.
type OrderFilter struct {
	CustomerID string
	Status     string
	Limit      int
	Offset     int
}

// OrderRepository defines the interface for order persistence operations.
type OrderRepository interface {
	// Create inserts a new order.
	Create(ctx context.Context, order *domain.Order) error

	// GetByID retrieves an order by its ID.
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// List returns orders matching the filter, newest first, and the total
	// number of matching orders.
	List(ctx context.Context, filter OrderFilter) ([]domain.Order, int, error)

	// UpdateStatus moves an order from one status to another. It fails with a
	// conflict when the stored status is no longer from.
	UpdateStatus(ctx context.Context, id, from, to string, at time.Time) error
}
