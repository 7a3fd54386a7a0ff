package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/utafrali/storefront/services/storefront/internal/domain"
	"github.com/utafrali/storefront/services/storefront/internal/repository"
)

// schemaVersion is the version written into every persisted cart.
const schemaVersion = 1

var (
	errUnknownVersion = errors.New("unknown cart schema version")
	errMissingProduct = errors.New("line item without product id")
)

// persistedCart is the serialized form of a cart.
type persistedCart struct {
	Version int               `json:"version"`
	Items   []domain.LineItem `json:"items"`
	SavedAt time.Time         `json:"saved_at"`
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithRecoveredCounter counts loads that fell back to an empty cart because
// the stored value was malformed.
func WithRecoveredCounter(c prometheus.Counter) AdapterOption {
	return func(a *Adapter) {
		a.recovered = c
	}
}

// WithClock overrides the time source used for the saved_at field.
func WithClock(now func() time.Time) AdapterOption {
	return func(a *Adapter) {
		a.now = now
	}
}

// Adapter loads and saves session carts through a key-value store.
type Adapter struct {
	store     repository.CartStateStore
	logger    *slog.Logger
	recovered prometheus.Counter
	now       func() time.Time
}

// NewAdapter creates a persistence adapter over the given store.
func NewAdapter(store repository.CartStateStore, logger *slog.Logger, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Load returns the stored cart for the session. A missing or malformed value
// yields an empty cart; only a failure to reach the store is returned as an
// error.
func (a *Adapter) Load(ctx context.Context, sessionID string) (domain.Cart, error) {
	raw, found, err := a.store.Get(ctx, sessionID)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("load cart state: %w", err)
	}
	if !found {
		return domain.Cart{Items: []domain.LineItem{}}, nil
	}

	cart, err := decode(raw)
	if err != nil {
		a.logger.WarnContext(ctx, "discarding malformed cart state",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
		if a.recovered != nil {
			a.recovered.Inc()
		}
		return domain.Cart{Items: []domain.LineItem{}}, nil
	}

	return cart, nil
}

// Save serializes the cart and writes it for the session.
func (a *Adapter) Save(ctx context.Context, sessionID string, cart domain.Cart) error {
	items := cart.Items
	if items == nil {
		items = []domain.LineItem{}
	}

	data, err := json.Marshal(persistedCart{
		Version: schemaVersion,
		Items:   items,
		SavedAt: a.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal cart state: %w", err)
	}

	if err := a.store.Set(ctx, sessionID, string(data)); err != nil {
		return fmt.Errorf("save cart state: %w", err)
	}
	return nil
}

// Delete removes the stored cart for the session.
func (a *Adapter) Delete(ctx context.Context, sessionID string) error {
	if err := a.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete cart state: %w", err)
	}
	return nil
}

// SaveOnChange returns a store hook that writes every new snapshot for the
// session. Write failures are logged and otherwise ignored.
func (a *Adapter) SaveOnChange(ctx context.Context, sessionID string) Listener {
	return func(snapshot domain.Cart) {
		if err := a.Save(ctx, sessionID, snapshot); err != nil {
			a.logger.ErrorContext(ctx, "failed to persist cart state",
				slog.String("session_id", sessionID),
				slog.String("error", err.Error()),
			)
		}
	}
}

func decode(raw string) (domain.Cart, error) {
	var p persistedCart
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return domain.Cart{}, fmt.Errorf("unmarshal cart state: %w", err)
	}
	if p.Version != schemaVersion {
		return domain.Cart{}, fmt.Errorf("%w: %d", errUnknownVersion, p.Version)
	}
	for _, item := range p.Items {
		if item.Product.ID == "" {
			return domain.Cart{}, errMissingProduct
		}
	}
	return Normalize(domain.Cart{Items: p.Items}), nil
}
