package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/pagination"
	"github.com/utafrali/storefront/services/storefront/internal/domain"
	"github.com/utafrali/storefront/services/storefront/internal/event"
	"github.com/utafrali/storefront/services/storefront/internal/repository"
)

// UpdateStatusInput holds the target status of an admin status change.
type UpdateStatusInput struct {
	Status string `json:"status" validate:"required,oneof=processing shipped delivered cancelled"`
}

// OrderService implements order history and order status management.
type OrderService struct {
	repo     repository.OrderRepository
	producer *event.Producer
	logger   *slog.Logger
	now      func() time.Time
}

// NewOrderService creates a new order service.
func NewOrderService(repo repository.OrderRepository, producer *event.Producer, logger *slog.Logger) *OrderService {
	return &OrderService{
		repo:     repo,
		producer: producer,
		logger:   logger,
		now:      time.Now,
	}
}

// ListCustomerOrders returns a page of the customer's orders, newest first.
func (s *OrderService) ListCustomerOrders(ctx context.Context, customerID string, page pagination.Params) ([]domain.Order, int, error) {
	if customerID == "" {
		return nil, 0, apperrors.Unauthorized("user id is required")
	}
	return s.list(ctx, repository.OrderFilter{CustomerID: customerID}, page)
}

// ListOrders returns a page of all orders, optionally filtered by status.
func (s *OrderService) ListOrders(ctx context.Context, status string, page pagination.Params) ([]domain.Order, int, error) {
	if status != "" && !domain.IsValidStatus(status) {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("unknown order status %q", status))
	}
	return s.list(ctx, repository.OrderFilter{Status: status}, page)
}

func (s *OrderService) list(ctx context.Context, filter repository.OrderFilter, page pagination.Params) ([]domain.Order, int, error) {
	filter.Limit = page.PerPage
	filter.Offset = page.Offset()

	orders, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return orders, total, nil
}

// GetCustomerOrder returns one of the customer's orders. Orders belonging to
// someone else are reported as not found.
func (s *OrderService) GetCustomerOrder(ctx context.Context, customerID, orderID string) (*domain.Order, error) {
	if customerID == "" {
		return nil, apperrors.Unauthorized("user id is required")
	}

	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if !order.IsOwnedBy(customerID) {
		return nil, apperrors.NotFound("order", orderID)
	}
	return order, nil
}

// GetOrder returns any order by id.
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

// CancelOrder cancels one of the customer's orders while it is processing.
func (s *OrderService) CancelOrder(ctx context.Context, customerID, orderID string) (*domain.Order, error) {
	order, err := s.GetCustomerOrder(ctx, customerID, orderID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, order, domain.OrderStatusCancelled, domain.ActorCustomer)
}

// UpdateStatus moves an order to a new status on behalf of an admin.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID string, input UpdateStatusInput) (*domain.Order, error) {
	if !domain.IsValidStatus(input.Status) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown order status %q", input.Status))
	}

	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, order, input.Status, domain.ActorAdmin)
}

func (s *OrderService) transition(ctx context.Context, order *domain.Order, target, actor string) (*domain.Order, error) {
	if !order.CanTransitionTo(target, actor) {
		return nil, apperrors.Conflict(fmt.Sprintf("order %s cannot move from %s to %s", order.ID, order.Status, target))
	}

	from := order.Status
	now := s.now().UTC()
	if err := s.repo.UpdateStatus(ctx, order.ID, from, target, now); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, apperrors.Conflict(fmt.Sprintf("order %s was modified concurrently, please retry", order.ID))
		}
		return nil, fmt.Errorf("update order status: %w", err)
	}

	order.Status = target
	order.UpdatedAt = now

	if err := s.producer.PublishOrderStatusChanged(ctx, order, from, actor); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.status_changed event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order status changed",
		slog.String("order_id", order.ID),
		slog.String("from", from),
		slog.String("to", target),
		slog.String("actor", actor),
	)

	return order, nil
}
