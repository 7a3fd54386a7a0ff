package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/services/storefront/internal/domain"
	"github.com/utafrali/storefront/services/storefront/internal/repository"
)

const uniqueViolation = "23505"

const defaultListLimit = 20

const orderColumns = `id, COALESCE(customer_id, ''), customer, shipping_address, delivery_option,
	coupon_code, subtotal, discount_amount, shipping_cost, grand_total, currency, status,
	created_at, updated_at`

const insertOrderSQL = `
	INSERT INTO orders (id, customer_id, customer, shipping_address, delivery_option, coupon_code,
		subtotal, discount_amount, shipping_cost, grand_total, currency, status, created_at, updated_at)
	VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

const insertItemSQL = `
	INSERT INTO order_items (order_id, position, line_item_id, product_id, name, selected_variants,
		unit_price, quantity, line_total)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

const getOrderSQL = `
	SELECT ` + orderColumns + `,
		COALESCE(
			(SELECT JSONB_AGG(
				JSONB_BUILD_OBJECT(
					'line_item_id', oi.line_item_id,
					'product_id', oi.product_id,
					'name', oi.name,
					'selected_variants', oi.selected_variants,
					'unit_price', oi.unit_price,
					'quantity', oi.quantity,
					'line_total', oi.line_total
				) ORDER BY oi.position)
			FROM order_items oi WHERE oi.order_id = o.id),
			'[]'::jsonb
		) AS items
	FROM orders o
	WHERE o.id = $1`

const listItemsSQL = `
	SELECT order_id, line_item_id, product_id, name, selected_variants, unit_price, quantity, line_total
	FROM order_items
	WHERE order_id = ANY($1)
	ORDER BY order_id, position`

const updateStatusSQL = `
	UPDATE orders SET status = $3, updated_at = $4
	WHERE id = $1 AND status = $2`

const orderExistsSQL = `SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`

// OrderRepository implements repository.OrderRepository on PostgreSQL. The
// order header lives in orders, its frozen lines in order_items.
type OrderRepository struct {
	db     database.DBTX
	tracer *database.QueryTracer
}

// NewOrderRepository creates a PostgreSQL-backed order repository. tracer may
// be nil.
func NewOrderRepository(db database.DBTX, tracer *database.QueryTracer) *OrderRepository {
	return &OrderRepository{db: db, tracer: tracer}
}

var _ repository.OrderRepository = (*OrderRepository)(nil)

// Create inserts the order and its items in one transaction.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) (err error) {
	ctx, end := r.tracer.Trace(ctx, "orders.create", insertOrderSQL)
	defer func() { end(err) }()

	customerJSON, shippingJSON, deliveryJSON, err := marshalHeader(o)
	if err != nil {
		return err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, insertOrderSQL,
		o.ID, o.CustomerID, customerJSON, shippingJSON, deliveryJSON, o.CouponCode,
		o.Subtotal, o.DiscountAmount, o.ShippingCost, o.GrandTotal, o.Currency, o.Status,
		o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return apperrors.Conflict(fmt.Sprintf("order %s already exists", o.ID))
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for i, item := range o.Items {
		variantsJSON, err := json.Marshal(item.SelectedVariants.Clone())
		if err != nil {
			return fmt.Errorf("marshal selected variants: %w", err)
		}
		if _, err := tx.Exec(ctx, insertItemSQL,
			o.ID, i, item.LineItemID, item.ProductID, item.Name, variantsJSON,
			item.UnitPrice, item.Quantity, item.LineTotal,
		); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetByID retrieves an order and its items in a single round trip.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (_ *domain.Order, err error) {
	ctx, end := r.tracer.Trace(ctx, "orders.get", getOrderSQL)
	defer func() { end(err) }()

	var itemsJSON []byte
	o, err := scanOrder(r.db.QueryRow(ctx, getOrderSQL, id), &itemsJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("order", id)
		}
		return nil, err
	}

	o.Items = []domain.OrderItem{}
	if len(itemsJSON) > 0 {
		if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
			return nil, fmt.Errorf("unmarshal order items: %w", err)
		}
	}
	return o, nil
}

// List returns matching orders newest first with the total match count.
func (r *OrderRepository) List(ctx context.Context, filter repository.OrderFilter) (_ []domain.Order, _ int, err error) {
	var (
		conditions []string
		args       []any
	)
	if filter.CustomerID != "" {
		args = append(args, filter.CustomerID)
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	offset := max(filter.Offset, 0)
	args = append(args, limit, offset)

	query := fmt.Sprintf(`
	SELECT %s, count(*) OVER() AS total_count
	FROM orders
	%s
	ORDER BY created_at DESC, id
	LIMIT $%d OFFSET $%d`, orderColumns, where, len(args)-1, len(args))

	ctx, end := r.tracer.Trace(ctx, "orders.list", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var total int
	orders := make([]domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows, &total)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate order rows: %w", err)
	}

	if err := r.attachItems(ctx, orders); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// attachItems batch-loads items for all orders to avoid one query per order.
func (r *OrderRepository) attachItems(ctx context.Context, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}

	rows, err := r.db.Query(ctx, listItemsSQL, ids)
	if err != nil {
		return fmt.Errorf("batch load order items: %w", err)
	}
	defer rows.Close()

	byOrder := make(map[string][]domain.OrderItem, len(orders))
	for rows.Next() {
		var (
			orderID      string
			item         domain.OrderItem
			variantsJSON []byte
		)
		if err := rows.Scan(&orderID, &item.LineItemID, &item.ProductID, &item.Name, &variantsJSON,
			&item.UnitPrice, &item.Quantity, &item.LineTotal); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		if err := unmarshalOptional(variantsJSON, &item.SelectedVariants); err != nil {
			return fmt.Errorf("unmarshal selected variants: %w", err)
		}
		byOrder[orderID] = append(byOrder[orderID], item)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate order item rows: %w", err)
	}

	for i := range orders {
		if items, ok := byOrder[orders[i].ID]; ok {
			orders[i].Items = items
		} else {
			orders[i].Items = []domain.OrderItem{}
		}
	}
	return nil
}

// UpdateStatus moves the order from one status to another. A stale from
// status yields a conflict, an unknown id a not-found error.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id, from, to string, at time.Time) (err error) {
	ctx, end := r.tracer.Trace(ctx, "orders.update_status", updateStatusSQL)
	defer func() { end(err) }()

	tag, err := r.db.Exec(ctx, updateStatusSQL, id, from, to, at)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRow(ctx, orderExistsSQL, id).Scan(&exists); err != nil {
		return fmt.Errorf("check order exists: %w", err)
	}
	if !exists {
		return apperrors.NotFound("order", id)
	}
	return apperrors.Conflict(fmt.Sprintf("order %s is no longer %s", id, from))
}

func marshalHeader(o *domain.Order) (customer, shipping, delivery []byte, err error) {
	if customer, err = json.Marshal(o.Customer); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal customer: %w", err)
	}
	if shipping, err = json.Marshal(o.ShippingAddress); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal shipping address: %w", err)
	}
	if delivery, err = json.Marshal(o.DeliveryOption); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal delivery option: %w", err)
	}
	return customer, shipping, delivery, nil
}

// scanOrder scans the orderColumns followed by one extra column into extra.
func scanOrder(row pgx.Row, extra any) (*domain.Order, error) {
	var (
		o                                    domain.Order
		customerJSON, shippingJSON, delivery []byte
	)
	if err := row.Scan(
		&o.ID, &o.CustomerID, &customerJSON, &shippingJSON, &delivery,
		&o.CouponCode, &o.Subtotal, &o.DiscountAmount, &o.ShippingCost, &o.GrandTotal,
		&o.Currency, &o.Status, &o.CreatedAt, &o.UpdatedAt,
		extra,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}

	if err := unmarshalOptional(customerJSON, &o.Customer); err != nil {
		return nil, fmt.Errorf("unmarshal customer: %w", err)
	}
	if err := unmarshalOptional(shippingJSON, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal shipping address: %w", err)
	}
	if err := unmarshalOptional(delivery, &o.DeliveryOption); err != nil {
		return nil, fmt.Errorf("unmarshal delivery option: %w", err)
	}
	return &o, nil
}

func unmarshalOptional(data []byte, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, v)
}
