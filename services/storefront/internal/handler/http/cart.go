package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/validator"
	"github.com/utafrali/storefront/services/storefront/internal/domain"
	"github.com/utafrali/storefront/services/storefront/internal/service"
)

// CartHandler handles HTTP requests for the session cart.
type CartHandler struct {
	service *service.CartService
	logger  *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(svc *service.CartService, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request / Response DTOs ---

// UpdateQuantityRequest is the JSON request body for updating a line item.
type UpdateQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required,lte=100"`
}

// LineItemResponse is a line item with its derived prices.
type LineItemResponse struct {
	ID               string                  `json:"id"`
	Product          domain.Product          `json:"product"`
	SelectedVariants domain.SelectedVariants `json:"selected_variants"`
	Quantity         int                     `json:"quantity"`
	UnitPrice        int64                   `json:"unit_price"`
	LineTotal        int64                   `json:"line_total"`
}

// CartResponse is the cart snapshot plus its derived totals.
type CartResponse struct {
	Items          []LineItemResponse `json:"items"`
	TotalItemCount int                `json:"total_item_count"`
	Subtotal       int64              `json:"subtotal"`
	Currency       string             `json:"currency"`
}

func newCartResponse(c domain.Cart) CartResponse {
	items := make([]LineItemResponse, 0, len(c.Items))
	for _, item := range c.Items {
		items = append(items, LineItemResponse{
			ID:               item.ID,
			Product:          item.Product,
			SelectedVariants: item.SelectedVariants,
			Quantity:         item.Quantity,
			UnitPrice:        item.UnitPrice(),
			LineTotal:        item.LineTotal(),
		})
	}
	return CartResponse{
		Items:          items,
		TotalItemCount: c.TotalItemCount(),
		Subtotal:       c.Subtotal(),
		Currency:       domain.CurrencyCOP,
	}
}

// --- Handlers ---

// GetCart handles GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.GetCart(r.Context(), sessionIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, newCartResponse(c))
}

// AddItem handles POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req service.AddItemInput
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	c, err := h.service.AddItem(r.Context(), sessionIDFromContext(r.Context()), req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, newCartResponse(c))
}

// UpdateItem handles PUT /api/v1/cart/items/{itemId}
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req UpdateQuantityRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	c, err := h.service.UpdateQuantity(r.Context(), sessionIDFromContext(r.Context()), chi.URLParam(r, "itemId"), *req.Quantity)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, newCartResponse(c))
}

// RemoveItem handles DELETE /api/v1/cart/items/{itemId}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.RemoveItem(r.Context(), sessionIDFromContext(r.Context()), chi.URLParam(r, "itemId"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, newCartResponse(c))
}

// ClearCart handles DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearCart(r.Context(), sessionIDFromContext(r.Context())); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Quote handles POST /api/v1/cart/quote
func (h *CartHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req service.QuoteInput
	if r.ContentLength != 0 {
		if err := validator.DecodeAndValidate(r, &req); err != nil {
			httputil.WriteValidationError(w, err)
			return
		}
	}

	quote, err := h.service.Quote(r.Context(), sessionIDFromContext(r.Context()), req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, quote)
}
