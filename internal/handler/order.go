package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stacklane/stacklane/internal/handler/dto"
	"github.com/stacklane/stacklane/internal/service"
)

// OrderServiceResolver hands out the order service for a request.
type OrderServiceResolver interface {
	OrderService(ctx context.Context) (*service.OrderService, error)
}

// OrderHandler handles HTTP requests for order operations.
type OrderHandler struct {
	services OrderServiceResolver
	logger   *slog.Logger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(services OrderServiceResolver, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{services: services, logger: logger}
}

// Routes mounts the order endpoints.
func (h *OrderHandler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Place)
	r.Get("/{id}", h.Get)
	r.Delete("/{id}", h.Cancel)
}

func (h *OrderHandler) service(w http.ResponseWriter, r *http.Request) (*service.OrderService, bool) {
	svc, err := h.services.OrderService(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return nil, false
	}
	return svc, true
}

// List handles GET /api/v1/orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := pageParams(r)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	svc, ok := h.service(w, r)
	if !ok {
		return
	}

	orders, total, err := svc.ListOrders(r.Context(), page.Skip, page.Limit)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToOrderListResponse(orders, total, page.Skip, page.Limit))
}

// Place handles POST /api/v1/orders.
func (h *OrderHandler) Place(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceOrderRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}
	svc, ok := h.service(w, r)
	if !ok {
		return
	}

	order, err := svc.PlaceOrder(r.Context(), service.PlaceOrderInput{
		ItemID:   req.ItemID,
		Quantity: req.Quantity,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("order_placed",
		"order_id", order.ID,
		"item_id", order.ItemID,
		"quantity", order.Quantity,
		"total_cents", order.TotalCents,
	)
	w.Header().Set("Location", "/api/v1/orders/"+order.ID)
	writeJSON(w, http.StatusCreated, dto.ToOrderResponse(order))
}

// Get handles GET /api/v1/orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}

	order, err := svc.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToOrderResponse(order))
}

// Cancel handles DELETE /api/v1/orders/{id}. Stock is returned to the item.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if err := svc.CancelOrder(r.Context(), id); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("order_cancelled", "order_id", id)
	w.WriteHeader(http.StatusNoContent)
}
