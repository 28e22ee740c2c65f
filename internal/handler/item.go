package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stacklane/stacklane/internal/handler/dto"
	"github.com/stacklane/stacklane/internal/service"
)

// ItemServiceResolver hands out the item service for a request.
type ItemServiceResolver interface {
	ItemService(ctx context.Context) (*service.ItemService, error)
}

// ItemHandler handles HTTP requests for item operations.
type ItemHandler struct {
	services ItemServiceResolver
	logger   *slog.Logger
}

// NewItemHandler creates a new ItemHandler.
func NewItemHandler(services ItemServiceResolver, logger *slog.Logger) *ItemHandler {
	return &ItemHandler{services: services, logger: logger}
}

// Routes mounts the item endpoints.
func (h *ItemHandler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Get("/{id}/stats", h.Stats)
}

// service resolves the item service, answering 500 on failure.
func (h *ItemHandler) service(w http.ResponseWriter, r *http.Request) (*service.ItemService, bool) {
	svc, err := h.services.ItemService(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return nil, false
	}
	return svc, true
}

// List handles GET /api/v1/items.
func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := pageParams(r)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	svc, ok := h.service(w, r)
	if !ok {
		return
	}

	items, total, err := svc.ListItems(r.Context(), page.Skip, page.Limit)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToItemListResponse(items, total, page.Skip, page.Limit))
}

// Create handles POST /api/v1/items.
func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateItemRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}
	svc, ok := h.service(w, r)
	if !ok {
		return
	}

	item, err := svc.CreateItem(r.Context(), req.ToModel())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("item_created", "item_id", item.ID)
	w.Header().Set("Location", "/api/v1/items/"+item.ID)
	writeJSON(w, http.StatusCreated, dto.ToItemResponse(item))
}

// Get handles GET /api/v1/items/{id}.
func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}

	item, err := svc.GetItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToItemResponse(item))
}

// Update handles PATCH /api/v1/items/{id}.
func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateItemRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}
	svc, ok := h.service(w, r)
	if !ok {
		return
	}

	item, err := svc.UpdateItem(r.Context(), chi.URLParam(r, "id"), req.ToModel())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("item_updated", "item_id", item.ID)
	writeJSON(w, http.StatusOK, dto.ToItemResponse(item))
}

// Delete handles DELETE /api/v1/items/{id}.
func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if err := svc.DeleteItem(r.Context(), id); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("item_deleted", "item_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// Stats handles GET /api/v1/items/{id}/stats.
func (h *ItemHandler) Stats(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}

	stats, err := svc.GetItemStats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToItemStatsResponse(stats))
}
