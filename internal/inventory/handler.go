package inventory

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gesticom/gesticom/internal/platform/httpx"
	"github.com/gesticom/gesticom/internal/rbac"
	"github.com/gesticom/gesticom/internal/shared"
)

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/inventory", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.Require(shared.PermStockView))
			r.Get("/stock", h.handleStock)
			r.Get("/movements", h.handleMovements)
		})
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.Require(shared.PermStockAdjust))
			r.Post("/adjustments", h.handleAdjustment)
		})
	})
}

func (h *Handler) handleStock(w http.ResponseWriter, r *http.Request) {
	storeID, productID, err := parseKey(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	stock, err := h.service.Get(r.Context(), storeID, productID)
	if err != nil {
		h.logger.Error("get stock", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stock)
}

func (h *Handler) handleMovements(w http.ResponseWriter, r *http.Request) {
	storeID, productID, err := parseKey(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	movements, err := h.service.Movements(r.Context(), MovementFilter{StoreID: storeID, ProductID: productID, Limit: limit})
	if err != nil {
		h.logger.Error("list movements", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, movements)
}

func (h *Handler) handleAdjustment(w http.ResponseWriter, r *http.Request) {
	var in AdjustmentInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	movement, err := h.service.Adjust(r.Context(), in)
	if err != nil {
		h.logger.Error("adjust stock", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, movement)
}

func parseKey(r *http.Request) (int64, int64, error) {
	q := r.URL.Query()
	storeID, err := strconv.ParseInt(q.Get("store"), 10, 64)
	if err != nil || storeID <= 0 {
		return 0, 0, fmt.Errorf("%w: store must be a positive integer", shared.ErrInvalidInput)
	}
	productID, err := strconv.ParseInt(q.Get("product"), 10, 64)
	if err != nil || productID <= 0 {
		return 0, 0, fmt.Errorf("%w: product must be a positive integer", shared.ErrInvalidInput)
	}
	return storeID, productID, nil
}
