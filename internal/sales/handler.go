package sales

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

// Handler manages sales endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/sales", func(r chi.Router) {
		r.With(h.rbac.Require(shared.PermDocumentsCreate)).Post("/", h.createSale)
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.Require(shared.PermDocumentsReverse))
			r.Delete("/{id}", h.deleteSale)
			r.Post("/{id}/cancel", h.cancelSale)
		})
	})
}

func (h *Handler) createSale(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	sale, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.logger.Error("create sale", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sale)
}

func (h *Handler) deleteSale(w http.ResponseWriter, r *http.Request) {
	id, in, err := reverseRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id, in); err != nil {
		h.logger.Error("delete sale", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) cancelSale(w http.ResponseWriter, r *http.Request) {
	id, in, err := reverseRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Cancel(r.Context(), id, in); err != nil {
		h.logger.Error("cancel sale", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func reverseRequest(r *http.Request) (int64, ReverseInput, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, ReverseInput{}, fmt.Errorf("%w: id must be a positive integer", shared.ErrInvalidInput)
	}
	var in ReverseInput
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &in); err != nil {
			return 0, ReverseInput{}, err
		}
	}
	in.IdempotencyKey = r.Header.Get("Idempotency-Key")
	return id, in, nil
}
