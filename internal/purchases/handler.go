package purchases

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

// Handler manages purchase endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers purchase routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/purchases", func(r chi.Router) {
		r.With(h.rbac.Require(shared.PermDocumentsCreate)).Post("/", h.createPurchase)
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.Require(shared.PermDocumentsReverse))
			r.Delete("/{id}", h.reverse(false))
			r.Post("/{id}/cancel", h.reverse(true))
		})
	})
}

func (h *Handler) createPurchase(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.logger.Error("create purchase", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) reverse(cancel bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil || id <= 0 {
			httpx.RespondError(w, fmt.Errorf("%w: id must be a positive integer", shared.ErrInvalidInput))
			return
		}
		var in ReverseInput
		if r.ContentLength > 0 {
			if err := httpx.DecodeJSON(r, &in); err != nil {
				httpx.RespondError(w, err)
				return
			}
		}
		in.IdempotencyKey = r.Header.Get("Idempotency-Key")
		if cancel {
			err = h.service.Cancel(r.Context(), id, in)
		} else {
			err = h.service.Delete(r.Context(), id, in)
		}
		if err != nil {
			h.logger.Error("reverse purchase", slog.Int64("id", id), slog.Bool("cancel", cancel), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
