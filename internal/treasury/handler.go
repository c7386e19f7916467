package treasury

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gesticom/gesticom/internal/platform/httpx"
	"github.com/gesticom/gesticom/internal/rbac"
	"github.com/gesticom/gesticom/internal/shared"
)

// Handler manages treasury endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers treasury routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/treasury", func(r chi.Router) {
		r.With(h.rbac.Require(shared.PermAccountingView)).Get("/bank-accounts/{id}", h.getBankAccount)
		r.With(h.rbac.Require(shared.PermAccountingManage)).Post("/bank-accounts", h.createBankAccount)

		r.Group(func(r chi.Router) {
			r.Use(h.rbac.Require(shared.PermDocumentsCreate))
			r.Post("/bank-operations", h.createBankOperation)
			r.Post("/cash-operations", h.createCashOperation)
		})
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.Require(shared.PermDocumentsReverse))
			r.Delete("/bank-operations/{id}", h.reverse(h.service.ReverseBankOperation, false))
			r.Post("/bank-operations/{id}/cancel", h.reverse(h.service.ReverseBankOperation, true))
			r.Delete("/cash-operations/{id}", h.reverse(h.service.ReverseCashOperation, false))
			r.Post("/cash-operations/{id}/cancel", h.reverse(h.service.ReverseCashOperation, true))
		})
	})
}

func (h *Handler) getBankAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	acc, err := h.service.GetBankAccount(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, acc)
}

func (h *Handler) createBankAccount(w http.ResponseWriter, r *http.Request) {
	var in BankAccountInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	acc, err := h.service.CreateBankAccount(r.Context(), in)
	if err != nil {
		h.logger.Error("create bank account", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, acc)
}

func (h *Handler) createBankOperation(w http.ResponseWriter, r *http.Request) {
	var in BankOperationInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	op, err := h.service.CreateBankOperation(r.Context(), in)
	if err != nil {
		h.logger.Error("create bank operation", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, op)
}

func (h *Handler) createCashOperation(w http.ResponseWriter, r *http.Request) {
	var in CashOperationInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	op, err := h.service.CreateCashOperation(r.Context(), in)
	if err != nil {
		h.logger.Error("create cash operation", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, op)
}

type reverseFunc func(ctx context.Context, id int64, cancel bool, in ReverseInput) error

func (h *Handler) reverse(fn reverseFunc, cancel bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			httpx.RespondError(w, err)
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
		if err := fn(r.Context(), id, cancel, in); err != nil {
			h.logger.Error("reverse treasury operation", slog.Int64("id", id), slog.Bool("cancel", cancel), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: id must be a positive integer", shared.ErrInvalidInput)
	}
	return id, nil
}
