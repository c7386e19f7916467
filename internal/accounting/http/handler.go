// Package http exposes chart of accounts management and ledger reports.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gesticom/gesticom/internal/accounting"
	"github.com/gesticom/gesticom/internal/accounting/reports"
	"github.com/gesticom/gesticom/internal/platform/httpx"
	"github.com/gesticom/gesticom/internal/rbac"
	"github.com/gesticom/gesticom/internal/shared"
)

// Handler wires accounting endpoints.
type Handler struct {
	logger  *slog.Logger
	service *accounting.Service
	rbac    rbac.Middleware
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *accounting.Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers HTTP routes for the accounting module.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/accounting", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.Require(shared.PermAccountingView))
			r.Get("/accounts", h.handleListAccounts)
			r.Get("/journals", h.handleListJournals)
			r.Get("/trial-balance", h.handleTrialBalance)
			r.Get("/general-ledger", h.handleGeneralLedger)
			r.Get("/income-statement", h.handleIncomeStatement)
			r.Get("/balance-sheet", h.handleBalanceSheet)
		})
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.Require(shared.PermAccountingManage))
			r.Post("/accounts", h.handleCreateAccount)
			r.Patch("/accounts/{id}", h.handleUpdateAccount)
			r.Post("/journals", h.handleCreateJournal)
			r.Patch("/journals/{id}", h.handleUpdateJournal)
		})
	})
}

func (h *Handler) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	accounts, err := h.service.ListAccounts(r.Context(), filter)
	if err != nil {
		h.fail(w, r, "list accounts", err)
		return
	}
	httpx.JSON(w, http.StatusOK, accounts)
}

func (h *Handler) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var in accounting.AccountInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	account, err := h.service.CreateAccount(r.Context(), in)
	if err != nil {
		h.fail(w, r, "create account", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, account)
}

func (h *Handler) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var upd accounting.AccountUpdate
	if err := httpx.DecodeJSON(r, &upd); err != nil {
		httpx.RespondError(w, err)
		return
	}
	account, err := h.service.UpdateAccount(r.Context(), id, upd)
	if err != nil {
		h.fail(w, r, "update account", err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

func (h *Handler) handleListJournals(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	journals, err := h.service.ListJournals(r.Context(), filter)
	if err != nil {
		h.fail(w, r, "list journals", err)
		return
	}
	httpx.JSON(w, http.StatusOK, journals)
}

func (h *Handler) handleCreateJournal(w http.ResponseWriter, r *http.Request) {
	var in accounting.JournalInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	journal, err := h.service.CreateJournal(r.Context(), in)
	if err != nil {
		h.fail(w, r, "create journal", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, journal)
}

func (h *Handler) handleUpdateJournal(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var upd accounting.JournalUpdate
	if err := httpx.DecodeJSON(r, &upd); err != nil {
		httpx.RespondError(w, err)
		return
	}
	journal, err := h.service.UpdateJournal(r.Context(), id, upd)
	if err != nil {
		h.fail(w, r, "update journal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, journal)
}

func (h *Handler) handleTrialBalance(w http.ResponseWriter, r *http.Request) {
	h.serveReport(w, r, "tb", func(agg accounting.Aggregation) any {
		return reports.BuildTrialBalance(agg)
	})
}

func (h *Handler) handleGeneralLedger(w http.ResponseWriter, r *http.Request) {
	h.serveReport(w, r, "gl", func(agg accounting.Aggregation) any {
		return reports.BuildGeneralLedger(agg)
	})
}

func (h *Handler) handleIncomeStatement(w http.ResponseWriter, r *http.Request) {
	h.serveReport(w, r, "is", func(agg accounting.Aggregation) any {
		return reports.BuildIncomeStatement(agg)
	})
}

func (h *Handler) handleBalanceSheet(w http.ResponseWriter, r *http.Request) {
	h.serveReport(w, r, "bs", func(agg accounting.Aggregation) any {
		return reports.BuildBalanceSheet(agg)
	})
}

func (h *Handler) serveReport(w http.ResponseWriter, r *http.Request, kind string, build func(accounting.Aggregation) any) {
	q := r.URL.Query()
	rng, err := accounting.NewDateRange(q.Get("dateDebut"), q.Get("dateFin"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	requested, err := parseEntity(q.Get("entity"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entityID, err := actor.ScopeEntity(requested)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter := accounting.EntryFilter{
		Range:         rng,
		AccountNumber: strings.TrimSpace(q.Get("account")),
		EntityID:      entityID,
	}
	key := fmt.Sprintf("%s|%d|%s|%s", kind, filter.EntityID, rng.Key(), filter.AccountNumber)
	res, err, joined := singleflightBuild(r.Context(), key, func(ctx context.Context) (any, error) {
		agg, err := h.service.Balances(ctx, filter)
		if err != nil {
			return nil, err
		}
		return build(agg), nil
	})
	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		h.logger.Debug("report abandoned by client", slog.String("key", key))
		return
	}
	if err != nil {
		h.fail(w, r, "build report "+kind, err)
		return
	}
	if joined {
		h.logger.Debug("report flight shared", slog.String("key", key))
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.Error(op, slog.String("path", r.URL.Path), slog.Any("error", err))
	httpx.RespondError(w, err)
}

func parseListFilter(r *http.Request) (accounting.ListFilter, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("active"))
	if raw == "" {
		return accounting.ListFilter{}, nil
	}
	active, err := strconv.ParseBool(raw)
	if err != nil {
		return accounting.ListFilter{}, fmt.Errorf("%w: active must be a boolean", shared.ErrInvalidInput)
	}
	return accounting.ListFilter{Active: &active}, nil
}

func parseEntity(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return parseID(raw)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: id must be a positive integer", shared.ErrInvalidInput)
	}
	return id, nil
}
