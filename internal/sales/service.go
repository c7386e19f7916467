package sales

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gesticom/gesticom/internal/accounting"
	"github.com/gesticom/gesticom/internal/inventory"
	"github.com/gesticom/gesticom/internal/shared"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// AuditPort records document events.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Reverser undoes every effect of a validated document.
type Reverser interface {
	ReverseDocument(ctx context.Context, ref accounting.DocumentRef, cancel bool, reason, idempotencyKey string) error
}

// Service validates sales and delegates their removal to the Reverser.
type Service struct {
	repo     RepositoryPort
	reverser Reverser
	defaults accounting.Defaults
	audit    AuditPort
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a sales service.
func NewService(repo RepositoryPort, reverser Reverser, defaults accounting.Defaults, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, reverser: reverser, defaults: defaults, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create validates a sale: it withdraws stock for every line and posts the
// customer/revenue entries, all in one transaction.
func (s *Service) Create(ctx context.Context, in CreateInput) (Sale, error) {
	actor, ok := shared.IdentityFromContext(ctx)
	if !ok {
		return Sale{}, shared.ErrUnauthorized
	}
	entityID, err := actor.ResolveEntity(in.EntityID)
	if err != nil {
		return Sale{}, err
	}
	lines, total, err := in.lines()
	if err != nil {
		return Sale{}, err
	}
	date, err := accounting.ParseDocumentDate(in.Date, s.now())
	if err != nil {
		return Sale{}, err
	}
	sale := Sale{
		EntityID:  entityID,
		StoreID:   in.StoreID,
		Customer:  in.Customer,
		Date:      date,
		Status:    StatusValidated,
		Total:     total,
		CreatedBy: actor.UserID,
		Lines:     lines,
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inserted, err := tx.InsertSale(ctx, sale)
		if err != nil {
			return err
		}
		ref := accounting.DocumentRef{Type: accounting.DocumentSale, ID: inserted.ID}
		for _, line := range inserted.Lines {
			if _, err := inventory.Withdraw(ctx, tx.Stock(), inventory.Change{
				StoreID:   inserted.StoreID,
				ProductID: line.ProductID,
				Qty:       line.Qty,
				Reason:    fmt.Sprintf("sale #%d", inserted.ID),
				Document:  &ref,
				ActorID:   actor.UserID,
			}); err != nil {
				return err
			}
		}
		if inserted.Total.IsPositive() {
			if _, err := accounting.Post(ctx, tx.Ledger(), accounting.Posting{
				Date:        inserted.Date,
				JournalCode: s.defaults.SalesJournal,
				Description: fmt.Sprintf("Sale #%d %s", inserted.ID, inserted.Customer),
				Document:    ref,
				EntityID:    entityID,
				EnteredBy:   actor.UserID,
				Lines: []accounting.PostingLine{
					{AccountNumber: s.defaults.CustomerAccount, Debit: inserted.Total},
					{AccountNumber: s.defaults.RevenueAccount, Credit: inserted.Total},
				},
			}); err != nil {
				return err
			}
		}
		sale = inserted
		return nil
	})
	if err != nil {
		return Sale{}, err
	}
	s.record(ctx, actor, "sale.validate", sale.ID, map[string]any{"total": sale.Total.String(), "store_id": sale.StoreID})
	return sale, nil
}

// Delete removes a sale and reverses its stock and ledger effects.
func (s *Service) Delete(ctx context.Context, id int64, in ReverseInput) error {
	return s.reverse(ctx, id, false, in)
}

// Cancel reverses a sale's effects and keeps it as CANCELLED.
func (s *Service) Cancel(ctx context.Context, id int64, in ReverseInput) error {
	return s.reverse(ctx, id, true, in)
}

func (s *Service) reverse(ctx context.Context, id int64, cancel bool, in ReverseInput) error {
	if id <= 0 {
		return fmt.Errorf("%w: sale id must be positive", shared.ErrInvalidInput)
	}
	ref := accounting.DocumentRef{Type: accounting.DocumentSale, ID: id}
	return s.reverser.ReverseDocument(ctx, ref, cancel, in.Reason, in.IdempotencyKey)
}

func (s *Service) record(ctx context.Context, actor shared.Identity, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.UserID,
		EntityID: actor.EntityID,
		Action:   action,
		Object:   "sale",
		ObjectID: strconv.FormatInt(id, 10),
		Meta:     meta,
		At:       s.now(),
	}); err != nil {
		s.logger.Warn("sales audit", slog.String("action", action), slog.Any("error", err))
	}
}
