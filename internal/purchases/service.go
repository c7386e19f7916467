package purchases

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

// Service validates supplier purchases.
type Service struct {
	repo     RepositoryPort
	reverser Reverser
	defaults accounting.Defaults
	audit    AuditPort
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a purchases service.
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

// Create validates a purchase: stock comes in for every line and the
// purchases/supplier entries are posted in the same transaction.
func (s *Service) Create(ctx context.Context, in CreateInput) (Purchase, error) {
	actor, ok := shared.IdentityFromContext(ctx)
	if !ok {
		return Purchase{}, shared.ErrUnauthorized
	}
	entityID, err := actor.ResolveEntity(in.EntityID)
	if err != nil {
		return Purchase{}, err
	}
	lines, total, err := in.lines()
	if err != nil {
		return Purchase{}, err
	}
	date, err := accounting.ParseDocumentDate(in.Date, s.now())
	if err != nil {
		return Purchase{}, err
	}
	p := Purchase{
		EntityID:  entityID,
		StoreID:   in.StoreID,
		Supplier:  in.Supplier,
		Date:      date,
		Status:    StatusValidated,
		Total:     total,
		CreatedBy: actor.UserID,
		Lines:     lines,
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inserted, err := tx.InsertPurchase(ctx, p)
		if err != nil {
			return err
		}
		ref := accounting.DocumentRef{Type: accounting.DocumentPurchase, ID: inserted.ID}
		for _, line := range inserted.Lines {
			if _, err := inventory.Increment(ctx, tx.Stock(), inventory.Change{
				StoreID:   inserted.StoreID,
				ProductID: line.ProductID,
				Qty:       line.Qty,
				Reason:    fmt.Sprintf("purchase #%d", inserted.ID),
				Document:  &ref,
				ActorID:   actor.UserID,
			}); err != nil {
				return err
			}
		}
		if inserted.Total.IsPositive() {
			if _, err := accounting.Post(ctx, tx.Ledger(), accounting.Posting{
				Date:        inserted.Date,
				JournalCode: s.defaults.PurchasesJournal,
				Description: fmt.Sprintf("Purchase #%d %s", inserted.ID, inserted.Supplier),
				Document:    ref,
				EntityID:    entityID,
				EnteredBy:   actor.UserID,
				Lines: []accounting.PostingLine{
					{AccountNumber: s.defaults.PurchasesAccount, Debit: inserted.Total},
					{AccountNumber: s.defaults.SupplierAccount, Credit: inserted.Total},
				},
			}); err != nil {
				return err
			}
		}
		p = inserted
		return nil
	})
	if err != nil {
		return Purchase{}, err
	}
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			EntityID: p.EntityID,
			Action:   "purchase.validate",
			Object:   "purchase",
			ObjectID: strconv.FormatInt(p.ID, 10),
			Meta:     map[string]any{"total": p.Total.String(), "store_id": p.StoreID},
			At:       s.now(),
		}); err != nil {
			s.logger.Warn("purchases audit", slog.Any("error", err))
		}
	}
	return p, nil
}

// Delete removes a purchase and takes its stock back out, floored at zero.
func (s *Service) Delete(ctx context.Context, id int64, in ReverseInput) error {
	if id <= 0 {
		return fmt.Errorf("%w: purchase id must be positive", shared.ErrInvalidInput)
	}
	return s.reverser.ReverseDocument(ctx, accounting.DocumentRef{Type: accounting.DocumentPurchase, ID: id}, false, in.Reason, in.IdempotencyKey)
}

// Cancel reverses a purchase and keeps it as CANCELLED.
func (s *Service) Cancel(ctx context.Context, id int64, in ReverseInput) error {
	if id <= 0 {
		return fmt.Errorf("%w: purchase id must be positive", shared.ErrInvalidInput)
	}
	return s.reverser.ReverseDocument(ctx, accounting.DocumentRef{Type: accounting.DocumentPurchase, ID: id}, true, in.Reason, in.IdempotencyKey)
}
