package reversal

import (
	"context"
	"errors"
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

// Authorizer checks a capability for the identity carried by ctx.
type Authorizer interface {
	Authorize(ctx context.Context, capability string) error
}

// IdempotencyPort registers request keys and releases them on failure.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// AuditPort records reversals.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Metrics counts reversal outcomes.
type Metrics interface {
	ObserveReversal(document, mode, outcome string)
}

const idempotencyModule = "reversal"

// Service undoes validated documents.
type Service struct {
	repo    RepositoryPort
	authz   Authorizer
	idem    IdempotencyPort
	audit   AuditPort
	metrics Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// Option customises Service.
type Option func(*Service)

// WithIdempotency enables idempotency keys.
func WithIdempotency(idem IdempotencyPort) Option {
	return func(s *Service) { s.idem = idem }
}

// WithAudit records every successful reversal.
func WithAudit(audit AuditPort) Option {
	return func(s *Service) { s.audit = audit }
}

// WithMetrics counts reversal outcomes.
func WithMetrics(m Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithNow overrides the clock.
func WithNow(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs the reversal service.
func NewService(repo RepositoryPort, authz Authorizer, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{repo: repo, authz: authz, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reverse removes the ledger entries of in.Ref, restores stock or bank
// balance and then deletes the document or marks it CANCELLED.
func (s *Service) Reverse(ctx context.Context, in Input) (res Result, err error) {
	defer func() {
		s.observe(in, err)
	}()

	if err := s.authz.Authorize(ctx, shared.PermDocumentsReverse); err != nil {
		return Result{}, err
	}
	actor, ok := shared.IdentityFromContext(ctx)
	if !ok {
		return Result{}, shared.ErrUnauthorized
	}
	if err := in.Ref.Validate(); err != nil {
		return Result{}, err
	}
	mode, err := ParseMode(string(in.Mode))
	if err != nil {
		return Result{}, err
	}
	in.Mode = mode

	if in.IdempotencyKey != "" && s.idem != nil {
		if err := s.idem.CheckAndInsert(ctx, in.IdempotencyKey, idempotencyModule); err != nil {
			return Result{}, err
		}
		defer func() {
			if err == nil {
				return
			}
			if relErr := s.idem.Delete(context.WithoutCancel(ctx), in.IdempotencyKey); relErr != nil {
				s.logger.Warn("release idempotency key", slog.String("key", in.IdempotencyKey), slog.Any("error", relErr))
			}
		}()
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		out, err := s.reverseTx(ctx, tx, actor, in)
		if err != nil {
			return err
		}
		res = out
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	s.record(ctx, actor, in, res)
	s.logger.Info("document reversed",
		slog.String("document", in.Ref.String()),
		slog.String("mode", string(in.Mode)),
		slog.Int64("entries_removed", res.EntriesRemoved),
		slog.Int("movements", res.Movements))
	return res, nil
}

func (s *Service) reverseTx(ctx context.Context, tx TxRepository, actor shared.Identity, in Input) (Result, error) {
	doc, err := tx.LoadDocumentForUpdate(ctx, in.Ref)
	if err != nil {
		return Result{}, err
	}
	if !actor.CanAccessEntity(doc.EntityID) {
		return Result{}, shared.ErrForbidden
	}
	res := Result{Ref: in.Ref, Mode: in.Mode}

	if doc.Status == StatusCancelled {
		if in.Mode == ModeCancel {
			return Result{}, ErrAlreadyCancelled
		}
		// effects were undone when it was cancelled
		return res, tx.DeleteDocument(ctx, in.Ref)
	}

	removed, err := tx.Ledger().DeleteEntriesByDocument(ctx, in.Ref)
	if err != nil {
		return Result{}, err
	}
	res.EntriesRemoved = removed

	reason := in.Reason
	if reason == "" {
		reason = fmt.Sprintf("%s of %s", modeVerb(in.Mode), in.Ref)
	}
	ref := in.Ref
	switch in.Ref.Type {
	case accounting.DocumentSale:
		for _, line := range doc.Lines {
			if _, err := inventory.Increment(ctx, tx.Stock(), inventory.Change{
				StoreID: doc.StoreID, ProductID: line.ProductID, Qty: line.Qty,
				Reason: reason, Document: &ref, ActorID: actor.UserID,
			}); err != nil {
				return Result{}, err
			}
			res.Movements++
		}
	case accounting.DocumentPurchase:
		for _, line := range doc.Lines {
			if _, err := inventory.Decrement(ctx, tx.Stock(), inventory.Change{
				StoreID: doc.StoreID, ProductID: line.ProductID, Qty: line.Qty,
				Reason: reason, Document: &ref, ActorID: actor.UserID,
			}); err != nil {
				return Result{}, err
			}
			res.Movements++
		}
	case accounting.DocumentBankOperation:
		if doc.Bank == nil {
			return Result{}, fmt.Errorf("reversal: %s has no bank effect", in.Ref)
		}
		delta, err := accounting.BankBalanceDelta(doc.Bank.Type, doc.Bank.Amount)
		if err != nil {
			return Result{}, err
		}
		balance, err := tx.AdjustBankBalance(ctx, doc.Bank.AccountID, delta.Neg())
		if err != nil {
			return Result{}, err
		}
		res.BankBalance = &balance
	}

	if in.Mode == ModeCancel {
		return res, tx.MarkCancelled(ctx, in.Ref, in.Reason, s.now())
	}
	return res, tx.DeleteDocument(ctx, in.Ref)
}

// ReverseDocument lets document services delegate delete and cancel.
func (s *Service) ReverseDocument(ctx context.Context, ref accounting.DocumentRef, cancel bool, reason, idempotencyKey string) error {
	mode := ModeDelete
	if cancel {
		mode = ModeCancel
	}
	_, err := s.Reverse(ctx, Input{Ref: ref, Mode: mode, Reason: reason, IdempotencyKey: idempotencyKey})
	return err
}

func (s *Service) record(ctx context.Context, actor shared.Identity, in Input, res Result) {
	if s.audit == nil {
		return
	}
	meta := map[string]any{
		"document_type":   string(in.Ref.Type),
		"mode":            string(in.Mode),
		"reason":          in.Reason,
		"entries_removed": res.EntriesRemoved,
		"movements":       res.Movements,
	}
	if res.BankBalance != nil {
		meta["bank_balance"] = res.BankBalance.String()
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.UserID,
		EntityID: actor.EntityID,
		Action:   "document." + modeVerb(in.Mode),
		Object:   "document",
		ObjectID: string(in.Ref.Type) + ":" + strconv.FormatInt(in.Ref.ID, 10),
		Meta:     meta,
		At:       s.now(),
	}); err != nil {
		s.logger.Warn("reversal audit", slog.Any("error", err))
	}
}

func (s *Service) observe(in Input, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveReversal(string(in.Ref.Type), string(in.Mode), outcome(err))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, shared.ErrUnauthorized), errors.Is(err, shared.ErrForbidden):
		return "denied"
	case errors.Is(err, shared.ErrNotFound):
		return "not_found"
	case errors.Is(err, shared.ErrConflict):
		return "conflict"
	case errors.Is(err, shared.ErrInvalidInput):
		return "invalid"
	}
	return "error"
}

func modeVerb(m Mode) string {
	if m == ModeCancel {
		return "cancel"
	}
	return "delete"
}
