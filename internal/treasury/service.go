package treasury

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gesticom/gesticom/internal/accounting"
	"github.com/gesticom/gesticom/internal/shared"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// AuditPort records treasury events.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Reverser undoes every effect of a validated document.
type Reverser interface {
	ReverseDocument(ctx context.Context, ref accounting.DocumentRef, cancel bool, reason, idempotencyKey string) error
}

// Service handles bank accounts, bank operations and cash operations.
type Service struct {
	repo     RepositoryPort
	reverser Reverser
	defaults accounting.Defaults
	audit    AuditPort
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a treasury service.
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

// CreateBankAccount opens a bank account mapped to a ledger account.
func (s *Service) CreateBankAccount(ctx context.Context, in BankAccountInput) (BankAccount, error) {
	actor, ok := shared.IdentityFromContext(ctx)
	if !ok {
		return BankAccount{}, shared.ErrUnauthorized
	}
	entityID, err := actor.ResolveEntity(in.EntityID)
	if err != nil {
		return BankAccount{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return BankAccount{}, fmt.Errorf("%w: treasury: bank account name required", shared.ErrInvalidInput)
	}
	ledger := strings.TrimSpace(in.LedgerAccount)
	if ledger == "" {
		ledger = s.defaults.BankAccount
	}
	var out BankAccount
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.Ledger().GetAccountByNumber(ctx, ledger); err != nil {
			return err
		}
		created, err := tx.InsertBankAccount(ctx, BankAccount{
			EntityID:       entityID,
			Name:           name,
			IBAN:           strings.ReplaceAll(strings.ToUpper(in.IBAN), " ", ""),
			LedgerAccount:  ledger,
			OpeningBalance: in.OpeningBalance,
		})
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	if err != nil {
		return BankAccount{}, err
	}
	s.record(ctx, actor, "bank_account.create", "bank_account", out.ID, map[string]any{"name": out.Name})
	return out, nil
}

// GetBankAccount returns a bank account visible to the caller.
func (s *Service) GetBankAccount(ctx context.Context, id int64) (BankAccount, error) {
	actor, ok := shared.IdentityFromContext(ctx)
	if !ok {
		return BankAccount{}, shared.ErrUnauthorized
	}
	var out BankAccount
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		acc, err := tx.GetBankAccount(ctx, id)
		if err != nil {
			return err
		}
		out = acc
		return nil
	})
	if err != nil {
		return BankAccount{}, err
	}
	if !actor.CanAccessEntity(out.EntityID) {
		return BankAccount{}, shared.ErrForbidden
	}
	return out, nil
}

// CreateBankOperation records a bank operation, moves the account's current
// balance by its delta and posts it against the counterpart account.
func (s *Service) CreateBankOperation(ctx context.Context, in BankOperationInput) (BankOperation, error) {
	actor, ok := shared.IdentityFromContext(ctx)
	if !ok {
		return BankOperation{}, shared.ErrUnauthorized
	}
	typ, err := accounting.ParseBankOperationType(in.Type)
	if err != nil {
		return BankOperation{}, err
	}
	delta, err := accounting.BankBalanceDelta(typ, in.Amount)
	if err != nil {
		return BankOperation{}, err
	}
	date, err := accounting.ParseDocumentDate(in.Date, s.now())
	if err != nil {
		return BankOperation{}, err
	}
	counterpart := s.counterpart(in.Counterpart)

	var op BankOperation
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		acc, err := tx.GetBankAccount(ctx, in.BankAccountID)
		if err != nil {
			return err
		}
		if !actor.CanAccessEntity(acc.EntityID) {
			return shared.ErrForbidden
		}
		inserted, err := tx.InsertBankOperation(ctx, BankOperation{
			EntityID:      acc.EntityID,
			BankAccountID: acc.ID,
			Type:          typ,
			Amount:        in.Amount,
			Date:          date,
			Label:         in.Label,
			Counterpart:   counterpart,
			Status:        StatusValidated,
			CreatedBy:     actor.UserID,
		})
		if err != nil {
			return err
		}
		if _, err := tx.AdjustBankBalance(ctx, acc.ID, delta); err != nil {
			return err
		}
		bank, other := acc.LedgerAccount, counterpart
		if !typ.Inflow() {
			bank, other = other, bank
		}
		if _, err := accounting.Post(ctx, tx.Ledger(), accounting.Posting{
			Date:        date,
			JournalCode: s.defaults.BankJournal,
			Description: describe(string(typ), in.Label),
			Document:    accounting.DocumentRef{Type: accounting.DocumentBankOperation, ID: inserted.ID},
			EntityID:    acc.EntityID,
			EnteredBy:   actor.UserID,
			Lines: []accounting.PostingLine{
				{AccountNumber: bank, Debit: in.Amount},
				{AccountNumber: other, Credit: in.Amount},
			},
		}); err != nil {
			return err
		}
		op = inserted
		return nil
	})
	if err != nil {
		return BankOperation{}, err
	}
	s.record(ctx, actor, "bank_operation.validate", "bank_operation", op.ID, map[string]any{"type": string(op.Type), "amount": op.Amount.String()})
	return op, nil
}

// CreateCashOperation records a till receipt or payment and posts it.
func (s *Service) CreateCashOperation(ctx context.Context, in CashOperationInput) (CashOperation, error) {
	actor, ok := shared.IdentityFromContext(ctx)
	if !ok {
		return CashOperation{}, shared.ErrUnauthorized
	}
	entityID, err := actor.ResolveEntity(in.EntityID)
	if err != nil {
		return CashOperation{}, err
	}
	typ, err := ParseCashOperationType(in.Type)
	if err != nil {
		return CashOperation{}, err
	}
	if !in.Amount.IsPositive() {
		return CashOperation{}, fmt.Errorf("%w: cash operation amount must be positive", shared.ErrInvalidInput)
	}
	date, err := accounting.ParseDocumentDate(in.Date, s.now())
	if err != nil {
		return CashOperation{}, err
	}
	counterpart := s.counterpart(in.Counterpart)

	var op CashOperation
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inserted, err := tx.InsertCashOperation(ctx, CashOperation{
			EntityID:    entityID,
			Type:        typ,
			Amount:      in.Amount,
			Date:        date,
			Label:       in.Label,
			Counterpart: counterpart,
			Status:      StatusValidated,
			CreatedBy:   actor.UserID,
		})
		if err != nil {
			return err
		}
		cash, other := s.defaults.CashAccount, counterpart
		if typ == CashPayment {
			cash, other = other, cash
		}
		if _, err := accounting.Post(ctx, tx.Ledger(), accounting.Posting{
			Date:        date,
			JournalCode: s.defaults.CashJournal,
			Description: describe(string(typ), in.Label),
			Document:    accounting.DocumentRef{Type: accounting.DocumentCashOperation, ID: inserted.ID},
			EntityID:    entityID,
			EnteredBy:   actor.UserID,
			Lines: []accounting.PostingLine{
				{AccountNumber: cash, Debit: in.Amount},
				{AccountNumber: other, Credit: in.Amount},
			},
		}); err != nil {
			return err
		}
		op = inserted
		return nil
	})
	if err != nil {
		return CashOperation{}, err
	}
	s.record(ctx, actor, "cash_operation.validate", "cash_operation", op.ID, map[string]any{"type": string(op.Type), "amount": op.Amount.String()})
	return op, nil
}

// ReverseBankOperation deletes or cancels a bank operation.
func (s *Service) ReverseBankOperation(ctx context.Context, id int64, cancel bool, in ReverseInput) error {
	return s.reverse(ctx, accounting.DocumentBankOperation, id, cancel, in)
}

// ReverseCashOperation deletes or cancels a cash operation.
func (s *Service) ReverseCashOperation(ctx context.Context, id int64, cancel bool, in ReverseInput) error {
	return s.reverse(ctx, accounting.DocumentCashOperation, id, cancel, in)
}

func (s *Service) reverse(ctx context.Context, typ accounting.DocumentType, id int64, cancel bool, in ReverseInput) error {
	if id <= 0 {
		return fmt.Errorf("%w: operation id must be positive", shared.ErrInvalidInput)
	}
	return s.reverser.ReverseDocument(ctx, accounting.DocumentRef{Type: typ, ID: id}, cancel, in.Reason, in.IdempotencyKey)
}

func (s *Service) counterpart(raw string) string {
	if c := strings.TrimSpace(raw); c != "" {
		return c
	}
	return s.defaults.SuspenseAccount
}

func describe(kind, label string) string {
	if label = strings.TrimSpace(label); label != "" {
		return label
	}
	return strings.ToLower(strings.ReplaceAll(kind, "_", " "))
}

func (s *Service) record(ctx context.Context, actor shared.Identity, action, object string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.UserID,
		EntityID: actor.EntityID,
		Action:   action,
		Object:   object,
		ObjectID: strconv.FormatInt(id, 10),
		Meta:     meta,
		At:       s.now(),
	}); err != nil {
		s.logger.Warn("treasury audit", slog.String("action", action), slog.Any("error", err))
	}
}

