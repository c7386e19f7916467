package accounting

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gesticom/gesticom/internal/shared"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages the chart of accounts, journals and ledger queries.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the ledger service.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// ListAccounts returns the chart of accounts ordered by class and number.
func (s *Service) ListAccounts(ctx context.Context, filter ListFilter) ([]Account, error) {
	var accounts []Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		accounts, err = tx.ListAccounts(ctx, filter)
		return err
	})
	return accounts, err
}

// CreateAccount opens a new account.
func (s *Service) CreateAccount(ctx context.Context, in AccountInput) (Account, error) {
	in, t, err := in.Normalize()
	if err != nil {
		return Account{}, err
	}
	var account Account
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		account, err = tx.InsertAccount(ctx, in, t)
		return err
	})
	if err != nil {
		return Account{}, err
	}
	s.record(ctx, "account.create", "account", account.ID, map[string]any{"number": account.Number, "type": account.Type})
	return account, nil
}

// UpdateAccount changes the label or active flag of an account.
func (s *Service) UpdateAccount(ctx context.Context, id int64, upd AccountUpdate) (Account, error) {
	if id <= 0 {
		return Account{}, fmt.Errorf("%w: account id must be positive", shared.ErrInvalidInput)
	}
	if upd.Label != nil && *upd.Label == "" {
		return Account{}, fmt.Errorf("%w: label cannot be empty", shared.ErrInvalidInput)
	}
	var account Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		account, err = tx.UpdateAccount(ctx, id, upd)
		return err
	})
	if err != nil {
		return Account{}, err
	}
	s.record(ctx, "account.update", "account", account.ID, map[string]any{"label": account.Label, "active": account.Active})
	return account, nil
}

// ListJournals returns journals ordered by code.
func (s *Service) ListJournals(ctx context.Context, filter ListFilter) ([]Journal, error) {
	var journals []Journal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		journals, err = tx.ListJournals(ctx, filter)
		return err
	})
	return journals, err
}

// CreateJournal opens a new journal.
func (s *Service) CreateJournal(ctx context.Context, in JournalInput) (Journal, error) {
	if in.Code == "" || in.Label == "" {
		return Journal{}, fmt.Errorf("%w: journal code and label are required", shared.ErrInvalidInput)
	}
	t, err := ParseJournalType(in.Type)
	if err != nil {
		return Journal{}, err
	}
	var journal Journal
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		journal, err = tx.InsertJournal(ctx, in, t)
		return err
	})
	if err != nil {
		return Journal{}, err
	}
	s.record(ctx, "journal.create", "journal", journal.ID, map[string]any{"code": journal.Code})
	return journal, nil
}

// UpdateJournal changes the label or active flag of a journal.
func (s *Service) UpdateJournal(ctx context.Context, id int64, upd JournalUpdate) (Journal, error) {
	if id <= 0 {
		return Journal{}, fmt.Errorf("%w: journal id must be positive", shared.ErrInvalidInput)
	}
	if upd.Label != nil && *upd.Label == "" {
		return Journal{}, fmt.Errorf("%w: label cannot be empty", shared.ErrInvalidInput)
	}
	var journal Journal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		journal, err = tx.UpdateJournal(ctx, id, upd)
		return err
	})
	if err != nil {
		return Journal{}, err
	}
	s.record(ctx, "journal.update", "journal", journal.ID, map[string]any{"label": journal.Label, "active": journal.Active})
	return journal, nil
}

// Balances loads the caller's entries matching filter and aggregates them
// per account. filter.EntityID selects another entity and is honoured for
// SUPER_ADMIN only, who may also leave it zero to span every entity.
func (s *Service) Balances(ctx context.Context, filter EntryFilter) (Aggregation, error) {
	actor, ok := shared.IdentityFromContext(ctx)
	if !ok {
		return Aggregation{}, shared.ErrUnauthorized
	}
	entityID, err := actor.ScopeEntity(filter.EntityID)
	if err != nil {
		return Aggregation{}, err
	}
	filter.EntityID = entityID
	return LoadAggregation(ctx, s.repo, filter)
}

// LoadAggregation aggregates entries without an identity check. It backs
// operator tooling that already runs with database credentials.
func LoadAggregation(ctx context.Context, repo RepositoryPort, filter EntryFilter) (Aggregation, error) {
	var entries []LedgerEntry
	err := repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entries, err = tx.ListEntries(ctx, filter)
		return err
	})
	if err != nil {
		return Aggregation{}, err
	}
	return Aggregate(entries, filter.Range), nil
}

// UnbalancedDocuments lists documents whose entries break double entry.
func (s *Service) UnbalancedDocuments(ctx context.Context) ([]DocumentImbalance, error) {
	var out []DocumentImbalance
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		out, err = tx.UnbalancedDocuments(ctx)
		return err
	})
	return out, err
}

func (s *Service) record(ctx context.Context, action, object string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	actor, _ := shared.IdentityFromContext(ctx)
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.UserID,
		EntityID: actor.EntityID,
		Action:   action,
		Object:   object,
		ObjectID: strconv.FormatInt(id, 10),
		Meta:     meta,
		At:       s.now(),
	})
	if err != nil {
		s.logger.Warn("accounting audit", slog.String("action", action), slog.Any("error", err))
	}
}
