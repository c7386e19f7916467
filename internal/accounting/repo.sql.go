package accounting

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gesticom/gesticom/internal/platform/db"
)

// Repository persists accounting entities.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	ListAccounts(ctx context.Context, filter ListFilter) ([]Account, error)
	GetAccount(ctx context.Context, id int64) (Account, error)
	GetAccountByNumber(ctx context.Context, number string) (Account, error)
	InsertAccount(ctx context.Context, in AccountInput, t AccountType) (Account, error)
	UpdateAccount(ctx context.Context, id int64, upd AccountUpdate) (Account, error)
	ListJournals(ctx context.Context, filter ListFilter) ([]Journal, error)
	GetJournalByCode(ctx context.Context, code string) (Journal, error)
	InsertJournal(ctx context.Context, in JournalInput, t JournalType) (Journal, error)
	UpdateJournal(ctx context.Context, id int64, upd JournalUpdate) (Journal, error)
	InsertEntries(ctx context.Context, entries []LedgerEntry) ([]LedgerEntry, error)
	ListEntries(ctx context.Context, filter EntryFilter) ([]LedgerEntry, error)
	DeleteEntriesByDocument(ctx context.Context, ref DocumentRef) (int64, error)
	UnbalancedDocuments(ctx context.Context) ([]DocumentImbalance, error)
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository binds accounting operations to a transaction opened by
// another module.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// WithTx executes fn within repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("accounting repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const accountColumns = `id, number, label, class, type, active, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Number, &a.Label, &a.Class, &a.Type, &a.Active, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *txRepository) ListAccounts(ctx context.Context, filter ListFilter) ([]Account, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+accountColumns+` FROM accounts
WHERE ($1::boolean IS NULL OR active = $1) ORDER BY class, number`, filter.Active)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	accounts := make([]Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *txRepository) GetAccount(ctx context.Context, id int64) (Account, error) {
	a, err := scanAccount(r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, fmt.Errorf("%w %d", ErrAccountNotFound, id)
		}
		return Account{}, err
	}
	return a, nil
}

func (r *txRepository) GetAccountByNumber(ctx context.Context, number string) (Account, error) {
	a, err := scanAccount(r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE number=$1`, number))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, fmt.Errorf("%w %s", ErrAccountNotFound, number)
		}
		return Account{}, err
	}
	return a, nil
}

func (r *txRepository) InsertAccount(ctx context.Context, in AccountInput, t AccountType) (Account, error) {
	a, err := scanAccount(r.tx.QueryRow(ctx, `INSERT INTO accounts (number, label, class, type, active)
VALUES ($1,$2,$3,$4,TRUE) RETURNING `+accountColumns, in.Number, in.Label, in.Class, t))
	if err != nil {
		return Account{}, mapWriteError(err)
	}
	return a, nil
}

func (r *txRepository) UpdateAccount(ctx context.Context, id int64, upd AccountUpdate) (Account, error) {
	a, err := scanAccount(r.tx.QueryRow(ctx, `UPDATE accounts SET
label = COALESCE($2, label), active = COALESCE($3, active), updated_at = NOW()
WHERE id=$1 RETURNING `+accountColumns, id, upd.Label, upd.Active))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, fmt.Errorf("%w %d", ErrAccountNotFound, id)
		}
		return Account{}, err
	}
	return a, nil
}

const journalColumns = `id, code, label, type, active, created_at, updated_at`

func scanJournal(row pgx.Row) (Journal, error) {
	var j Journal
	err := row.Scan(&j.ID, &j.Code, &j.Label, &j.Type, &j.Active, &j.CreatedAt, &j.UpdatedAt)
	return j, err
}

func (r *txRepository) ListJournals(ctx context.Context, filter ListFilter) ([]Journal, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+journalColumns+` FROM journals
WHERE ($1::boolean IS NULL OR active = $1) ORDER BY code`, filter.Active)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	journals := make([]Journal, 0)
	for rows.Next() {
		j, err := scanJournal(rows)
		if err != nil {
			return nil, err
		}
		journals = append(journals, j)
	}
	return journals, rows.Err()
}

func (r *txRepository) GetJournalByCode(ctx context.Context, code string) (Journal, error) {
	j, err := scanJournal(r.tx.QueryRow(ctx, `SELECT `+journalColumns+` FROM journals WHERE code=$1`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Journal{}, fmt.Errorf("%w %s", ErrJournalNotFound, code)
		}
		return Journal{}, err
	}
	return j, nil
}

func (r *txRepository) InsertJournal(ctx context.Context, in JournalInput, t JournalType) (Journal, error) {
	j, err := scanJournal(r.tx.QueryRow(ctx, `INSERT INTO journals (code, label, type, active)
VALUES ($1,$2,$3,TRUE) RETURNING `+journalColumns, strings.TrimSpace(in.Code), strings.TrimSpace(in.Label), t))
	if err != nil {
		return Journal{}, mapWriteError(err)
	}
	return j, nil
}

func (r *txRepository) UpdateJournal(ctx context.Context, id int64, upd JournalUpdate) (Journal, error) {
	j, err := scanJournal(r.tx.QueryRow(ctx, `UPDATE journals SET
label = COALESCE($2, label), active = COALESCE($3, active), updated_at = NOW()
WHERE id=$1 RETURNING `+journalColumns, id, upd.Label, upd.Active))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Journal{}, fmt.Errorf("%w %d", ErrJournalNotFound, id)
		}
		return Journal{}, err
	}
	return j, nil
}

func (r *txRepository) InsertEntries(ctx context.Context, entries []LedgerEntry) ([]LedgerEntry, error) {
	out := make([]LedgerEntry, 0, len(entries))
	for _, e := range entries {
		err := r.tx.QueryRow(ctx, `INSERT INTO ledger_entries
(entry_date, journal_id, account_id, debit, credit, description, document_type, document_id, entity_id, entered_by)
VALUES ($1::date,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id, created_at`,
			e.Date.Format(DateLayout), e.JournalID, e.AccountID, e.Debit, e.Credit, e.Description,
			e.Document.Type, e.Document.ID, e.EntityID, nullInt(e.EnteredBy)).
			Scan(&e.ID, &e.CreatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *txRepository) ListEntries(ctx context.Context, filter EntryFilter) ([]LedgerEntry, error) {
	from, to := filter.Range.Bounds()
	rows, err := r.tx.Query(ctx, `SELECT e.id, e.entry_date, e.journal_id, e.account_id, e.debit, e.credit,
	e.description, e.document_type, e.document_id, e.entity_id, COALESCE(e.entered_by, 0), e.created_at,
	j.code, j.label, j.type, j.active,
	a.id, a.number, a.label, a.class, a.type, a.active
FROM ledger_entries e
JOIN journals j ON j.id = e.journal_id
LEFT JOIN accounts a ON a.id = e.account_id
WHERE ($1::date IS NULL OR e.entry_date >= $1::date)
  AND ($2::date IS NULL OR e.entry_date <= $2::date)
  AND ($3::text = '' OR a.number = $3::text)
  AND ($4::bigint = 0 OR e.entity_id = $4::bigint)
ORDER BY e.entry_date, e.id`, from, to, filter.AccountNumber, filter.EntityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := make([]LedgerEntry, 0)
	for rows.Next() {
		var (
			e         LedgerEntry
			j         Journal
			accID     *int64
			accNumber *string
			accLabel  *string
			accClass  *string
			accType   *string
			accActive *bool
		)
		if err := rows.Scan(&e.ID, &e.Date, &e.JournalID, &e.AccountID, &e.Debit, &e.Credit,
			&e.Description, &e.Document.Type, &e.Document.ID, &e.EntityID, &e.EnteredBy, &e.CreatedAt,
			&j.Code, &j.Label, &j.Type, &j.Active,
			&accID, &accNumber, &accLabel, &accClass, &accType, &accActive); err != nil {
			return nil, err
		}
		j.ID = e.JournalID
		e.Journal = &j
		if accID != nil {
			e.Account = &Account{
				ID:     *accID,
				Number: deref(accNumber),
				Label:  deref(accLabel),
				Class:  deref(accClass),
				Type:   AccountType(deref(accType)),
				Active: accActive != nil && *accActive,
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *txRepository) DeleteEntriesByDocument(ctx context.Context, ref DocumentRef) (int64, error) {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM ledger_entries WHERE document_type=$1 AND document_id=$2`, ref.Type, ref.ID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *txRepository) UnbalancedDocuments(ctx context.Context) ([]DocumentImbalance, error) {
	rows, err := r.tx.Query(ctx, `SELECT document_type, document_id, SUM(debit), SUM(credit)
FROM ledger_entries
GROUP BY document_type, document_id
HAVING SUM(debit) <> SUM(credit)
ORDER BY document_type, document_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]DocumentImbalance, 0)
	for rows.Next() {
		var d DocumentImbalance
		if err := rows.Scan(&d.Document.Type, &d.Document.ID, &d.Debit, &d.Credit); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}

func nullInt(val int64) any {
	if val == 0 {
		return nil
	}
	return val
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

