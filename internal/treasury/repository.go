package treasury

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/gesticom/gesticom/internal/accounting"
	"github.com/gesticom/gesticom/internal/platform/db"
)

// Repository persists bank accounts and treasury operations.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional treasury writes.
type TxRepository interface {
	GetBankAccount(ctx context.Context, id int64) (BankAccount, error)
	InsertBankAccount(ctx context.Context, acc BankAccount) (BankAccount, error)
	AdjustBankBalance(ctx context.Context, id int64, delta decimal.Decimal) (BankAccount, error)
	InsertBankOperation(ctx context.Context, op BankOperation) (BankOperation, error)
	InsertCashOperation(ctx context.Context, op CashOperation) (CashOperation, error)
	Ledger() accounting.TxRepository
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes fn within repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("treasury repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *txRepository) Ledger() accounting.TxRepository { return accounting.NewTxRepository(r.tx) }

const bankAccountColumns = `id, entity_id, name, iban, ledger_account, opening_balance, current_balance, created_at`

func scanBankAccount(row pgx.Row) (BankAccount, error) {
	var acc BankAccount
	err := row.Scan(&acc.ID, &acc.EntityID, &acc.Name, &acc.IBAN, &acc.LedgerAccount, &acc.OpeningBalance, &acc.CurrentBalance, &acc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return BankAccount{}, ErrBankAccountNotFound
	}
	return acc, err
}

func (r *txRepository) GetBankAccount(ctx context.Context, id int64) (BankAccount, error) {
	return scanBankAccount(r.tx.QueryRow(ctx, `SELECT `+bankAccountColumns+` FROM bank_accounts WHERE id=$1`, id))
}

func (r *txRepository) InsertBankAccount(ctx context.Context, acc BankAccount) (BankAccount, error) {
	return scanBankAccount(r.tx.QueryRow(ctx, `INSERT INTO bank_accounts (entity_id, name, iban, ledger_account, opening_balance, current_balance)
VALUES ($1,$2,$3,$4,$5,$5) RETURNING `+bankAccountColumns,
		acc.EntityID, acc.Name, acc.IBAN, acc.LedgerAccount, acc.OpeningBalance))
}

// AdjustBankBalance applies delta atomically; the UPDATE holds the row lock until commit.
func (r *txRepository) AdjustBankBalance(ctx context.Context, id int64, delta decimal.Decimal) (BankAccount, error) {
	acc, err := scanBankAccount(r.tx.QueryRow(ctx, `UPDATE bank_accounts SET current_balance = current_balance + $2
WHERE id=$1 RETURNING `+bankAccountColumns, id, delta))
	if err != nil {
		return BankAccount{}, fmt.Errorf("adjust bank balance %d: %w", id, err)
	}
	return acc, nil
}

func (r *txRepository) InsertBankOperation(ctx context.Context, op BankOperation) (BankOperation, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO bank_operations (entity_id, bank_account_id, op_type, amount, op_date, label, counterpart_account, status, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id, created_at`,
		op.EntityID, op.BankAccountID, op.Type, op.Amount, op.Date, op.Label, op.Counterpart, op.Status, op.CreatedBy).
		Scan(&op.ID, &op.CreatedAt)
	return op, err
}

func (r *txRepository) InsertCashOperation(ctx context.Context, op CashOperation) (CashOperation, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO cash_operations (entity_id, op_type, amount, op_date, label, counterpart_account, status, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id, created_at`,
		op.EntityID, op.Type, op.Amount, op.Date, op.Label, op.Counterpart, op.Status, op.CreatedBy).
		Scan(&op.ID, &op.CreatedAt)
	return op, err
}
