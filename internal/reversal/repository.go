package reversal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/gesticom/gesticom/internal/accounting"
	"github.com/gesticom/gesticom/internal/inventory"
	"github.com/gesticom/gesticom/internal/platform/db"
	"github.com/gesticom/gesticom/internal/shared"
)

// Repository loads and mutates documents of every type.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the writes one reversal performs.
type TxRepository interface {
	LoadDocumentForUpdate(ctx context.Context, ref accounting.DocumentRef) (Document, error)
	DeleteDocument(ctx context.Context, ref accounting.DocumentRef) error
	MarkCancelled(ctx context.Context, ref accounting.DocumentRef, reason string, at time.Time) error
	AdjustBankBalance(ctx context.Context, bankAccountID int64, delta decimal.Decimal) (decimal.Decimal, error)
	Ledger() accounting.TxRepository
	Stock() inventory.TxRepository
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes fn within repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("reversal repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *txRepository) Ledger() accounting.TxRepository { return accounting.NewTxRepository(r.tx) }

func (r *txRepository) Stock() inventory.TxRepository { return inventory.NewTxRepository(r.tx) }

var documentTables = map[accounting.DocumentType]string{
	accounting.DocumentSale:          "sales",
	accounting.DocumentPurchase:      "purchases",
	accounting.DocumentBankOperation: "bank_operations",
	accounting.DocumentCashOperation: "cash_operations",
}

func tableFor(ref accounting.DocumentRef) (string, error) {
	table, ok := documentTables[ref.Type]
	if !ok {
		return "", fmt.Errorf("reversal: no table for %s", ref.Type)
	}
	return table, nil
}

func (r *txRepository) LoadDocumentForUpdate(ctx context.Context, ref accounting.DocumentRef) (Document, error) {
	doc := Document{Ref: ref}
	var err error
	switch ref.Type {
	case accounting.DocumentSale:
		err = r.tx.QueryRow(ctx, `SELECT entity_id, store_id, status FROM sales WHERE id=$1 FOR UPDATE`, ref.ID).
			Scan(&doc.EntityID, &doc.StoreID, &doc.Status)
		if err == nil {
			doc.Lines, err = r.lines(ctx, `SELECT product_id, qty FROM sale_lines WHERE sale_id=$1 ORDER BY id`, ref.ID)
		}
	case accounting.DocumentPurchase:
		err = r.tx.QueryRow(ctx, `SELECT entity_id, store_id, status FROM purchases WHERE id=$1 FOR UPDATE`, ref.ID).
			Scan(&doc.EntityID, &doc.StoreID, &doc.Status)
		if err == nil {
			doc.Lines, err = r.lines(ctx, `SELECT product_id, qty FROM purchase_lines WHERE purchase_id=$1 ORDER BY id`, ref.ID)
		}
	case accounting.DocumentBankOperation:
		var bank BankEffect
		err = r.tx.QueryRow(ctx, `SELECT entity_id, status, bank_account_id, op_type, amount FROM bank_operations WHERE id=$1 FOR UPDATE`, ref.ID).
			Scan(&doc.EntityID, &doc.Status, &bank.AccountID, &bank.Type, &bank.Amount)
		doc.Bank = &bank
	case accounting.DocumentCashOperation:
		err = r.tx.QueryRow(ctx, `SELECT entity_id, status FROM cash_operations WHERE id=$1 FOR UPDATE`, ref.ID).
			Scan(&doc.EntityID, &doc.Status)
	default:
		return Document{}, fmt.Errorf("reversal: unsupported document %s", ref)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, fmt.Errorf("%w: %s", ErrDocumentNotFound, ref)
	}
	if err != nil {
		return Document{}, err
	}
	return doc, nil
}

func (r *txRepository) lines(ctx context.Context, query string, id int64) ([]Line, error) {
	rows, err := r.tx.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Line, error) {
		var l Line
		err := row.Scan(&l.ProductID, &l.Qty)
		return l, err
	})
}

func (r *txRepository) DeleteDocument(ctx context.Context, ref accounting.DocumentRef) error {
	table, err := tableFor(ref)
	if err != nil {
		return err
	}
	tag, err := r.tx.Exec(ctx, `DELETE FROM `+table+` WHERE id=$1`, ref.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrDocumentNotFound, ref)
	}
	return nil
}

func (r *txRepository) MarkCancelled(ctx context.Context, ref accounting.DocumentRef, reason string, at time.Time) error {
	table, err := tableFor(ref)
	if err != nil {
		return err
	}
	tag, err := r.tx.Exec(ctx, `UPDATE `+table+` SET status=$2, cancel_reason=$3, cancelled_at=$4 WHERE id=$1`,
		ref.ID, StatusCancelled, reason, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrDocumentNotFound, ref)
	}
	return nil
}

func (r *txRepository) AdjustBankBalance(ctx context.Context, bankAccountID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := r.tx.QueryRow(ctx, `UPDATE bank_accounts SET current_balance = current_balance + $2 WHERE id=$1 RETURNING current_balance`,
		bankAccountID, delta).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("%w: bank account %d", shared.ErrNotFound, bankAccountID)
	}
	return balance, err
}
