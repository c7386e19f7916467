package sales

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gesticom/gesticom/internal/accounting"
	"github.com/gesticom/gesticom/internal/inventory"
	"github.com/gesticom/gesticom/internal/platform/db"
)

// Repository persists sales.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the writes a sale validation performs in one transaction.
type TxRepository interface {
	InsertSale(ctx context.Context, sale Sale) (Sale, error)
	Ledger() accounting.TxRepository
	Stock() inventory.TxRepository
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes fn within repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("sales repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *txRepository) Ledger() accounting.TxRepository {
	return accounting.NewTxRepository(r.tx)
}

func (r *txRepository) Stock() inventory.TxRepository {
	return inventory.NewTxRepository(r.tx)
}

func (r *txRepository) InsertSale(ctx context.Context, sale Sale) (Sale, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO sales (entity_id, store_id, customer, sale_date, status, total, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id, created_at`,
		sale.EntityID, sale.StoreID, sale.Customer, sale.Date, sale.Status, sale.Total, sale.CreatedBy).
		Scan(&sale.ID, &sale.CreatedAt)
	if err != nil {
		return Sale{}, err
	}
	for _, line := range sale.Lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO sale_lines (sale_id, product_id, qty, unit_price, amount)
VALUES ($1,$2,$3,$4,$5)`, sale.ID, line.ProductID, line.Qty, line.UnitPrice, line.Amount); err != nil {
			return Sale{}, err
		}
	}
	return sale, nil
}
