package purchases

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gesticom/gesticom/internal/accounting"
	"github.com/gesticom/gesticom/internal/inventory"
	"github.com/gesticom/gesticom/internal/platform/db"
)

// Repository persists purchases.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the writes a purchase validation performs in one transaction.
type TxRepository interface {
	InsertPurchase(ctx context.Context, p Purchase) (Purchase, error)
	Ledger() accounting.TxRepository
	Stock() inventory.TxRepository
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes fn within repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("purchases repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *txRepository) Ledger() accounting.TxRepository { return accounting.NewTxRepository(r.tx) }

func (r *txRepository) Stock() inventory.TxRepository { return inventory.NewTxRepository(r.tx) }

func (r *txRepository) InsertPurchase(ctx context.Context, p Purchase) (Purchase, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO purchases (entity_id, store_id, supplier, purchase_date, status, total, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id, created_at`,
		p.EntityID, p.StoreID, p.Supplier, p.Date, p.Status, p.Total, p.CreatedBy).
		Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return Purchase{}, err
	}
	batch := &pgx.Batch{}
	for _, line := range p.Lines {
		batch.Queue(`INSERT INTO purchase_lines (purchase_id, product_id, qty, unit_cost, amount)
VALUES ($1,$2,$3,$4,$5)`, p.ID, line.ProductID, line.Qty, line.UnitCost, line.Amount)
	}
	if err := r.tx.SendBatch(ctx, batch).Close(); err != nil {
		return Purchase{}, err
	}
	return p, nil
}
