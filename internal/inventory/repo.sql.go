package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gesticom/gesticom/internal/accounting"
	"github.com/gesticom/gesticom/internal/platform/db"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by stock changes.
type TxRepository interface {
	GetStockForUpdate(ctx context.Context, storeID, productID int64) (Stock, error)
	UpsertStock(ctx context.Context, stock Stock) error
	InsertMovement(ctx context.Context, m Movement) (Movement, error)
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository binds stock operations to a transaction opened by another module.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// WithTx executes the callback inside repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// GetStock returns the quantity on hand, zero when the row does not exist.
func (r *Repository) GetStock(ctx context.Context, storeID, productID int64) (Stock, error) {
	stock := Stock{StoreID: storeID, ProductID: productID}
	err := r.pool.QueryRow(ctx, `SELECT qty, updated_at FROM stocks WHERE store_id=$1 AND product_id=$2`, storeID, productID).
		Scan(&stock.Qty, &stock.UpdatedAt)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return Stock{}, err
	}
	return stock, nil
}

// StoreEntity returns the entity owning storeID.
func (r *Repository) StoreEntity(ctx context.Context, storeID int64) (int64, error) {
	var entityID int64
	err := r.pool.QueryRow(ctx, `SELECT entity_id FROM stores WHERE id=$1`, storeID).Scan(&entityID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrStoreNotFound
	}
	return entityID, err
}

// ListMovements returns movement history newest first.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, movement_type, store_id, product_id, qty, balance_qty, reason,
	document_type, document_id, COALESCE(actor_id, 0), created_at
FROM stock_movements
WHERE store_id=$1 AND product_id=$2
ORDER BY created_at DESC, id DESC
LIMIT $3`, filter.StoreID, filter.ProductID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Movement{}
	for rows.Next() {
		var (
			m       Movement
			docType *string
			docID   *int64
		)
		if err := rows.Scan(&m.ID, &m.Type, &m.StoreID, &m.ProductID, &m.Qty, &m.BalanceQty, &m.Reason,
			&docType, &docID, &m.ActorID, &m.CreatedAt); err != nil {
			return nil, err
		}
		if docType != nil && docID != nil {
			m.Document = &accounting.DocumentRef{Type: accounting.DocumentType(*docType), ID: *docID}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *txRepository) GetStockForUpdate(ctx context.Context, storeID, productID int64) (Stock, error) {
	stock := Stock{StoreID: storeID, ProductID: productID}
	err := r.tx.QueryRow(ctx, `SELECT qty, updated_at FROM stocks WHERE store_id=$1 AND product_id=$2 FOR UPDATE`, storeID, productID).
		Scan(&stock.Qty, &stock.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Stock{}, ErrStockNotFound
		}
		return Stock{}, err
	}
	return stock, nil
}

func (r *txRepository) UpsertStock(ctx context.Context, stock Stock) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stocks (store_id, product_id, qty, updated_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (store_id, product_id) DO UPDATE SET qty = EXCLUDED.qty, updated_at = EXCLUDED.updated_at`,
		stock.StoreID, stock.ProductID, stock.Qty, stock.UpdatedAt)
	return err
}

func (r *txRepository) InsertMovement(ctx context.Context, m Movement) (Movement, error) {
	var docType, docID any
	if m.Document != nil {
		docType, docID = string(m.Document.Type), m.Document.ID
	}
	var actor any
	if m.ActorID != 0 {
		actor = m.ActorID
	}
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_movements
(movement_type, store_id, product_id, qty, balance_qty, reason, document_type, document_id, actor_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id`,
		m.Type, m.StoreID, m.ProductID, m.Qty, m.BalanceQty, m.Reason, docType, docID, actor, m.CreatedAt).Scan(&m.ID)
	if err != nil {
		return Movement{}, err
	}
	return m, nil
}
