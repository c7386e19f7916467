package inventory

import (
	"context"
	"errors"
	"math"
	"time"
)

type floorPolicy int

const (
	rejectNegative floorPolicy = iota
	floorAtZero
)

// Increment adds c.Qty to stock and records an IN movement.
func Increment(ctx context.Context, tx TxRepository, c Change) (Movement, error) {
	if err := c.Validate(); err != nil {
		return Movement{}, err
	}
	return apply(ctx, tx, c, MovementIn, c.Qty, rejectNegative)
}

// Decrement removes up to c.Qty from stock, flooring at zero, and records
// an OUT movement for the quantity actually removed.
func Decrement(ctx context.Context, tx TxRepository, c Change) (Movement, error) {
	if err := c.Validate(); err != nil {
		return Movement{}, err
	}
	return apply(ctx, tx, c, MovementOut, -c.Qty, floorAtZero)
}

// Withdraw removes c.Qty from stock and fails with ErrNegativeStock when not
// enough is on hand.
func Withdraw(ctx context.Context, tx TxRepository, c Change) (Movement, error) {
	if err := c.Validate(); err != nil {
		return Movement{}, err
	}
	return apply(ctx, tx, c, MovementOut, -c.Qty, rejectNegative)
}

func apply(ctx context.Context, tx TxRepository, c Change, typ MovementType, delta float64, policy floorPolicy) (Movement, error) {
	stock, err := tx.GetStockForUpdate(ctx, c.StoreID, c.ProductID)
	if err != nil {
		if !errors.Is(err, ErrStockNotFound) {
			return Movement{}, err
		}
		stock = Stock{StoreID: c.StoreID, ProductID: c.ProductID}
	}
	next := stock.Qty + delta
	if next < -1e-9 {
		if policy == rejectNegative {
			return Movement{}, ErrNegativeStock
		}
		next = 0
	}
	applied := math.Abs(next - stock.Qty)
	stock.Qty = next
	stock.UpdatedAt = time.Now().UTC()
	if err := tx.UpsertStock(ctx, stock); err != nil {
		return Movement{}, err
	}
	return tx.InsertMovement(ctx, Movement{
		Type:       typ,
		StoreID:    c.StoreID,
		ProductID:  c.ProductID,
		Qty:        applied,
		BalanceQty: stock.Qty,
		Reason:     c.Reason,
		Document:   c.Document,
		ActorID:    c.ActorID,
		CreatedAt:  stock.UpdatedAt,
	})
}
