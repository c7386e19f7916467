package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/gesticom/gesticom/internal/accounting"
	"github.com/gesticom/gesticom/internal/shared"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementIn represents an inbound movement.
	MovementIn MovementType = "IN"
	// MovementOut represents an outbound movement.
	MovementOut MovementType = "OUT"
	// MovementAdjust indicates manual adjustments.
	MovementAdjust MovementType = "ADJUST"
)

// Stock is the quantity on hand of a product in a store.
type Stock struct {
	StoreID   int64     `json:"storeId"`
	ProductID int64     `json:"productId"`
	Qty       float64   `json:"qty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Movement journals one change to a stock row.
type Movement struct {
	ID         int64                   `json:"id"`
	Type       MovementType            `json:"type"`
	StoreID    int64                   `json:"storeId"`
	ProductID  int64                   `json:"productId"`
	Qty        float64                 `json:"qty"`
	BalanceQty float64                 `json:"balanceQty"`
	Reason     string                  `json:"reason"`
	Document   *accounting.DocumentRef `json:"document,omitempty"`
	ActorID    int64                   `json:"actorId"`
	CreatedAt  time.Time               `json:"createdAt"`
}

// Change requests a quantity change on (StoreID, ProductID).
type Change struct {
	StoreID   int64
	ProductID int64
	Qty       float64
	Reason    string
	Document  *accounting.DocumentRef
	ActorID   int64
}

// Validate rejects empty keys and non-positive quantities.
func (c Change) Validate() error {
	if c.StoreID <= 0 || c.ProductID <= 0 {
		return fmt.Errorf("%w: inventory: store and product required", shared.ErrInvalidInput)
	}
	if c.Qty <= 0 {
		return ErrInvalidQuantity
	}
	return nil
}

// AdjustmentInput describes a manual stock correction.
type AdjustmentInput struct {
	StoreID   int64   `json:"storeId" validate:"required,gt=0"`
	ProductID int64   `json:"productId" validate:"required,gt=0"`
	Qty       float64 `json:"qty" validate:"required"`
	Reason    string  `json:"reason" validate:"required,max=255"`
}

// MovementFilter filters movement history.
type MovementFilter struct {
	StoreID   int64
	ProductID int64
	Limit     int
}

// ErrNegativeStock triggered when movement would result negative qty.
var ErrNegativeStock = fmt.Errorf("%w: inventory: insufficient stock", shared.ErrConflict)

// ErrInvalidQuantity indicates invalid qty.
var ErrInvalidQuantity = fmt.Errorf("%w: inventory: quantity must be positive", shared.ErrInvalidInput)

// ErrStoreNotFound indicates a store that is not registered to any entity.
var ErrStoreNotFound = fmt.Errorf("%w: inventory: store not found", shared.ErrNotFound)

// ErrStockNotFound indicates a missing stock row.
var ErrStockNotFound = errors.New("inventory: stock row not found")
