package purchases

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gesticom/gesticom/internal/shared"
)

// Status tracks the lifecycle of a purchase.
type Status string

const (
	StatusValidated Status = "VALIDATED"
	StatusCancelled Status = "CANCELLED"
)

// Purchase is a validated supplier delivery into one store.
type Purchase struct {
	ID        int64           `json:"id"`
	EntityID  int64           `json:"entityId"`
	StoreID   int64           `json:"storeId"`
	Supplier  string          `json:"supplier"`
	Date      time.Time       `json:"date"`
	Status    Status          `json:"status"`
	Total     decimal.Decimal `json:"total"`
	CreatedBy int64           `json:"createdBy"`
	CreatedAt time.Time       `json:"createdAt"`
	Lines     []Line          `json:"lines"`
}

// Line is one product received.
type Line struct {
	ProductID int64           `json:"productId"`
	Qty       float64         `json:"qty"`
	UnitCost  decimal.Decimal `json:"unitCost"`
	Amount    decimal.Decimal `json:"amount"`
}

// CreateInput is the request body for validating a purchase.
type CreateInput struct {
	EntityID int64       `json:"entityId,omitempty"`
	StoreID  int64       `json:"storeId" validate:"required,gt=0"`
	Supplier string      `json:"supplier" validate:"max=200"`
	Date     string      `json:"date,omitempty"`
	Lines    []LineInput `json:"lines" validate:"required,min=1,dive"`
}

// LineInput is one requested purchase line.
type LineInput struct {
	ProductID int64           `json:"productId" validate:"required,gt=0"`
	Qty       float64         `json:"qty" validate:"gt=0"`
	UnitCost  decimal.Decimal `json:"unitCost"`
}

// ReverseInput carries the reason and optional idempotency key for delete/cancel.
type ReverseInput struct {
	Reason         string `json:"reason" validate:"max=255"`
	IdempotencyKey string `json:"-"`
}

func (in CreateInput) lines() ([]Line, decimal.Decimal, error) {
	if in.StoreID <= 0 {
		return nil, decimal.Zero, fmt.Errorf("%w: purchases: store required", shared.ErrInvalidInput)
	}
	if len(in.Lines) == 0 {
		return nil, decimal.Zero, fmt.Errorf("%w: purchases: at least one line required", shared.ErrInvalidInput)
	}
	out := make([]Line, 0, len(in.Lines))
	total := decimal.Zero
	for idx, l := range in.Lines {
		switch {
		case l.ProductID <= 0 || l.Qty <= 0:
			return nil, decimal.Zero, fmt.Errorf("%w: purchases: line %d needs a product and a positive quantity", shared.ErrInvalidInput, idx)
		case l.UnitCost.IsNegative():
			return nil, decimal.Zero, fmt.Errorf("%w: purchases: line %d negative cost", shared.ErrInvalidInput, idx)
		}
		amount := decimal.NewFromFloat(l.Qty).Mul(l.UnitCost).Round(2)
		out = append(out, Line{ProductID: l.ProductID, Qty: l.Qty, UnitCost: l.UnitCost, Amount: amount})
		total = total.Add(amount)
	}
	return out, total, nil
}
