// Package reversal undoes validated documents: it removes their ledger
// entries, restores stock or bank balances and then deletes or cancels the
// document, all inside one transaction.
package reversal

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/gesticom/gesticom/internal/accounting"
	"github.com/gesticom/gesticom/internal/shared"
)

// Mode selects what happens to the document row once its effects are undone.
type Mode string

const (
	ModeDelete Mode = "DELETE"
	ModeCancel Mode = "CANCEL"
)

// ParseMode validates a raw mode.
func ParseMode(raw string) (Mode, error) {
	m := Mode(strings.ToUpper(strings.TrimSpace(raw)))
	switch m {
	case ModeDelete, ModeCancel:
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown reversal mode %q", shared.ErrInvalidInput, raw)
}

// Status mirrors the document lifecycle column.
type Status string

const (
	StatusValidated Status = "VALIDATED"
	StatusCancelled Status = "CANCELLED"
)

// Input describes one reversal request.
type Input struct {
	Ref            accounting.DocumentRef
	Mode           Mode
	Reason         string
	IdempotencyKey string
}

// Line is a stock line of a sale or purchase.
type Line struct {
	ProductID int64
	Qty       float64
}

// BankEffect is what a bank operation did to its account.
type BankEffect struct {
	AccountID int64
	Type      accounting.BankOperationType
	Amount    decimal.Decimal
}

// Document is the locked view of a document being reversed.
type Document struct {
	Ref      accounting.DocumentRef
	EntityID int64
	Status   Status
	StoreID  int64
	Lines    []Line
	Bank     *BankEffect
}

// Result summarises the effects undone by a reversal.
type Result struct {
	Ref            accounting.DocumentRef `json:"document"`
	Mode           Mode                   `json:"mode"`
	EntriesRemoved int64                  `json:"entriesRemoved"`
	Movements      int                    `json:"movements"`
	BankBalance    *decimal.Decimal       `json:"bankBalance,omitempty"`
}

// ErrDocumentNotFound indicates an unknown document.
var ErrDocumentNotFound = fmt.Errorf("%w: document not found", shared.ErrNotFound)

// ErrAlreadyCancelled rejects cancelling a cancelled document twice.
var ErrAlreadyCancelled = fmt.Errorf("%w: document already cancelled", shared.ErrConflict)
