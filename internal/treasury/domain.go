package treasury

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gesticom/gesticom/internal/accounting"
	"github.com/gesticom/gesticom/internal/shared"
)

// Status tracks the lifecycle of a treasury operation.
type Status string

const (
	StatusValidated Status = "VALIDATED"
	StatusCancelled Status = "CANCELLED"
)

// CashOperationType is either money in or out of the till.
type CashOperationType string

const (
	CashReceipt CashOperationType = "RECEIPT"
	CashPayment CashOperationType = "PAYMENT"
)

// ParseCashOperationType validates a raw cash operation type.
func ParseCashOperationType(raw string) (CashOperationType, error) {
	t := CashOperationType(strings.ToUpper(strings.TrimSpace(raw)))
	switch t {
	case CashReceipt, CashPayment:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown cash operation type %q", shared.ErrInvalidInput, raw)
}

// BankAccount is a bank account whose current balance follows its operations.
type BankAccount struct {
	ID             int64           `json:"id"`
	EntityID       int64           `json:"entityId"`
	Name           string          `json:"name"`
	IBAN           string          `json:"iban,omitempty"`
	LedgerAccount  string          `json:"ledgerAccount"`
	OpeningBalance decimal.Decimal `json:"openingBalance"`
	CurrentBalance decimal.Decimal `json:"currentBalance"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// BankOperation moves money on a bank account.
type BankOperation struct {
	ID            int64                        `json:"id"`
	EntityID      int64                        `json:"entityId"`
	BankAccountID int64                        `json:"bankAccountId"`
	Type          accounting.BankOperationType `json:"type"`
	Amount        decimal.Decimal              `json:"amount"`
	Date          time.Time                    `json:"date"`
	Label         string                       `json:"label"`
	Counterpart   string                       `json:"counterpartAccount"`
	Status        Status                       `json:"status"`
	CreatedBy     int64                        `json:"createdBy"`
	CreatedAt     time.Time                    `json:"createdAt"`
}

// CashOperation moves money in or out of the till.
type CashOperation struct {
	ID          int64             `json:"id"`
	EntityID    int64             `json:"entityId"`
	Type        CashOperationType `json:"type"`
	Amount      decimal.Decimal   `json:"amount"`
	Date        time.Time         `json:"date"`
	Label       string            `json:"label"`
	Counterpart string            `json:"counterpartAccount"`
	Status      Status            `json:"status"`
	CreatedBy   int64             `json:"createdBy"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// BankAccountInput opens a bank account.
type BankAccountInput struct {
	EntityID       int64           `json:"entityId,omitempty"`
	Name           string          `json:"name" validate:"required,max=120"`
	IBAN           string          `json:"iban" validate:"max=34"`
	LedgerAccount  string          `json:"ledgerAccount" validate:"max=20"`
	OpeningBalance decimal.Decimal `json:"openingBalance"`
}

// BankOperationInput validates a bank operation.
type BankOperationInput struct {
	BankAccountID int64           `json:"bankAccountId" validate:"required,gt=0"`
	Type          string          `json:"type" validate:"required"`
	Amount        decimal.Decimal `json:"amount"`
	Date          string          `json:"date,omitempty"`
	Label         string          `json:"label" validate:"max=255"`
	Counterpart   string          `json:"counterpartAccount" validate:"max=20"`
}

// CashOperationInput validates a cash operation.
type CashOperationInput struct {
	EntityID    int64           `json:"entityId,omitempty"`
	Type        string          `json:"type" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Date        string          `json:"date,omitempty"`
	Label       string          `json:"label" validate:"max=255"`
	Counterpart string          `json:"counterpartAccount" validate:"max=20"`
}

// ReverseInput carries the reason and optional idempotency key for delete/cancel.
type ReverseInput struct {
	Reason         string `json:"reason" validate:"max=255"`
	IdempotencyKey string `json:"-"`
}

// ErrBankAccountNotFound indicates an unknown bank account.
var ErrBankAccountNotFound = fmt.Errorf("%w: bank account not found", shared.ErrNotFound)
