package accounting

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/gesticom/gesticom/internal/shared"
)

// BankOperationType enumerates movements on a bank account.
type BankOperationType string

const (
	BankDeposit     BankOperationType = "DEPOSIT"
	BankTransferIn  BankOperationType = "TRANSFER_IN"
	BankInterest    BankOperationType = "INTEREST"
	BankWithdrawal  BankOperationType = "WITHDRAWAL"
	BankTransferOut BankOperationType = "TRANSFER_OUT"
	BankFees        BankOperationType = "FEES"
)

// ParseBankOperationType validates a raw bank operation type.
func ParseBankOperationType(raw string) (BankOperationType, error) {
	t := BankOperationType(strings.ToUpper(strings.TrimSpace(raw)))
	switch t {
	case BankDeposit, BankTransferIn, BankInterest, BankWithdrawal, BankTransferOut, BankFees:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown bank operation type %q", shared.ErrInvalidInput, raw)
}

// Inflow reports whether the operation adds money to the account.
func (t BankOperationType) Inflow() bool {
	switch t {
	case BankDeposit, BankTransferIn, BankInterest:
		return true
	}
	return false
}

// BankBalanceDelta is the change an operation applies to a bank account's
// current balance. Reversal applies the negated delta.
func BankBalanceDelta(t BankOperationType, amount decimal.Decimal) (decimal.Decimal, error) {
	if _, err := ParseBankOperationType(string(t)); err != nil {
		return decimal.Zero, err
	}
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: bank operation amount must be positive", shared.ErrInvalidInput)
	}
	if t.Inflow() {
		return amount, nil
	}
	return amount.Neg(), nil
}
