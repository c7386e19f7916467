package accounting

import (
	"errors"
	"testing"

	"github.com/gesticom/gesticom/internal/shared"
)

func TestBankBalanceDelta(t *testing.T) {
	amount := d("1000")
	for _, typ := range []BankOperationType{BankDeposit, BankTransferIn, BankInterest} {
		delta, err := BankBalanceDelta(typ, amount)
		if err != nil || !delta.Equal(amount) {
			t.Fatalf("%s: expected +1000, got %s (%v)", typ, delta, err)
		}
	}
	for _, typ := range []BankOperationType{BankWithdrawal, BankTransferOut, BankFees} {
		delta, err := BankBalanceDelta(typ, amount)
		if err != nil || !delta.Equal(amount.Neg()) {
			t.Fatalf("%s: expected -1000, got %s (%v)", typ, delta, err)
		}
	}
}

func TestBankBalanceDeltaRejectsBadInput(t *testing.T) {
	if _, err := BankBalanceDelta("LOAN", d("1")); !errors.Is(err, shared.ErrInvalidInput) {
		t.Fatalf("expected invalid input for unknown type, got %v", err)
	}
	if _, err := BankBalanceDelta(BankDeposit, d("0")); !errors.Is(err, shared.ErrInvalidInput) {
		t.Fatalf("expected invalid input for zero amount, got %v", err)
	}
}
