package accounting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gesticom/gesticom/internal/shared"
)

// PostingLine is one side of a posting, addressed by account number.
type PostingLine struct {
	AccountNumber string
	Debit         decimal.Decimal
	Credit        decimal.Decimal
	Description   string
}

// Posting groups the entries produced by validating one document.
type Posting struct {
	Date        time.Time
	JournalCode string
	Description string
	Document    DocumentRef
	EntityID    int64
	EnteredBy   int64
	Lines       []PostingLine
}

// Defaults names the accounts and journals documents post to.
type Defaults struct {
	CustomerAccount  string
	RevenueAccount   string
	SupplierAccount  string
	PurchasesAccount string
	BankAccount      string
	CashAccount      string
	SuspenseAccount  string
	SalesJournal     string
	PurchasesJournal string
	BankJournal      string
	CashJournal      string
}

// Validate checks the double-entry invariant before anything is written.
func (p Posting) Validate() error {
	if p.Date.IsZero() {
		return fmt.Errorf("%w: accounting: posting date required", shared.ErrInvalidInput)
	}
	if strings.TrimSpace(p.JournalCode) == "" {
		return fmt.Errorf("%w: accounting: journal required", shared.ErrInvalidInput)
	}
	if err := p.Document.Validate(); err != nil {
		return err
	}
	if p.EntityID <= 0 {
		return fmt.Errorf("%w: accounting: entity required", shared.ErrInvalidInput)
	}
	if len(p.Lines) < 2 {
		return ErrTooFewLines
	}
	var debit, credit decimal.Decimal
	for idx, line := range p.Lines {
		if strings.TrimSpace(line.AccountNumber) == "" {
			return fmt.Errorf("%w: accounting: line %d missing account", shared.ErrInvalidInput, idx)
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return fmt.Errorf("%w: accounting: line %d negative amount", shared.ErrInvalidInput, idx)
		}
		if line.Debit.IsPositive() && line.Credit.IsPositive() {
			return fmt.Errorf("%w: accounting: line %d cannot be both debit and credit", shared.ErrInvalidInput, idx)
		}
		if line.Debit.IsZero() && line.Credit.IsZero() {
			return fmt.Errorf("%w: accounting: line %d has no amount", shared.ErrInvalidInput, idx)
		}
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	if !debit.Equal(credit) {
		return ErrUnbalanced
	}
	return nil
}

// Post validates p and writes its entries through tx. It runs inside the
// caller's transaction so the document, its entries and any side effects
// commit together.
func Post(ctx context.Context, tx TxRepository, p Posting) ([]LedgerEntry, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	journal, err := tx.GetJournalByCode(ctx, p.JournalCode)
	if err != nil {
		return nil, err
	}
	if !journal.Active {
		return nil, fmt.Errorf("%w: journal %s", ErrInactive, journal.Code)
	}
	accounts := make(map[string]Account, len(p.Lines))
	entries := make([]LedgerEntry, 0, len(p.Lines))
	for _, line := range p.Lines {
		number := strings.TrimSpace(line.AccountNumber)
		account, ok := accounts[number]
		if !ok {
			account, err = tx.GetAccountByNumber(ctx, number)
			if err != nil {
				return nil, err
			}
			if !account.Active {
				return nil, fmt.Errorf("%w: account %s", ErrInactive, account.Number)
			}
			accounts[number] = account
		}
		desc := line.Description
		if desc == "" {
			desc = p.Description
		}
		acc := account
		entries = append(entries, LedgerEntry{
			Date:        p.Date,
			JournalID:   journal.ID,
			Journal:     &journal,
			AccountID:   account.ID,
			Account:     &acc,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Description: desc,
			Document:    p.Document,
			EntityID:    p.EntityID,
			EnteredBy:   p.EnteredBy,
		})
	}
	return tx.InsertEntries(ctx, entries)
}
