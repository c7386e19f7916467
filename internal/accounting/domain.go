package accounting

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gesticom/gesticom/internal/shared"
)

// AccountType enumerates chart of accounts polarity categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeExpense   AccountType = "EXPENSE"
	AccountTypeRevenue   AccountType = "REVENUE"
)

// ParseAccountType validates a raw account type.
func ParseAccountType(raw string) (AccountType, error) {
	t := AccountType(strings.ToUpper(strings.TrimSpace(raw)))
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeExpense, AccountTypeRevenue:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown account type %q", shared.ErrInvalidInput, raw)
}

// DebitNormal reports whether balances of this type grow with debits.
// Every other type is treated as credit-normal.
func (t AccountType) DebitNormal() bool {
	return t == AccountTypeAsset || t == AccountTypeExpense
}

// JournalType classifies journals by originating process.
type JournalType string

const (
	JournalTypePurchases JournalType = "PURCHASES"
	JournalTypeSales     JournalType = "SALES"
	JournalTypeBank      JournalType = "BANK"
	JournalTypeCash      JournalType = "CASH"
	JournalTypeOther     JournalType = "OTHER"
)

// ParseJournalType validates a raw journal type.
func ParseJournalType(raw string) (JournalType, error) {
	t := JournalType(strings.ToUpper(strings.TrimSpace(raw)))
	switch t {
	case JournalTypePurchases, JournalTypeSales, JournalTypeBank, JournalTypeCash, JournalTypeOther:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown journal type %q", shared.ErrInvalidInput, raw)
}

// DocumentType names the business document that produced ledger entries.
type DocumentType string

const (
	DocumentSale          DocumentType = "SALE"
	DocumentPurchase      DocumentType = "PURCHASE"
	DocumentBankOperation DocumentType = "BANK_OPERATION"
	DocumentCashOperation DocumentType = "CASH_OPERATION"
)

// ParseDocumentType validates a raw document type.
func ParseDocumentType(raw string) (DocumentType, error) {
	t := DocumentType(strings.ToUpper(strings.TrimSpace(raw)))
	switch t {
	case DocumentSale, DocumentPurchase, DocumentBankOperation, DocumentCashOperation:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown document type %q", shared.ErrInvalidInput, raw)
}

// DocumentRef tags ledger entries and stock movements with their origin.
type DocumentRef struct {
	Type DocumentType `json:"type"`
	ID   int64        `json:"id"`
}

// Validate ensures the reference points at a concrete document.
func (r DocumentRef) Validate() error {
	if _, err := ParseDocumentType(string(r.Type)); err != nil {
		return err
	}
	if r.ID <= 0 {
		return fmt.Errorf("%w: document id must be positive", shared.ErrInvalidInput)
	}
	return nil
}

func (r DocumentRef) String() string {
	return fmt.Sprintf("%s#%d", r.Type, r.ID)
}

// Account is a chart of accounts node.
type Account struct {
	ID        int64       `json:"id"`
	Number    string      `json:"number"`
	Label     string      `json:"label"`
	Class     string      `json:"class"`
	Type      AccountType `json:"type"`
	Active    bool        `json:"active"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// Journal classifies ledger entries.
type Journal struct {
	ID        int64       `json:"id"`
	Code      string      `json:"code"`
	Label     string      `json:"label"`
	Type      JournalType `json:"type"`
	Active    bool        `json:"active"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// LedgerEntry is one debit or credit line. Account and Journal are
// populated when loaded for reporting; a nil Account marks a dangling row.
type LedgerEntry struct {
	ID          int64
	Date        time.Time
	JournalID   int64
	Journal     *Journal
	AccountID   int64
	Account     *Account
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
	Document    DocumentRef
	EntityID    int64
	EnteredBy   int64
	CreatedAt   time.Time
}

// AccountInput carries the fields needed to open an account.
type AccountInput struct {
	Number string `json:"number" validate:"required,max=20"`
	Label  string `json:"label" validate:"required,max=200"`
	Class  string `json:"class" validate:"required,max=10"`
	Type   string `json:"type" validate:"required"`
}

// Normalize trims fields and parses the type.
func (in AccountInput) Normalize() (AccountInput, AccountType, error) {
	in.Number = strings.TrimSpace(in.Number)
	in.Label = strings.TrimSpace(in.Label)
	in.Class = strings.TrimSpace(in.Class)
	if in.Number == "" || in.Label == "" || in.Class == "" {
		return in, "", fmt.Errorf("%w: account number, label and class are required", shared.ErrInvalidInput)
	}
	t, err := ParseAccountType(in.Type)
	if err != nil {
		return in, "", err
	}
	return in, t, nil
}

// AccountUpdate lists the only mutable account fields.
type AccountUpdate struct {
	Label  *string `json:"label,omitempty" validate:"omitempty,max=200"`
	Active *bool   `json:"active,omitempty"`
}

// JournalInput carries the fields needed to open a journal.
type JournalInput struct {
	Code  string `json:"code" validate:"required,max=10"`
	Label string `json:"label" validate:"required,max=200"`
	Type  string `json:"type" validate:"required"`
}

// JournalUpdate lists the mutable journal fields.
type JournalUpdate struct {
	Label  *string `json:"label,omitempty" validate:"omitempty,max=200"`
	Active *bool   `json:"active,omitempty"`
}

// ListFilter restricts account and journal listings.
type ListFilter struct {
	Active *bool
}

// EntryFilter restricts ledger entry loads. A zero EntityID spans every
// entity.
type EntryFilter struct {
	Range         DateRange
	AccountNumber string
	EntityID      int64
}

// DocumentImbalance reports a document whose entries do not balance.
type DocumentImbalance struct {
	Document DocumentRef     `json:"document"`
	Debit    decimal.Decimal `json:"debit"`
	Credit   decimal.Decimal `json:"credit"`
}

var (
	// ErrUnbalanced indicates debit != credit on a posting.
	ErrUnbalanced = fmt.Errorf("%w: accounting: entry lines must balance", shared.ErrInvalidInput)
	// ErrTooFewLines indicates less than two posting lines.
	ErrTooFewLines = fmt.Errorf("%w: accounting: posting requires at least two lines", shared.ErrInvalidInput)
	// ErrAccountNotFound indicates a missing account.
	ErrAccountNotFound = fmt.Errorf("%w: accounting: account", shared.ErrNotFound)
	// ErrJournalNotFound indicates a missing journal.
	ErrJournalNotFound = fmt.Errorf("%w: accounting: journal", shared.ErrNotFound)
	// ErrInactive indicates posting against a disabled account or journal.
	ErrInactive = fmt.Errorf("%w: accounting: account or journal inactive", shared.ErrInvalidInput)
	// ErrDuplicate indicates a unique number or code collision.
	ErrDuplicate = fmt.Errorf("%w: accounting: number or code already exists", shared.ErrConflict)
)
