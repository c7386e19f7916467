package accounting_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/gesticom/gesticom/internal/accounting"
	"github.com/gesticom/gesticom/internal/accounting/accountingtest"
	"github.com/gesticom/gesticom/internal/shared"
	_ "github.com/gesticom/gesticom/testing"
)

func amount(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func salePosting(debit, credit string) accounting.Posting {
	return accounting.Posting{
		Date:        time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		JournalCode: "VT",
		Description: "Sale 9",
		Document:    accounting.DocumentRef{Type: accounting.DocumentSale, ID: 9},
		EntityID:    1,
		EnteredBy:   3,
		Lines: []accounting.PostingLine{
			{AccountNumber: "411", Debit: amount(debit)},
			{AccountNumber: "701", Credit: amount(credit)},
		},
	}
}

func TestPostingValidate(t *testing.T) {
	require.NoError(t, salePosting("10.10", "10.10").Validate())
	require.ErrorIs(t, salePosting("10.10", "10.11").Validate(), accounting.ErrUnbalanced)

	p := salePosting("5", "5")
	p.Lines = p.Lines[:1]
	require.ErrorIs(t, p.Validate(), accounting.ErrTooFewLines)

	p = salePosting("5", "5")
	p.Lines[0].Credit = amount("5")
	require.ErrorIs(t, p.Validate(), shared.ErrInvalidInput)

	p = salePosting("-5", "-5")
	require.ErrorIs(t, p.Validate(), shared.ErrInvalidInput)

	p = salePosting("5", "5")
	p.Document.ID = 0
	require.ErrorIs(t, p.Validate(), shared.ErrInvalidInput)

	p = salePosting("5", "5")
	p.EntityID = 0
	require.ErrorIs(t, p.Validate(), shared.ErrInvalidInput)
}

func TestPostWritesBalancedEntries(t *testing.T) {
	store := accountingtest.NewStore()
	store.AddAccount("411", "4", accounting.AccountTypeAsset)
	store.AddAccount("701", "7", accounting.AccountTypeRevenue)
	store.AddJournal("VT", accounting.JournalTypeSales)

	entries, err := accounting.Post(context.Background(), store, salePosting("250", "250"))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		require.NotZero(t, e.ID)
		require.Equal(t, "Sale 9", e.Description)
		require.Equal(t, int64(3), e.EnteredBy)
	}

	unbalanced, err := store.UnbalancedDocuments(context.Background())
	require.NoError(t, err)
	require.Empty(t, unbalanced)
}

func TestPostRejectsUnknownAndInactive(t *testing.T) {
	ctx := context.Background()
	store := accountingtest.NewStore()
	store.AddAccount("411", "4", accounting.AccountTypeAsset)
	store.AddJournal("VT", accounting.JournalTypeSales)

	_, err := accounting.Post(ctx, store, salePosting("1", "1"))
	require.ErrorIs(t, err, shared.ErrNotFound)

	revenue := store.AddAccount("701", "7", accounting.AccountTypeRevenue)
	inactive := false
	_, err = store.UpdateAccount(ctx, revenue.ID, accounting.AccountUpdate{Active: &inactive})
	require.NoError(t, err)
	_, err = accounting.Post(ctx, store, salePosting("1", "1"))
	require.ErrorIs(t, err, accounting.ErrInactive)
	require.Empty(t, store.Entries())
}
