package accounting_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gesticom/gesticom/internal/accounting"
	"github.com/gesticom/gesticom/internal/accounting/accountingtest"
	"github.com/gesticom/gesticom/internal/shared"
)

type recordingAudit struct {
	mu   sync.Mutex
	logs []shared.AuditLog
}

func (a *recordingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

func TestCreateAccountValidatesAndDetectsDuplicates(t *testing.T) {
	store := accountingtest.NewStore()
	audit := &recordingAudit{}
	svc := accounting.NewService(store, audit, nil)
	ctx := shared.ContextWithIdentity(context.Background(), shared.Identity{UserID: 1, Role: shared.RoleAccountant, EntityID: 1})

	acc, err := svc.CreateAccount(ctx, accounting.AccountInput{Number: " 512 ", Label: "Bank", Class: "5", Type: "asset"})
	require.NoError(t, err)
	require.Equal(t, "512", acc.Number)
	require.Equal(t, accounting.AccountTypeAsset, acc.Type)

	_, err = svc.CreateAccount(ctx, accounting.AccountInput{Number: "512", Label: "Dup", Class: "5", Type: "ASSET"})
	require.ErrorIs(t, err, shared.ErrConflict)

	_, err = svc.CreateAccount(ctx, accounting.AccountInput{Number: "999", Label: "Odd", Class: "9", Type: "EQUITY"})
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	require.Len(t, audit.logs, 1)
	require.Equal(t, "account.create", audit.logs[0].Action)
	require.Equal(t, int64(1), audit.logs[0].ActorID)
}

func TestUpdateAccountOnlyTouchesLabelAndActive(t *testing.T) {
	store := accountingtest.NewStore()
	svc := accounting.NewService(store, nil, nil)
	acc := store.AddAccount("601", "6", accounting.AccountTypeExpense)

	label := "Purchases of goods"
	inactive := false
	updated, err := svc.UpdateAccount(context.Background(), acc.ID, accounting.AccountUpdate{Label: &label, Active: &inactive})
	require.NoError(t, err)
	require.Equal(t, label, updated.Label)
	require.False(t, updated.Active)
	require.Equal(t, "601", updated.Number)
	require.Equal(t, "6", updated.Class)
	require.Equal(t, accounting.AccountTypeExpense, updated.Type)

	_, err = svc.UpdateAccount(context.Background(), 999, accounting.AccountUpdate{Label: &label})
	require.ErrorIs(t, err, shared.ErrNotFound)

	empty := ""
	_, err = svc.UpdateAccount(context.Background(), acc.ID, accounting.AccountUpdate{Label: &empty})
	require.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestJournalLifecycle(t *testing.T) {
	svc := accounting.NewService(accountingtest.NewStore(), nil, nil)
	ctx := context.Background()

	j, err := svc.CreateJournal(ctx, accounting.JournalInput{Code: "BQ", Label: "Bank", Type: "bank"})
	require.NoError(t, err)
	require.Equal(t, accounting.JournalTypeBank, j.Type)

	_, err = svc.CreateJournal(ctx, accounting.JournalInput{Code: "BQ", Label: "Again", Type: "BANK"})
	require.ErrorIs(t, err, shared.ErrConflict)
	_, err = svc.CreateJournal(ctx, accounting.JournalInput{Code: "XX", Label: "Bad", Type: "PAYROLL"})
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	active := true
	list, err := svc.ListJournals(ctx, accounting.ListFilter{Active: &active})
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestBalancesScenario(t *testing.T) {
	store := accountingtest.NewStore()
	store.AddAccount("101", "1", accounting.AccountTypeAsset)
	store.AddAccount("401", "4", accounting.AccountTypeRevenue)
	store.AddJournal("OD", accounting.JournalTypeOther)
	ctx := shared.ContextWithIdentity(context.Background(), shared.Identity{UserID: 4, Role: shared.RoleAccountant, EntityID: 1})

	_, err := accounting.Post(ctx, store, accounting.Posting{
		Date:        time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		JournalCode: "OD",
		Document:    accounting.DocumentRef{Type: accounting.DocumentCashOperation, ID: 1},
		EntityID:    1,
		Lines: []accounting.PostingLine{
			{AccountNumber: "101", Debit: amount("500")},
			{AccountNumber: "401", Credit: amount("500")},
		},
	})
	require.NoError(t, err)

	svc := accounting.NewService(store, nil, nil)
	rng, err := accounting.NewDateRange("2024-01-01", "2024-01-31")
	require.NoError(t, err)
	agg, err := svc.Balances(ctx, accounting.EntryFilter{Range: rng})
	require.NoError(t, err)
	require.Len(t, agg.Rows, 2)
	require.True(t, agg.Rows[0].Balance.Equal(amount("500")))
	require.True(t, agg.Rows[1].Balance.Equal(amount("500")))
	require.Equal(t, "OD", agg.Rows[0].Entries[0].Journal.Code)

	outside, err := accounting.NewDateRange("2024-02-01", "")
	require.NoError(t, err)
	agg, err = svc.Balances(ctx, accounting.EntryFilter{Range: outside})
	require.NoError(t, err)
	require.Empty(t, agg.Rows)
}

func TestBalancesStayWithinTheCallersEntity(t *testing.T) {
	store := accountingtest.NewStore()
	store.AddAccount("531", "5", accounting.AccountTypeAsset)
	store.AddAccount("701", "7", accounting.AccountTypeRevenue)
	store.AddJournal("CA", accounting.JournalTypeCash)
	for entity, value := range map[int64]string{1: "120", 2: "500"} {
		_, err := accounting.Post(context.Background(), store, accounting.Posting{
			Date:        time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
			JournalCode: "CA",
			Document:    accounting.DocumentRef{Type: accounting.DocumentCashOperation, ID: entity},
			EntityID:    entity,
			Lines: []accounting.PostingLine{
				{AccountNumber: "531", Debit: amount(value)},
				{AccountNumber: "701", Credit: amount(value)},
			},
		})
		require.NoError(t, err)
	}
	svc := accounting.NewService(store, nil, nil)

	_, err := svc.Balances(context.Background(), accounting.EntryFilter{})
	require.ErrorIs(t, err, shared.ErrUnauthorized)

	accountant := shared.ContextWithIdentity(context.Background(), shared.Identity{UserID: 2, Role: shared.RoleAccountant, EntityID: 1})
	agg, err := svc.Balances(accountant, accounting.EntryFilter{})
	require.NoError(t, err)
	require.Len(t, agg.Rows, 2)
	require.True(t, agg.TotalDebit.Equal(amount("120")))

	_, err = svc.Balances(accountant, accounting.EntryFilter{EntityID: 2})
	require.ErrorIs(t, err, shared.ErrForbidden)

	root := shared.ContextWithIdentity(context.Background(), shared.Identity{UserID: 1, Role: shared.RoleSuperAdmin, EntityID: 1})
	agg, err = svc.Balances(root, accounting.EntryFilter{})
	require.NoError(t, err)
	require.True(t, agg.TotalDebit.Equal(amount("620")))

	agg, err = svc.Balances(root, accounting.EntryFilter{EntityID: 2})
	require.NoError(t, err)
	require.True(t, agg.TotalDebit.Equal(amount("500")))
}
