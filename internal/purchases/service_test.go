package purchases_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/gesticom/gesticom/internal/accounting"
	"github.com/gesticom/gesticom/internal/accounting/accountingtest"
	"github.com/gesticom/gesticom/internal/inventory"
	"github.com/gesticom/gesticom/internal/inventory/inventorytest"
	"github.com/gesticom/gesticom/internal/purchases"
	"github.com/gesticom/gesticom/internal/shared"
	_ "github.com/gesticom/gesticom/testing"
)

type memoryRepo struct {
	ledger    *accountingtest.Store
	stock     *inventorytest.Store
	purchases []purchases.Purchase
}

func newMemoryRepo() *memoryRepo {
	ledger := accountingtest.NewStore()
	ledger.SeedDefaults(accountingtest.Chart)
	return &memoryRepo{ledger: ledger, stock: inventorytest.NewStore()}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, purchases.TxRepository) error) error {
	ledgerSnap, stockSnap, n := r.ledger.Snapshot(), r.stock.Snapshot(), len(r.purchases)
	if err := fn(ctx, r); err != nil {
		r.ledger.Restore(ledgerSnap)
		r.stock.Restore(stockSnap)
		r.purchases = r.purchases[:n]
		return err
	}
	return nil
}

func (r *memoryRepo) InsertPurchase(ctx context.Context, p purchases.Purchase) (purchases.Purchase, error) {
	p.ID = int64(len(r.purchases) + 1)
	r.purchases = append(r.purchases, p)
	return p, nil
}

func (r *memoryRepo) Ledger() accounting.TxRepository { return r.ledger }
func (r *memoryRepo) Stock() inventory.TxRepository   { return r.stock }

type reverserFunc func(ctx context.Context, ref accounting.DocumentRef, cancel bool, reason, key string) error

func (f reverserFunc) ReverseDocument(ctx context.Context, ref accounting.DocumentRef, cancel bool, reason, key string) error {
	return f(ctx, ref, cancel, reason, key)
}

func managerCtx() context.Context {
	return shared.ContextWithIdentity(context.Background(), shared.Identity{UserID: 5, Role: shared.RoleManager, EntityID: 1})
}

func TestCreatePurchaseAddsStockAndPostsToSupplier(t *testing.T) {
	repo := newMemoryRepo()
	svc := purchases.NewService(repo, nil, accountingtest.Chart, nil, nil)
	svc.WithNow(func() time.Time { return time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC) })

	p, err := svc.Create(managerCtx(), purchases.CreateInput{
		StoreID:  3,
		Supplier: "Grossiste SA",
		Date:     "2024-01-31",
		Lines: []purchases.LineInput{
			{ProductID: 1, Qty: 10, UnitCost: decimal.RequireFromString("2.35")},
			{ProductID: 2, Qty: 1.5, UnitCost: decimal.RequireFromString("4")},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "29.5", p.Total.String())
	require.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), p.Date)
	require.InDelta(t, 10, repo.stock.Qty(3, 1), 1e-9)
	require.InDelta(t, 1.5, repo.stock.Qty(3, 2), 1e-9)

	for _, m := range repo.stock.Movements() {
		require.Equal(t, inventory.MovementIn, m.Type)
	}

	entries := repo.ledger.EntriesFor(accounting.DocumentRef{Type: accounting.DocumentPurchase, ID: p.ID})
	require.Len(t, entries, 2)
	agg := accounting.Aggregate(repo.mustList(t), accounting.DateRange{})
	require.True(t, agg.Balanced())
	for _, row := range agg.Rows {
		switch row.Account.Number {
		case "601":
			require.Equal(t, "29.5", row.DebitTotal.String())
		case "401":
			require.Equal(t, "29.5", row.CreditTotal.String())
		default:
			t.Fatalf("unexpected account %s", row.Account.Number)
		}
	}
}

func (r *memoryRepo) mustList(t *testing.T) []accounting.LedgerEntry {
	t.Helper()
	entries, err := r.ledger.ListEntries(context.Background(), accounting.EntryFilter{})
	require.NoError(t, err)
	return entries
}

func TestCreatePurchaseRollsBackOnInactiveJournal(t *testing.T) {
	repo := newMemoryRepo()
	journals, err := repo.ledger.ListJournals(context.Background(), accounting.ListFilter{})
	require.NoError(t, err)
	inactive := false
	for _, j := range journals {
		if j.Code == accountingtest.Chart.PurchasesJournal {
			_, err := repo.ledger.UpdateJournal(context.Background(), j.ID, accounting.JournalUpdate{Active: &inactive})
			require.NoError(t, err)
		}
	}
	svc := purchases.NewService(repo, nil, accountingtest.Chart, nil, nil)

	_, err = svc.Create(managerCtx(), purchases.CreateInput{
		StoreID: 3,
		Lines:   []purchases.LineInput{{ProductID: 1, Qty: 2, UnitCost: decimal.NewFromInt(1)}},
	})
	require.ErrorIs(t, err, accounting.ErrInactive)
	require.InDelta(t, 0, repo.stock.Qty(3, 1), 1e-9)
	require.Empty(t, repo.stock.Movements())
	require.Empty(t, repo.purchases)
}

func TestPurchaseReversalPassesModeAndKey(t *testing.T) {
	var got []string
	rev := reverserFunc(func(ctx context.Context, ref accounting.DocumentRef, cancel bool, reason, key string) error {
		require.Equal(t, accounting.DocumentPurchase, ref.Type)
		mode := "delete"
		if cancel {
			mode = "cancel"
		}
		got = append(got, mode+":"+key)
		if key == "boom" {
			return errors.New("boom")
		}
		return nil
	})
	svc := purchases.NewService(newMemoryRepo(), rev, accountingtest.Chart, nil, nil)

	require.NoError(t, svc.Delete(managerCtx(), 1, purchases.ReverseInput{IdempotencyKey: "a"}))
	require.NoError(t, svc.Cancel(managerCtx(), 1, purchases.ReverseInput{IdempotencyKey: "b"}))
	require.Error(t, svc.Cancel(managerCtx(), 1, purchases.ReverseInput{IdempotencyKey: "boom"}))
	require.ErrorIs(t, svc.Cancel(managerCtx(), -1, purchases.ReverseInput{}), shared.ErrInvalidInput)
	require.Equal(t, []string{"delete:a", "cancel:b", "cancel:boom"}, got)
}
