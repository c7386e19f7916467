package sales_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/gesticom/gesticom/internal/accounting"
	"github.com/gesticom/gesticom/internal/accounting/accountingtest"
	"github.com/gesticom/gesticom/internal/inventory"
	"github.com/gesticom/gesticom/internal/inventory/inventorytest"
	"github.com/gesticom/gesticom/internal/sales"
	"github.com/gesticom/gesticom/internal/shared"
	_ "github.com/gesticom/gesticom/testing"
)

type memoryRepo struct {
	mu     sync.Mutex
	ledger *accountingtest.Store
	stock  *inventorytest.Store
	sales  map[int64]sales.Sale
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	ledger := accountingtest.NewStore()
	ledger.SeedDefaults(accountingtest.Chart)
	return &memoryRepo{ledger: ledger, stock: inventorytest.NewStore(), sales: map[int64]sales.Sale{}}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, sales.TxRepository) error) error {
	ledgerSnap, stockSnap := r.ledger.Snapshot(), r.stock.Snapshot()
	r.mu.Lock()
	salesSnap := make(map[int64]sales.Sale, len(r.sales))
	for k, v := range r.sales {
		salesSnap[k] = v
	}
	r.mu.Unlock()
	if err := fn(ctx, r); err != nil {
		r.ledger.Restore(ledgerSnap)
		r.stock.Restore(stockSnap)
		r.mu.Lock()
		r.sales = salesSnap
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *memoryRepo) InsertSale(ctx context.Context, sale sales.Sale) (sales.Sale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	sale.ID = r.nextID
	sale.CreatedAt = time.Now()
	r.sales[sale.ID] = sale
	return sale, nil
}

func (r *memoryRepo) Ledger() accounting.TxRepository { return r.ledger }
func (r *memoryRepo) Stock() inventory.TxRepository   { return r.stock }

type reverseCall struct {
	ref    accounting.DocumentRef
	cancel bool
	reason string
	key    string
}

type stubReverser struct {
	calls []reverseCall
	err   error
}

func (s *stubReverser) ReverseDocument(ctx context.Context, ref accounting.DocumentRef, cancel bool, reason, key string) error {
	s.calls = append(s.calls, reverseCall{ref: ref, cancel: cancel, reason: reason, key: key})
	return s.err
}

type SaleServiceTestSuite struct {
	suite.Suite
	repo     *memoryRepo
	reverser *stubReverser
	svc      *sales.Service
	ctx      context.Context
}

func (s *SaleServiceTestSuite) SetupTest() {
	s.repo = newMemoryRepo()
	s.reverser = &stubReverser{}
	s.svc = sales.NewService(s.repo, s.reverser, accountingtest.Chart, nil, nil)
	s.svc.WithNow(func() time.Time { return time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC) })
	s.ctx = shared.ContextWithIdentity(context.Background(), shared.Identity{UserID: 7, Role: shared.RoleCashier, EntityID: 2})
}

func (s *SaleServiceTestSuite) TestCreateWithdrawsStockAndPostsBalancedEntries() {
	s.repo.stock.Set(1, 10, 8)
	s.repo.stock.Set(1, 11, 2)

	sale, err := s.svc.Create(s.ctx, sales.CreateInput{
		StoreID:  1,
		Customer: "Dupont",
		Lines: []sales.LineInput{
			{ProductID: 10, Qty: 5, UnitPrice: decimal.RequireFromString("12.50")},
			{ProductID: 11, Qty: 2, UnitPrice: decimal.RequireFromString("3.10")},
		},
	})
	s.Require().NoError(err)
	s.Require().Equal(int64(2), sale.EntityID)
	s.Require().Equal(sales.StatusValidated, sale.Status)
	s.Require().Equal("68.7", sale.Total.String())
	s.Require().Equal(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), sale.Date)

	s.InDelta(3, s.repo.stock.Qty(1, 10), 1e-9)
	s.InDelta(0, s.repo.stock.Qty(1, 11), 1e-9)
	for _, m := range s.repo.stock.Movements() {
		s.Equal(inventory.MovementOut, m.Type)
		s.Require().NotNil(m.Document)
		s.Equal(accounting.DocumentRef{Type: accounting.DocumentSale, ID: sale.ID}, *m.Document)
	}

	entries := s.repo.ledger.EntriesFor(accounting.DocumentRef{Type: accounting.DocumentSale, ID: sale.ID})
	s.Require().Len(entries, 2)
	debit, credit := decimal.Zero, decimal.Zero
	for _, e := range entries {
		s.Equal(int64(2), e.EntityID)
		debit = debit.Add(e.Debit)
		credit = credit.Add(e.Credit)
	}
	s.True(debit.Equal(credit))
	s.True(debit.Equal(sale.Total))
}

func (s *SaleServiceTestSuite) TestCreateRollsBackWhenStockIsShort() {
	s.repo.stock.Set(1, 10, 8)

	_, err := s.svc.Create(s.ctx, sales.CreateInput{
		StoreID: 1,
		Lines: []sales.LineInput{
			{ProductID: 10, Qty: 5, UnitPrice: decimal.NewFromInt(1)},
			{ProductID: 11, Qty: 1, UnitPrice: decimal.NewFromInt(1)},
		},
	})
	s.Require().ErrorIs(err, inventory.ErrNegativeStock)
	s.InDelta(8, s.repo.stock.Qty(1, 10), 1e-9)
	s.Empty(s.repo.stock.Movements())
	s.Empty(s.repo.ledger.Entries())
	s.Empty(s.repo.sales)
}

func (s *SaleServiceTestSuite) TestCreateRollsBackWhenPostingFails() {
	s.repo.stock.Set(1, 10, 8)
	s.repo.ledger.FailInsert = errors.New("disk full")

	_, err := s.svc.Create(s.ctx, sales.CreateInput{
		StoreID: 1,
		Lines:   []sales.LineInput{{ProductID: 10, Qty: 1, UnitPrice: decimal.NewFromInt(4)}},
	})
	s.Require().Error(err)
	s.InDelta(8, s.repo.stock.Qty(1, 10), 1e-9)
	s.Empty(s.repo.sales)
}

func (s *SaleServiceTestSuite) TestFreeSaleSkipsPosting() {
	s.repo.stock.Set(1, 10, 1)

	sale, err := s.svc.Create(s.ctx, sales.CreateInput{
		StoreID: 1,
		Lines:   []sales.LineInput{{ProductID: 10, Qty: 1, UnitPrice: decimal.Zero}},
	})
	s.Require().NoError(err)
	s.True(sale.Total.IsZero())
	s.Empty(s.repo.ledger.Entries())
}

func (s *SaleServiceTestSuite) TestCreateRejectsForeignEntity() {
	_, err := s.svc.Create(s.ctx, sales.CreateInput{
		EntityID: 9,
		StoreID:  1,
		Lines:    []sales.LineInput{{ProductID: 10, Qty: 1, UnitPrice: decimal.NewFromInt(1)}},
	})
	s.Require().ErrorIs(err, shared.ErrForbidden)

	_, err = s.svc.Create(context.Background(), sales.CreateInput{StoreID: 1})
	s.Require().ErrorIs(err, shared.ErrUnauthorized)
}

func (s *SaleServiceTestSuite) TestCreateValidatesLines() {
	_, err := s.svc.Create(s.ctx, sales.CreateInput{StoreID: 1})
	s.Require().ErrorIs(err, shared.ErrInvalidInput)

	_, err = s.svc.Create(s.ctx, sales.CreateInput{
		StoreID: 1,
		Lines:   []sales.LineInput{{ProductID: 10, Qty: 1, UnitPrice: decimal.NewFromInt(-1)}},
	})
	s.Require().ErrorIs(err, shared.ErrInvalidInput)

	_, err = s.svc.Create(s.ctx, sales.CreateInput{
		StoreID: 1,
		Date:    "15/03/2024",
		Lines:   []sales.LineInput{{ProductID: 10, Qty: 1, UnitPrice: decimal.NewFromInt(1)}},
	})
	s.Require().ErrorIs(err, shared.ErrInvalidInput)
}

func (s *SaleServiceTestSuite) TestDeleteAndCancelDelegateToReverser() {
	s.Require().NoError(s.svc.Delete(s.ctx, 4, sales.ReverseInput{Reason: "typo", IdempotencyKey: "k1"}))
	s.Require().NoError(s.svc.Cancel(s.ctx, 4, sales.ReverseInput{}))
	s.Require().ErrorIs(s.svc.Delete(s.ctx, 0, sales.ReverseInput{}), shared.ErrInvalidInput)

	s.Require().Len(s.reverser.calls, 2)
	ref := accounting.DocumentRef{Type: accounting.DocumentSale, ID: 4}
	s.Equal(reverseCall{ref: ref, cancel: false, reason: "typo", key: "k1"}, s.reverser.calls[0])
	s.Equal(reverseCall{ref: ref, cancel: true}, s.reverser.calls[1])
}

func (s *SaleServiceTestSuite) TestOtherEntitiesDoNotSeeTheSaleInTheirBooks() {
	s.repo.stock.Set(1, 10, 8)
	_, err := s.svc.Create(s.ctx, sales.CreateInput{
		StoreID: 1,
		Lines:   []sales.LineInput{{ProductID: 10, Qty: 1, UnitPrice: decimal.NewFromInt(500)}},
	})
	s.Require().NoError(err)

	books := accounting.NewService(s.repo.ledger, nil, nil)
	accountant := shared.ContextWithIdentity(context.Background(), shared.Identity{UserID: 9, Role: shared.RoleAccountant, EntityID: 1})
	agg, err := books.Balances(accountant, accounting.EntryFilter{})
	s.Require().NoError(err)
	s.Require().Empty(agg.Rows)

	own := shared.ContextWithIdentity(context.Background(), shared.Identity{UserID: 10, Role: shared.RoleAccountant, EntityID: 2})
	agg, err = books.Balances(own, accounting.EntryFilter{})
	s.Require().NoError(err)
	s.Require().Len(agg.Rows, 2)
	s.True(agg.TotalDebit.Equal(decimal.NewFromInt(500)))
}

func TestSaleServiceTestSuite(t *testing.T) {
	suite.Run(t, new(SaleServiceTestSuite))
}
