package reversal_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/gesticom/gesticom/internal/accounting"
	"github.com/gesticom/gesticom/internal/accounting/accountingtest"
	"github.com/gesticom/gesticom/internal/inventory"
	"github.com/gesticom/gesticom/internal/inventory/inventorytest"
	"github.com/gesticom/gesticom/internal/rbac"
	"github.com/gesticom/gesticom/internal/reversal"
	"github.com/gesticom/gesticom/internal/shared"
	_ "github.com/gesticom/gesticom/testing"
)

type memoryRepo struct {
	ledger *accountingtest.Store
	stock  *inventorytest.Store
	docs   map[accounting.DocumentRef]reversal.Document
	banks  map[int64]decimal.Decimal
	// failFinal is returned by DeleteDocument and MarkCancelled.
	failFinal error
	reasons   map[accounting.DocumentRef]string
}

func newMemoryRepo() *memoryRepo {
	ledger := accountingtest.NewStore()
	ledger.SeedDefaults(accountingtest.Chart)
	return &memoryRepo{
		ledger:  ledger,
		stock:   inventorytest.NewStore(),
		docs:    map[accounting.DocumentRef]reversal.Document{},
		banks:   map[int64]decimal.Decimal{},
		reasons: map[accounting.DocumentRef]string{},
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, reversal.TxRepository) error) error {
	ledgerSnap, stockSnap := r.ledger.Snapshot(), r.stock.Snapshot()
	docs := make(map[accounting.DocumentRef]reversal.Document, len(r.docs))
	for k, v := range r.docs {
		docs[k] = v
	}
	banks := make(map[int64]decimal.Decimal, len(r.banks))
	for k, v := range r.banks {
		banks[k] = v
	}
	if err := fn(ctx, r); err != nil {
		r.ledger.Restore(ledgerSnap)
		r.stock.Restore(stockSnap)
		r.docs, r.banks = docs, banks
		return err
	}
	return nil
}

func (r *memoryRepo) LoadDocumentForUpdate(ctx context.Context, ref accounting.DocumentRef) (reversal.Document, error) {
	doc, ok := r.docs[ref]
	if !ok {
		return reversal.Document{}, reversal.ErrDocumentNotFound
	}
	return doc, nil
}

func (r *memoryRepo) DeleteDocument(ctx context.Context, ref accounting.DocumentRef) error {
	if r.failFinal != nil {
		return r.failFinal
	}
	delete(r.docs, ref)
	return nil
}

func (r *memoryRepo) MarkCancelled(ctx context.Context, ref accounting.DocumentRef, reason string, at time.Time) error {
	if r.failFinal != nil {
		return r.failFinal
	}
	doc := r.docs[ref]
	doc.Status = reversal.StatusCancelled
	r.docs[ref] = doc
	r.reasons[ref] = reason
	return nil
}

func (r *memoryRepo) AdjustBankBalance(ctx context.Context, id int64, delta decimal.Decimal) (decimal.Decimal, error) {
	balance, ok := r.banks[id]
	if !ok {
		return decimal.Zero, shared.ErrNotFound
	}
	balance = balance.Add(delta)
	r.banks[id] = balance
	return balance, nil
}

func (r *memoryRepo) Ledger() accounting.TxRepository { return r.ledger }
func (r *memoryRepo) Stock() inventory.TxRepository   { return r.stock }

type memoryKeys struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (m *memoryKeys) CheckAndInsert(ctx context.Context, key, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	m.keys[key] = true
	return nil
}

func (m *memoryKeys) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

type countingMetrics struct {
	outcomes []string
}

func (c *countingMetrics) ObserveReversal(document, mode, outcome string) {
	c.outcomes = append(c.outcomes, document+"/"+mode+"/"+outcome)
}

type recordingAudit struct {
	logs []shared.AuditLog
}

func (a *recordingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

const (
	storeS   int64 = 1
	productA int64 = 10
	productB int64 = 11
)

type ReversalTestSuite struct {
	suite.Suite
	repo    *memoryRepo
	keys    *memoryKeys
	metrics *countingMetrics
	audit   *recordingAudit
	svc     *reversal.Service
	admin   context.Context
}

func (s *ReversalTestSuite) SetupTest() {
	s.repo = newMemoryRepo()
	s.keys = &memoryKeys{keys: map[string]bool{}}
	s.metrics = &countingMetrics{}
	s.audit = &recordingAudit{}
	s.svc = reversal.NewService(s.repo, rbac.NewPolicy(rbac.DefaultGrants()), nil,
		reversal.WithIdempotency(s.keys),
		reversal.WithAudit(s.audit),
		reversal.WithMetrics(s.metrics),
		reversal.WithNow(func() time.Time { return time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC) }),
	)
	s.admin = shared.ContextWithIdentity(context.Background(), shared.Identity{UserID: 1, Role: shared.RoleSuperAdmin, EntityID: 1})
}

func (s *ReversalTestSuite) post(ref accounting.DocumentRef, journal, debit, credit string, amount int64) {
	_, err := accounting.Post(context.Background(), s.repo.ledger, accounting.Posting{
		Date:        time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
		JournalCode: journal,
		Document:    ref,
		EntityID:    1,
		Lines: []accounting.PostingLine{
			{AccountNumber: debit, Debit: decimal.NewFromInt(amount)},
			{AccountNumber: credit, Credit: decimal.NewFromInt(amount)},
		},
	})
	s.Require().NoError(err)
}

// seedSale records a validated sale of 5 A and 2 B from store S.
func (s *ReversalTestSuite) seedSale(id, entity int64) accounting.DocumentRef {
	ref := accounting.DocumentRef{Type: accounting.DocumentSale, ID: id}
	s.repo.stock.Set(storeS, productA, 3)
	s.repo.stock.Set(storeS, productB, 0)
	s.repo.docs[ref] = reversal.Document{
		Ref: ref, EntityID: entity, Status: reversal.StatusValidated, StoreID: storeS,
		Lines: []reversal.Line{{ProductID: productA, Qty: 5}, {ProductID: productB, Qty: 2}},
	}
	s.post(ref, "VT", "411", "701", 120)
	return ref
}

func (s *ReversalTestSuite) seedBank(id int64, typ accounting.BankOperationType, balance int64) accounting.DocumentRef {
	ref := accounting.DocumentRef{Type: accounting.DocumentBankOperation, ID: id}
	s.repo.banks[7] = decimal.NewFromInt(balance)
	s.repo.docs[ref] = reversal.Document{
		Ref: ref, EntityID: 1, Status: reversal.StatusValidated,
		Bank: &reversal.BankEffect{AccountID: 7, Type: typ, Amount: decimal.NewFromInt(1000)},
	}
	if typ.Inflow() {
		s.post(ref, "BQ", "512", "471", 1000)
	} else {
		s.post(ref, "BQ", "471", "512", 1000)
	}
	return ref
}

func (s *ReversalTestSuite) TestDeleteSaleRestocksAndRemovesEntries() {
	ref := s.seedSale(12, 1)

	res, err := s.svc.Reverse(s.admin, reversal.Input{Ref: ref, Mode: reversal.ModeDelete, Reason: "entered twice"})
	s.Require().NoError(err)
	s.Equal(int64(2), res.EntriesRemoved)
	s.Equal(2, res.Movements)

	s.InDelta(8, s.repo.stock.Qty(storeS, productA), 1e-9)
	s.InDelta(2, s.repo.stock.Qty(storeS, productB), 1e-9)
	movements := s.repo.stock.Movements()
	s.Require().Len(movements, 2)
	for _, m := range movements {
		s.Equal(inventory.MovementIn, m.Type)
		s.Equal("entered twice", m.Reason)
		s.Require().NotNil(m.Document)
		s.Equal(ref, *m.Document)
	}
	s.Empty(s.repo.ledger.EntriesFor(ref))
	s.NotContains(s.repo.docs, ref)

	s.Require().Len(s.audit.logs, 1)
	s.Equal("document.delete", s.audit.logs[0].Action)
	s.Equal("SALE:12", s.audit.logs[0].ObjectID)
	s.Equal([]string{"SALE/DELETE/ok"}, s.metrics.outcomes)
}

func (s *ReversalTestSuite) TestCancelPurchaseFloorsStockAtZero() {
	ref := accounting.DocumentRef{Type: accounting.DocumentPurchase, ID: 3}
	s.repo.stock.Set(storeS, productA, 4)
	s.repo.docs[ref] = reversal.Document{
		Ref: ref, EntityID: 1, Status: reversal.StatusValidated, StoreID: storeS,
		Lines: []reversal.Line{{ProductID: productA, Qty: 10}},
	}
	s.post(ref, "AC", "601", "401", 50)

	_, err := s.svc.Reverse(s.admin, reversal.Input{Ref: ref, Mode: reversal.ModeCancel})
	s.Require().NoError(err)
	s.InDelta(0, s.repo.stock.Qty(storeS, productA), 1e-9)
	movements := s.repo.stock.Movements()
	s.Require().Len(movements, 1)
	s.Equal(inventory.MovementOut, movements[0].Type)
	s.InDelta(4, movements[0].Qty, 1e-9)
	s.Equal("cancel of PURCHASE#3", movements[0].Reason)
	s.Empty(s.repo.ledger.EntriesFor(ref))
	s.Equal(reversal.StatusCancelled, s.repo.docs[ref].Status)
}

func (s *ReversalTestSuite) TestCancelBankOperationsReverseTheirDelta() {
	deposit := s.seedBank(1, accounting.BankDeposit, 1500)
	res, err := s.svc.Reverse(s.admin, reversal.Input{Ref: deposit, Mode: reversal.ModeCancel})
	s.Require().NoError(err)
	s.Require().NotNil(res.BankBalance)
	s.Equal("500", res.BankBalance.String())
	s.Equal("500", s.repo.banks[7].String())
	s.Empty(s.repo.ledger.EntriesFor(deposit))

	withdrawal := s.seedBank(2, accounting.BankWithdrawal, 500)
	_, err = s.svc.Reverse(s.admin, reversal.Input{Ref: withdrawal, Mode: reversal.ModeCancel})
	s.Require().NoError(err)
	s.Equal("1500", s.repo.banks[7].String())
}

func (s *ReversalTestSuite) TestCashOperationOnlyLosesEntries() {
	ref := accounting.DocumentRef{Type: accounting.DocumentCashOperation, ID: 4}
	s.repo.docs[ref] = reversal.Document{Ref: ref, EntityID: 1, Status: reversal.StatusValidated}
	s.post(ref, "CA", "531", "411", 80)

	res, err := s.svc.Reverse(s.admin, reversal.Input{Ref: ref, Mode: reversal.ModeDelete})
	s.Require().NoError(err)
	s.Equal(int64(2), res.EntriesRemoved)
	s.Zero(res.Movements)
	s.Empty(s.repo.ledger.Entries())
}

func (s *ReversalTestSuite) TestOnlySuperAdminMayReverse() {
	ref := s.seedSale(12, 1)
	for _, role := range []shared.Role{shared.RoleAdmin, shared.RoleAccountant, shared.RoleManager, shared.RoleCashier} {
		ctx := shared.ContextWithIdentity(context.Background(), shared.Identity{UserID: 2, Role: role, EntityID: 1})
		_, err := s.svc.Reverse(ctx, reversal.Input{Ref: ref, Mode: reversal.ModeDelete, IdempotencyKey: "k-" + string(role)})
		s.Require().ErrorIs(err, shared.ErrForbidden, role)
	}
	_, err := s.svc.Reverse(context.Background(), reversal.Input{Ref: ref, Mode: reversal.ModeDelete})
	s.Require().ErrorIs(err, shared.ErrUnauthorized)

	s.InDelta(3, s.repo.stock.Qty(storeS, productA), 1e-9)
	s.Empty(s.repo.stock.Movements())
	s.Len(s.repo.ledger.EntriesFor(ref), 2)
	s.Contains(s.repo.docs, ref)
	s.Empty(s.keys.keys)
	s.Empty(s.audit.logs)
}

func (s *ReversalTestSuite) TestCrossEntityIsForbiddenUnlessSuperAdmin() {
	ref := s.seedSale(12, 9)
	grants := rbac.DefaultGrants()
	grants[shared.RoleAdmin] = append(grants[shared.RoleAdmin], shared.PermDocumentsReverse)
	svc := reversal.NewService(s.repo, rbac.NewPolicy(grants), nil)

	ctx := shared.ContextWithIdentity(context.Background(), shared.Identity{UserID: 2, Role: shared.RoleAdmin, EntityID: 1})
	_, err := svc.Reverse(ctx, reversal.Input{Ref: ref, Mode: reversal.ModeDelete})
	s.Require().ErrorIs(err, shared.ErrForbidden)
	s.Len(s.repo.ledger.EntriesFor(ref), 2)

	_, err = svc.Reverse(s.admin, reversal.Input{Ref: ref, Mode: reversal.ModeDelete})
	s.Require().NoError(err)
}

func (s *ReversalTestSuite) TestCancelTwiceConflictsAndDeleteAfterCancelKeepsStock() {
	ref := s.seedSale(12, 1)
	_, err := s.svc.Reverse(s.admin, reversal.Input{Ref: ref, Mode: reversal.ModeCancel})
	s.Require().NoError(err)

	_, err = s.svc.Reverse(s.admin, reversal.Input{Ref: ref, Mode: reversal.ModeCancel})
	s.Require().ErrorIs(err, reversal.ErrAlreadyCancelled)
	s.Require().ErrorIs(err, shared.ErrConflict)

	_, err = s.svc.Reverse(s.admin, reversal.Input{Ref: ref, Mode: reversal.ModeDelete})
	s.Require().NoError(err)
	s.InDelta(8, s.repo.stock.Qty(storeS, productA), 1e-9)
	s.Len(s.repo.stock.Movements(), 2)
	s.NotContains(s.repo.docs, ref)
}

func (s *ReversalTestSuite) TestIdempotencyKeyReplayAndRelease() {
	ref := s.seedSale(12, 1)
	_, err := s.svc.Reverse(s.admin, reversal.Input{Ref: ref, Mode: reversal.ModeCancel, IdempotencyKey: "abc"})
	s.Require().NoError(err)

	_, err = s.svc.Reverse(s.admin, reversal.Input{Ref: ref, Mode: reversal.ModeDelete, IdempotencyKey: "abc"})
	s.Require().ErrorIs(err, shared.ErrConflict)
	s.Contains(s.repo.docs, ref)

	_, err = s.svc.Reverse(s.admin, reversal.Input{Ref: accounting.DocumentRef{Type: accounting.DocumentSale, ID: 404}, Mode: reversal.ModeDelete, IdempotencyKey: "missing"})
	s.Require().ErrorIs(err, shared.ErrNotFound)
	s.NotContains(s.keys.keys, "missing")
	s.Contains(s.keys.keys, "abc")
}

func (s *ReversalTestSuite) TestFailureRollsBackEveryEffect() {
	ref := s.seedSale(12, 1)
	s.repo.failFinal = errors.New("row locked")

	_, err := s.svc.Reverse(s.admin, reversal.Input{Ref: ref, Mode: reversal.ModeDelete, IdempotencyKey: "retry-me"})
	s.Require().Error(err)
	s.InDelta(3, s.repo.stock.Qty(storeS, productA), 1e-9)
	s.InDelta(0, s.repo.stock.Qty(storeS, productB), 1e-9)
	s.Empty(s.repo.stock.Movements())
	s.Len(s.repo.ledger.EntriesFor(ref), 2)
	s.Contains(s.repo.docs, ref)
	s.NotContains(s.keys.keys, "retry-me")
	s.Empty(s.audit.logs)
	s.Equal([]string{"SALE/DELETE/error"}, s.metrics.outcomes)

	s.repo.failFinal = nil
	_, err = s.svc.Reverse(s.admin, reversal.Input{Ref: ref, Mode: reversal.ModeDelete, IdempotencyKey: "retry-me"})
	s.Require().NoError(err)
}

func (s *ReversalTestSuite) TestRejectsMalformedInput() {
	_, err := s.svc.Reverse(s.admin, reversal.Input{Ref: accounting.DocumentRef{Type: "INVOICE", ID: 1}, Mode: reversal.ModeDelete})
	s.Require().ErrorIs(err, shared.ErrInvalidInput)
	_, err = s.svc.Reverse(s.admin, reversal.Input{Ref: accounting.DocumentRef{Type: accounting.DocumentSale, ID: 1}, Mode: "ARCHIVE"})
	s.Require().ErrorIs(err, shared.ErrInvalidInput)
}

func TestReversalTestSuite(t *testing.T) {
	suite.Run(t, new(ReversalTestSuite))
}

func TestReverseDocumentMapsCancelFlag(t *testing.T) {
	repo := newMemoryRepo()
	ref := accounting.DocumentRef{Type: accounting.DocumentCashOperation, ID: 1}
	repo.docs[ref] = reversal.Document{Ref: ref, EntityID: 1, Status: reversal.StatusValidated}
	svc := reversal.NewService(repo, rbac.NewPolicy(rbac.DefaultGrants()), nil)
	ctx := shared.ContextWithIdentity(context.Background(), shared.Identity{UserID: 1, Role: shared.RoleSuperAdmin, EntityID: 1})

	require.NoError(t, svc.ReverseDocument(ctx, ref, true, "wrong till", ""))
	require.Equal(t, reversal.StatusCancelled, repo.docs[ref].Status)
	require.Equal(t, "wrong till", repo.reasons[ref])

	require.NoError(t, svc.ReverseDocument(ctx, ref, false, "", ""))
	require.NotContains(t, repo.docs, ref)
}
