// Package accountingtest provides an in-memory accounting.TxRepository for tests.
package accountingtest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gesticom/gesticom/internal/accounting"
)

// Store keeps accounts, journals and entries in memory.
type Store struct {
	mu       sync.Mutex
	accounts map[int64]accounting.Account
	journals map[int64]accounting.Journal
	entries  []accounting.LedgerEntry
	nextID   int64
	// FailInsert, when set, is returned by InsertEntries.
	FailInsert error
}

type snapshot struct {
	accounts map[int64]accounting.Account
	journals map[int64]accounting.Journal
	entries  []accounting.LedgerEntry
	nextID   int64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		accounts: make(map[int64]accounting.Account),
		journals: make(map[int64]accounting.Journal),
	}
}

// WithTx runs fn against the store and discards its writes when fn fails.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, accounting.TxRepository) error) error {
	snap := s.Snapshot()
	if err := fn(ctx, s); err != nil {
		s.Restore(snap)
		return err
	}
	return nil
}

// Snapshot captures the current state for Restore.
func (s *Store) Snapshot() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{
		accounts: make(map[int64]accounting.Account, len(s.accounts)),
		journals: make(map[int64]accounting.Journal, len(s.journals)),
		entries:  append([]accounting.LedgerEntry(nil), s.entries...),
		nextID:   s.nextID,
	}
	for k, v := range s.accounts {
		snap.accounts[k] = v
	}
	for k, v := range s.journals {
		snap.journals[k] = v
	}
	return snap
}

// Restore rolls the store back to a Snapshot.
func (s *Store) Restore(v any) {
	snap, ok := v.(snapshot)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = snap.accounts
	s.journals = snap.journals
	s.entries = snap.entries
	s.nextID = snap.nextID
}

// AddAccount seeds an active account.
func (s *Store) AddAccount(number, class string, t accounting.AccountType) accounting.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	a := accounting.Account{ID: s.nextID, Number: number, Label: "Account " + number, Class: class, Type: t, Active: true}
	s.accounts[a.ID] = a
	return a
}

// AddJournal seeds an active journal.
func (s *Store) AddJournal(code string, t accounting.JournalType) accounting.Journal {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	j := accounting.Journal{ID: s.nextID, Code: code, Label: "Journal " + code, Type: t, Active: true}
	s.journals[j.ID] = j
	return j
}

// SeedDefaults opens every account and journal named by d.
func (s *Store) SeedDefaults(d accounting.Defaults) {
	s.AddAccount(d.CustomerAccount, "4", accounting.AccountTypeAsset)
	s.AddAccount(d.RevenueAccount, "7", accounting.AccountTypeRevenue)
	s.AddAccount(d.SupplierAccount, "4", accounting.AccountTypeLiability)
	s.AddAccount(d.PurchasesAccount, "6", accounting.AccountTypeExpense)
	s.AddAccount(d.BankAccount, "5", accounting.AccountTypeAsset)
	s.AddAccount(d.CashAccount, "5", accounting.AccountTypeAsset)
	s.AddAccount(d.SuspenseAccount, "4", accounting.AccountTypeLiability)
	s.AddJournal(d.SalesJournal, accounting.JournalTypeSales)
	s.AddJournal(d.PurchasesJournal, accounting.JournalTypePurchases)
	s.AddJournal(d.BankJournal, accounting.JournalTypeBank)
	s.AddJournal(d.CashJournal, accounting.JournalTypeCash)
}

// Entries returns a copy of the stored entries.
func (s *Store) Entries() []accounting.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]accounting.LedgerEntry(nil), s.entries...)
}

// EntriesFor returns the entries tagged with ref.
func (s *Store) EntriesFor(ref accounting.DocumentRef) []accounting.LedgerEntry {
	var out []accounting.LedgerEntry
	for _, e := range s.Entries() {
		if e.Document == ref {
			out = append(out, e)
		}
	}
	return out
}

func (s *Store) ListAccounts(ctx context.Context, filter accounting.ListFilter) ([]accounting.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]accounting.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		if filter.Active != nil && a.Active != *filter.Active {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Class != out[j].Class {
			return out[i].Class < out[j].Class
		}
		return out[i].Number < out[j].Number
	})
	return out, nil
}

func (s *Store) GetAccount(ctx context.Context, id int64) (accounting.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return accounting.Account{}, fmt.Errorf("%w %d", accounting.ErrAccountNotFound, id)
	}
	return a, nil
}

func (s *Store) GetAccountByNumber(ctx context.Context, number string) (accounting.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Number == number {
			return a, nil
		}
	}
	return accounting.Account{}, fmt.Errorf("%w %s", accounting.ErrAccountNotFound, number)
}

func (s *Store) InsertAccount(ctx context.Context, in accounting.AccountInput, t accounting.AccountType) (accounting.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Number == in.Number {
			return accounting.Account{}, accounting.ErrDuplicate
		}
	}
	s.nextID++
	now := time.Now()
	a := accounting.Account{ID: s.nextID, Number: in.Number, Label: in.Label, Class: in.Class, Type: t, Active: true, CreatedAt: now, UpdatedAt: now}
	s.accounts[a.ID] = a
	return a, nil
}

func (s *Store) UpdateAccount(ctx context.Context, id int64, upd accounting.AccountUpdate) (accounting.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return accounting.Account{}, fmt.Errorf("%w %d", accounting.ErrAccountNotFound, id)
	}
	if upd.Label != nil {
		a.Label = *upd.Label
	}
	if upd.Active != nil {
		a.Active = *upd.Active
	}
	a.UpdatedAt = time.Now()
	s.accounts[id] = a
	return a, nil
}

func (s *Store) ListJournals(ctx context.Context, filter accounting.ListFilter) ([]accounting.Journal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]accounting.Journal, 0, len(s.journals))
	for _, j := range s.journals {
		if filter.Active != nil && j.Active != *filter.Active {
			continue
		}
		out = append(out, j)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *Store) GetJournalByCode(ctx context.Context, code string) (accounting.Journal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.journals {
		if j.Code == code {
			return j, nil
		}
	}
	return accounting.Journal{}, fmt.Errorf("%w %s", accounting.ErrJournalNotFound, code)
}

func (s *Store) InsertJournal(ctx context.Context, in accounting.JournalInput, t accounting.JournalType) (accounting.Journal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.journals {
		if j.Code == in.Code {
			return accounting.Journal{}, accounting.ErrDuplicate
		}
	}
	s.nextID++
	j := accounting.Journal{ID: s.nextID, Code: in.Code, Label: in.Label, Type: t, Active: true}
	s.journals[j.ID] = j
	return j, nil
}

func (s *Store) UpdateJournal(ctx context.Context, id int64, upd accounting.JournalUpdate) (accounting.Journal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.journals[id]
	if !ok {
		return accounting.Journal{}, fmt.Errorf("%w %d", accounting.ErrJournalNotFound, id)
	}
	if upd.Label != nil {
		j.Label = *upd.Label
	}
	if upd.Active != nil {
		j.Active = *upd.Active
	}
	s.journals[id] = j
	return j, nil
}

func (s *Store) InsertEntries(ctx context.Context, entries []accounting.LedgerEntry) ([]accounting.LedgerEntry, error) {
	if s.FailInsert != nil {
		return nil, s.FailInsert
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]accounting.LedgerEntry, 0, len(entries))
	for _, e := range entries {
		s.nextID++
		e.ID = s.nextID
		e.CreatedAt = time.Now()
		s.entries = append(s.entries, e)
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) ListEntries(ctx context.Context, filter accounting.EntryFilter) ([]accounting.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]accounting.LedgerEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if !filter.Range.Contains(e.Date) {
			continue
		}
		if filter.EntityID != 0 && e.EntityID != filter.EntityID {
			continue
		}
		if a, ok := s.accounts[e.AccountID]; ok {
			acc := a
			e.Account = &acc
		} else {
			e.Account = nil
		}
		if j, ok := s.journals[e.JournalID]; ok {
			jr := j
			e.Journal = &jr
		}
		if filter.AccountNumber != "" && (e.Account == nil || e.Account.Number != filter.AccountNumber) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) DeleteEntriesByDocument(ctx context.Context, ref accounting.DocumentRef) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0:0]
	var removed int64
	for _, e := range s.entries {
		if e.Document == ref {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return removed, nil
}

func (s *Store) UnbalancedDocuments(ctx context.Context) ([]accounting.DocumentImbalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sums := make(map[accounting.DocumentRef]*accounting.DocumentImbalance)
	var order []accounting.DocumentRef
	for _, e := range s.entries {
		d, ok := sums[e.Document]
		if !ok {
			d = &accounting.DocumentImbalance{Document: e.Document, Debit: decimal.Zero, Credit: decimal.Zero}
			sums[e.Document] = d
			order = append(order, e.Document)
		}
		d.Debit = d.Debit.Add(e.Debit)
		d.Credit = d.Credit.Add(e.Credit)
	}
	out := make([]accounting.DocumentImbalance, 0)
	for _, ref := range order {
		if d := sums[ref]; !d.Debit.Equal(d.Credit) {
			out = append(out, *d)
		}
	}
	return out, nil
}

var _ accounting.TxRepository = (*Store)(nil)

// Chart is a French-style chart used by document tests.
var Chart = accounting.Defaults{
	CustomerAccount:  "411",
	RevenueAccount:   "701",
	SupplierAccount:  "401",
	PurchasesAccount: "601",
	BankAccount:      "512",
	CashAccount:      "531",
	SuspenseAccount:  "471",
	SalesJournal:     "VT",
	PurchasesJournal: "AC",
	BankJournal:      "BQ",
	CashJournal:      "CA",
}
