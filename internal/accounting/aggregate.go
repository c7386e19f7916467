package accounting

import (
	"sort"

	"github.com/shopspring/decimal"
)

// BalanceRow holds one account's totals and contributing entries.
type BalanceRow struct {
	Account     Account
	DebitTotal  decimal.Decimal
	CreditTotal decimal.Decimal
	Balance     decimal.Decimal
	Entries     []LedgerEntry
}

// ClassTotals sums debit and credit totals over accounts sharing a class.
type ClassTotals struct {
	DebitTotal  decimal.Decimal
	CreditTotal decimal.Decimal
}

// Aggregation is the result of Aggregate.
type Aggregation struct {
	Range       DateRange
	Rows        []BalanceRow
	ClassTotals map[string]ClassTotals
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
}

// Balanced reports whether grand totals agree.
func (a Aggregation) Balanced() bool {
	return a.TotalDebit.Equal(a.TotalCredit)
}

// SignedBalance applies account polarity to debit and credit totals.
func SignedBalance(t AccountType, debit, credit decimal.Decimal) decimal.Decimal {
	if t.DebitNormal() {
		return debit.Sub(credit)
	}
	return credit.Sub(debit)
}

// Aggregate groups entries in rng by account. Entries without an account are
// skipped and accounts without entries in range are omitted. Rows are sorted
// by class then number; each row's entries by date then id.
func Aggregate(entries []LedgerEntry, rng DateRange) Aggregation {
	byAccount := make(map[int64]*BalanceRow)
	order := make([]int64, 0)
	for _, entry := range entries {
		if entry.Account == nil {
			continue
		}
		if !rng.Contains(entry.Date) {
			continue
		}
		row, ok := byAccount[entry.Account.ID]
		if !ok {
			row = &BalanceRow{Account: *entry.Account}
			byAccount[entry.Account.ID] = row
			order = append(order, entry.Account.ID)
		}
		row.DebitTotal = row.DebitTotal.Add(entry.Debit)
		row.CreditTotal = row.CreditTotal.Add(entry.Credit)
		row.Entries = append(row.Entries, entry)
	}

	agg := Aggregation{
		Range:       rng,
		Rows:        make([]BalanceRow, 0, len(order)),
		ClassTotals: make(map[string]ClassTotals),
	}
	for _, id := range order {
		row := byAccount[id]
		row.Balance = SignedBalance(row.Account.Type, row.DebitTotal, row.CreditTotal)
		sort.SliceStable(row.Entries, func(i, j int) bool {
			a, b := row.Entries[i], row.Entries[j]
			if !a.Date.Equal(b.Date) {
				return a.Date.Before(b.Date)
			}
			return a.ID < b.ID
		})
		agg.Rows = append(agg.Rows, *row)

		ct := agg.ClassTotals[row.Account.Class]
		ct.DebitTotal = ct.DebitTotal.Add(row.DebitTotal)
		ct.CreditTotal = ct.CreditTotal.Add(row.CreditTotal)
		agg.ClassTotals[row.Account.Class] = ct

		agg.TotalDebit = agg.TotalDebit.Add(row.DebitTotal)
		agg.TotalCredit = agg.TotalCredit.Add(row.CreditTotal)
	}

	sort.SliceStable(agg.Rows, func(i, j int) bool {
		a, b := agg.Rows[i].Account, agg.Rows[j].Account
		if a.Class != b.Class {
			return a.Class < b.Class
		}
		return a.Number < b.Number
	})
	return agg
}
