// Package reports shapes ledger aggregations into trial balance, general
// ledger, income statement and balance sheet payloads.
package reports

import (
	"github.com/shopspring/decimal"

	"github.com/gesticom/gesticom/internal/accounting"
)

// AccountView is the account summary embedded in report rows.
type AccountView struct {
	ID     int64                  `json:"id"`
	Number string                 `json:"number"`
	Label  string                 `json:"label"`
	Class  string                 `json:"class"`
	Type   accounting.AccountType `json:"type"`
}

// BalanceRow is one account line of a trial balance.
type BalanceRow struct {
	Account     AccountView     `json:"account"`
	DebitTotal  decimal.Decimal `json:"debitTotal"`
	CreditTotal decimal.Decimal `json:"creditTotal"`
	Balance     decimal.Decimal `json:"balance"`
}

// ClassTotal sums a class of accounts.
type ClassTotal struct {
	DebitTotal  decimal.Decimal `json:"debitTotal"`
	CreditTotal decimal.Decimal `json:"creditTotal"`
}

// Period echoes the requested date bounds.
type Period struct {
	From string `json:"dateDebut,omitempty"`
	To   string `json:"dateFin,omitempty"`
}

// TrialBalance is the trial balance payload.
type TrialBalance struct {
	Period      Period                `json:"period"`
	Rows        []BalanceRow          `json:"rows"`
	ClassTotals map[string]ClassTotal `json:"classTotals"`
	TotalDebit  decimal.Decimal       `json:"totalDebit"`
	TotalCredit decimal.Decimal       `json:"totalCredit"`
	Balanced    bool                  `json:"balanced"`
}

// BuildTrialBalance converts an aggregation into the trial balance payload.
func BuildTrialBalance(agg accounting.Aggregation) TrialBalance {
	tb := TrialBalance{
		Period:      periodOf(agg.Range),
		Rows:        make([]BalanceRow, 0, len(agg.Rows)),
		ClassTotals: classTotals(agg),
		TotalDebit:  agg.TotalDebit,
		TotalCredit: agg.TotalCredit,
		Balanced:    agg.Balanced(),
	}
	for _, row := range agg.Rows {
		tb.Rows = append(tb.Rows, balanceRow(row))
	}
	return tb
}

func balanceRow(row accounting.BalanceRow) BalanceRow {
	return BalanceRow{
		Account: AccountView{
			ID:     row.Account.ID,
			Number: row.Account.Number,
			Label:  row.Account.Label,
			Class:  row.Account.Class,
			Type:   row.Account.Type,
		},
		DebitTotal:  row.DebitTotal,
		CreditTotal: row.CreditTotal,
		Balance:     row.Balance,
	}
}

func classTotals(agg accounting.Aggregation) map[string]ClassTotal {
	out := make(map[string]ClassTotal, len(agg.ClassTotals))
	for class, t := range agg.ClassTotals {
		out[class] = ClassTotal{DebitTotal: t.DebitTotal, CreditTotal: t.CreditTotal}
	}
	return out
}

func periodOf(rng accounting.DateRange) Period {
	var p Period
	if rng.From != nil {
		p.From = rng.From.Format(accounting.DateLayout)
	}
	if rng.To != nil {
		p.To = rng.To.Format(accounting.DateLayout)
	}
	return p
}
