package reports

import (
	"github.com/shopspring/decimal"

	"github.com/gesticom/gesticom/internal/accounting"
)

// StatementLine is an account amount within a statement section.
type StatementLine struct {
	Number string          `json:"number"`
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

// StatementSection groups lines of one nature.
type StatementSection struct {
	Label string          `json:"label"`
	Lines []StatementLine `json:"lines"`
	Total decimal.Decimal `json:"total"`
}

// IncomeStatement contrasts revenue with expenses.
type IncomeStatement struct {
	Period    Period           `json:"period"`
	Revenue   StatementSection `json:"revenue"`
	Expense   StatementSection `json:"expense"`
	NetResult decimal.Decimal  `json:"netResult"`
}

// BuildIncomeStatement aggregates revenue and expense balances.
func BuildIncomeStatement(agg accounting.Aggregation) IncomeStatement {
	revenue := StatementSection{Label: "Revenue", Lines: []StatementLine{}}
	expense := StatementSection{Label: "Expense", Lines: []StatementLine{}}

	for _, row := range agg.Rows {
		line := StatementLine{Number: row.Account.Number, Label: row.Account.Label, Amount: row.Balance}
		switch row.Account.Type {
		case accounting.AccountTypeRevenue:
			revenue.Lines = append(revenue.Lines, line)
			revenue.Total = revenue.Total.Add(line.Amount)
		case accounting.AccountTypeExpense:
			expense.Lines = append(expense.Lines, line)
			expense.Total = expense.Total.Add(line.Amount)
		}
	}

	return IncomeStatement{
		Period:    periodOf(agg.Range),
		Revenue:   revenue,
		Expense:   expense,
		NetResult: revenue.Total.Sub(expense.Total),
	}
}
