package reports

import (
	"github.com/shopspring/decimal"

	"github.com/gesticom/gesticom/internal/accounting"
)

// BalanceSheet contrasts assets with liabilities plus the period result.
type BalanceSheet struct {
	Period                    Period           `json:"period"`
	Assets                    StatementSection `json:"assets"`
	Liabilities               StatementSection `json:"liabilities"`
	NetResult                 decimal.Decimal  `json:"netResult"`
	TotalLiabilitiesAndResult decimal.Decimal  `json:"totalLiabilitiesAndResult"`
}

// BuildBalanceSheet aggregates asset and liability balances. The net result
// of revenue and expense accounts closes the gap between the two sides.
func BuildBalanceSheet(agg accounting.Aggregation) BalanceSheet {
	assets := StatementSection{Label: "Assets", Lines: []StatementLine{}}
	liabilities := StatementSection{Label: "Liabilities", Lines: []StatementLine{}}

	for _, row := range agg.Rows {
		line := StatementLine{Number: row.Account.Number, Label: row.Account.Label, Amount: row.Balance}
		switch row.Account.Type {
		case accounting.AccountTypeAsset:
			assets.Lines = append(assets.Lines, line)
			assets.Total = assets.Total.Add(line.Amount)
		case accounting.AccountTypeLiability:
			liabilities.Lines = append(liabilities.Lines, line)
			liabilities.Total = liabilities.Total.Add(line.Amount)
		}
	}

	result := BuildIncomeStatement(agg).NetResult
	return BalanceSheet{
		Period:                    periodOf(agg.Range),
		Assets:                    assets,
		Liabilities:               liabilities,
		NetResult:                 result,
		TotalLiabilitiesAndResult: liabilities.Total.Add(result),
	}
}
