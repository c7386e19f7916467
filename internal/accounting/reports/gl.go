package reports

import (
	"github.com/shopspring/decimal"

	"github.com/gesticom/gesticom/internal/accounting"
)

// JournalView identifies the journal of a general ledger entry.
type JournalView struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// LedgerLine is one drill-down entry under a general ledger row.
type LedgerLine struct {
	ID          int64                  `json:"id"`
	Date        string                 `json:"date"`
	Journal     JournalView            `json:"journal"`
	Debit       decimal.Decimal        `json:"debit"`
	Credit      decimal.Decimal        `json:"credit"`
	Description string                 `json:"description"`
	Document    accounting.DocumentRef `json:"document"`
	EnteredBy   int64                  `json:"enteredBy"`
}

// GeneralLedgerRow is a balance row plus its contributing entries.
type GeneralLedgerRow struct {
	BalanceRow
	Entries []LedgerLine `json:"entries"`
}

// GeneralLedger is the general ledger payload.
type GeneralLedger struct {
	Period      Period                `json:"period"`
	Rows        []GeneralLedgerRow    `json:"rows"`
	ClassTotals map[string]ClassTotal `json:"classTotals"`
	TotalDebit  decimal.Decimal       `json:"totalDebit"`
	TotalCredit decimal.Decimal       `json:"totalCredit"`
}

// BuildGeneralLedger keeps every entry of the aggregation, ordered by date then id.
func BuildGeneralLedger(agg accounting.Aggregation) GeneralLedger {
	gl := GeneralLedger{
		Period:      periodOf(agg.Range),
		Rows:        make([]GeneralLedgerRow, 0, len(agg.Rows)),
		ClassTotals: classTotals(agg),
		TotalDebit:  agg.TotalDebit,
		TotalCredit: agg.TotalCredit,
	}
	for _, row := range agg.Rows {
		out := GeneralLedgerRow{BalanceRow: balanceRow(row), Entries: make([]LedgerLine, 0, len(row.Entries))}
		for _, e := range row.Entries {
			line := LedgerLine{
				ID:          e.ID,
				Date:        e.Date.Format(accounting.DateLayout),
				Debit:       e.Debit,
				Credit:      e.Credit,
				Description: e.Description,
				Document:    e.Document,
				EnteredBy:   e.EnteredBy,
			}
			if e.Journal != nil {
				line.Journal = JournalView{Code: e.Journal.Code, Label: e.Journal.Label}
			}
			out.Entries = append(out.Entries, line)
		}
		gl.Rows = append(gl.Rows, out)
	}
	return gl
}
