package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gesticom/gesticom/internal/accounting"
	"github.com/gesticom/gesticom/internal/accounting/reports"
	"github.com/gesticom/gesticom/jobs"
)

func newTrialBalanceCmd(e *env) *cobra.Command {
	var from, to string
	var entityID int64
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "trial-balance",
		Short: "Print the trial balance for a date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			rng, err := accounting.NewDateRange(from, to)
			if err != nil {
				return err
			}
			pool, err := e.pool(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			filter := accounting.EntryFilter{Range: rng, EntityID: entityID}
			agg, err := accounting.LoadAggregation(cmd.Context(), accounting.NewRepository(pool), filter)
			if err != nil {
				return err
			}
			return writeTrialBalance(cmd.OutOrStdout(), reports.BuildTrialBalance(agg), asJSON)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first day included (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last day included (YYYY-MM-DD)")
	cmd.Flags().Int64Var(&entityID, "entity", 0, "restrict to one entity (0 = all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON instead of a table")
	return cmd
}

func newIntegrityCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "integrity",
		Short: "List documents whose ledger entries do not balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := e.pool(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := accounting.NewService(accounting.NewRepository(pool), nil, e.logger)
			job := jobs.NewLedgerIntegrityJob(svc, e.logger, nil)
			found, err := job.Run(cmd.Context(), uuid.NewString())
			if err != nil {
				return err
			}
			if err := writeImbalances(cmd.OutOrStdout(), found); err != nil {
				return err
			}
			if len(found) > 0 {
				return fmt.Errorf("%d unbalanced documents", len(found))
			}
			return nil
		},
	}
}

func writeTrialBalance(w io.Writer, tb reports.TrialBalance, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(tb)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "ACCOUNT\tLABEL\tDEBIT\tCREDIT\tBALANCE\t")
	for _, row := range tb.Rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n",
			row.Account.Number, row.Account.Label,
			row.DebitTotal.StringFixed(2), row.CreditTotal.StringFixed(2), row.Balance.StringFixed(2))
	}
	fmt.Fprintf(tw, "TOTAL\t\t%s\t%s\t\t\n", tb.TotalDebit.StringFixed(2), tb.TotalCredit.StringFixed(2))
	if err := tw.Flush(); err != nil {
		return err
	}
	status := "balanced"
	if !tb.Balanced {
		status = "UNBALANCED"
	}
	_, err := fmt.Fprintln(w, status)
	return err
}

func writeImbalances(w io.Writer, found []accounting.DocumentImbalance) error {
	if len(found) == 0 {
		_, err := fmt.Fprintln(w, "ledger balanced")
		return err
	}
	for _, d := range found {
		if _, err := fmt.Fprintf(w, "%s debit=%s credit=%s\n", d.Document, d.Debit.StringFixed(2), d.Credit.StringFixed(2)); err != nil {
			return err
		}
	}
	return nil
}
