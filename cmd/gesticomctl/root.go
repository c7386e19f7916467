package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/gesticom/gesticom/internal/app"
	"github.com/gesticom/gesticom/internal/platform/db"
)

// env carries the configuration shared by every subcommand.
type env struct {
	cfg    *app.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	e := &env{}
	root := &cobra.Command{
		Use:           "gesticomctl",
		Short:         "Operate the GestiCom ledger: migrations, reports and jobs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			e.cfg = cfg
			e.logger = app.NewLogger(cfg)
			return nil
		},
	}
	root.AddCommand(
		newMigrateCmd(e),
		newTrialBalanceCmd(e),
		newIntegrityCmd(e),
		newJobsCmd(e),
	)
	return root
}

func (e *env) pool(ctx context.Context) (*pgxpool.Pool, error) {
	if e.cfg == nil {
		return nil, errors.New("gesticomctl: configuration not loaded")
	}
	return db.New(ctx, e.cfg.PGDSN)
}
