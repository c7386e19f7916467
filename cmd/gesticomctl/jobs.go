package main

import (
	"fmt"
	"os"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/gesticom/gesticom/jobs"
)

func newJobsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and trigger background jobs",
	}
	cmd.AddCommand(newJobsTriggerCmd(e), newJobsStatsCmd(e))
	return cmd
}

func newJobsTriggerCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:       "trigger [job]",
		Short:     "Enqueue a job for immediate processing",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{jobs.TaskLedgerIntegrity},
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] != jobs.TaskLedgerIntegrity {
				return fmt.Errorf("unsupported job %s", args[0])
			}
			client, err := jobs.NewClient(asynq.RedisClientOpt{Addr: e.cfg.RedisAddr})
			if err != nil {
				return err
			}
			defer client.Close()

			requestedBy, _ := os.Hostname()
			info, err := client.EnqueueLedgerIntegrity(cmd.Context(), jobs.LedgerIntegrityPayload{RequestedBy: "gesticomctl@" + requestedBy})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
			return err
		},
	}
}

func newJobsStatsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print queue counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: e.cfg.RedisAddr})
			defer inspector.Close()

			info, err := inspector.GetQueueInfo(jobs.QueueDefault)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
				info.Queue, info.Pending, info.Active, info.Scheduled, info.Retry)
			return err
		},
	}
}
