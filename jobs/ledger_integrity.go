package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/gesticom/gesticom/internal/accounting"
	jobmetrics "github.com/gesticom/gesticom/internal/jobs"
)

// ImbalanceSource lists documents whose entries do not sum to zero.
type ImbalanceSource interface {
	UnbalancedDocuments(ctx context.Context) ([]accounting.DocumentImbalance, error)
}

// LedgerIntegrityJob verifies that every document's debits equal its credits.
type LedgerIntegrityJob struct {
	Source  ImbalanceSource
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLedgerIntegrityJob initialises the integrity handler.
func NewLedgerIntegrityJob(source ImbalanceSource, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{Source: source, Logger: logger, Metrics: metrics}
}

// Run performs one scan, logging each offending document.
func (j *LedgerIntegrityJob) Run(ctx context.Context, runID string) ([]accounting.DocumentImbalance, error) {
	if j == nil || j.Source == nil {
		return nil, errors.New("ledger integrity: source not configured")
	}
	start := time.Now()
	tracker := j.Metrics.Track(TaskLedgerIntegrity)
	logger := j.logger().With(slog.String("run_id", runID))

	found, err := j.Source.UnbalancedDocuments(ctx)
	if err != nil {
		logger.Error("ledger integrity scan failed", slog.Any("error", err))
		return nil, tracker.End(fmt.Errorf("ledger integrity: %w", err))
	}
	for _, d := range found {
		logger.Warn("unbalanced document",
			slog.String("document", d.Document.String()),
			slog.String("debit", d.Debit.String()),
			slog.String("credit", d.Credit.String()),
		)
	}
	j.Metrics.SetUnbalancedDocuments(len(found))
	logger.Info("ledger integrity scan completed",
		slog.Int("unbalanced", len(found)),
		slog.Duration("duration", time.Since(start)),
	)
	return found, tracker.End(nil)
}

// Handle processes TaskLedgerIntegrity tasks.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload LedgerIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("ledger integrity payload: %v: %w", err, asynq.SkipRetry)
	}
	_, err := j.Run(ctx, payload.RunID)
	return err
}

func (j *LedgerIntegrityJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger.With(slog.String("job", TaskLedgerIntegrity))
}
