// Package batch dispatches a set of topics across a bounded pool of pipeline
// workers and collects an ordered run report.
package batch

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"pressline/internal/config"
	"pressline/internal/logging"
	"pressline/internal/pipeline"
	"pressline/internal/topic"
)

// TopicRunner runs one topic through the pipeline. Satisfied by
// *pipeline.Runner.
type TopicRunner interface {
	Run(ctx context.Context, rec topic.Record) (pipeline.Result, error)
}

// Orchestrator fans records out to concurrent pipeline runs.
type Orchestrator struct {
	runner         TopicRunner
	maxConcurrency int
	logger         *slog.Logger
}

// NewOrchestrator wires an orchestrator around a topic runner.
func NewOrchestrator(runner TopicRunner, cfg config.Batch, logger *slog.Logger) *Orchestrator {
	concurrency := cfg.MaxConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		runner:         runner,
		maxConcurrency: concurrency,
		logger:         logger,
	}
}

// Run processes every record and returns a report with one result per input,
// in input order. Item failures are isolated: one failed topic never stops
// the others. Cache faults are not isolated; the first one cancels the
// remaining work and Run returns it alongside the partial report.
func (o *Orchestrator) Run(ctx context.Context, records []topic.Record) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Results:   make([]pipeline.Result, len(records)),
	}
	log := o.logger.With(logging.String(logging.FieldCorrelationID, report.RunID))
	log.Info("batch run started",
		logging.Int("topics", len(records)),
		logging.Int("max_concurrency", o.maxConcurrency))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(o.maxConcurrency)

	for i, rec := range records {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				report.Results[i] = pipeline.Result{
					Topic:  rec.Topic,
					Status: pipeline.StatusFailed,
					Reason: "run aborted: " + err.Error(),
				}
				return nil
			}
			result, err := o.runner.Run(groupCtx, rec)
			if err != nil {
				report.Results[i] = pipeline.Result{
					Topic:  rec.Topic,
					Status: pipeline.StatusFailed,
					Reason: err.Error(),
				}
				return err
			}
			report.Results[i] = result
			return nil
		})
	}

	err := group.Wait()
	report.Duration = time.Since(report.StartedAt)
	log.Info("batch run finished",
		logging.Int("succeeded", report.Succeeded()),
		logging.Int("skipped", report.Skipped()),
		logging.Int("failed", report.Failed()),
		logging.Duration("duration", report.Duration))
	return report, err
}
