package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"pressline/internal/batch"
	"pressline/internal/cache"
	"pressline/internal/logging"
	"pressline/internal/pipeline"
	"pressline/internal/runlock"
	"pressline/internal/services/generator"
	"pressline/internal/services/media"
	"pressline/internal/services/publisher"
	"pressline/internal/topic"
)

// errItemsFailed signals that the run completed but at least one topic did
// not publish. main translates it into a distinct exit code.
var errItemsFailed = errors.New("one or more topics failed")

func newRunCommand(cmdCtx *commandContext) *cobra.Command {
	var concurrency int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "run <topics.csv>",
		Short: "Process a CSV of topics into published posts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			if concurrency > 0 {
				cfg.Batch.MaxConcurrency = concurrency
			}

			logger, err := cmdCtx.newLogger(cfg)
			if err != nil {
				return err
			}

			records, err := topic.ReadAll(topic.Source{
				Path:             args[0],
				DefaultWordCount: cfg.Pipeline.DefaultWordCount,
			})
			if err != nil {
				return fmt.Errorf("read topics: %w", err)
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No topics to process")
				return nil
			}

			lock, err := runlock.Acquire(cfg.LockPath())
			if err != nil {
				return err
			}
			defer lock.Release()

			store, err := cache.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			runner := pipeline.NewRunner(
				store,
				generator.NewClient(cfg.Generator, cfg.Pipeline.WordCountMarginPc),
				media.NewClient(cfg.Media),
				publisher.NewClient(cfg.Publisher,
					publisher.WithLogger(logging.NewComponentLogger(logger, "publisher"))),
				cfg.Pipeline,
				logging.NewComponentLogger(logger, "pipeline"),
			)
			orchestrator := batch.NewOrchestrator(runner, cfg.Batch, logging.NewComponentLogger(logger, "batch"))

			report, runErr := orchestrator.Run(cmd.Context(), records)
			if report != nil {
				if jsonOutput {
					if err := writeJSON(cmd, report); err != nil {
						return err
					}
				} else {
					renderReport(cmd.OutOrStdout(), report)
				}
			}
			if runErr != nil {
				return runErr
			}
			if report.Failed() > 0 {
				return errItemsFailed
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Override the configured batch concurrency")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the run report as JSON")
	return cmd
}
