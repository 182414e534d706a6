package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"talkvault/internal/events"
	"talkvault/internal/jobs"
	"talkvault/internal/logging"
	"talkvault/internal/model"
	"talkvault/internal/pipeline"
	"talkvault/internal/services"
	"talkvault/internal/services/llm"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "process <video>...",
		Short: "Transcribe a video and generate its archive documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			store, err := jobs.Open(cmd.Context(), cfg.JobsDBPath())
			if err != nil {
				return err
			}
			defer store.Close()

			hub := jobs.NewHub(logger)
			defer hub.Close()
			publisher := events.Multi{hub}
			if cfg.Events.NATSURL != "" {
				nats, err := events.DialNATS(cfg.Events.NATSURL, cfg.Events.SubjectPrefix, logger)
				if err != nil {
					logging.WarnWithContext(logger, "progress events not published", "nats_unavailable",
						logging.Error(err),
						logging.String(logging.FieldImpact, "no external progress events for this run"),
						logging.String(logging.FieldErrorHint, "check events.nats_url"),
					)
				} else {
					publisher = append(publisher, nats)
					defer nats.Close()
				}
			}

			return llm.WithClient(cfg.LLM, func(client llm.Client) error {
				orch, err := newOrchestrator(cfg, client, logger)
				if err != nil {
					return err
				}
				runner := &jobRunner{orch: orch, store: store, hub: hub, publisher: publisher, logger: logger}
				var results []*model.PipelineResult
				var failures []error
				for _, path := range args {
					result, err := runner.run(cmd, path, !jsonOutput)
					if err != nil {
						if errors.Is(err, context.Canceled) {
							return err
						}
						failures = append(failures, fmt.Errorf("%s: %w", path, err))
						fmt.Fprintf(cmd.ErrOrStderr(), "Failed %s: %v\n", path, err)
						if services.Retryable(err) {
							fmt.Fprintln(cmd.ErrOrStderr(), "  the failure looks transient; process the file again to retry")
						}
						continue
					}
					results = append(results, result)
					if !jsonOutput {
						printResult(cmd, result)
					}
				}
				if jsonOutput {
					if err := encodeJSON(cmd.OutOrStdout(), results); err != nil {
						return err
					}
				}
				return errors.Join(failures...)
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
	return cmd
}

// jobRunner processes one video as a tracked job.
type jobRunner struct {
	orch      *pipeline.Orchestrator
	store     *jobs.Store
	hub       *jobs.Hub
	publisher events.Publisher
	logger    *slog.Logger
}

func (r *jobRunner) run(cmd *cobra.Command, path string, render bool) (*model.PipelineResult, error) {
	ctx := cmd.Context()
	job, err := r.store.Create(ctx, path)
	if err != nil {
		return nil, err
	}
	ctx = services.WithJobID(ctx, job.ID)
	logger := logging.WithContext(ctx, r.logger)

	var wg sync.WaitGroup
	if render {
		ch := r.hub.Subscribe(job.ID)
		renderer := newProgressRenderer(cmd.OutOrStdout())
		wg.Add(1)
		go func() {
			defer wg.Done()
			renderer.Run(ch)
		}()
	}

	var videoRecorded bool
	notify := func(u pipeline.Update) {
		if u.VideoID != "" && !videoRecorded {
			videoRecorded = true
			if err := r.store.SetVideo(ctx, job.ID, u.VideoID, u.ArchivePath); err != nil {
				logger.Debug("job video not recorded", logging.Error(err))
			}
		}
		if !u.Status.Terminal() {
			if err := r.store.UpdateProgress(ctx, job.ID, u.Status, u.Overall, u.Message); err != nil {
				logger.Debug("job progress not recorded", logging.Error(err))
			}
		}
		r.publish(ctx, job.ID, u)
	}

	result, runErr := r.orch.Process(ctx, path, notify)
	// The job row must be finalized even when ctx was cancelled.
	finalCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if runErr != nil {
		if err := r.store.Fail(finalCtx, job.ID, runErr); err != nil {
			logger.Warn("job failure not recorded", logging.Error(err))
		}
		if r.hub.Subscribers(job.ID) > 0 {
			r.publish(finalCtx, job.ID, pipeline.Update{Status: model.StatusFailed, Message: runErr.Error()})
		}
	} else if err := r.store.Complete(finalCtx, job.ID, result); err != nil {
		logger.Warn("job completion not recorded", logging.Error(err))
	}
	wg.Wait()
	return result, runErr
}

func (r *jobRunner) publish(ctx context.Context, jobID string, u pipeline.Update) {
	event := eventFromUpdate(u)
	event.JobID = jobID
	if err := r.publisher.Publish(ctx, event); err != nil {
		r.logger.Debug("progress event not published", logging.Error(err))
	}
}

func eventFromUpdate(u pipeline.Update) events.Event {
	event := events.Event{
		VideoID:          u.VideoID,
		Status:           u.Status,
		Progress:         u.Overall,
		StageProgress:    u.StageProgress,
		Message:          u.Message,
		EstimatedSeconds: u.EstimatedSeconds,
		ElapsedSeconds:   u.ElapsedSeconds,
		Timestamp:        time.Now().UTC(),
	}
	if u.Status == model.StatusFailed {
		event.Error = u.Message
	}
	return event
}

func printResult(cmd *cobra.Command, result *model.PipelineResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Archived %s (%s) in %s\n", result.VideoID, result.ContentType, time.Duration(result.ElapsedSeconds*float64(time.Second)).Round(time.Second))
	fmt.Fprintf(out, "  %s\n", result.ArchivePath)
	fmt.Fprintf(out, "  files: %s\n", strings.Join(result.Files, ", "))
	if result.Degraded() {
		fmt.Fprintf(out, "  degraded: %s (rerun these stages once the model is available)\n", strings.Join(result.DegradedStages, ", "))
	}
}
