package stage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"talkvault/internal/logging"
	"talkvault/internal/services"
)

// Hooks customise Run.
type Hooks struct {
	Logger *slog.Logger
	// Around wraps each execution; nil runs the stage directly. The wrapper
	// may substitute a result (fallbacks) or add progress tracking.
	Around func(ctx context.Context, s Stage, st *State, next func(context.Context) (any, error)) (any, error)
	// OnSkip is called for every stage whose Skipper declined to run.
	OnSkip func(s Stage)
}

// Run executes stages in order, threading State through them. The first
// failure stops the run; the returned error is a *services.StageError naming
// the stage, and the returned State holds the results gathered so far.
func Run(ctx context.Context, stages []Stage, st *State, hooks Hooks) (*State, error) {
	if st == nil {
		st = NewState()
	}
	logger := hooks.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return st, &services.StageError{Stage: s.Name(), Err: err}
		}
		name := s.Name()
		stageCtx := services.WithStage(ctx, name)
		stageLogger := logging.WithContext(stageCtx, logger)

		if Skipped(s, st) {
			stageLogger.Info("stage skipped",
				logging.String(logging.FieldEventType, "stage_skip"),
			)
			if hooks.OnSkip != nil {
				hooks.OnSkip(s)
			}
			continue
		}

		stageLogger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))
		started := time.Now()

		next := func(runCtx context.Context) (any, error) { return s.Execute(runCtx, st) }
		var (
			result any
			err    error
		)
		if hooks.Around != nil {
			result, err = hooks.Around(stageCtx, s, st, next)
		} else {
			result, err = next(stageCtx)
		}
		if err != nil {
			stageLogger.Error("stage failed",
				logging.String(logging.FieldEventType, "stage_failure"),
				logging.Duration("elapsed", time.Since(started)),
				logging.Error(err),
			)
			var tagged *services.StageError
			if errors.As(err, &tagged) {
				return st, err
			}
			return st, &services.StageError{Stage: name, Err: err}
		}

		st = st.WithResult(name, result)
		stageLogger.Info("stage completed",
			logging.String(logging.FieldEventType, "stage_complete"),
			logging.Duration("elapsed", time.Since(started)),
		)
	}
	return st, nil
}
