package events

import (
	"context"
	"errors"
	"time"

	"talkvault/internal/model"
)

// Event is one progress update of a job.
type Event struct {
	JobID            string                 `json:"job_id"`
	VideoID          string                 `json:"video_id,omitempty"`
	Status           model.ProcessingStatus `json:"status"`
	Progress         float64                `json:"progress"`
	StageProgress    float64                `json:"stage_progress"`
	Message          string                 `json:"message,omitempty"`
	EstimatedSeconds float64                `json:"estimated_seconds,omitempty"`
	ElapsedSeconds   float64                `json:"elapsed_seconds,omitempty"`
	Error            string                 `json:"error,omitempty"`
	Timestamp        time.Time              `json:"timestamp"`
}

// Terminal reports whether no further events follow for the job.
func (e Event) Terminal() bool { return e.Status.Terminal() }

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

func (Nop) Close() error { return nil }

// Multi publishes to every member and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
