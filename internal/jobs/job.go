package jobs

import (
	"time"

	"talkvault/internal/model"
)

// Job is one submitted video.
type Job struct {
	ID             string
	VideoPath      string
	VideoID        string
	Status         model.ProcessingStatus
	Progress       float64
	Message        string
	ErrorMessage   string
	ArchivePath    string
	DegradedStages []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    *time.Time
}

// Done reports whether the job reached a terminal status.
func (j Job) Done() bool { return j.Status.Terminal() }

// Duration returns the wall time from creation to completion, or to the last
// update for running jobs.
func (j Job) Duration() time.Duration {
	end := j.UpdatedAt
	if j.CompletedAt != nil {
		end = *j.CompletedAt
	}
	if end.Before(j.CreatedAt) {
		return 0
	}
	return end.Sub(j.CreatedAt)
}
