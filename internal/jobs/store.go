package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"talkvault/internal/model"
)

// Store persists jobs in SQLite.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open creates or connects to the job database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create job db directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	store := &Store{db: db, path: path, now: time.Now}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Create records a pending job for videoPath.
func (s *Store) Create(ctx context.Context, videoPath string) (*Job, error) {
	if strings.TrimSpace(videoPath) == "" {
		return nil, errors.New("video path is required")
	}
	id := uuid.NewString()
	timestamp := formatTime(s.now())
	_, err := s.exec(ctx,
		`INSERT INTO jobs (id, video_path, status, progress, created_at, updated_at)
         VALUES (?, ?, ?, 0, ?, ?)`,
		id, videoPath, model.StatusPending, timestamp, timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return s.Get(ctx, id)
}

// Get returns the job with id, or nil when there is none.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// List returns the newest jobs first. A limit of zero or less lists every
// job; statuses, when given, filter the result.
func (s *Store) List(ctx context.Context, limit int, statuses ...model.ProcessingStatus) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	args := make([]any, 0, len(statuses)+1)
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, status)
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ",") + `)`
	}
	query += ` ORDER BY rowid DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// UpdateProgress records a progress report of a running job. Terminal jobs
// are left untouched.
func (s *Store) UpdateProgress(ctx context.Context, id string, status model.ProcessingStatus, progress float64, message string) error {
	res, err := s.exec(ctx,
		`UPDATE jobs SET status = ?, progress = ?, message = ?, updated_at = ?
         WHERE id = ? AND status NOT IN (?, ?)`,
		status, progress, nullableString(message), formatTime(s.now()),
		id, model.StatusCompleted, model.StatusFailed,
	)
	if err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	return s.requireRow(ctx, res, id)
}

// SetVideo records the video id and archive path once parsing finished.
func (s *Store) SetVideo(ctx context.Context, id, videoID, archivePath string) error {
	res, err := s.exec(ctx,
		`UPDATE jobs SET video_id = ?, archive_path = ?, updated_at = ? WHERE id = ?`,
		nullableString(videoID), nullableString(archivePath), formatTime(s.now()), id,
	)
	if err != nil {
		return fmt.Errorf("update job video: %w", err)
	}
	return s.requireRow(ctx, res, id)
}

// Complete marks a job finished with result.
func (s *Store) Complete(ctx context.Context, id string, result *model.PipelineResult) error {
	if result == nil {
		return errors.New("pipeline result is nil")
	}
	degraded, err := json.Marshal(result.DegradedStages)
	if err != nil {
		return fmt.Errorf("marshal degraded stages: %w", err)
	}
	message := "Completed"
	if result.Degraded() {
		message = "Completed with fallbacks: " + strings.Join(result.DegradedStages, ", ")
	}
	timestamp := formatTime(s.now())
	res, err := s.exec(ctx,
		`UPDATE jobs SET status = ?, progress = 100, message = ?, error_message = NULL,
             video_id = ?, archive_path = ?, degraded_stages_json = ?, updated_at = ?, completed_at = ?
         WHERE id = ?`,
		model.StatusCompleted, message, nullableString(result.VideoID), nullableString(result.ArchivePath),
		string(degraded), timestamp, timestamp, id,
	)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return s.requireRow(ctx, res, id)
}

// Fail marks a job failed with the error message.
func (s *Store) Fail(ctx context.Context, id string, cause error) error {
	message := "unknown error"
	if cause != nil {
		message = cause.Error()
	}
	timestamp := formatTime(s.now())
	res, err := s.exec(ctx,
		`UPDATE jobs SET status = ?, error_message = ?, updated_at = ?, completed_at = ? WHERE id = ?`,
		model.StatusFailed, message, timestamp, timestamp, id,
	)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return s.requireRow(ctx, res, id)
}

// FailInterrupted marks every non-terminal job failed. It runs at startup:
// a job still marked running belongs to a process that no longer exists.
func (s *Store) FailInterrupted(ctx context.Context) (int64, error) {
	timestamp := formatTime(s.now())
	res, err := s.exec(ctx,
		`UPDATE jobs SET status = ?, error_message = ?, updated_at = ?, completed_at = ?
         WHERE status NOT IN (?, ?)`,
		model.StatusFailed, "interrupted", timestamp, timestamp,
		model.StatusCompleted, model.StatusFailed,
	)
	if err != nil {
		return 0, fmt.Errorf("fail interrupted jobs: %w", err)
	}
	return res.RowsAffected()
}

// ErrJobNotFound is returned by updates of unknown jobs.
var ErrJobNotFound = errors.New("job not found")

func (s *Store) requireRow(ctx context.Context, res sql.Result, id string) error {
	affected, err := res.RowsAffected()
	if err != nil || affected > 0 {
		return err
	}
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return nil
}
