// Package jobs records processing jobs in SQLite and fans their progress
// out to live subscribers.
//
// A Store row is created when a video is submitted and is updated by the
// progress callback until the job completes or fails. The database holds
// job bookkeeping only; the archive on disk stays the source of truth for
// generated documents. Schema changes bump schemaVersion; users delete
// jobs.db to adopt them.
//
// Hub is an in-memory events.Publisher keyed by job id. It is passed by
// reference to whatever needs it; there is no package-level registry.
package jobs
