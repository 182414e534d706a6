package model

import (
	"strings"
	"time"
)

// ContentType classifies a talk and selects the derivative documents.
type ContentType string

const (
	ContentEducational ContentType = "educational"
	ContentLeadership  ContentType = "leadership"
)

// VideoMetadata identifies one video. It is produced by the parse stage;
// only DurationSeconds is filled in later, through WithDuration.
type VideoMetadata struct {
	Date            time.Time   `json:"date"`
	EventType       string      `json:"event_type"`
	Stream          string      `json:"stream,omitempty"`
	Title           string      `json:"title"`
	Speaker         string      `json:"speaker,omitempty"`
	VideoID         string      `json:"video_id"`
	SourcePath      string      `json:"source_path"`
	ArchivePath     string      `json:"archive_path"`
	ContentType     ContentType `json:"content_type"`
	DurationSeconds float64     `json:"duration_seconds,omitempty"`
}

// WithDuration returns a copy carrying the late-bound duration.
func (m VideoMetadata) WithDuration(seconds float64) VideoMetadata {
	m.DurationSeconds = seconds
	return m
}

// IsLeadership reports whether the talk produces a story instead of a
// longread and summary.
func (m VideoMetadata) IsLeadership() bool {
	return m.ContentType == ContentLeadership
}

// DisplayDate formats the talk date the way archive paths and documents use it.
func (m VideoMetadata) DisplayDate() string {
	if m.Date.IsZero() {
		return ""
	}
	return m.Date.Format("2006-01-02")
}

// AccessLevel derives the document access level from the content type.
// Leadership talks are restricted to leaders.
func (m VideoMetadata) AccessLevel() string {
	if m.IsLeadership() {
		return AccessLeaders
	}
	return AccessInternal
}

// Classification tags a derivative document with the event type and the
// access level.
func (m VideoMetadata) Classification() Classification {
	tags := []string{}
	if event := strings.TrimSpace(m.EventType); event != "" {
		tags = append(tags, event)
	}
	return Classification{Tags: tags, AccessLevel: m.AccessLevel()}
}
