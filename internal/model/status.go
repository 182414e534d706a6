package model

// ProcessingStatus is the pipeline state reported to progress observers.
type ProcessingStatus string

const (
	StatusPending      ProcessingStatus = "pending"
	StatusParsing      ProcessingStatus = "parsing"
	StatusTranscribing ProcessingStatus = "transcribing"
	StatusCleaning     ProcessingStatus = "cleaning"
	StatusChunking     ProcessingStatus = "chunking"
	StatusLongread     ProcessingStatus = "longread"
	StatusSummarizing  ProcessingStatus = "summarizing"
	StatusStory        ProcessingStatus = "story"
	StatusSaving       ProcessingStatus = "saving"
	StatusCompleted    ProcessingStatus = "completed"
	StatusFailed       ProcessingStatus = "failed"
)

// Terminal reports whether no further transitions follow this status.
func (s ProcessingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s ProcessingStatus) String() string { return string(s) }
