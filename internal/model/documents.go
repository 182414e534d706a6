package model

// Classification is attached to every derivative document.
type Classification struct {
	Tags        []string `json:"tags"`
	AccessLevel string   `json:"access_level"`
}

// Default access levels.
const (
	AccessInternal = "internal"
	AccessLeaders  = "leaders"
)

// LongreadSection is one generated section of a longread.
type LongreadSection struct {
	Index     int    `json:"index"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	WordCount int    `json:"word_count"`
}

// Longread is the long-form article produced for educational talks.
type Longread struct {
	VideoID        string            `json:"video_id"`
	Title          string            `json:"title"`
	Speaker        string            `json:"speaker,omitempty"`
	Introduction   string            `json:"introduction"`
	Sections       []LongreadSection `json:"sections"`
	Conclusion     string            `json:"conclusion"`
	Classification Classification    `json:"classification"`
	ModelName      string            `json:"model_name"`
	Degraded       bool              `json:"degraded,omitempty"`
}

// Summary is the condensed digest produced for educational talks.
type Summary struct {
	VideoID        string         `json:"video_id"`
	Title          string         `json:"title"`
	Essence        string         `json:"essence"`
	KeyConcepts    []string       `json:"key_concepts"`
	Quotes         []string       `json:"quotes"`
	Actions        []string       `json:"actions"`
	Classification Classification `json:"classification"`
	ModelName      string         `json:"model_name"`
	Degraded       bool           `json:"degraded,omitempty"`
}

// StoryBlockCount is the fixed number of blocks in a leadership story.
const StoryBlockCount = 8

// StoryBlockTitles names the fixed story blocks in order.
var StoryBlockTitles = [StoryBlockCount]string{
	"Context",
	"Challenge",
	"Decision",
	"Actions",
	"Obstacles",
	"Results",
	"Lessons",
	"Advice",
}

// StoryBlock is one of the fixed blocks of a story.
type StoryBlock struct {
	Index   int    `json:"index"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Story is the 8-block narrative produced for leadership talks.
type Story struct {
	VideoID        string         `json:"video_id"`
	Title          string         `json:"title"`
	Speaker        string         `json:"speaker,omitempty"`
	Blocks         []StoryBlock   `json:"blocks"`
	Classification Classification `json:"classification"`
	ModelName      string         `json:"model_name"`
	Degraded       bool           `json:"degraded,omitempty"`
}

// PipelineResult describes a completed run.
type PipelineResult struct {
	VideoID         string      `json:"video_id"`
	ArchivePath     string      `json:"archive_path"`
	ContentType     ContentType `json:"content_type"`
	Files           []string    `json:"files"`
	DegradedStages  []string    `json:"degraded_stages,omitempty"`
	ChunkCount      int         `json:"chunk_count"`
	DurationSeconds float64     `json:"duration_seconds"`
	ElapsedSeconds  float64     `json:"elapsed_seconds"`
}

// Degraded reports whether any stage fell back during the run.
func (r PipelineResult) Degraded() bool { return len(r.DegradedStages) > 0 }
