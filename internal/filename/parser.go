package filename

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/gosimple/slug"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"talkvault/internal/model"
	"talkvault/internal/textutil"
)

// ErrUnrecognized is returned for names that do not follow the layout.
var ErrUnrecognized = errors.New("unrecognized video file name")

const dateLayout = "2006.01.02"

var namePattern = regexp.MustCompile(`^(\d{4}\.\d{2}\.\d{2})\s+(\S+)\s+(.+?)(?:\s*\(([^()]+)\))?$`)

var videoExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".mov": true, ".avi": true, ".webm": true,
	".m4v": true, ".mp3": true, ".m4a": true, ".wav": true,
}

// Parser converts file names to metadata.
type Parser struct {
	archiveDir string
	leadership map[string]bool
	titleCaser cases.Caser
}

// New returns a parser placing archives under archiveDir. Event types in
// leadershipEvents (case-insensitive) yield leadership talks.
func New(archiveDir string, leadershipEvents []string) *Parser {
	set := make(map[string]bool, len(leadershipEvents))
	for _, event := range leadershipEvents {
		if event = strings.TrimSpace(event); event != "" {
			set[strings.ToLower(event)] = true
		}
	}
	return &Parser{
		archiveDir: archiveDir,
		leadership: set,
		titleCaser: cases.Title(language.Russian),
	}
}

// Parse extracts metadata from the base name of path.
func (p *Parser) Parse(path string) (model.VideoMetadata, error) {
	base := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(base))
	if !videoExtensions[ext] {
		return model.VideoMetadata{}, fmt.Errorf("%w: %q: unsupported extension", ErrUnrecognized, base)
	}
	stem := strings.Join(strings.Fields(strings.TrimSuffix(base, filepath.Ext(base))), " ")

	match := namePattern.FindStringSubmatch(stem)
	if match == nil {
		return model.VideoMetadata{}, fmt.Errorf("%w: %q", ErrUnrecognized, base)
	}
	date, err := time.Parse(dateLayout, match[1])
	if err != nil {
		return model.VideoMetadata{}, fmt.Errorf("%w: %q: invalid date: %v", ErrUnrecognized, base, err)
	}

	event, stream, _ := strings.Cut(match[2], ".")
	title := strings.TrimSpace(match[3])
	if event == "" || title == "" {
		return model.VideoMetadata{}, fmt.Errorf("%w: %q", ErrUnrecognized, base)
	}

	meta := model.VideoMetadata{
		Date:        date,
		EventType:   event,
		Stream:      stream,
		Title:       title,
		Speaker:     p.normalizeSpeaker(match[4]),
		SourcePath:  path,
		ContentType: model.ContentEducational,
	}
	if p.leadership[strings.ToLower(event)] {
		meta.ContentType = model.ContentLeadership
	}
	meta.VideoID = VideoID(meta)
	meta.ArchivePath = p.ArchivePath(meta)
	return meta, nil
}

// VideoID derives the stable slug identifying a video.
func VideoID(meta model.VideoMetadata) string {
	parts := []string{meta.Date.Format("2006-01-02"), meta.EventType}
	if meta.Stream != "" {
		parts = append(parts, meta.Stream)
	}
	parts = append(parts, meta.Title)
	return slug.Make(strings.Join(parts, " "))
}

// ArchivePath returns {archive}/{year}/{event}/{date} {title}.
func (p *Parser) ArchivePath(meta model.VideoMetadata) string {
	event := meta.EventType
	if meta.Stream != "" {
		event += "." + meta.Stream
	}
	dir := textutil.SanitizeFileName(fmt.Sprintf("%s %s", meta.Date.Format(dateLayout), meta.Title))
	return filepath.Join(p.archiveDir, meta.Date.Format("2006"), textutil.SanitizeFileName(event), dir)
}

// normalizeSpeaker collapses whitespace and title-cases names written in
// lowercase only.
func (p *Parser) normalizeSpeaker(raw string) string {
	speaker := strings.Join(strings.Fields(raw), " ")
	if speaker == "" {
		return ""
	}
	for _, r := range speaker {
		if unicode.IsUpper(r) {
			return speaker
		}
	}
	return p.titleCaser.String(speaker)
}
