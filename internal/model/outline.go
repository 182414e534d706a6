package model

import (
	"fmt"
	"strings"
)

// PartOutline is the Map-phase result for a single text part.
type PartOutline struct {
	PartIndex int      `json:"part_index"`
	Topics    []string `json:"topics"`
	KeyPoints []string `json:"key_points"`
	Summary   string   `json:"summary"`
	Fallback  bool     `json:"fallback,omitempty"`
}

// TranscriptOutline is the Reduce result. AllTopics never holds two entries
// whose word sets have Jaccard similarity at or above the dedupe threshold.
type TranscriptOutline struct {
	Parts     []PartOutline `json:"parts"`
	AllTopics []string      `json:"all_topics"`
}

// TotalParts returns the number of part outlines.
func (o TranscriptOutline) TotalParts() int { return len(o.Parts) }

// ContextText renders the outline as compact prompt context.
func (o TranscriptOutline) ContextText() string {
	if len(o.Parts) == 0 && len(o.AllTopics) == 0 {
		return ""
	}
	var b strings.Builder
	if len(o.AllTopics) > 0 {
		b.WriteString("Topics: ")
		b.WriteString(strings.Join(o.AllTopics, "; "))
		b.WriteString("\n")
	}
	for _, part := range o.Parts {
		fmt.Fprintf(&b, "Part %d: %s\n", part.PartIndex, strings.TrimSpace(part.Summary))
	}
	return strings.TrimRight(b.String(), "\n")
}
