package model

import (
	"fmt"
	"strings"
)

// TranscriptChunk is a semantic retrieval unit. WordCount always equals
// len(strings.Fields(Text)) once the chunk set has been reindexed.
type TranscriptChunk struct {
	ID        string `json:"id"`
	Index     int    `json:"index"`
	Topic     string `json:"topic"`
	Text      string `json:"text"`
	WordCount int    `json:"word_count"`
}

// TranscriptChunks is the chunk stage output.
type TranscriptChunks struct {
	VideoID   string            `json:"video_id"`
	Chunks    []TranscriptChunk `json:"chunks"`
	ModelName string            `json:"model_name"`
	Degraded  bool              `json:"degraded,omitempty"`
}

// ChunkID formats the stable identifier of the index-th chunk of a video.
func ChunkID(videoID string, index int) string {
	return fmt.Sprintf("%s_%03d", videoID, index)
}

// Reindex drops empty chunks, renumbers the rest from 1, regenerates ids,
// and recomputes word counts. It mutates the receiver.
func (c *TranscriptChunks) Reindex() {
	kept := c.Chunks[:0]
	for _, chunk := range c.Chunks {
		chunk.Text = strings.TrimSpace(chunk.Text)
		if chunk.Text == "" {
			continue
		}
		kept = append(kept, chunk)
	}
	for i := range kept {
		kept[i].Index = i + 1
		kept[i].ID = ChunkID(c.VideoID, i+1)
		kept[i].WordCount = len(strings.Fields(kept[i].Text))
		kept[i].Topic = strings.TrimSpace(kept[i].Topic)
	}
	c.Chunks = kept
}

// TotalWords sums word counts across chunks.
func (c TranscriptChunks) TotalWords() int {
	total := 0
	for _, chunk := range c.Chunks {
		total += chunk.WordCount
	}
	return total
}
