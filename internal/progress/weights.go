package progress

import (
	"talkvault/internal/config"
	"talkvault/internal/model"
)

// stageOrder is the fixed sequence used to accumulate overall progress.
// StatusStory shares the slot of longread and summarizing.
var stageOrder = []model.ProcessingStatus{
	model.StatusParsing,
	model.StatusTranscribing,
	model.StatusCleaning,
	model.StatusChunking,
	model.StatusLongread,
	model.StatusSummarizing,
	model.StatusSaving,
}

// Weights maps each processing status to its share of overall progress.
type Weights map[model.ProcessingStatus]float64

// DefaultWeights returns the repository default weights.
func DefaultWeights() Weights {
	return WeightsFromConfig(config.DefaultWeights())
}

// WeightsFromConfig converts the [progress.weights] section.
func WeightsFromConfig(raw map[string]float64) Weights {
	w := make(Weights, len(raw))
	for status, weight := range raw {
		w[model.ProcessingStatus(status)] = weight
	}
	return w
}

// Weight returns the share owned by status.
func (w Weights) Weight(status model.ProcessingStatus) float64 {
	if status == model.StatusStory {
		return w[model.StatusLongread] + w[model.StatusSummarizing]
	}
	return w[status]
}

// Overall returns the pipeline-wide percentage: the full weight of every
// stage before status plus stageProgress percent of status's own weight.
func (w Weights) Overall(status model.ProcessingStatus, stageProgress float64) float64 {
	switch status {
	case model.StatusCompleted:
		return 100
	case model.StatusPending, model.StatusFailed:
		return 0
	}
	slot := status
	if status == model.StatusStory {
		slot = model.StatusLongread
	}

	var total float64
	found := false
	for _, s := range stageOrder {
		if s == slot {
			found = true
			break
		}
		total += w[s]
	}
	if !found {
		return 0
	}

	stageProgress = min(max(stageProgress, 0), 100)
	total += stageProgress / 100 * w.Weight(status)
	return min(total, 100)
}
