package main

import (
	"log/slog"

	"talkvault/internal/archive"
	"talkvault/internal/config"
	"talkvault/internal/filename"
	"talkvault/internal/pipeline"
	"talkvault/internal/progress"
	"talkvault/internal/services/llm"
	"talkvault/internal/services/whisperx"
	"talkvault/internal/stagecache"
)

// newOrchestrator wires the production collaborators around client.
func newOrchestrator(cfg *config.Config, client llm.Client, logger *slog.Logger) (*pipeline.Orchestrator, error) {
	calibrator := progress.NewCalibrator(cfg.Progress.CalibrationFile, logger)
	return pipeline.New(pipeline.Deps{
		Config:      cfg,
		LLM:         client,
		Transcriber: whisperx.NewService(whisperx.ConfigFrom(cfg.Transcription), cfg.FFmpegBinary(), logger),
		Parser:      filename.New(cfg.Paths.ArchiveDir, cfg.Pipeline.LeadershipEventTypes),
		Archive:     archive.New(logger),
		Cache:       stagecache.New(logger),
		Estimator:   progress.FromConfig(cfg.Progress, progress.WithCalibrator(calibrator)),
		Logger:      logger,
	})
}
