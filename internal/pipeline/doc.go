// Package pipeline orchestrates the processing of one talk recording.
//
// Every step is a registered stage.Stage; Process builds the ordered
// pipeline ending in the save stage and runs it with a hook that tracks
// progress, substitutes fallback results for degradable stages, and records
// each stage result in the archive's stage cache. Rerun executes a single
// stage again against the cached results of its dependencies, optionally with
// a different model, and stores the output as a new cache version.
//
// Parse, transcribe and save failures end the run with a stage-tagged error.
// Clean, chunk, longread, summarize and story fall back to deterministic
// results and are listed in PipelineResult.DegradedStages.
package pipeline
