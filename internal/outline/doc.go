// Package outline extracts a compact document outline from transcript parts.
//
// Extraction is Map-Reduce: every part is summarised by the model under a
// bounded concurrency limit (Map), then the per-part topics are merged into a
// single list with near-duplicates removed by word-set Jaccard similarity
// (Reduce). A part whose extraction fails receives a deterministic fallback
// outline so one bad reply never sinks the whole document.
package outline
