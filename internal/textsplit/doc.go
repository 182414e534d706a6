// Package textsplit cuts large transcripts into overlapping, sentence-aligned
// parts for Map-phase LLM calls.
//
// Splitting is deterministic: the same text and options always produce the
// same part boundaries. The orchestrator splits once per cleaning pass and
// hands the same parts to both chunking and outline extraction, so the two
// consumers agree on where each overlap region begins and ends.
//
// All sizes are measured in runes.
package textsplit
