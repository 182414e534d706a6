// Package generate turns a cleaned transcript into the derivative documents
// of the knowledge archive.
//
// A Generator holds one LLM client and the per-stage model names. Each
// method performs a single pipeline stage (clean, chunk, longread,
// summarize, story) and returns an error instead of a partial document when
// the model reply is unusable; the orchestrator decides whether to fall back.
package generate
