// Package llm provides the text-generation clients used by every pipeline
// stage.
//
// Two providers are available: an OpenAI-compatible chat completion client
// for local servers and a Gemini client built on the Google SDK. Both share
// an exponential backoff policy that retries timeouts, 408, 429, and 5xx
// responses. A Router selects the provider from a tagged model name
// ("gemini:gemini-2.0-flash", "local:qwen2.5:14b"), falling back to the
// configured default provider for untagged names.
//
// Every provider failure matches ErrProvider through errors.Is so callers can
// degrade instead of aborting. DecodeJSON tolerates code fences and prose
// around JSON payloads.
package llm
