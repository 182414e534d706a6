// Package fallback builds minimal but valid documents when a generation
// stage fails, so a video can still reach the archive.
//
// Every builder is deterministic and uses no model: outputs are carved from
// the transcript text itself (sentence windows, leading sentences, outline
// summaries) and always carry Degraded=true.
package fallback
