// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// The pipeline only needs the media duration (it drives the transcription
// estimate) and whether the file carries audio at all.
package ffprobe
