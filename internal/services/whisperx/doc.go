// Package whisperx transcribes talk recordings with WhisperX.
//
// The audio stream is extracted with ffmpeg into a mono 16kHz WAV, WhisperX
// runs through uvx, and its JSON output becomes a RawTranscript. When
// WhisperX does not report a language, the configured language is used, and
// failing that the language is detected from the transcript text.
package whisperx
