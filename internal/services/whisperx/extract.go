package whisperx

import "fmt"

// AudioFileName is the name of the extracted audio inside the work directory.
const AudioFileName = "audio.wav"

// buildFFmpegExtractArgs extracts the first audio stream as mono 16kHz WAV,
// the input format WhisperX expects.
func buildFFmpegExtractArgs(source, dest string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-map", "0:a:0",
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", 16000),
		"-c:a", "pcm_s16le",
		dest,
	}
}
