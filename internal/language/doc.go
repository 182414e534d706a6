// Package language normalizes language codes and detects the language of
// transcript text when the transcriber does not report one.
package language
