// Package model holds the domain types that flow between pipeline stages:
// video metadata, transcripts, text parts, outlines, chunks, and the
// derivative documents written to the archive.
//
// Values are treated as immutable once a stage returns them. Helpers that
// need to change a value (WithDuration, Reindex) document whether they copy
// or mutate.
package model
