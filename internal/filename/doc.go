// Package filename parses video file names into VideoMetadata.
//
// Recognised layout:
//
//	{YYYY.MM.DD} {event}[.{stream}] {title} ({speaker}).{ext}
//
// The speaker suffix is optional. The event type selects the content type:
// events listed as leadership produce leadership talks, everything else is
// educational.
package filename
