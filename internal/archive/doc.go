// Package archive writes a processed talk into its knowledge-archive
// directory: JSON for machine consumers, Markdown with YAML front matter for
// readers, and a copy of the extracted audio.
package archive
