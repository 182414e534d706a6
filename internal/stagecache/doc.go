// Package stagecache stores versioned stage results inside a video's archive
// directory.
//
// Layout:
//
//	{archive}/.cache/manifest.json
//	{archive}/.cache/{stage}/v{N}.json
//
// Versions are 1-based and strictly increasing per stage. Exactly one entry
// per non-empty stage list is current; saving a new version demotes the
// others. Writers serialise on an in-process mutex per archive plus a file
// lock on {archive}/.cache/manifest.lock, so separate processes re-running
// stages of the same video cannot allocate the same version.
package stagecache
