// Package stage defines the unit of pipeline work and how units are ordered
// and run.
//
// A Stage names its dependencies; Registry.BuildPipeline expands a requested
// set to its transitive closure and orders it topologically (Kahn's
// algorithm, ready stages taken alphabetically so the order is stable).
// Stages exchange results through State, an immutable map: every
// WithResult call returns a new State and leaves the receiver untouched, so
// an older State remains a valid snapshot when a stage is re-run.
package stage
