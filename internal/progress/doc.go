// Package progress estimates stage durations and reports time-based progress
// while a stage runs.
//
// A Ticker emits elapsed/estimated percentages on a fixed interval, capped
// below 100 so "still running" stays distinct from "done"; StopTicker owns
// the single transition to 100. Track additionally feeds each stage's
// actual/estimated ratio to the Calibrator under the stage's coefficient key,
// and Estimate scales later estimates by the recorded mean. Weights folds
// per-stage progress into one overall percentage.
package progress
