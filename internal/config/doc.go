// Package config loads, normalizes, and validates talkvault configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// GEMINI_API_KEY and HF_TOKEN. A .env file in the working directory is loaded
// before the fallbacks are consulted. The Config type centralizes every knob
// the pipeline and CLI need: directories, provider credentials, per-stage
// models, splitting thresholds, and progress estimation coefficients.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
