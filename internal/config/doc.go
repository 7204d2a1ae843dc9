// Package config loads, normalizes, and validates bgjob configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// BGJOB_DATA_DIR and BGJOB_WORKER_ID. The Config type centralizes every knob
// the worker and CLI need so the store location, retry defaults, and poll
// intervals are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
