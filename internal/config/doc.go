// Package config loads, normalizes, and validates blindtest configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes the encoder
// and probe binaries, export defaults, archive packaging, the HTTP bridge,
// metrics output and logging so the CLI and the server discover every knob in
// one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
