// Package config loads, normalizes, and validates spool configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads a local .env file, and applies the
// environment-style overrides (REDIS_URL, WORKER_COUNT, MAX_RETRIES, ...)
// used by container deployments. Environment values win over the file.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical backend names, and clear validation errors.
package config
