package config

import "errors"

// Validation and loading errors, comparable with errors.Is.
var (
	ErrInvalidOrigin       = errors.New("invalid origin: must be an absolute http(s) URL")
	ErrNoLanguages         = errors.New("no languages configured")
	ErrNoContentTypes      = errors.New("no content types configured")
	ErrInvalidBackoff      = errors.New("invalid backoff: initial and max must be positive")
	ErrInvalidTimeout      = errors.New("invalid timeout: must be positive")
	ErrInvalidRequestDelay = errors.New("invalid request delay: must be non-negative")
	ErrInvalidMaxBodySize  = errors.New("invalid max body size: must be positive")
	ErrNoDataDir           = errors.New("no data directory configured")

	ErrConfigNotFound    = errors.New("configuration file not found")
	ErrUnsupportedFormat = errors.New("unsupported configuration format: use .yaml, .yml or .toml")
)
