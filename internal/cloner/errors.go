package cloner

import "errors"

var (
	// ErrMissingConfig is returned when Options.Config is nil.
	ErrMissingConfig = errors.New("cloner: config store is required")

	// ErrMissingMappings is returned when Options.Mappings is nil.
	ErrMissingMappings = errors.New("cloner: mapping store is required")

	// ErrMissingStatus is returned when Options.Status is nil.
	ErrMissingStatus = errors.New("cloner: status reporter is required")

	// ErrMissingResolver is returned when Options.Resolver is nil.
	ErrMissingResolver = errors.New("cloner: resolver is required")

	// ErrMissingSyncer is returned when Options.Syncer is nil.
	ErrMissingSyncer = errors.New("cloner: dialog syncer is required")

	// ErrMissingSender is returned when Options.Sender is nil.
	ErrMissingSender = errors.New("cloner: sender is required")

	// ErrAlreadyRunning is returned when a runner is started twice.
	ErrAlreadyRunning = errors.New("cloner: already running")
)
