package config

import "errors"

var (
	// ErrMissingAPIID is returned when api_id is absent from both the
	// config file and the environment.
	ErrMissingAPIID = errors.New("config: api_id is required")

	// ErrMissingAPIHash is returned when api_hash is absent from both
	// the config file and the environment.
	ErrMissingAPIHash = errors.New("config: api_hash is required")

	// ErrRuleExists is returned when the exact source to target link is
	// already configured.
	ErrRuleExists = errors.New("config: link already exists")

	// ErrRuleCycle is returned when adding a link whose reverse is
	// already configured.
	ErrRuleCycle = errors.New("config: link would forward back to its source")

	// ErrFilterExists is returned when the word is already filtered.
	ErrFilterExists = errors.New("config: filter already exists")

	// ErrFilterCycle is returned when adding a filter whose reverse is
	// already configured.
	ErrFilterCycle = errors.New("config: filter would undo an existing filter")
)
