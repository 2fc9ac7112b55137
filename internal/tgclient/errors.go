package tgclient

import "errors"

var (
	// ErrMissingAPIID is returned when no API ID is configured.
	ErrMissingAPIID = errors.New("tgclient: missing api id")

	// ErrMissingAPIHash is returned when no API hash is configured.
	ErrMissingAPIHash = errors.New("tgclient: missing api hash")

	// ErrNotAuthorized is returned when the session is not logged in and
	// no bot token is available to log in with.
	ErrNotAuthorized = errors.New("tgclient: session not authorized")

	// ErrAlreadyRunning is returned when Run is called twice.
	ErrAlreadyRunning = errors.New("tgclient: already running")

	// ErrNotConnected is returned for operations that need a running
	// client.
	ErrNotConnected = errors.New("tgclient: not connected")
)
