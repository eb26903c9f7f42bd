package ptyhost

import "errors"

var (
	// ErrNotFound is returned when a session id is not registered.
	ErrNotFound = errors.New("session not found")

	// ErrSessionExists is returned when spawning under an id that is still live.
	ErrSessionExists = errors.New("session already exists")

	// ErrSpawnFailed wraps terminal or process allocation failures.
	ErrSpawnFailed = errors.New("failed to spawn session")

	// ErrInvalidSize is returned for a zero row or column count.
	ErrInvalidSize = errors.New("invalid terminal size")

	// ErrPTYNotSupported is returned on platforms without a terminal backend.
	ErrPTYNotSupported = errors.New("PTY not supported on this platform")
)
