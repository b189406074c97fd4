package session

import "errors"

var (
	// ErrNoStorage is returned by New without a storage.
	ErrNoStorage = errors.New("session: storage is required")

	// ErrNotStarted is returned by operations that need Start first.
	ErrNotStarted = errors.New("session: manager not started")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("session: manager closed")
)
