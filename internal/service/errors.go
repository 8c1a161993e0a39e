package service

import "errors"

var (
	// ErrBusy is returned when the session already has a request in flight.
	ErrBusy = errors.New("a recording is already being processed for this session")

	// ErrNoActiveSession is returned when an operation needs an active session and none can be resolved.
	ErrNoActiveSession = errors.New("no active session")

	// ErrSessionNotFound is returned for an unknown session id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrUnsupportedLanguage is returned for a target language outside the configured set.
	ErrUnsupportedLanguage = errors.New("unsupported target language")

	// ErrEmptyTitle is returned when renaming a session to blank text.
	ErrEmptyTitle = errors.New("title must not be empty")

	// ErrBackendOffline is returned when recordings require a reachable backend and the last probe failed.
	ErrBackendOffline = errors.New("backend offline")

	// ErrInvalidPairingCode is returned when device pairing fails.
	ErrInvalidPairingCode = errors.New("invalid pairing code")

	// ErrAuthDisabled is returned by pairing calls when no JWT secret is configured.
	ErrAuthDisabled = errors.New("authentication is not configured")
)
