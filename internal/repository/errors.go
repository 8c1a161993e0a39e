package repository

import "errors"

var (
	// ErrInvalidStoreType is returned for an unknown storage driver name.
	ErrInvalidStoreType = errors.New("invalid store type")

	// ErrInvalidConfig is returned when a driver is missing required settings.
	ErrInvalidConfig = errors.New("invalid store configuration")
)
