package domain

import "errors"

var (
	// ErrSensorNotFound is returned when a registry has no sensor with the requested name.
	ErrSensorNotFound = errors.New("sensor not found")
	// ErrCallbackNotFound is returned when unsubscribing a callback that is not registered.
	ErrCallbackNotFound = errors.New("callback not registered")
	// ErrInvalidValue is returned when a raw value cannot be decoded for a sensor type.
	ErrInvalidValue = errors.New("invalid sensor value")
	// ErrUnknownType is returned for katcp type names that are not supported.
	ErrUnknownType = errors.New("unknown sensor type")
	// ErrNotFound is returned when no archived reading satisfies the provided filters.
	ErrNotFound = errors.New("reading not found")
)
