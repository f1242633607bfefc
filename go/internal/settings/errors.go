package settings

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Get for keys outside the schema.
	ErrNotFound = errors.New("settings: key not found")
	// ErrUnknownKey matches any UnknownKeyError.
	ErrUnknownKey = errors.New("settings: unknown key")
	// ErrInvalidValue matches any InvalidValueError.
	ErrInvalidValue = errors.New("settings: invalid value")
	// ErrNoBlob is returned by a Persister when nothing has been saved yet.
	ErrNoBlob = errors.New("settings: nothing persisted")
)

// UnknownKeyError rejects a batch or a persisted blob that names a key outside the schema.
type UnknownKeyError struct {
	Key string
}

func (e *UnknownKeyError) Error() string {
	return fmt.Sprintf("unknown configuration key %q", e.Key)
}

func (e *UnknownKeyError) Is(target error) bool {
	return target == ErrUnknownKey
}

// InvalidValueError rejects a value whose shape does not fit the key's type.
type InvalidValueError struct {
	Key   string
	Value any
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid value %v for configuration key %q", e.Value, e.Key)
}

func (e *InvalidValueError) Is(target error) bool {
	return target == ErrInvalidValue
}
