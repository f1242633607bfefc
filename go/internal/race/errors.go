package race

import (
	"errors"
	"fmt"
)

// ErrPlayerNotFound matches any PlayerNotFoundError.
var ErrPlayerNotFound = errors.New("race: player not found")

// PlayerNotFoundError carries enough of the report to register the sender.
type PlayerNotFoundError struct {
	Address string
	Name    string
}

func (e *PlayerNotFoundError) Error() string {
	return fmt.Sprintf("no player registered at %s", e.Address)
}

func (e *PlayerNotFoundError) Is(target error) bool {
	return target == ErrPlayerNotFound
}
