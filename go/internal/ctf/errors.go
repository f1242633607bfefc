package ctf

import (
	"errors"
	"fmt"
)

var (
	// ErrConfigMismatch matches any ConfigMismatchError.
	ErrConfigMismatch = errors.New("ctf: team roster mismatch")
	// ErrNodeNotFound matches any NodeNotFoundError.
	ErrNodeNotFound = errors.New("ctf: node not registered")
	// ErrEmptyReport is returned for an update that carries no node entry.
	ErrEmptyReport = errors.New("ctf: report has no node")
)

// ConfigMismatchError means the node plays with a different team roster than the session.
type ConfigMismatchError struct {
	Address string
	Name    string
}

func (e *ConfigMismatchError) Error() string {
	return fmt.Sprintf("node %s reports a different team roster", e.Address)
}

func (e *ConfigMismatchError) Is(target error) bool {
	return target == ErrConfigMismatch
}

// NodeNotFoundError means the reporting node is not part of the session.
type NodeNotFoundError struct {
	Address string
	Name    string
}

func (e *NodeNotFoundError) Error() string {
	return fmt.Sprintf("node %s is not registered for capture the flag", e.Address)
}

func (e *NodeNotFoundError) Is(target error) bool {
	return target == ErrNodeNotFound
}
