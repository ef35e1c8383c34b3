package spech5

import (
	"errors"
	"fmt"
)

// ErrNotFound is the sentinel wrapped by every failed path resolution.
var ErrNotFound = errors.New("no such node")

// PathError reports a path that does not resolve in the virtual tree.
// It is local to the failing call; the file handle stays valid.
type PathError struct {
	Path   string
	Reason string
}

func (e *PathError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("spech5: %q: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("spech5: %q: no such node", e.Path)
}

func (e *PathError) Unwrap() error { return ErrNotFound }

func notFound(path string) error {
	return &PathError{Path: path}
}
