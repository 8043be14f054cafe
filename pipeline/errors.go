package pipeline

import "fmt"

// WriteError indicates the destination file could not be created or written.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Errorf("write %s: %w", e.Path, e.Err).Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
